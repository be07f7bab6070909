package stock

import (
	"context"
	"time"
)

type ChangeType string

const (
	ChangeConsumption ChangeType = "consumption"
	ChangeRestock     ChangeType = "restock"
	ChangeAdjustment  ChangeType = "adjustment"
	ChangeWaste       ChangeType = "waste"
)

func (c ChangeType) Valid() bool {
	switch c {
	case ChangeConsumption, ChangeRestock, ChangeAdjustment, ChangeWaste:
		return true
	}
	return false
}

// Item is a tenant-scoped stock position. Quantity is only ever mutated
// through Ledger.ApplyDelta and may go negative: a negative on-hand figure
// is the oversold signal, not an error.
type Item struct {
	ID           int64     `json:"id"`
	RestaurantID int64     `json:"restaurantId"`
	Name         string    `json:"name"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit"`
	CostPerUnit  float64   `json:"costPerUnit"`
	AlertLevel   float64   `json:"alertLevel"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// Log is one append-only audit row per quantity change. ItemName is a
// snapshot taken at write time so later renames do not rewrite history.
type Log struct {
	ID           int64      `json:"id"`
	RestaurantID int64      `json:"restaurantId"`
	StockItemID  int64      `json:"stockItemId"`
	ItemName     string     `json:"itemName"`
	ChangeAmount float64    `json:"changeAmount"`
	Type         ChangeType `json:"type"`
	OrderID      *int64     `json:"orderId,omitempty"`
	Date         time.Time  `json:"date"`
}

type LogFilter struct {
	RestaurantID int64
	StartDate    *time.Time
	EndDate      *time.Time
}

type Store interface {
	CreateItem(ctx context.Context, item *Item) (*Item, error)
	GetItem(ctx context.Context, id int64) (*Item, error)
	ListItems(ctx context.Context, restaurantID int64) ([]Item, error)
	DeleteItem(ctx context.Context, id int64) error

	// AdjustQuantity atomically adds delta to the item's quantity and
	// returns the updated item. No floor at zero.
	AdjustQuantity(ctx context.Context, id int64, delta float64) (*Item, error)

	AppendLog(ctx context.Context, log Log) error
	ListLogs(ctx context.Context, filter LogFilter) ([]Log, error)
}
