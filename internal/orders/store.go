package orders

import (
	"context"
	"time"
)

type HistoryFilter struct {
	RestaurantID int64
	StartDate    *time.Time
	EndDate      *time.Time
	Search       string // order number or table identifier
}

// Store is the persistence boundary of the Order Engine. Find methods
// return (nil, nil) when no open match exists; mutation guards report a
// stale state through their boolean result rather than an error.
type Store interface {
	Get(ctx context.Context, id int64) (*Order, error)

	FindOpenByNumber(ctx context.Context, restaurantID, orderNum int64) (*Order, error)
	FindOpenByTable(ctx context.Context, restaurantID int64, table string) (*Order, error)
	FindOpenTakeaway(ctx context.Context, restaurantID int64, phone, name string) (*Order, error)

	// NextOrderNumber atomically allocates the tenant's next sequential
	// order number; never a read-then-write in application code.
	NextOrderNumber(ctx context.Context, restaurantID int64) (int64, error)

	Create(ctx context.Context, order *Order) (*Order, error)

	// AppendItems atomically appends the batch to an order that is still
	// open and adds the batch totals. Returns (nil, nil) when the order
	// has left the open status set.
	AppendItems(ctx context.Context, orderID int64, items []LineItem, addSubTotal, addTotal float64, note string) (*Order, error)

	// ReplaceItems swaps the whole item list and totals while the order is
	// still pending. Returns (nil, nil) when the guard fails.
	ReplaceItems(ctx context.Context, orderID int64, items []LineItem, totals Totals) (*Order, error)

	// AdvanceStatus compare-and-sets the status; false means the order was
	// concurrently moved out of `from`.
	AdvanceStatus(ctx context.Context, orderID int64, from, to Status) (bool, error)

	// ClaimStockDeduction flips the one-shot deduction flag; false when a
	// prior completion already claimed it.
	ClaimStockDeduction(ctx context.Context, orderID int64) (bool, error)

	History(ctx context.Context, filter HistoryFilter) ([]Order, error)
	ListActive(ctx context.Context, restaurantID int64) ([]Order, error)

	IncrementCouponUsage(ctx context.Context, restaurantID int64, code string) error

	// ResolveProduct looks a line item up by its stored product reference,
	// falling back to a tenant-scoped name match for legacy items.
	// (nil, nil) when the product cannot be resolved.
	ResolveProduct(ctx context.Context, restaurantID int64, productID *int64, name string) (*Product, error)
}
