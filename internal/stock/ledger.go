package stock

import (
	"context"

	"imenu-order-services/internal/apperr"
	"imenu-order-services/internal/events"

	"go.uber.org/zap"
)

// Ledger is the only writer of stock quantities. Every change goes through
// ApplyDelta, which pairs the quantity mutation with one audit log row.
type Ledger struct {
	store  Store
	logger *zap.Logger
	events events.Publisher
}

func NewLedger(store Store, logger *zap.Logger, publisher events.Publisher) *Ledger {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Ledger{store: store, logger: logger, events: publisher}
}

func (l *Ledger) Store() Store { return l.store }

// ApplyDelta adds amount (signed) to the item's on-hand quantity and appends
// a log row snapshotting the item name. The quantity write happens first;
// a failed log append is reported but never undoes the quantity change,
// since a drifted quantity with no record is worse than a missing log line.
func (l *Ledger) ApplyDelta(ctx context.Context, itemID int64, amount float64, changeType ChangeType, orderID *int64) (*Item, error) {
	if !changeType.Valid() {
		return nil, apperr.Invalid("type", "unknown stock change type")
	}
	if amount == 0 {
		return nil, apperr.Invalid("amount", "change amount must be non-zero")
	}

	item, err := l.store.AdjustQuantity(ctx, itemID, amount)
	if err != nil {
		return nil, err
	}

	if err := l.store.AppendLog(ctx, Log{
		RestaurantID: item.RestaurantID,
		StockItemID:  item.ID,
		ItemName:     item.Name,
		ChangeAmount: amount,
		Type:         changeType,
		OrderID:      orderID,
	}); err != nil {
		l.logger.Error("stock log append failed",
			zap.Int64("stockItemId", item.ID),
			zap.Float64("changeAmount", amount),
			zap.Error(err))
	}

	if item.Quantity <= item.AlertLevel {
		l.events.Publish(ctx, item.RestaurantID, events.LowStock, map[string]any{
			"stockItemId": item.ID,
			"name":        item.Name,
			"quantity":    item.Quantity,
			"alertLevel":  item.AlertLevel,
		})
	}

	return item, nil
}
