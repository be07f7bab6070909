package orders

import (
	"context"
	"math"
	"strings"
	"time"

	"imenu-order-services/internal/apperr"
	"imenu-order-services/internal/auth"
	"imenu-order-services/internal/events"
	"imenu-order-services/internal/stock"
	"imenu-order-services/internal/utils"

	"go.uber.org/zap"
)

// StockLedger is the slice of the stock package the engine needs for the
// completion-time ingredient deduction.
type StockLedger interface {
	ApplyDelta(ctx context.Context, itemID int64, amount float64, changeType stock.ChangeType, orderID *int64) (*stock.Item, error)
}

// Engine owns the order lifecycle: placement with open-tab merge, guarded
// status transitions, cancellation, and the stock deduction side effect of
// completion.
type Engine struct {
	store  Store
	ledger StockLedger
	logger *zap.Logger
	events events.Publisher
}

func NewEngine(store Store, ledger StockLedger, logger *zap.Logger, publisher events.Publisher) *Engine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Engine{store: store, ledger: ledger, logger: logger, events: publisher}
}

type PlaceInput struct {
	RestaurantID  int64
	TableNumber   string // empty means takeaway
	CustomerName  string
	CustomerPhone string

	// Explicit merge targets entered by staff; when set, the order must
	// still be open or placement fails instead of opening a second tab.
	MergeOrderNum *int64
	MergeOrderID  *int64

	Items          []LineItem
	SubTotal       float64
	TaxAmount      float64
	ServiceAmount  float64
	DiscountAmount float64
	CouponCode     string
	TotalPrice     float64
	Note           string
	CreatedBy      *int64
}

func (in *PlaceInput) validate() error {
	if in.RestaurantID <= 0 {
		return apperr.Invalid("restaurantId", "restaurant reference is required")
	}
	if len(in.Items) == 0 {
		return apperr.Invalid("items", "order must have at least one item")
	}
	for _, item := range in.Items {
		if strings.TrimSpace(item.Name) == "" {
			return apperr.Invalid("items", "item name is required")
		}
		if item.Qty <= 0 {
			return apperr.Invalid("items", "item quantity must be positive")
		}
		if item.Price < 0 {
			return apperr.Invalid("items", "item price must not be negative")
		}
	}
	expected := in.SubTotal + in.TaxAmount + in.ServiceAmount - in.DiscountAmount
	if math.Abs(in.TotalPrice-expected) > 0.01 {
		return apperr.Invalid("totalPrice", "total must equal subtotal + tax + service - discount")
	}
	return nil
}

// PlaceOrMerge appends the batch to the matching open order when one exists,
// otherwise opens a new pending order under the tenant's next order number.
// The bool result reports whether a merge happened.
func (e *Engine) PlaceOrMerge(ctx context.Context, in PlaceInput) (*Order, bool, error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}

	target, explicit, err := e.findOpenTarget(ctx, in)
	if err != nil {
		return nil, false, err
	}

	if target != nil {
		merged, err := e.store.AppendItems(ctx, target.ID, in.Items, in.SubTotal, in.TotalPrice, in.Note)
		if err != nil {
			return nil, false, err
		}
		if merged == nil {
			// closed between the find and the append
			return nil, false, &apperr.StateConflictError{Entity: "order", Current: string(target.Status), Attempt: "append items"}
		}
		e.events.Publish(ctx, merged.RestaurantID, events.ItemsAdded, merged)
		e.events.Publish(ctx, merged.RestaurantID, events.OrderUpdated, merged)
		return merged, true, nil
	}
	if explicit {
		return nil, false, &apperr.StateConflictError{Entity: "order", Current: "closed or missing", Attempt: "append items"}
	}

	orderNum, err := e.store.NextOrderNumber(ctx, in.RestaurantID)
	if err != nil {
		return nil, false, err
	}

	table := strings.TrimSpace(in.TableNumber)
	if table == "" {
		table = TableTakeaway
	}

	created, err := e.store.Create(ctx, &Order{
		RestaurantID:   in.RestaurantID,
		OrderNum:       orderNum,
		TableNumber:    table,
		CustomerName:   strings.TrimSpace(in.CustomerName),
		CustomerPhone:  strings.TrimSpace(in.CustomerPhone),
		Items:          in.Items,
		SubTotal:       utils.Round2(in.SubTotal),
		TaxAmount:      utils.Round2(in.TaxAmount),
		ServiceAmount:  utils.Round2(in.ServiceAmount),
		DiscountAmount: utils.Round2(in.DiscountAmount),
		CouponCode:     strings.ToUpper(strings.TrimSpace(in.CouponCode)),
		TotalPrice:     utils.Round2(in.TotalPrice),
		Status:         StatusPending,
		Note:           strings.TrimSpace(in.Note),
		CreatedBy:      in.CreatedBy,
	})
	if err != nil {
		return nil, false, err
	}

	// counted only once the order exists, so a failed create cannot
	// leave a phantom redemption
	if code := strings.TrimSpace(in.CouponCode); code != "" {
		if err := e.store.IncrementCouponUsage(ctx, in.RestaurantID, code); err != nil {
			e.logger.Warn("coupon usage increment failed", zap.String("code", code), zap.Error(err))
		}
	}

	e.events.Publish(ctx, created.RestaurantID, events.NewOrder, created)
	return created, false, nil
}

// findOpenTarget resolves the merge target by priority: explicit order
// number, explicit order id, table match, then takeaway phone/name match.
// explicit reports that the caller named a specific order, so a miss must
// fail rather than open a duplicate tab.
func (e *Engine) findOpenTarget(ctx context.Context, in PlaceInput) (order *Order, explicit bool, err error) {
	switch {
	case in.MergeOrderNum != nil:
		order, err = e.store.FindOpenByNumber(ctx, in.RestaurantID, *in.MergeOrderNum)
		return order, true, err

	case in.MergeOrderID != nil:
		target, err := e.store.Get(ctx, *in.MergeOrderID)
		if err != nil {
			return nil, true, err
		}
		if target.RestaurantID != in.RestaurantID {
			return nil, true, apperr.ErrNotFound
		}
		if !target.Status.Open() {
			return nil, true, &apperr.StateConflictError{Entity: "order", Current: string(target.Status), Attempt: "append items"}
		}
		return target, true, nil

	case strings.TrimSpace(in.TableNumber) != "":
		order, err = e.store.FindOpenByTable(ctx, in.RestaurantID, strings.TrimSpace(in.TableNumber))
		return order, false, err

	default:
		phone := strings.TrimSpace(in.CustomerPhone)
		name := strings.TrimSpace(in.CustomerName)
		if phone == "" && name == "" {
			return nil, false, nil
		}
		order, err = e.store.FindOpenTakeaway(ctx, in.RestaurantID, phone, name)
		return order, false, err
	}
}

// Cancel is legal from pending alone; a preparing order needs staff
// intervention and keeps its state.
func (e *Engine) Cancel(ctx context.Context, orderID int64, actor auth.Actor) error {
	order, err := e.authorize(ctx, orderID, actor, func(a auth.Access) bool { return a.CanWrite })
	if err != nil {
		return err
	}
	if order.Status != StatusPending {
		return &apperr.StateConflictError{Entity: "order", Current: string(order.Status), Attempt: "cancel"}
	}

	ok, err := e.store.AdvanceStatus(ctx, orderID, StatusPending, StatusCanceled)
	if err != nil {
		return err
	}
	if !ok {
		return &apperr.StateConflictError{Entity: "order", Current: "changed", Attempt: "cancel"}
	}

	e.events.Publish(ctx, order.RestaurantID, events.OrderCanceled, map[string]any{
		"orderId":  order.ID,
		"orderNum": order.OrderNum,
		"table":    order.TableNumber,
	})
	e.events.Publish(ctx, order.RestaurantID, events.StatusChanged, map[string]any{
		"orderId": order.ID,
		"status":  StatusCanceled,
	})
	return nil
}

// EditItems replaces the whole item list and totals of a pending order.
func (e *Engine) EditItems(ctx context.Context, orderID int64, items []LineItem, totals Totals, actor auth.Actor) (*Order, error) {
	order, err := e.authorize(ctx, orderID, actor, func(a auth.Access) bool { return a.CanWrite })
	if err != nil {
		return nil, err
	}
	if order.Status != StatusPending {
		return nil, &apperr.StateConflictError{Entity: "order", Current: string(order.Status), Attempt: "edit items"}
	}
	if len(items) == 0 {
		return nil, apperr.Invalid("items", "order must keep at least one item")
	}
	expected := totals.SubTotal + totals.TaxAmount + totals.ServiceAmount - totals.DiscountAmount
	if math.Abs(totals.TotalPrice-expected) > 0.01 {
		return nil, apperr.Invalid("totalPrice", "total must equal subtotal + tax + service - discount")
	}

	updated, err := e.store.ReplaceItems(ctx, orderID, items, totals)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, &apperr.StateConflictError{Entity: "order", Current: "changed", Attempt: "edit items"}
	}

	e.events.Publish(ctx, updated.RestaurantID, events.OrderUpdated, updated)
	return updated, nil
}

// AdvanceStatus moves an order along the lifecycle. Transitioning into
// completed deducts ingredient stock exactly once; a repeated call with the
// current status is a no-op.
func (e *Engine) AdvanceStatus(ctx context.Context, orderID int64, target Status, actor auth.Actor) (*Order, error) {
	if !target.Known() {
		return nil, apperr.Invalid("status", "unknown order status")
	}

	order, err := e.authorize(ctx, orderID, actor, func(a auth.Access) bool { return a.CanAdvance })
	if err != nil {
		return nil, err
	}

	if order.Status == target {
		return order, nil
	}
	if !CanTransition(order.Status, target) {
		return nil, &apperr.StateConflictError{Entity: "order", Current: string(order.Status), Attempt: "move to " + string(target)}
	}

	ok, err := e.store.AdvanceStatus(ctx, orderID, order.Status, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &apperr.StateConflictError{Entity: "order", Current: "changed", Attempt: "move to " + string(target)}
	}

	if target == StatusCompleted {
		claimed, err := e.store.ClaimStockDeduction(ctx, orderID)
		if err != nil {
			e.logger.Error("stock deduction claim failed", zap.Int64("orderId", orderID), zap.Error(err))
		} else if claimed {
			e.deductStock(ctx, order)
		}
	}

	order.Status = target
	order.UpdatedAt = time.Now()

	e.events.Publish(ctx, order.RestaurantID, events.StatusChanged, map[string]any{
		"orderId": order.ID,
		"status":  target,
	})
	e.events.Publish(ctx, order.RestaurantID, events.OrderUpdated, order)
	return order, nil
}

// deductStock burns each line item's ingredient recipe through the ledger.
// Unresolvable products degrade gracefully: the completion already happened
// and stock accuracy is best-effort from here.
func (e *Engine) deductStock(ctx context.Context, order *Order) {
	for _, item := range order.Items {
		product, err := e.store.ResolveProduct(ctx, order.RestaurantID, item.ProductID, item.Name)
		if err != nil {
			e.logger.Warn("product lookup failed during stock deduction",
				zap.Int64("orderId", order.ID), zap.String("item", item.Name), zap.Error(err))
			continue
		}
		if product == nil {
			e.logger.Warn("product not resolvable, stock not deducted",
				zap.Int64("orderId", order.ID), zap.String("item", item.Name))
			continue
		}

		for _, ing := range product.Ingredients {
			amount := ing.QuantityPerUnit * float64(item.Qty)
			if amount <= 0 {
				continue
			}
			if _, err := e.ledger.ApplyDelta(ctx, ing.StockItemID, -amount, stock.ChangeConsumption, &order.ID); err != nil {
				e.logger.Warn("ingredient deduction failed",
					zap.Int64("orderId", order.ID),
					zap.Int64("stockItemId", ing.StockItemID),
					zap.Error(err))
			}
		}
	}
}

type HistoryResult struct {
	Orders     []Order `json:"orders"`
	TotalSales float64 `json:"totalSales"`
}

// History lists closed orders. Roles without the full time range are
// clamped to the current day in the tenant's timezone.
func (e *Engine) History(ctx context.Context, filter HistoryFilter, actor auth.Actor, loc *time.Location) (*HistoryResult, error) {
	access := auth.ResolveAccess(actor, filter.RestaurantID)
	if !access.CanRead {
		return nil, apperr.ErrForbidden
	}
	if !access.FullRange {
		now := time.Now().In(loc)
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		dayEnd := dayStart.AddDate(0, 0, 1)
		filter.StartDate = &dayStart
		filter.EndDate = &dayEnd
	}

	list, err := e.store.History(ctx, filter)
	if err != nil {
		return nil, err
	}

	var totalSales float64
	for _, order := range list {
		if order.Status == StatusCompleted {
			totalSales += order.TotalPrice
		}
	}
	return &HistoryResult{Orders: list, TotalSales: utils.Round2(totalSales)}, nil
}

// Active lists the open orders of a tenant (kitchen/cashier board).
func (e *Engine) Active(ctx context.Context, restaurantID int64, actor auth.Actor) ([]Order, error) {
	access := auth.ResolveAccess(actor, restaurantID)
	if !access.CanRead {
		return nil, apperr.ErrForbidden
	}
	return e.store.ListActive(ctx, restaurantID)
}

// authorize loads the order and checks the actor's capability over its
// tenant. Actors with no read visibility into the tenant get not-found,
// never forbidden, so probing cannot confirm an order exists.
func (e *Engine) authorize(ctx context.Context, orderID int64, actor auth.Actor, need func(auth.Access) bool) (*Order, error) {
	order, err := e.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	access := auth.ResolveAccess(actor, order.RestaurantID)
	if !access.CanRead {
		return nil, apperr.ErrNotFound
	}
	if !need(access) {
		return nil, apperr.ErrForbidden
	}
	return order, nil
}
