package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"imenu-order-services/internal/apperr"
	"imenu-order-services/internal/auth"
	"imenu-order-services/internal/stock"

	"go.uber.org/zap"
)

type memStore struct {
	mu       sync.Mutex
	nextID   int64
	counters map[int64]int64
	orders   map[int64]*Order
	products map[int64]*Product // keyed by product id
	coupons  map[string]int

	createErr error

	lastHistoryFilter HistoryFilter
}

func newOrderMemStore() *memStore {
	return &memStore{
		nextID:   1,
		counters: make(map[int64]int64),
		orders:   make(map[int64]*Order),
		products: make(map[int64]*Product),
		coupons:  make(map[string]int),
	}
}

func (m *memStore) Get(_ context.Context, id int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	out := *o
	return &out, nil
}

func (m *memStore) findOpen(match func(*Order) bool) *Order {
	var best *Order
	for _, o := range m.orders {
		if !o.Status.Open() || !match(o) {
			continue
		}
		if best == nil || o.CreatedAt.After(best.CreatedAt) {
			best = o
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func (m *memStore) FindOpenByNumber(_ context.Context, restaurantID, orderNum int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findOpen(func(o *Order) bool {
		return o.RestaurantID == restaurantID && o.OrderNum == orderNum
	}), nil
}

func (m *memStore) FindOpenByTable(_ context.Context, restaurantID int64, table string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findOpen(func(o *Order) bool {
		return o.RestaurantID == restaurantID && o.TableNumber == table
	}), nil
}

func (m *memStore) FindOpenTakeaway(_ context.Context, restaurantID int64, phone, name string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if phone != "" {
		if o := m.findOpen(func(o *Order) bool {
			return o.RestaurantID == restaurantID && o.TableNumber == TableTakeaway && o.CustomerPhone == phone
		}); o != nil {
			return o, nil
		}
	}
	if name != "" {
		return m.findOpen(func(o *Order) bool {
			return o.RestaurantID == restaurantID && o.TableNumber == TableTakeaway && o.CustomerName == name
		}), nil
	}
	return nil, nil
}

func (m *memStore) NextOrderNumber(_ context.Context, restaurantID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[restaurantID]++
	return m.counters[restaurantID], nil
}

func (m *memStore) Create(_ context.Context, order *Order) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	copied := *order
	copied.ID = m.nextID
	m.nextID++
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	m.orders[copied.ID] = &copied
	out := copied
	return &out, nil
}

func (m *memStore) AppendItems(_ context.Context, orderID int64, items []LineItem, addSubTotal, addTotal float64, note string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if !o.Status.Open() {
		return nil, nil
	}
	o.Items = append(o.Items, items...)
	o.SubTotal += addSubTotal
	o.TotalPrice += addTotal
	if note != "" {
		if o.Note == "" {
			o.Note = note
		} else {
			o.Note += " | " + note
		}
	}
	o.UpdatedAt = time.Now()
	out := *o
	return &out, nil
}

func (m *memStore) ReplaceItems(_ context.Context, orderID int64, items []LineItem, totals Totals) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if o.Status != StatusPending {
		return nil, nil
	}
	o.Items = items
	o.SubTotal = totals.SubTotal
	o.TaxAmount = totals.TaxAmount
	o.ServiceAmount = totals.ServiceAmount
	o.DiscountAmount = totals.DiscountAmount
	o.TotalPrice = totals.TotalPrice
	out := *o
	return &out, nil
}

func (m *memStore) AdvanceStatus(_ context.Context, orderID int64, from, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (m *memStore) ClaimStockDeduction(_ context.Context, orderID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.StockDeducted {
		return false, nil
	}
	o.StockDeducted = true
	return true, nil
}

func (m *memStore) History(_ context.Context, filter HistoryFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHistoryFilter = filter
	out := make([]Order, 0)
	for _, o := range m.orders {
		if o.RestaurantID != filter.RestaurantID {
			continue
		}
		if o.Status != StatusCompleted && o.Status != StatusCanceled {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *memStore) ListActive(_ context.Context, restaurantID int64) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, 0)
	for _, o := range m.orders {
		if o.RestaurantID == restaurantID && o.Status.Open() {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memStore) IncrementCouponUsage(_ context.Context, _ int64, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coupons[strings.ToUpper(code)]++
	return nil
}

func (m *memStore) ResolveProduct(_ context.Context, restaurantID int64, productID *int64, name string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if productID != nil {
		if p, ok := m.products[*productID]; ok {
			out := *p
			return &out, nil
		}
	}
	for _, p := range m.products {
		if p.Name == name {
			out := *p
			return &out, nil
		}
	}
	return nil, nil
}

type fakeLedger struct {
	mu     sync.Mutex
	deltas map[int64]float64
	calls  int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{deltas: make(map[int64]float64)}
}

func (f *fakeLedger) ApplyDelta(_ context.Context, itemID int64, amount float64, _ stock.ChangeType, _ *int64) (*stock.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas[itemID] += amount
	f.calls++
	return &stock.Item{ID: itemID, Quantity: f.deltas[itemID]}, nil
}

func newTestEngine() (*Engine, *memStore, *fakeLedger) {
	store := newOrderMemStore()
	ledger := newFakeLedger()
	return NewEngine(store, ledger, zap.NewNop(), nil), store, ledger
}

func owner(restaurantID int64) auth.Actor {
	id := restaurantID
	return auth.Actor{UserID: 10, Role: auth.RoleOwner, RestaurantID: &id}
}

func batch(items []LineItem) PlaceInput {
	var sub float64
	for _, it := range items {
		sub += it.Price * float64(it.Qty)
	}
	return PlaceInput{
		RestaurantID: 1,
		TableNumber:  "5",
		Items:        items,
		SubTotal:     sub,
		TotalPrice:   sub,
	}
}

func TestPlaceThenMergeKeepsOneOrderNumber(t *testing.T) {
	engine, store, _ := newTestEngine()
	ctx := context.Background()

	first, merged, err := engine.PlaceOrMerge(ctx, batch([]LineItem{{Name: "Pizza", Price: 80, Qty: 1}}))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if merged {
		t.Fatal("first batch must open a new order")
	}
	if first.OrderNum != 1 || first.Status != StatusPending {
		t.Fatalf("unexpected first order: %+v", first)
	}

	second, merged, err := engine.PlaceOrMerge(ctx, batch([]LineItem{{Name: "Cola", Price: 20, Qty: 2}}))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !merged {
		t.Fatal("second batch against the same open table must merge")
	}
	if second.ID != first.ID || second.OrderNum != first.OrderNum {
		t.Fatalf("merge must target the same order: %+v vs %+v", first, second)
	}
	if len(second.Items) != 2 {
		t.Fatalf("combined item list = %d items, want 2", len(second.Items))
	}
	if second.TotalPrice != 80+40 {
		t.Fatalf("totalPrice = %v, want 120 (sum of both batches)", second.TotalPrice)
	}
	if got := store.counters[1]; got != 1 {
		t.Fatalf("order number sequence advanced to %d; the merge must not consume a number", got)
	}
}

func TestMergeIntoClosedOrderFails(t *testing.T) {
	engine, store, _ := newTestEngine()
	ctx := context.Background()

	first, _, err := engine.PlaceOrMerge(ctx, batch([]LineItem{{Name: "Pizza", Price: 80, Qty: 1}}))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	store.orders[first.ID].Status = StatusCompleted

	in := batch([]LineItem{{Name: "Cola", Price: 20, Qty: 1}})
	in.TableNumber = ""
	in.MergeOrderID = &first.ID
	if _, _, err := engine.PlaceOrMerge(ctx, in); !apperr.IsStateConflict(err) {
		t.Fatalf("expected state conflict for merge into completed order, got %v", err)
	}

	in.MergeOrderID = nil
	in.MergeOrderNum = &first.OrderNum
	if _, _, err := engine.PlaceOrMerge(ctx, in); !apperr.IsStateConflict(err) {
		t.Fatalf("expected state conflict for merge by stale order number, got %v", err)
	}
}

func TestCompletionDeductsStockExactlyOnce(t *testing.T) {
	engine, store, ledger := newTestEngine()
	ctx := context.Background()

	p1, p2 := int64(100), int64(200)
	store.products[p1] = &Product{ID: p1, Name: "Pizza", Ingredients: []Ingredient{{StockItemID: 1, QuantityPerUnit: 2}}}
	store.products[p2] = &Product{ID: p2, Name: "Salad", Ingredients: []Ingredient{{StockItemID: 2, QuantityPerUnit: 3}}}

	in := batch([]LineItem{
		{ProductID: &p1, Name: "Pizza", Price: 80, Qty: 2},
		{ProductID: &p2, Name: "Salad", Price: 40, Qty: 1},
	})
	order, _, err := engine.PlaceOrMerge(ctx, in)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	actor := owner(1)
	if _, err := engine.AdvanceStatus(ctx, order.ID, StatusPreparing, actor); err != nil {
		t.Fatalf("advance to preparing: %v", err)
	}
	if ledger.calls != 0 {
		t.Fatal("no deduction before completion")
	}
	if _, err := engine.AdvanceStatus(ctx, order.ID, StatusCompleted, actor); err != nil {
		t.Fatalf("advance to completed: %v", err)
	}

	if got := ledger.deltas[1]; got != -4 {
		t.Fatalf("stock item 1 delta = %v, want -4 (2 per unit * qty 2)", got)
	}
	if got := ledger.deltas[2]; got != -3 {
		t.Fatalf("stock item 2 delta = %v, want -3 (3 per unit * qty 1)", got)
	}
	if ledger.calls != 2 {
		t.Fatalf("ledger calls = %d, want exactly 2", ledger.calls)
	}

	// no-op re-completion must not deduct again
	if _, err := engine.AdvanceStatus(ctx, order.ID, StatusCompleted, actor); err != nil {
		t.Fatalf("re-advance to completed: %v", err)
	}
	if ledger.calls != 2 {
		t.Fatalf("re-completion deducted again: %d calls", ledger.calls)
	}
}

func TestUnresolvableProductDegradesGracefully(t *testing.T) {
	engine, _, ledger := newTestEngine()
	ctx := context.Background()

	order, _, err := engine.PlaceOrMerge(ctx, batch([]LineItem{{Name: "Mystery Dish", Price: 50, Qty: 1}}))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := engine.AdvanceStatus(ctx, order.ID, StatusCompleted, owner(1)); err != nil {
		t.Fatalf("completion must not block on an unresolvable product: %v", err)
	}
	if ledger.calls != 0 {
		t.Fatal("no deductions expected for an unresolvable product")
	}
}

func TestCancelGuard(t *testing.T) {
	engine, _, _ := newTestEngine()
	ctx := context.Background()
	actor := owner(1)

	pending, _, err := engine.PlaceOrMerge(ctx, batch([]LineItem{{Name: "Pizza", Price: 80, Qty: 1}}))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	preparingIn := batch([]LineItem{{Name: "Cola", Price: 20, Qty: 1}})
	preparingIn.TableNumber = "9"
	preparing, _, err := engine.PlaceOrMerge(ctx, preparingIn)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := engine.AdvanceStatus(ctx, preparing.ID, StatusPreparing, actor); err != nil {
		t.Fatalf("advance: %v", err)
	}

	if err := engine.Cancel(ctx, preparing.ID, actor); !apperr.IsStateConflict(err) {
		t.Fatalf("canceling a preparing order must fail with a state conflict, got %v", err)
	}

	if err := engine.Cancel(ctx, pending.ID, actor); err != nil {
		t.Fatalf("canceling a pending order: %v", err)
	}
	got, err := engine.store.Get(ctx, pending.ID)
	if err != nil || got.Status != StatusCanceled {
		t.Fatalf("order status = %v (%v), want canceled", got.Status, err)
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusPreparing, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusCanceled, true},
		{StatusPreparing, StatusCompleted, true},
		{StatusPreparing, StatusCanceled, false},
		{StatusPreparing, StatusPending, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusCanceled, false},
		{StatusCanceled, StatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestAdvanceStatusPermissions(t *testing.T) {
	engine, _, _ := newTestEngine()
	ctx := context.Background()

	order, _, err := engine.PlaceOrMerge(ctx, batch([]LineItem{{Name: "Pizza", Price: 80, Qty: 1}}))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	foreign := int64(2)
	outsider := auth.Actor{UserID: 99, Role: auth.RoleOwner, RestaurantID: &foreign}
	if _, err := engine.AdvanceStatus(ctx, order.ID, StatusPreparing, outsider); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("foreign owner must get not-found, got %v", err)
	}

	assigned := int64(1)
	kitchen := auth.Actor{UserID: 3, Role: auth.RoleKitchen, RestaurantID: &assigned}
	if _, err := engine.AdvanceStatus(ctx, order.ID, StatusPreparing, kitchen); err != nil {
		t.Fatalf("assigned kitchen staff must advance: %v", err)
	}

	if _, err := engine.EditItems(ctx, order.ID, []LineItem{{Name: "x", Price: 1, Qty: 1}}, Totals{SubTotal: 1, TotalPrice: 1}, kitchen); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("kitchen staff must not edit items, got %v", err)
	}
}

func TestHistoryClampsRangeForStaff(t *testing.T) {
	engine, store, _ := newTestEngine()
	ctx := context.Background()

	assigned := int64(1)
	cashier := auth.Actor{UserID: 4, Role: auth.RoleCashier, RestaurantID: &assigned}

	if _, err := engine.History(ctx, HistoryFilter{RestaurantID: 1}, cashier, time.UTC); err != nil {
		t.Fatalf("history: %v", err)
	}
	f := store.lastHistoryFilter
	if f.StartDate == nil || f.EndDate == nil {
		t.Fatal("staff history must be clamped to the current day")
	}
	if f.EndDate.Sub(*f.StartDate) != 24*time.Hour {
		t.Fatalf("clamped window = %v, want 24h", f.EndDate.Sub(*f.StartDate))
	}

	if _, err := engine.History(ctx, HistoryFilter{RestaurantID: 1}, owner(1), time.UTC); err != nil {
		t.Fatalf("history: %v", err)
	}
	f = store.lastHistoryFilter
	if f.StartDate != nil || f.EndDate != nil {
		t.Fatal("owner history must keep the caller's range")
	}
}

func TestHistoryTotalSalesCountsCompletedOnly(t *testing.T) {
	engine, store, _ := newTestEngine()
	ctx := context.Background()

	completed, _, _ := engine.PlaceOrMerge(ctx, batch([]LineItem{{Name: "Pizza", Price: 100, Qty: 1}}))
	store.orders[completed.ID].Status = StatusCompleted

	canceledIn := batch([]LineItem{{Name: "Cola", Price: 30, Qty: 1}})
	canceledIn.TableNumber = "7"
	canceled, _, _ := engine.PlaceOrMerge(ctx, canceledIn)
	store.orders[canceled.ID].Status = StatusCanceled

	result, err := engine.History(ctx, HistoryFilter{RestaurantID: 1}, owner(1), time.UTC)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(result.Orders) != 2 {
		t.Fatalf("history size = %d, want 2", len(result.Orders))
	}
	if result.TotalSales != 100 {
		t.Fatalf("totalSales = %v, want 100 (canceled orders excluded)", result.TotalSales)
	}
}

func TestCouponCountedOnlyAfterCreate(t *testing.T) {
	engine, store, _ := newTestEngine()
	ctx := context.Background()

	in := batch([]LineItem{{Name: "Pizza", Price: 80, Qty: 1}})
	in.CouponCode = "save10"

	store.createErr = errors.New("insert failed")
	if _, _, err := engine.PlaceOrMerge(ctx, in); err == nil {
		t.Fatal("place with failing create must error")
	}
	if got := store.coupons["SAVE10"]; got != 0 {
		t.Fatalf("coupon usage after failed create = %d, want 0", got)
	}

	store.createErr = nil
	if _, _, err := engine.PlaceOrMerge(ctx, in); err != nil {
		t.Fatalf("place: %v", err)
	}
	if got := store.coupons["SAVE10"]; got != 1 {
		t.Errorf("coupon usage after create = %d, want 1", got)
	}
}
