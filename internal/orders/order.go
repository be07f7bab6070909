package orders

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Open reports whether the order can still accept merged items.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusPreparing
}

// transitions is the single source of truth for the order lifecycle.
// Forward only; cancellation is legal from pending alone. An order in
// preparing has already begun kitchen work.
var transitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusPreparing: {},
		StatusCompleted: {},
		StatusCanceled:  {},
	},
	StatusPreparing: {
		StatusCompleted: {},
	},
	StatusCompleted: {},
	StatusCanceled:  {},
}

func CanTransition(from, to Status) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// TableTakeaway marks an order with no table; takeaway orders are matched
// by customer phone instead of table number.
const TableTakeaway = "takeaway"

type LineItem struct {
	ProductID *int64  `json:"productId,omitempty"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Qty       int     `json:"qty"`
}

type Order struct {
	ID             int64      `json:"id"`
	RestaurantID   int64      `json:"restaurantId"`
	OrderNum       int64      `json:"orderNum"`
	TableNumber    string     `json:"tableNumber"`
	CustomerName   string     `json:"customerName,omitempty"`
	CustomerPhone  string     `json:"customerPhone,omitempty"`
	Items          []LineItem `json:"items"`
	SubTotal       float64    `json:"subTotal"`
	TaxAmount      float64    `json:"taxAmount"`
	ServiceAmount  float64    `json:"serviceAmount"`
	DiscountAmount float64    `json:"discountAmount"`
	CouponCode     string     `json:"couponCode,omitempty"`
	TotalPrice     float64    `json:"totalPrice"`
	Status         Status     `json:"status"`
	Note           string     `json:"note,omitempty"`
	CreatedBy      *int64     `json:"createdBy,omitempty"`
	StockDeducted  bool       `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Product is the catalog projection the engine needs to turn a completed
// line item into stock deductions: the ingredient recipe.
type Product struct {
	ID          int64
	Name        string
	Ingredients []Ingredient
}

type Ingredient struct {
	StockItemID     int64
	QuantityPerUnit float64
}

type Totals struct {
	SubTotal       float64 `json:"subTotal"`
	TaxAmount      float64 `json:"taxAmount"`
	ServiceAmount  float64 `json:"serviceAmount"`
	DiscountAmount float64 `json:"discountAmount"`
	TotalPrice     float64 `json:"totalPrice"`
}
