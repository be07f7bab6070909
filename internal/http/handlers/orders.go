package handlers

import (
	"net/http"
	"strings"
	"time"

	"imenu-order-services/internal/orders"
	"imenu-order-services/internal/utils"
	"imenu-order-services/pkg/response"
)

type orderItemRequest struct {
	ProductID *int64  `json:"productId"`
	Name      string  `json:"name" validate:"required"`
	Price     float64 `json:"price" validate:"gte=0"`
	Qty       int     `json:"qty" validate:"required,gt=0"`
}

type placeOrderRequest struct {
	RestaurantID   int64              `json:"restaurantId" validate:"required,gt=0"`
	TableNumber    string             `json:"tableNumber"`
	CustomerName   string             `json:"customerName"`
	CustomerPhone  string             `json:"customerPhone"`
	MergeOrderNum  *int64             `json:"mergeOrderNum"`
	MergeOrderID   *int64             `json:"mergeOrderId"`
	Items          []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	SubTotal       float64            `json:"subTotal" validate:"gte=0"`
	TaxAmount      float64            `json:"taxAmount" validate:"gte=0"`
	ServiceAmount  float64            `json:"serviceAmount" validate:"gte=0"`
	DiscountAmount float64            `json:"discountAmount" validate:"gte=0"`
	CouponCode     string             `json:"couponCode"`
	TotalPrice     float64            `json:"totalPrice" validate:"gte=0"`
	Note           string             `json:"note"`
}

func (req *placeOrderRequest) toInput(createdBy *int64) orders.PlaceInput {
	items := make([]orders.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orders.LineItem{
			ProductID: item.ProductID,
			Name:      strings.TrimSpace(item.Name),
			Price:     item.Price,
			Qty:       item.Qty,
		})
	}
	return orders.PlaceInput{
		RestaurantID:   req.RestaurantID,
		TableNumber:    strings.TrimSpace(req.TableNumber),
		CustomerName:   strings.TrimSpace(req.CustomerName),
		CustomerPhone:  strings.TrimSpace(req.CustomerPhone),
		MergeOrderNum:  req.MergeOrderNum,
		MergeOrderID:   req.MergeOrderID,
		Items:          items,
		SubTotal:       req.SubTotal,
		TaxAmount:      req.TaxAmount,
		ServiceAmount:  req.ServiceAmount,
		DiscountAmount: req.DiscountAmount,
		CouponCode:     strings.TrimSpace(req.CouponCode),
		TotalPrice:     req.TotalPrice,
		Note:           req.Note,
		CreatedBy:      createdBy,
	}
}

// OrderPlace opens a new order or merges the batch into the matching open
// tab. Public (customer self-order) requests carry no auth context.
func (h *Handler) OrderPlace(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	var createdBy *int64
	if ac, ok := mustOptionalAuth(r); ok {
		createdBy = &ac.UserID
	}

	order, merged, err := h.Orders.PlaceOrMerge(r.Context(), req.toInput(createdBy))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	if merged {
		response.Success(w, map[string]any{"order": order, "merged": true})
		return
	}
	response.Created(w, map[string]any{"order": order, "merged": false})
}

func (h *Handler) OrderCancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid order id")
		return
	}
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}

	if err := h.Orders.Cancel(r.Context(), orderID, ac.Actor()); err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, map[string]any{"canceled": true})
}

type editItemsRequest struct {
	Items          []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	SubTotal       float64            `json:"subTotal" validate:"gte=0"`
	TaxAmount      float64            `json:"taxAmount" validate:"gte=0"`
	ServiceAmount  float64            `json:"serviceAmount" validate:"gte=0"`
	DiscountAmount float64            `json:"discountAmount" validate:"gte=0"`
	TotalPrice     float64            `json:"totalPrice" validate:"gte=0"`
}

func (h *Handler) OrderEditItems(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid order id")
		return
	}
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req editItemsRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	items := make([]orders.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orders.LineItem{
			ProductID: item.ProductID,
			Name:      strings.TrimSpace(item.Name),
			Price:     item.Price,
			Qty:       item.Qty,
		})
	}
	totals := orders.Totals{
		SubTotal:       req.SubTotal,
		TaxAmount:      req.TaxAmount,
		ServiceAmount:  req.ServiceAmount,
		DiscountAmount: req.DiscountAmount,
		TotalPrice:     req.TotalPrice,
	}

	order, err := h.Orders.EditItems(r.Context(), orderID, items, totals, ac.Actor())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, map[string]any{"order": order})
}

type advanceStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) OrderAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid order id")
		return
	}
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req advanceStatusRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	order, err := h.Orders.AdvanceStatus(r.Context(), orderID, orders.Status(strings.ToLower(req.Status)), ac.Actor())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, map[string]any{"order": order})
}

func (h *Handler) OrdersActive(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	list, err := h.Orders.Active(r.Context(), restaurantID, ac.Actor())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, map[string]any{"orders": list})
}

func (h *Handler) OrdersHistory(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	filter := orders.HistoryFilter{
		RestaurantID: restaurantID,
		Search:       strings.TrimSpace(r.URL.Query().Get("search")),
	}
	if from := strings.TrimSpace(r.URL.Query().Get("startDate")); from != "" {
		if parsed, perr := time.Parse("2006-01-02", from); perr == nil {
			filter.StartDate = &parsed
		}
	}
	if to := strings.TrimSpace(r.URL.Query().Get("endDate")); to != "" {
		if parsed, perr := time.Parse("2006-01-02", to); perr == nil {
			end := parsed.AddDate(0, 0, 1)
			filter.EndDate = &end
		}
	}

	loc := utils.LocationOrUTC(h.restaurantTimezone(r, restaurantID))
	result, err := h.Orders.History(r.Context(), filter, ac.Actor(), loc)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, result)
}
