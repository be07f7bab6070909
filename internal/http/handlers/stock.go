package handlers

import (
	"net/http"
	"strings"
	"time"

	"imenu-order-services/internal/apperr"
	"imenu-order-services/internal/auth"
	"imenu-order-services/internal/middleware"
	"imenu-order-services/internal/stock"
	"imenu-order-services/pkg/response"
)

type createStockItemRequest struct {
	Name        string  `json:"name" validate:"required"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit" validate:"required"`
	CostPerUnit float64 `json:"costPerUnit" validate:"gte=0"`
	AlertLevel  float64 `json:"alertLevel" validate:"gte=0"`
}

func (h *Handler) StockItemCreate(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	var req createStockItemRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	item, err := h.Stock.Store().CreateItem(r.Context(), &stock.Item{
		RestaurantID: restaurantID,
		Name:         strings.TrimSpace(req.Name),
		Quantity:     req.Quantity,
		Unit:         strings.TrimSpace(req.Unit),
		CostPerUnit:  req.CostPerUnit,
		AlertLevel:   req.AlertLevel,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Created(w, map[string]any{"item": item})
}

func (h *Handler) StockItemsList(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	items, err := h.Stock.Store().ListItems(r.Context(), restaurantID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, map[string]any{"items": items})
}

func (h *Handler) StockItemDelete(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	itemID, err := readPathInt64(r, "itemId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid stock item id")
		return
	}
	if _, err := h.stockItemForActor(r, ac, itemID); err != nil {
		h.writeEngineError(w, err)
		return
	}

	if err := h.Stock.Store().DeleteItem(r.Context(), itemID); err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, map[string]any{"deleted": true})
}

type adjustStockRequest struct {
	Amount  float64 `json:"amount" validate:"required"`
	Type    string  `json:"type" validate:"required"`
	OrderID *int64  `json:"orderId"`
}

// StockAdjust applies a signed delta through the ledger, writing the
// audit log row alongside.
func (h *Handler) StockAdjust(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	itemID, err := readPathInt64(r, "itemId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid stock item id")
		return
	}
	if _, err := h.stockItemForActor(r, ac, itemID); err != nil {
		h.writeEngineError(w, err)
		return
	}

	var req adjustStockRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	item, err := h.Stock.ApplyDelta(r.Context(), itemID, req.Amount, stock.ChangeType(strings.ToLower(req.Type)), req.OrderID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, map[string]any{"item": item})
}

func (h *Handler) StockLogsList(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	filter := stock.LogFilter{RestaurantID: restaurantID}
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

	logs, err := h.Stock.Store().ListLogs(r.Context(), filter)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, map[string]any{"logs": logs})
}

// stockItemForActor loads the item and verifies the actor can write the
// owning tenant's stock.
func (h *Handler) stockItemForActor(r *http.Request, ac *middleware.AuthContext, itemID int64) (*stock.Item, error) {
	item, err := h.Stock.Store().GetItem(r.Context(), itemID)
	if err != nil {
		return nil, err
	}
	access := auth.ResolveAccess(ac.Actor(), item.RestaurantID)
	if !access.CanRead {
		return nil, apperr.ErrNotFound
	}
	if !access.CanWrite {
		return nil, apperr.ErrForbidden
	}
	return item, nil
}
