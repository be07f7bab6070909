package handlers

import (
	"net/http"

	"imenu-order-services/pkg/response"

	"go.uber.org/zap"
)

// CronResetReservations zeroes every enabled tenant's booked-seat counter.
// Scheduled once per day; completed and rejected reservations keep their
// rows, only the counter resets.
func (h *Handler) CronResetReservations(w http.ResponseWriter, r *http.Request) {
	n, err := h.Reservations.ResetAll(r.Context())
	if err != nil {
		h.Logger.Error("reservation reset sweep failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	response.Success(w, map[string]any{"restaurantsReset": n})
}

// CronSubscriptionSweep flags restaurants whose subscription lapsed. Login
// and the auth middleware already reject expired tenants on their own; the
// sweep keeps the stored flag in sync for reporting.
func (h *Handler) CronSubscriptionSweep(w http.ResponseWriter, r *http.Request) {
	tag, err := h.DB.Exec(r.Context(),
		`update restaurants
		 set subscription_active = false
		 where subscription_active
		   and subscription_expires_at is not null
		   and subscription_expires_at < now()`,
	)
	if err != nil {
		h.Logger.Error("subscription sweep failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	if tag.RowsAffected() > 0 {
		h.Logger.Info("subscriptions expired", zap.Int64("count", tag.RowsAffected()))
	}
	response.Success(w, map[string]any{"expired": tag.RowsAffected()})
}
