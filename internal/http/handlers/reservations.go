package handlers

import (
	"context"
	"net/http"

	"imenu-order-services/internal/apperr"
	"imenu-order-services/internal/auth"
	"imenu-order-services/internal/middleware"
	"imenu-order-services/internal/reservations"
	"imenu-order-services/pkg/response"
)

type reservationRequest struct {
	RestaurantID int64  `json:"restaurantId" validate:"required,gt=0"`
	Name         string `json:"name" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	Seats        int    `json:"seats" validate:"required,gt=0"`
}

// ReservationRequest is the public booking endpoint; the seat hold is
// taken before any owner sees the request.
func (h *Handler) ReservationRequest(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	created, err := h.Reservations.Request(r.Context(), reservations.RequestInput{
		RestaurantID: req.RestaurantID,
		Name:         req.Name,
		Phone:        req.Phone,
		Seats:        req.Seats,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Created(w, map[string]any{"reservation": created})
}

func (h *Handler) ReservationAvailability(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := readPathInt64(r, "restaurantId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid restaurant id")
		return
	}

	settings, err := h.Reservations.Availability(r.Context(), restaurantID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	remaining := settings.TotalSeats - settings.BookedSeats
	if remaining < 0 {
		remaining = 0
	}
	response.Success(w, map[string]any{
		"isEnabled":      settings.Enabled,
		"totalSeats":     settings.TotalSeats,
		"bookedSeats":    settings.BookedSeats,
		"remainingSeats": remaining,
	})
}

func (h *Handler) ReservationsList(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	list, err := h.Reservations.List(r.Context(), restaurantID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, map[string]any{"reservations": list})
}

func (h *Handler) ReservationApprove(w http.ResponseWriter, r *http.Request) {
	h.actOnReservation(w, r, h.Reservations.Approve)
}

func (h *Handler) ReservationReject(w http.ResponseWriter, r *http.Request) {
	h.actOnReservation(w, r, h.Reservations.Reject)
}

func (h *Handler) ReservationComplete(w http.ResponseWriter, r *http.Request) {
	h.actOnReservation(w, r, h.Reservations.Complete)
}

func (h *Handler) actOnReservation(w http.ResponseWriter, r *http.Request, act func(ctx context.Context, id int64) (reservations.Reservation, error)) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	reservationID, err := readPathInt64(r, "reservationId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid reservation id")
		return
	}

	if err := h.authorizeReservation(r, ac, reservationID); err != nil {
		h.writeEngineError(w, err)
		return
	}

	updated, err := act(r.Context(), reservationID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, map[string]any{"reservation": updated})
}

// authorizeReservation checks the actor can act on the owning tenant.
// Invisible tenants read as not-found, same policy as orders.
func (h *Handler) authorizeReservation(r *http.Request, ac *middleware.AuthContext, reservationID int64) error {
	reservation, err := h.Reservations.Get(r.Context(), reservationID)
	if err != nil {
		return err
	}
	access := auth.ResolveAccess(ac.Actor(), reservation.RestaurantID)
	if !access.CanRead {
		return apperr.ErrNotFound
	}
	if !access.CanWrite && !access.CanAdvance {
		return apperr.ErrForbidden
	}
	return nil
}
