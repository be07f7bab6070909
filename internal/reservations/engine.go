package reservations

import (
	"context"
	"strings"

	"imenu-order-services/internal/apperr"
	"imenu-order-services/internal/events"

	"go.uber.org/zap"
)

// Engine runs the seat counter's request/approve/reject flow.
type Engine struct {
	store  Store
	logger *zap.Logger
	events events.Publisher
}

func NewEngine(store Store, logger *zap.Logger, publisher events.Publisher) *Engine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Engine{store: store, logger: logger, events: publisher}
}

type RequestInput struct {
	RestaurantID int64  `json:"restaurantId" validate:"required,gt=0"`
	Name         string `json:"name" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	Seats        int    `json:"seats" validate:"required,gt=0"`
}

// Request takes the seat hold immediately and creates a pending row.
// The hold is pessimistic: seats are counted before any owner decision.
func (e *Engine) Request(ctx context.Context, in RequestInput) (Reservation, error) {
	if in.Seats <= 0 {
		return Reservation{}, apperr.Invalid("seats", "seat count must be positive")
	}
	if strings.TrimSpace(in.Name) == "" {
		return Reservation{}, apperr.Invalid("name", "requester name is required")
	}

	settings, err := e.store.GetSettings(ctx, in.RestaurantID)
	if err != nil {
		return Reservation{}, err
	}
	if !settings.Enabled {
		return Reservation{}, apperr.Invalid("restaurantId", "reservations are disabled for this restaurant")
	}

	ok, remaining, err := e.store.HoldSeats(ctx, in.RestaurantID, in.Seats)
	if err != nil {
		return Reservation{}, err
	}
	if !ok {
		return Reservation{}, &apperr.CapacityError{Requested: in.Seats, Remaining: remaining}
	}

	created, err := e.store.Create(ctx, Reservation{
		RestaurantID:   in.RestaurantID,
		RequesterName:  strings.TrimSpace(in.Name),
		RequesterPhone: strings.TrimSpace(in.Phone),
		Seats:          in.Seats,
		Status:         StatusPending,
	})
	if err != nil {
		// give the seats back, the row never existed
		if relErr := e.store.ReleaseSeats(ctx, in.RestaurantID, in.Seats); relErr != nil {
			e.logger.Error("failed to release seats after create failure",
				zap.Int64("restaurantId", in.RestaurantID),
				zap.Int("seats", in.Seats),
				zap.Error(relErr))
		}
		return Reservation{}, err
	}

	e.events.Publish(ctx, in.RestaurantID, events.NewReservation, created)
	return created, nil
}

// Approve flips a reservation to approved. A still-pending reservation is
// already holding its seats, so only the status changes; approving a
// rejected reservation must win the seats back first. Both flips are
// guarded on the stored status, so a decision that lost the race cannot
// hold the seats a second time.
func (e *Engine) Approve(ctx context.Context, id int64) (Reservation, error) {
	r, changed, err := e.store.Transition(ctx, id, StatusApproved, StatusPending)
	if err != nil {
		return Reservation{}, err
	}
	if !changed {
		switch r.Status {
		case StatusApproved:
			return r, nil
		case StatusRejected:
			r, changed, err = e.store.ApproveRejected(ctx, id)
			if err != nil {
				return Reservation{}, err
			}
			if !changed {
				if r.Status == StatusApproved {
					return r, nil
				}
				return Reservation{}, &apperr.StateConflictError{Entity: "reservation", Current: string(r.Status), Attempt: "approve"}
			}
		default:
			return Reservation{}, &apperr.StateConflictError{Entity: "reservation", Current: string(r.Status), Attempt: "approve"}
		}
	}

	e.events.Publish(ctx, r.RestaurantID, events.ReservationUpdated, r)
	return r, nil
}

// Reject releases the seat hold of a pending or approved reservation.
// The flip and the release are one guarded store operation, so only the
// decision that wins the status change gives the seats back.
func (e *Engine) Reject(ctx context.Context, id int64) (Reservation, error) {
	r, changed, err := e.store.RejectHolding(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if !changed {
		if r.Status == StatusRejected {
			return r, nil
		}
		return Reservation{}, &apperr.StateConflictError{Entity: "reservation", Current: string(r.Status), Attempt: "reject"}
	}
	e.events.Publish(ctx, r.RestaurantID, events.ReservationUpdated, r)
	return r, nil
}

// Complete marks a held reservation as fulfilled without touching the
// counter; the daily reset is what returns the seats.
func (e *Engine) Complete(ctx context.Context, id int64) (Reservation, error) {
	r, changed, err := e.store.Transition(ctx, id, StatusCompleted, StatusPending, StatusApproved)
	if err != nil {
		return Reservation{}, err
	}
	if !changed {
		return Reservation{}, &apperr.StateConflictError{Entity: "reservation", Current: string(r.Status), Attempt: "complete"}
	}
	e.events.Publish(ctx, r.RestaurantID, events.ReservationUpdated, r)
	return r, nil
}

func (e *Engine) Get(ctx context.Context, id int64) (Reservation, error) {
	return e.store.Get(ctx, id)
}

func (e *Engine) List(ctx context.Context, restaurantID int64) ([]Reservation, error) {
	return e.store.List(ctx, restaurantID)
}

func (e *Engine) Availability(ctx context.Context, restaurantID int64) (Settings, error) {
	return e.store.GetSettings(ctx, restaurantID)
}

// ResetAll zeroes every enabled tenant's booked-seat counter. Safe to run
// twice; the second run is a no-op.
func (e *Engine) ResetAll(ctx context.Context) (int64, error) {
	n, err := e.store.ResetAllCounters(ctx)
	if err != nil {
		return 0, err
	}
	e.logger.Info("reservation counters reset", zap.Int64("restaurants", n))
	return n, nil
}
