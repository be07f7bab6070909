package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event names broadcast on a tenant's channel.
const (
	NewOrder           = "new-order"
	OrderUpdated       = "order-updated"
	ItemsAdded         = "items-added"
	StatusChanged      = "status-changed"
	OrderCanceled      = "order-canceled"
	LowStock           = "low-stock"
	NewReservation     = "new-reservation"
	ReservationUpdated = "reservation-updated"
	PayrollGenerated   = "payroll-generated"
)

type Envelope struct {
	ID           string    `json:"id"`
	RestaurantID int64     `json:"restaurantId"`
	Event        string    `json:"event"`
	Payload      any       `json:"payload"`
	EmittedAt    time.Time `json:"emittedAt"`
}

// Publisher delivers an event to everyone watching a tenant's channel.
// Implementations must be non-blocking from the caller's point of view and
// must never fail the surrounding operation.
type Publisher interface {
	Publish(ctx context.Context, restaurantID int64, event string, payload any)
}

func NewEnvelope(restaurantID int64, event string, payload any) Envelope {
	return Envelope{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		Event:        event,
		Payload:      payload,
		EmittedAt:    time.Now().UTC(),
	}
}

// Fanout publishes to every wrapped publisher.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, restaurantID int64, event string, payload any) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, restaurantID, event, payload)
		}
	}
}

// Nop is used where no broadcast transport is configured.
type Nop struct{}

func (Nop) Publish(context.Context, int64, string, any) {}
