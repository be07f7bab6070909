package reservations

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// holding reports whether a reservation in this status occupies seats.
func (s Status) holding() bool {
	return s == StatusPending || s == StatusApproved
}

type Reservation struct {
	ID             int64     `json:"id"`
	RestaurantID   int64     `json:"restaurantId"`
	RequesterName  string    `json:"requesterName"`
	RequesterPhone string    `json:"requesterPhone"`
	Seats          int       `json:"seats"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Settings is the tenant's seat counter. BookedSeats runs ahead of the
// reservation rows on purpose: it is a pessimistic hold taken at request
// time and wiped by the daily reset regardless of row state.
type Settings struct {
	Enabled     bool `json:"isEnabled"`
	TotalSeats  int  `json:"totalSeats"`
	BookedSeats int  `json:"bookedSeats"`
}

// Store persists reservations and the per-tenant seat counter.
// HoldSeats must be atomic: it succeeds only when the tenant is enabled
// and seats fit under the ceiling, reporting the remaining capacity on
// failure. ReleaseSeats clamps the counter at zero.
//
// Status flips are guarded on the stored status, so two concurrent
// decisions on the same reservation cannot both move the counter.
type Store interface {
	GetSettings(ctx context.Context, restaurantID int64) (Settings, error)
	HoldSeats(ctx context.Context, restaurantID int64, seats int) (ok bool, remaining int, err error)
	ReleaseSeats(ctx context.Context, restaurantID int64, seats int) error
	ResetAllCounters(ctx context.Context) (int64, error)

	Create(ctx context.Context, r Reservation) (Reservation, error)
	Get(ctx context.Context, id int64) (Reservation, error)
	List(ctx context.Context, restaurantID int64) ([]Reservation, error)

	// Transition flips the status only when the current one is in from.
	// The returned row reflects the store after the attempt either way.
	Transition(ctx context.Context, id int64, to Status, from ...Status) (Reservation, bool, error)
	// RejectHolding flips a pending or approved reservation to rejected
	// and releases its seats in the same transaction. When the row was
	// not holding it reports false and the row as found.
	RejectHolding(ctx context.Context, id int64) (Reservation, bool, error)
	// ApproveRejected re-takes the seat hold of a rejected reservation
	// under the capacity ceiling and flips it to approved, atomically.
	// A hold that does not fit returns a CapacityError and leaves the
	// row rejected.
	ApproveRejected(ctx context.Context, id int64) (Reservation, bool, error)
}
