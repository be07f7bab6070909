package reservations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"imenu-order-services/internal/apperr"

	"go.uber.org/zap"
)

type memStore struct {
	mu       sync.Mutex
	settings map[int64]Settings
	rows     map[int64]Reservation
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{settings: map[int64]Settings{}, rows: map[int64]Reservation{}}
}

func (m *memStore) GetSettings(_ context.Context, restaurantID int64) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[restaurantID]
	if !ok {
		return Settings{}, apperr.ErrNotFound
	}
	return s, nil
}

func (m *memStore) holdLocked(restaurantID int64, seats int) (bool, int) {
	s := m.settings[restaurantID]
	remaining := s.TotalSeats - s.BookedSeats
	if !s.Enabled || seats > remaining {
		if remaining < 0 {
			remaining = 0
		}
		return false, remaining
	}
	s.BookedSeats += seats
	m.settings[restaurantID] = s
	return true, s.TotalSeats - s.BookedSeats
}

func (m *memStore) releaseLocked(restaurantID int64, seats int) {
	s := m.settings[restaurantID]
	s.BookedSeats -= seats
	if s.BookedSeats < 0 {
		s.BookedSeats = 0
	}
	m.settings[restaurantID] = s
}

func (m *memStore) HoldSeats(_ context.Context, restaurantID int64, seats int) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok, remaining := m.holdLocked(restaurantID, seats)
	return ok, remaining, nil
}

func (m *memStore) ReleaseSeats(_ context.Context, restaurantID int64, seats int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked(restaurantID, seats)
	return nil
}

func (m *memStore) ResetAllCounters(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.settings {
		if s.Enabled && s.BookedSeats != 0 {
			s.BookedSeats = 0
			m.settings[id] = s
			n++
		}
	}
	return n, nil
}

func (m *memStore) Create(_ context.Context, r Reservation) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	r.CreatedAt = time.Now()
	m.rows[r.ID] = r
	return r, nil
}

func (m *memStore) Get(_ context.Context, id int64) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return Reservation{}, apperr.ErrNotFound
	}
	return r, nil
}

func (m *memStore) List(_ context.Context, restaurantID int64) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reservation
	for _, r := range m.rows {
		if r.RestaurantID == restaurantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) Transition(_ context.Context, id int64, to Status, from ...Status) (Reservation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return Reservation{}, false, apperr.ErrNotFound
	}
	for _, st := range from {
		if r.Status == st {
			r.Status = to
			m.rows[id] = r
			return r, true, nil
		}
	}
	return r, false, nil
}

func (m *memStore) RejectHolding(_ context.Context, id int64) (Reservation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return Reservation{}, false, apperr.ErrNotFound
	}
	if !r.Status.holding() {
		return r, false, nil
	}
	r.Status = StatusRejected
	m.rows[id] = r
	m.releaseLocked(r.RestaurantID, r.Seats)
	return r, true, nil
}

func (m *memStore) ApproveRejected(_ context.Context, id int64) (Reservation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return Reservation{}, false, apperr.ErrNotFound
	}
	if r.Status != StatusRejected {
		return r, false, nil
	}
	ok, remaining := m.holdLocked(r.RestaurantID, r.Seats)
	if !ok {
		return Reservation{}, false, &apperr.CapacityError{Requested: r.Seats, Remaining: remaining}
	}
	r.Status = StatusApproved
	m.rows[id] = r
	return r, true, nil
}

func newTestEngine(store *memStore) *Engine {
	return NewEngine(store, zap.NewNop(), nil)
}

func request(t *testing.T, eng *Engine, seats int) (Reservation, error) {
	t.Helper()
	return eng.Request(context.Background(), RequestInput{
		RestaurantID: 1, Name: "Guest", Phone: "0100", Seats: seats,
	})
}

func TestCapacityCeiling(t *testing.T) {
	store := newMemStore()
	store.settings[1] = Settings{Enabled: true, TotalSeats: 10, BookedSeats: 8}
	eng := newTestEngine(store)

	_, err := request(t, eng, 3)
	var capErr *apperr.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("3-seat request err = %v, want capacity error", err)
	}
	if capErr.Remaining != 2 {
		t.Errorf("Remaining = %d, want 2", capErr.Remaining)
	}

	if _, err := request(t, eng, 2); err != nil {
		t.Fatalf("2-seat request: %v", err)
	}
	if got := store.settings[1].BookedSeats; got != 10 {
		t.Errorf("BookedSeats = %d, want 10", got)
	}

	if _, err := request(t, eng, 1); !errors.As(err, &capErr) {
		t.Errorf("1-seat request at full capacity err = %v, want capacity error", err)
	}
}

func TestRejectionReleasesHold(t *testing.T) {
	store := newMemStore()
	store.settings[1] = Settings{Enabled: true, TotalSeats: 10, BookedSeats: 8}
	eng := newTestEngine(store)

	r, err := request(t, eng, 2)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := eng.Approve(context.Background(), r.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := store.settings[1].BookedSeats; got != 10 {
		t.Fatalf("BookedSeats after approve = %d, want 10", got)
	}

	if _, err := eng.Reject(context.Background(), r.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := store.settings[1].BookedSeats; got != 8 {
		t.Errorf("BookedSeats after reject = %d, want 8", got)
	}

	// a repeat reject is a no-op, not a second release
	if _, err := eng.Reject(context.Background(), r.ID); err != nil {
		t.Fatalf("repeat reject: %v", err)
	}
	if got := store.settings[1].BookedSeats; got != 8 {
		t.Errorf("BookedSeats after repeat reject = %d, want 8", got)
	}

	if _, err := request(t, eng, 1); err != nil {
		t.Errorf("1-seat request after release: %v", err)
	}
}

func TestConcurrentRejectsReleaseOnce(t *testing.T) {
	store := newMemStore()
	store.settings[1] = Settings{Enabled: true, TotalSeats: 10}
	eng := newTestEngine(store)

	first, err := request(t, eng, 4)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := request(t, eng, 4); err != nil {
		t.Fatalf("second request: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.Reject(context.Background(), first.ID); err != nil {
				t.Errorf("reject: %v", err)
			}
		}()
	}
	wg.Wait()

	// only the second reservation's hold remains
	if got := store.settings[1].BookedSeats; got != 4 {
		t.Errorf("BookedSeats after concurrent rejects = %d, want 4", got)
	}
}

func TestConcurrentReapprovalsHoldOnce(t *testing.T) {
	store := newMemStore()
	store.settings[1] = Settings{Enabled: true, TotalSeats: 10}
	eng := newTestEngine(store)

	r, err := request(t, eng, 3)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := eng.Reject(context.Background(), r.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.Approve(context.Background(), r.ID); err != nil {
				t.Errorf("approve: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := store.settings[1].BookedSeats; got != 3 {
		t.Errorf("BookedSeats after concurrent approvals = %d, want 3", got)
	}
	got, err := eng.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("Status = %q, want approved", got.Status)
	}
}

func TestApprovePendingKeepsCounter(t *testing.T) {
	store := newMemStore()
	store.settings[1] = Settings{Enabled: true, TotalSeats: 10}
	eng := newTestEngine(store)

	r, _ := request(t, eng, 4)
	if got := store.settings[1].BookedSeats; got != 4 {
		t.Fatalf("BookedSeats after request = %d, want 4", got)
	}
	if _, err := eng.Approve(context.Background(), r.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	// pending already held the seats, approval is just a status flip
	if got := store.settings[1].BookedSeats; got != 4 {
		t.Errorf("BookedSeats after approve = %d, want 4", got)
	}
}

func TestApproveRejectedReappliesHold(t *testing.T) {
	store := newMemStore()
	store.settings[1] = Settings{Enabled: true, TotalSeats: 10}
	eng := newTestEngine(store)

	r, _ := request(t, eng, 6)
	if _, err := eng.Reject(context.Background(), r.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := store.settings[1].BookedSeats; got != 0 {
		t.Fatalf("BookedSeats after reject = %d, want 0", got)
	}

	// fill most of the capacity so re-approval no longer fits
	if _, err := request(t, eng, 7); err != nil {
		t.Fatalf("request: %v", err)
	}
	_, err := eng.Approve(context.Background(), r.ID)
	var capErr *apperr.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("approve err = %v, want capacity error", err)
	}
	if capErr.Remaining != 3 {
		t.Errorf("Remaining = %d, want 3", capErr.Remaining)
	}

	// release the blocker, then re-approval holds again
	store.settings[1] = Settings{Enabled: true, TotalSeats: 10, BookedSeats: 0}
	got, err := eng.Approve(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("approve after release: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("Status = %q, want approved", got.Status)
	}
	if booked := store.settings[1].BookedSeats; booked != 6 {
		t.Errorf("BookedSeats = %d, want 6", booked)
	}
}

func TestRequestValidation(t *testing.T) {
	store := newMemStore()
	store.settings[1] = Settings{Enabled: false, TotalSeats: 10}
	eng := newTestEngine(store)

	if _, err := request(t, eng, 2); !apperr.IsValidation(err) {
		t.Errorf("disabled tenant err = %v, want validation error", err)
	}
	if _, err := request(t, eng, 0); !apperr.IsValidation(err) {
		t.Errorf("zero seats err = %v, want validation error", err)
	}
	if _, err := eng.Request(context.Background(), RequestInput{RestaurantID: 1, Seats: 2}); !apperr.IsValidation(err) {
		t.Errorf("missing name err = %v, want validation error", err)
	}
}

func TestResetAllIsIdempotent(t *testing.T) {
	store := newMemStore()
	store.settings[1] = Settings{Enabled: true, TotalSeats: 10, BookedSeats: 7}
	store.settings[2] = Settings{Enabled: true, TotalSeats: 5, BookedSeats: 2}
	store.settings[3] = Settings{Enabled: false, TotalSeats: 5, BookedSeats: 3}
	eng := newTestEngine(store)

	n, err := eng.ResetAll(context.Background())
	if err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	if n != 2 {
		t.Errorf("reset count = %d, want 2", n)
	}
	if store.settings[1].BookedSeats != 0 || store.settings[2].BookedSeats != 0 {
		t.Error("enabled tenants not reset")
	}
	// disabled tenants keep their counter
	if store.settings[3].BookedSeats != 3 {
		t.Errorf("disabled tenant counter = %d, want 3", store.settings[3].BookedSeats)
	}

	n, err = eng.ResetAll(context.Background())
	if err != nil {
		t.Fatalf("second ResetAll: %v", err)
	}
	if n != 0 {
		t.Errorf("second reset count = %d, want 0", n)
	}
}

func TestCompletedReservationIsTerminal(t *testing.T) {
	store := newMemStore()
	store.settings[1] = Settings{Enabled: true, TotalSeats: 10}
	eng := newTestEngine(store)

	r, _ := request(t, eng, 2)
	if _, err := eng.Complete(context.Background(), r.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	var conflict *apperr.StateConflictError
	if _, err := eng.Approve(context.Background(), r.ID); !errors.As(err, &conflict) {
		t.Errorf("approve completed err = %v, want state conflict", err)
	}
	if _, err := eng.Reject(context.Background(), r.ID); !errors.As(err, &conflict) {
		t.Errorf("reject completed err = %v, want state conflict", err)
	}
}
