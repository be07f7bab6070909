package reservations

import (
	"context"
	"errors"
	"fmt"

	"imenu-order-services/internal/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) GetSettings(ctx context.Context, restaurantID int64) (Settings, error) {
	var settings Settings
	err := s.db.QueryRow(ctx,
		`select reservations_enabled, total_seats, booked_seats
		 from restaurants where id = $1`,
		restaurantID,
	).Scan(&settings.Enabled, &settings.TotalSeats, &settings.BookedSeats)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, apperr.ErrNotFound
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load reservation settings: %w", err)
	}
	return settings, nil
}

// HoldSeats increments the counter only when the seats fit, as a single
// guarded update so concurrent requests cannot oversell.
func (s *PGStore) HoldSeats(ctx context.Context, restaurantID int64, seats int) (bool, int, error) {
	var booked, total int
	err := s.db.QueryRow(ctx,
		`update restaurants
		 set booked_seats = booked_seats + $1
		 where id = $2 and reservations_enabled and booked_seats + $1 <= total_seats
		 returning booked_seats, total_seats`,
		seats, restaurantID,
	).Scan(&booked, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		settings, serr := s.GetSettings(ctx, restaurantID)
		if serr != nil {
			return false, 0, serr
		}
		remaining := settings.TotalSeats - settings.BookedSeats
		if remaining < 0 {
			remaining = 0
		}
		return false, remaining, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("hold seats: %w", err)
	}
	return true, total - booked, nil
}

func (s *PGStore) ReleaseSeats(ctx context.Context, restaurantID int64, seats int) error {
	_, err := s.db.Exec(ctx,
		`update restaurants
		 set booked_seats = greatest(booked_seats - $1, 0)
		 where id = $2`,
		seats, restaurantID,
	)
	if err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	return nil
}

func (s *PGStore) ResetAllCounters(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`update restaurants set booked_seats = 0
		 where reservations_enabled and booked_seats <> 0`,
	)
	if err != nil {
		return 0, fmt.Errorf("reset seat counters: %w", err)
	}
	return tag.RowsAffected(), nil
}

const reservationColumns = `id, restaurant_id, requester_name, requester_phone, seats, status, created_at`

func scanReservation(row pgx.Row) (Reservation, error) {
	var r Reservation
	err := row.Scan(&r.ID, &r.RestaurantID, &r.RequesterName, &r.RequesterPhone,
		&r.Seats, &r.Status, &r.CreatedAt)
	return r, err
}

func (s *PGStore) Create(ctx context.Context, r Reservation) (Reservation, error) {
	err := s.db.QueryRow(ctx,
		`insert into reservations (restaurant_id, requester_name, requester_phone, seats, status)
		 values ($1, $2, $3, $4, $5)
		 returning id, created_at`,
		r.RestaurantID, r.RequesterName, r.RequesterPhone, r.Seats, r.Status,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return Reservation{}, fmt.Errorf("create reservation: %w", err)
	}
	return r, nil
}

func (s *PGStore) Get(ctx context.Context, id int64) (Reservation, error) {
	r, err := scanReservation(s.db.QueryRow(ctx,
		`select `+reservationColumns+` from reservations where id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, apperr.ErrNotFound
	}
	if err != nil {
		return Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}

func (s *PGStore) List(ctx context.Context, restaurantID int64) ([]Reservation, error) {
	rows, err := s.db.Query(ctx,
		`select `+reservationColumns+`
		 from reservations
		 where restaurant_id = $1
		 order by created_at desc`,
		restaurantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ID, &r.RestaurantID, &r.RequesterName, &r.RequesterPhone,
			&r.Seats, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) Transition(ctx context.Context, id int64, to Status, from ...Status) (Reservation, bool, error) {
	states := make([]string, len(from))
	for i, st := range from {
		states[i] = string(st)
	}
	r, err := scanReservation(s.db.QueryRow(ctx,
		`update reservations set status = $1
		 where id = $2 and status = any($3)
		 returning `+reservationColumns,
		to, id, states))
	if errors.Is(err, pgx.ErrNoRows) {
		current, err := s.Get(ctx, id)
		return current, false, err
	}
	if err != nil {
		return Reservation{}, false, fmt.Errorf("transition reservation: %w", err)
	}
	return r, true, nil
}

// RejectHolding runs the status flip and the counter release in one
// transaction; the guarded update makes losing decisions no-ops.
func (s *PGStore) RejectHolding(ctx context.Context, id int64) (Reservation, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Reservation{}, false, fmt.Errorf("reject reservation: %w", err)
	}
	defer tx.Rollback(ctx)

	r, err := scanReservation(tx.QueryRow(ctx,
		`update reservations set status = $1
		 where id = $2 and status = any($3)
		 returning `+reservationColumns,
		StatusRejected, id, []string{string(StatusPending), string(StatusApproved)}))
	if errors.Is(err, pgx.ErrNoRows) {
		current, err := s.Get(ctx, id)
		return current, false, err
	}
	if err != nil {
		return Reservation{}, false, fmt.Errorf("reject reservation: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`update restaurants
		 set booked_seats = greatest(booked_seats - $1, 0)
		 where id = $2`,
		r.Seats, r.RestaurantID,
	); err != nil {
		return Reservation{}, false, fmt.Errorf("reject reservation: release seats: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Reservation{}, false, fmt.Errorf("reject reservation: %w", err)
	}
	return r, true, nil
}

// ApproveRejected flips the row and re-takes the hold in one transaction;
// a hold that does not fit rolls the flip back.
func (s *PGStore) ApproveRejected(ctx context.Context, id int64) (Reservation, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Reservation{}, false, fmt.Errorf("approve reservation: %w", err)
	}
	defer tx.Rollback(ctx)

	r, err := scanReservation(tx.QueryRow(ctx,
		`update reservations set status = $1
		 where id = $2 and status = $3
		 returning `+reservationColumns,
		StatusApproved, id, StatusRejected))
	if errors.Is(err, pgx.ErrNoRows) {
		current, err := s.Get(ctx, id)
		return current, false, err
	}
	if err != nil {
		return Reservation{}, false, fmt.Errorf("approve reservation: %w", err)
	}

	var booked, total int
	err = tx.QueryRow(ctx,
		`update restaurants
		 set booked_seats = booked_seats + $1
		 where id = $2 and reservations_enabled and booked_seats + $1 <= total_seats
		 returning booked_seats, total_seats`,
		r.Seats, r.RestaurantID,
	).Scan(&booked, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		settings, serr := s.GetSettings(ctx, r.RestaurantID)
		if serr != nil {
			return Reservation{}, false, serr
		}
		remaining := settings.TotalSeats - settings.BookedSeats
		if remaining < 0 {
			remaining = 0
		}
		return Reservation{}, false, &apperr.CapacityError{Requested: r.Seats, Remaining: remaining}
	}
	if err != nil {
		return Reservation{}, false, fmt.Errorf("approve reservation: hold seats: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Reservation{}, false, fmt.Errorf("approve reservation: %w", err)
	}
	return r, true, nil
}
