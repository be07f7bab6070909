package apperr

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("forbidden")
)

// ValidationError rejects malformed input. Not retryable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StateConflictError rejects a transition that is illegal for the entity's
// current state. Carries the current state so the caller sees why.
type StateConflictError struct {
	Entity  string
	Current string
	Attempt string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s is %s; cannot %s", e.Entity, e.Current, e.Attempt)
}

// CapacityError rejects a request that exceeds remaining capacity.
type CapacityError struct {
	Requested int
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("requested %d exceeds remaining capacity %d", e.Requested, e.Remaining)
}

// ShiftClosedError is the hard login block for time-boxed staff roles.
// Wait is the time until the next shift start, zero when unknown
// (every day is a rest day).
type ShiftClosedError struct {
	Wait time.Duration
}

func (e *ShiftClosedError) Error() string {
	if e.Wait <= 0 {
		return "outside shift window"
	}
	return fmt.Sprintf("outside shift window; next shift starts in %s", e.Wait.Round(time.Minute))
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsStateConflict(err error) bool {
	var sc *StateConflictError
	return errors.As(err, &sc)
}
