package model

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a requested event or signup does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEventClosed is returned when the event does not accept signups.
	ErrEventClosed = errors.New("event is closed for signups")
	// ErrNoCapacityConfigured is returned when an event has no capacity set up.
	ErrNoCapacityConfigured = errors.New("event has no capacity configured")
	// ErrEventFull is returned when an event has no remaining places.
	ErrEventFull = errors.New("event is full")
	// ErrInvalidTransition is returned when a signup has already been decided.
	ErrInvalidTransition = errors.New("signup has already been decided")
	// ErrConflict is returned when a transaction kept losing to concurrent writers.
	ErrConflict = errors.New("too much concurrent activity, please try again")
	// ErrUnavailable is returned when the backing store is unreachable or timed out.
	ErrUnavailable = errors.New("store unavailable")
)

// ValidationError describes a single invalid input field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
