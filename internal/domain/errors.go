// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrNotFound is returned when an entity does not exist or is not owned
	// by the requesting user. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a state-machine precondition is violated.
	// Callers are expected to re-fetch state before retrying.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")

	// ErrNotInProgress is returned when a transition that requires a running
	// execution is applied to a finished one.
	ErrNotInProgress = fmt.Errorf("%w: execution is not in progress", ErrConflict)

	// ErrStaleVersion is returned when the caller's last-seen version does not
	// match the stored execution version.
	ErrStaleVersion = fmt.Errorf("%w: stale execution version", ErrConflict)

	// ErrResultEntryNotFound is returned when no result entry matches the
	// requested (resource, list) pair.
	ErrResultEntryNotFound = fmt.Errorf("%w: result entry", ErrNotFound)

	// ErrInvalidOutcome is returned for outcomes outside unanswered/pass/fail.
	ErrInvalidOutcome = errors.New("invalid outcome")

	// ErrInvalidCursor is returned when a cursor falls outside the result sequence.
	ErrInvalidCursor = errors.New("cursor out of range")
)

// ValidationError describes a single invalid field.
// It wraps ErrValidation so errors.Is(err, ErrValidation) holds for every instance.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError creates a ValidationError for field. err may be nil.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Err != nil && !errors.Is(e.Err, ErrValidation) {
		return fmt.Sprintf("%s %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns both the validation sentinel and the underlying cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}
