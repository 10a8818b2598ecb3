// Package stats implements the rolling statistics calculations applied when
// answers are recorded and executions finish. Every function is pure: it takes
// the previous row (nil when absent) and returns a new row.
package stats

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
)

// Common errors
var (
	ErrNegativeDelta   = errors.New("stats deltas cannot be negative")
	ErrUnansweredBump  = errors.New("resource stats require a pass or fail outcome")
	ErrMismatchedOwner = errors.New("previous stats row belongs to a different key")
)

// Aggregator defines the rolling counter calculations.
type Aggregator interface {
	// BumpResource applies one answered outcome to a resource row.
	BumpResource(
		prev *domain.ResourceStats,
		userID, resourceID uuid.UUID,
		outcome domain.Outcome,
		now time.Time,
	) (*domain.ResourceStats, error)

	// BumpList applies one finished execution's per-list tally.
	BumpList(
		prev *domain.ListStats,
		userID, listID uuid.UUID,
		correct, incorrect int,
		now time.Time,
	) (*domain.ListStats, error)

	// BumpUser applies one finished execution's total tally.
	BumpUser(
		prev *domain.UserStats,
		userID uuid.UUID,
		correct, incorrect int,
		now time.Time,
	) (*domain.UserStats, error)

	// ToggleFavourite flips the favourite flag; an absent row becomes a favourite.
	ToggleFavourite(
		prev *domain.ResourceStats,
		userID, resourceID uuid.UUID,
		now time.Time,
	) (*domain.ResourceStats, error)
}

type defaultAggregator struct{}

// NewAggregator returns the standard Aggregator.
func NewAggregator() Aggregator {
	return defaultAggregator{}
}

// BumpResource implements Aggregator.BumpResource
func (defaultAggregator) BumpResource(
	prev *domain.ResourceStats,
	userID, resourceID uuid.UUID,
	outcome domain.Outcome,
	now time.Time,
) (*domain.ResourceStats, error) {
	if !outcome.Answered() {
		return nil, ErrUnansweredBump
	}

	next := &domain.ResourceStats{
		UserID:     userID,
		ResourceID: resourceID,
		CreatedAt:  now,
	}
	if prev != nil {
		if prev.UserID != userID || prev.ResourceID != resourceID {
			return nil, ErrMismatchedOwner
		}
		cp := *prev
		next = &cp
	}

	next.Executions++
	if outcome == domain.OutcomePass {
		next.Correct++
	} else {
		next.Incorrect++
	}

	executedAt := now
	last := outcome
	next.LastExecutedAt = &executedAt
	next.LastOutcome = &last
	next.UpdatedAt = now

	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

// BumpList implements Aggregator.BumpList
func (defaultAggregator) BumpList(
	prev *domain.ListStats,
	userID, listID uuid.UUID,
	correct, incorrect int,
	now time.Time,
) (*domain.ListStats, error) {
	if correct < 0 || incorrect < 0 {
		return nil, ErrNegativeDelta
	}

	next := &domain.ListStats{
		UserID:    userID,
		ListID:    listID,
		CreatedAt: now,
	}
	if prev != nil {
		if prev.UserID != userID || prev.ListID != listID {
			return nil, ErrMismatchedOwner
		}
		cp := *prev
		next = &cp
	}

	next.Executions++
	next.Correct += correct
	next.Incorrect += incorrect
	executedAt := now
	next.LastExecutedAt = &executedAt
	next.UpdatedAt = now

	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

// BumpUser implements Aggregator.BumpUser
func (defaultAggregator) BumpUser(
	prev *domain.UserStats,
	userID uuid.UUID,
	correct, incorrect int,
	now time.Time,
) (*domain.UserStats, error) {
	if correct < 0 || incorrect < 0 {
		return nil, ErrNegativeDelta
	}

	next := &domain.UserStats{
		UserID:    userID,
		CreatedAt: now,
	}
	if prev != nil {
		if prev.UserID != userID {
			return nil, ErrMismatchedOwner
		}
		cp := *prev
		next = &cp
	}

	next.Executions++
	next.Correct += correct
	next.Incorrect += incorrect
	executedAt := now
	next.LastExecutedAt = &executedAt
	next.UpdatedAt = now

	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

// ToggleFavourite implements Aggregator.ToggleFavourite
func (defaultAggregator) ToggleFavourite(
	prev *domain.ResourceStats,
	userID, resourceID uuid.UUID,
	now time.Time,
) (*domain.ResourceStats, error) {
	next := &domain.ResourceStats{
		UserID:     userID,
		ResourceID: resourceID,
		CreatedAt:  now,
	}
	if prev != nil {
		if prev.UserID != userID || prev.ResourceID != resourceID {
			return nil, ErrMismatchedOwner
		}
		cp := *prev
		next = &cp
	}

	next.Favourite = !next.Favourite
	next.UpdatedAt = now

	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}
