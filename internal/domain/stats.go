package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for stats rows
var (
	ErrEmptyStatsUserID     = errors.New("stats user ID cannot be empty")
	ErrEmptyStatsResourceID = errors.New("stats resource ID cannot be empty")
	ErrEmptyStatsListID     = errors.New("stats list ID cannot be empty")
	ErrNegativeStats        = errors.New("stats counters cannot be negative")
)

// ResourceStats is the rolling history of one user practising one resource.
// Executions counts answers, not finished sessions.
type ResourceStats struct {
	UserID         uuid.UUID  `json:"user_id"`
	ResourceID     uuid.UUID  `json:"resource_id"`
	Executions     int        `json:"executions"`
	Correct        int        `json:"correct"`
	Incorrect      int        `json:"incorrect"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`
	LastOutcome    *Outcome   `json:"last_outcome,omitempty"`
	Favourite      bool       `json:"favourite"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Validate checks if the ResourceStats has valid data.
func (s *ResourceStats) Validate() error {
	if s.UserID == uuid.Nil {
		return ErrEmptyStatsUserID
	}
	if s.ResourceID == uuid.Nil {
		return ErrEmptyStatsResourceID
	}
	if s.Executions < 0 || s.Correct < 0 || s.Incorrect < 0 {
		return ErrNegativeStats
	}
	return nil
}

// ListStats is the rolling history of one user finishing sessions over one list.
type ListStats struct {
	UserID         uuid.UUID  `json:"user_id"`
	ListID         uuid.UUID  `json:"list_id"`
	Executions     int        `json:"executions"`
	Correct        int        `json:"correct"`
	Incorrect      int        `json:"incorrect"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Validate checks if the ListStats has valid data.
func (s *ListStats) Validate() error {
	if s.UserID == uuid.Nil {
		return ErrEmptyStatsUserID
	}
	if s.ListID == uuid.Nil {
		return ErrEmptyStatsListID
	}
	if s.Executions < 0 || s.Correct < 0 || s.Incorrect < 0 {
		return ErrNegativeStats
	}
	return nil
}

// UserStats is the rolling history of every session a user has finished.
type UserStats struct {
	UserID         uuid.UUID  `json:"user_id"`
	Executions     int        `json:"executions"`
	Correct        int        `json:"correct"`
	Incorrect      int        `json:"incorrect"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Validate checks if the UserStats has valid data.
func (s *UserStats) Validate() error {
	if s.UserID == uuid.Nil {
		return ErrEmptyStatsUserID
	}
	if s.Executions < 0 || s.Correct < 0 || s.Incorrect < 0 {
		return ErrNegativeStats
	}
	return nil
}
