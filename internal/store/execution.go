package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
)

// ExecutionFilter narrows an execution listing. Every field is optional and
// the zero value lists everything the owner has, newest first.
type ExecutionFilter struct {
	InProgress *bool
	ListID     *uuid.UUID
	Tag        string
	Limit      int
	Offset     int
}

// ExecutionStore defines the interface for execution persistence.
// Every lookup is scoped by owner: a row owned by someone else is reported
// as ErrExecutionNotFound.
type ExecutionStore interface {
	// Create saves a new execution together with its result entries.
	Create(ctx context.Context, execution *domain.Execution) error

	// Get retrieves an execution and its result sequence.
	// Returns ErrExecutionNotFound if it does not exist or is not owned by ownerID.
	Get(ctx context.Context, ownerID, executionID uuid.UUID) (*domain.Execution, error)

	// GetForUpdate is Get with a row-level lock (SELECT ... FOR UPDATE).
	// It must be called inside a transaction; it serializes every mutation of one execution.
	GetForUpdate(ctx context.Context, ownerID, executionID uuid.UUID) (*domain.Execution, error)

	// FindInProgressByListKey returns the in-progress execution of ownerID whose
	// source list set has the given canonical key.
	// Returns ErrExecutionNotFound when there is none.
	FindInProgressByListKey(ctx context.Context, ownerID uuid.UUID, listKey string) (*domain.Execution, error)

	// LockOwner takes a transaction-scoped lock on ownerID so concurrent
	// starts for the same owner cannot both pass the de-duplication check.
	LockOwner(ctx context.Context, ownerID uuid.UUID) error

	// Update persists the execution row (not its result entries).
	// Returns ErrExecutionNotFound if the row is gone.
	Update(ctx context.Context, execution *domain.Execution) error

	// SaveResults persists the outcome and position of the given entries.
	SaveResults(ctx context.Context, executionID uuid.UUID, entries []domain.ResultEntry) error

	// List returns the owner's executions without their result entries.
	List(ctx context.Context, ownerID uuid.UUID, filter ExecutionFilter) ([]*domain.Execution, error)

	// WithTx returns a new ExecutionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ExecutionStore
}
