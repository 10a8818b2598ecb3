// Package execution implements the session orchestrator: one method per
// execution transition, each running in a single storage transaction.
package execution

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/store"
)

// AnswerInput is one recorded answer.
type AnswerInput struct {
	ResourceID uuid.UUID
	ListID     *uuid.UUID // nil for ad-hoc entries
	Position   int        // cursor position reported by the caller
	Outcome    domain.Outcome
}

// ResultView is a result entry joined with its resource content.
// Resource is nil when the resource no longer exists in the catalog.
type ResultView struct {
	domain.ResultEntry
	Resource *domain.Resource `json:"resource,omitempty"`
}

// ExecutionView is an execution with its ordered results, ready for rendering.
type ExecutionView struct {
	*domain.Execution
	State   domain.ExecutionState `json:"state"`
	Results []ResultView          `json:"results"`
}

// ViewOptions narrows the results of an ExecutionView.
type ViewOptions struct {
	// Outcome keeps only entries with this outcome (review mode), when set.
	Outcome *domain.Outcome
}

// Service is the session orchestrator.
//
// Every method authorizes by (executionID, ownerID): an execution owned by
// someone else is reported as not found. Mutating methods take an optional
// expected version; a mismatch fails with domain.ErrStaleVersion.
type Service interface {
	// Start returns the owner's in-progress execution over the same set of
	// lists if there is one, or creates a new one.
	Start(ctx context.Context, ownerID uuid.UUID, listIDs []uuid.UUID) (*ExecutionView, error)

	// StartTemporary always creates a new ad-hoc execution over resourceIDs.
	StartTemporary(
		ctx context.Context,
		ownerID uuid.UUID,
		name string,
		tags []string,
		resourceIDs []uuid.UUID,
	) (*ExecutionView, error)

	// Get returns the execution with its results joined with resource content.
	Get(ctx context.Context, ownerID, executionID uuid.UUID, opts ViewOptions) (*ExecutionView, error)

	// List returns the owner's executions without results.
	List(ctx context.Context, ownerID uuid.UUID, filter store.ExecutionFilter) ([]*domain.Execution, error)

	// Configure merges patch onto the execution configuration. The first
	// configuration requesting shuffle permutes the result order.
	Configure(
		ctx context.Context,
		ownerID, executionID uuid.UUID,
		patch domain.ConfigPatch,
		expectedVersion *int64,
	) (*ExecutionView, error)

	// RecordAnswer stores an outcome and moves the cursor. A pass or fail
	// outcome also bumps the owner's resource stats, on every call.
	RecordAnswer(
		ctx context.Context,
		ownerID, executionID uuid.UUID,
		answer AnswerInput,
		expectedVersion *int64,
	) (*domain.Execution, error)

	// Restart rewinds the cursor and counts another loop, keeping outcomes.
	Restart(ctx context.Context, ownerID, executionID uuid.UUID, expectedVersion *int64) (*ExecutionView, error)

	// Finish closes the execution, recomputes its counters and applies them
	// to list and user stats. Finishing again re-applies the stats.
	Finish(ctx context.Context, ownerID, executionID uuid.UUID, expectedVersion *int64) (*ExecutionView, error)

	// ToggleFavourite flips the favourite flag of one of the owner's resources.
	ToggleFavourite(ctx context.Context, ownerID, resourceID uuid.UUID) (*domain.ResourceStats, error)

	// UserStats returns the owner's totals; a zero row when nothing was finished yet.
	UserStats(ctx context.Context, ownerID uuid.UUID) (*domain.UserStats, error)

	// ListStats returns the owner's totals for one of their lists.
	ListStats(ctx context.Context, ownerID, listID uuid.UUID) (*domain.ListStats, error)

	// ResourceStats returns the owner's history for one of their resources.
	ResourceStats(ctx context.Context, ownerID, resourceID uuid.UUID) (*domain.ResourceStats, error)
}

// ServiceError wraps errors from the execution service with the operation
// that failed. Use errors.Is on it to reach the domain or store sentinel.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "start", "record_answer")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{Operation: operation, Message: message, Err: err}
}

// NewStartError returns a new ServiceError for the start operation.
func NewStartError(message string, err error) *ServiceError {
	return newServiceError("start", message, err)
}

// NewGetError returns a new ServiceError for the get operation.
func NewGetError(message string, err error) *ServiceError {
	return newServiceError("get", message, err)
}

// NewConfigureError returns a new ServiceError for the configure operation.
func NewConfigureError(message string, err error) *ServiceError {
	return newServiceError("configure", message, err)
}

// NewRecordAnswerError returns a new ServiceError for the record_answer operation.
func NewRecordAnswerError(message string, err error) *ServiceError {
	return newServiceError("record_answer", message, err)
}

// NewRestartError returns a new ServiceError for the restart operation.
func NewRestartError(message string, err error) *ServiceError {
	return newServiceError("restart", message, err)
}

// NewFinishError returns a new ServiceError for the finish operation.
func NewFinishError(message string, err error) *ServiceError {
	return newServiceError("finish", message, err)
}

// NewStatsError returns a new ServiceError for the stats operations.
func NewStatsError(message string, err error) *ServiceError {
	return newServiceError("stats", message, err)
}
