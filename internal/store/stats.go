package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
)

// StatsStore defines the interface for rolling statistics persistence.
// Rows are never deleted, so there is no Delete method.
type StatsStore interface {
	// GetResourceStats retrieves the row for (userID, resourceID).
	// Returns ErrStatsNotFound if the row does not exist.
	GetResourceStats(ctx context.Context, userID, resourceID uuid.UUID) (*domain.ResourceStats, error)

	// GetResourceStatsForUpdate is GetResourceStats with a row-level lock.
	GetResourceStatsForUpdate(ctx context.Context, userID, resourceID uuid.UUID) (*domain.ResourceStats, error)

	// UpsertResourceStats inserts the row or overwrites it on key conflict.
	UpsertResourceStats(ctx context.Context, stats *domain.ResourceStats) error

	// GetListStats retrieves the row for (userID, listID).
	// Returns ErrStatsNotFound if the row does not exist.
	GetListStats(ctx context.Context, userID, listID uuid.UUID) (*domain.ListStats, error)

	// GetListStatsForUpdate is GetListStats with a row-level lock.
	GetListStatsForUpdate(ctx context.Context, userID, listID uuid.UUID) (*domain.ListStats, error)

	// UpsertListStats inserts the row or overwrites it on key conflict.
	UpsertListStats(ctx context.Context, stats *domain.ListStats) error

	// GetUserStats retrieves the row for userID.
	// Returns ErrStatsNotFound if the row does not exist.
	GetUserStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error)

	// GetUserStatsForUpdate is GetUserStats with a row-level lock.
	GetUserStatsForUpdate(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error)

	// UpsertUserStats inserts the row or overwrites it on key conflict.
	UpsertUserStats(ctx context.Context, stats *domain.UserStats) error

	// WithTx returns a new StatsStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) StatsStore
}
