package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/redact"
	"github.com/phrazzld/drill-api/internal/store"
)

// PostgresStatsStore implements the store.StatsStore interface
// using a PostgreSQL database as the storage backend.
type PostgresStatsStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresStatsStore creates a new PostgreSQL implementation of the StatsStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresStatsStore(db store.DBTX, logger *slog.Logger) *PostgresStatsStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresStatsStore{
		db:     db,
		logger: logger.With(slog.String("component", "stats_store")),
	}
}

// Ensure PostgresStatsStore implements store.StatsStore interface
var _ store.StatsStore = (*PostgresStatsStore)(nil)

// WithTx implements store.StatsStore.WithTx
func (s *PostgresStatsStore) WithTx(tx *sql.Tx) store.StatsStore {
	return &PostgresStatsStore{db: tx, logger: s.logger}
}

func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// GetResourceStats implements store.StatsStore.GetResourceStats
func (s *PostgresStatsStore) GetResourceStats(
	ctx context.Context,
	userID, resourceID uuid.UUID,
) (*domain.ResourceStats, error) {
	return s.getResourceStats(ctx, userID, resourceID, false)
}

// GetResourceStatsForUpdate implements store.StatsStore.GetResourceStatsForUpdate
func (s *PostgresStatsStore) GetResourceStatsForUpdate(
	ctx context.Context,
	userID, resourceID uuid.UUID,
) (*domain.ResourceStats, error) {
	return s.getResourceStats(ctx, userID, resourceID, true)
}

func (s *PostgresStatsStore) getResourceStats(
	ctx context.Context,
	userID, resourceID uuid.UUID,
	forUpdate bool,
) (*domain.ResourceStats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT user_id, resource_id, executions, correct, incorrect,
			last_executed_at, last_outcome, favourite, created_at, updated_at
		FROM resource_stats
		WHERE user_id = $1 AND resource_id = $2` + lockClause(forUpdate)

	var (
		stats        domain.ResourceStats
		lastExecuted sql.NullTime
		lastOutcome  sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, userID, resourceID).Scan(
		&stats.UserID,
		&stats.ResourceID,
		&stats.Executions,
		&stats.Correct,
		&stats.Incorrect,
		&lastExecuted,
		&lastOutcome,
		&stats.Favourite,
		&stats.CreatedAt,
		&stats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrStatsNotFound
		}
		log.Error("failed to get resource stats",
			redact.ErrorAttr(err),
			slog.String("user_id", userID.String()),
			slog.String("resource_id", resourceID.String()))
		return nil, wrapError("stats", "get_resource_stats", err)
	}

	stats.LastExecutedAt = nullTimePtr(lastExecuted)
	if lastOutcome.Valid {
		o := domain.Outcome(lastOutcome.String)
		stats.LastOutcome = &o
	}
	return &stats, nil
}

// UpsertResourceStats implements store.StatsStore.UpsertResourceStats
func (s *PostgresStatsStore) UpsertResourceStats(ctx context.Context, stats *domain.ResourceStats) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := stats.Validate(); err != nil {
		log.Warn("resource stats validation failed during upsert", redact.ErrorAttr(err))
		return err
	}

	var lastOutcome sql.NullString
	if stats.LastOutcome != nil {
		lastOutcome = sql.NullString{String: string(*stats.LastOutcome), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resource_stats (
			user_id, resource_id, executions, correct, incorrect,
			last_executed_at, last_outcome, favourite, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, resource_id) DO UPDATE SET
			executions = EXCLUDED.executions,
			correct = EXCLUDED.correct,
			incorrect = EXCLUDED.incorrect,
			last_executed_at = EXCLUDED.last_executed_at,
			last_outcome = EXCLUDED.last_outcome,
			favourite = EXCLUDED.favourite,
			updated_at = EXCLUDED.updated_at
	`,
		stats.UserID,
		stats.ResourceID,
		stats.Executions,
		stats.Correct,
		stats.Incorrect,
		nullTime(stats.LastExecutedAt),
		lastOutcome,
		stats.Favourite,
		stats.CreatedAt,
		stats.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to upsert resource stats",
			redact.ErrorAttr(err),
			slog.String("user_id", stats.UserID.String()),
			slog.String("resource_id", stats.ResourceID.String()))
		return wrapError("stats", "upsert_resource_stats", err)
	}

	log.Debug("resource stats upserted",
		slog.String("resource_id", stats.ResourceID.String()),
		slog.Int("executions", stats.Executions))
	return nil
}

// GetListStats implements store.StatsStore.GetListStats
func (s *PostgresStatsStore) GetListStats(ctx context.Context, userID, listID uuid.UUID) (*domain.ListStats, error) {
	return s.getListStats(ctx, userID, listID, false)
}

// GetListStatsForUpdate implements store.StatsStore.GetListStatsForUpdate
func (s *PostgresStatsStore) GetListStatsForUpdate(
	ctx context.Context,
	userID, listID uuid.UUID,
) (*domain.ListStats, error) {
	return s.getListStats(ctx, userID, listID, true)
}

func (s *PostgresStatsStore) getListStats(
	ctx context.Context,
	userID, listID uuid.UUID,
	forUpdate bool,
) (*domain.ListStats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT user_id, list_id, executions, correct, incorrect, last_executed_at, created_at, updated_at
		FROM list_stats
		WHERE user_id = $1 AND list_id = $2` + lockClause(forUpdate)

	var (
		stats        domain.ListStats
		lastExecuted sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, userID, listID).Scan(
		&stats.UserID,
		&stats.ListID,
		&stats.Executions,
		&stats.Correct,
		&stats.Incorrect,
		&lastExecuted,
		&stats.CreatedAt,
		&stats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrStatsNotFound
		}
		log.Error("failed to get list stats",
			redact.ErrorAttr(err),
			slog.String("user_id", userID.String()),
			slog.String("list_id", listID.String()))
		return nil, wrapError("stats", "get_list_stats", err)
	}

	stats.LastExecutedAt = nullTimePtr(lastExecuted)
	return &stats, nil
}

// UpsertListStats implements store.StatsStore.UpsertListStats
func (s *PostgresStatsStore) UpsertListStats(ctx context.Context, stats *domain.ListStats) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := stats.Validate(); err != nil {
		log.Warn("list stats validation failed during upsert", redact.ErrorAttr(err))
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO list_stats (
			user_id, list_id, executions, correct, incorrect, last_executed_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, list_id) DO UPDATE SET
			executions = EXCLUDED.executions,
			correct = EXCLUDED.correct,
			incorrect = EXCLUDED.incorrect,
			last_executed_at = EXCLUDED.last_executed_at,
			updated_at = EXCLUDED.updated_at
	`,
		stats.UserID,
		stats.ListID,
		stats.Executions,
		stats.Correct,
		stats.Incorrect,
		nullTime(stats.LastExecutedAt),
		stats.CreatedAt,
		stats.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to upsert list stats",
			redact.ErrorAttr(err),
			slog.String("user_id", stats.UserID.String()),
			slog.String("list_id", stats.ListID.String()))
		return wrapError("stats", "upsert_list_stats", err)
	}
	return nil
}

// GetUserStats implements store.StatsStore.GetUserStats
func (s *PostgresStatsStore) GetUserStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	return s.getUserStats(ctx, userID, false)
}

// GetUserStatsForUpdate implements store.StatsStore.GetUserStatsForUpdate
func (s *PostgresStatsStore) GetUserStatsForUpdate(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	return s.getUserStats(ctx, userID, true)
}

func (s *PostgresStatsStore) getUserStats(
	ctx context.Context,
	userID uuid.UUID,
	forUpdate bool,
) (*domain.UserStats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT user_id, executions, correct, incorrect, last_executed_at, created_at, updated_at
		FROM user_stats
		WHERE user_id = $1` + lockClause(forUpdate)

	var (
		stats        domain.UserStats
		lastExecuted sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.UserID,
		&stats.Executions,
		&stats.Correct,
		&stats.Incorrect,
		&lastExecuted,
		&stats.CreatedAt,
		&stats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrStatsNotFound
		}
		log.Error("failed to get user stats",
			redact.ErrorAttr(err),
			slog.String("user_id", userID.String()))
		return nil, wrapError("stats", "get_user_stats", err)
	}

	stats.LastExecutedAt = nullTimePtr(lastExecuted)
	return &stats, nil
}

// UpsertUserStats implements store.StatsStore.UpsertUserStats
func (s *PostgresStatsStore) UpsertUserStats(ctx context.Context, stats *domain.UserStats) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := stats.Validate(); err != nil {
		log.Warn("user stats validation failed during upsert", redact.ErrorAttr(err))
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_stats (
			user_id, executions, correct, incorrect, last_executed_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			executions = EXCLUDED.executions,
			correct = EXCLUDED.correct,
			incorrect = EXCLUDED.incorrect,
			last_executed_at = EXCLUDED.last_executed_at,
			updated_at = EXCLUDED.updated_at
	`,
		stats.UserID,
		stats.Executions,
		stats.Correct,
		stats.Incorrect,
		nullTime(stats.LastExecutedAt),
		stats.CreatedAt,
		stats.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to upsert user stats",
			redact.ErrorAttr(err),
			slog.String("user_id", stats.UserID.String()))
		return wrapError("stats", "upsert_user_stats", err)
	}
	return nil
}
