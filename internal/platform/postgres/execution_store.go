package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/redact"
	"github.com/phrazzld/drill-api/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

const executionColumns = `
	id, owner_id, name, tags, list_ids, in_progress, loop_count, cursor_position,
	config, sealed, correct, incorrect, unanswered, version, created_at, updated_at`

// PostgresExecutionStore implements the store.ExecutionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresExecutionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresExecutionStore creates a new PostgreSQL implementation of the ExecutionStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresExecutionStore(db store.DBTX, logger *slog.Logger) *PostgresExecutionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresExecutionStore{
		db:     db,
		logger: logger.With(slog.String("component", "execution_store")),
	}
}

// Ensure PostgresExecutionStore implements store.ExecutionStore interface
var _ store.ExecutionStore = (*PostgresExecutionStore)(nil)

// WithTx implements store.ExecutionStore.WithTx
func (s *PostgresExecutionStore) WithTx(tx *sql.Tx) store.ExecutionStore {
	return &PostgresExecutionStore{db: tx, logger: s.logger}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*domain.Execution, bool, error) {
	var (
		e                              domain.Execution
		tags, listIDs, cfg             []byte
		sealed                         bool
		correct, incorrect, unanswered int
	)

	err := row.Scan(
		&e.ID,
		&e.OwnerID,
		&e.Name,
		&tags,
		&listIDs,
		&e.InProgress,
		&e.LoopCount,
		&e.Cursor,
		&cfg,
		&sealed,
		&correct,
		&incorrect,
		&unanswered,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, false, err
	}

	if err := json.Unmarshal(tags, &e.Tags); err != nil {
		return nil, false, fmt.Errorf("failed to decode execution tags: %w", err)
	}
	if err := json.Unmarshal(listIDs, &e.ListIDs); err != nil {
		return nil, false, fmt.Errorf("failed to decode execution list ids: %w", err)
	}
	if len(cfg) > 0 {
		var c domain.ExecutionConfig
		if err := json.Unmarshal(cfg, &c); err != nil {
			return nil, false, fmt.Errorf("failed to decode execution config: %w", err)
		}
		e.Config = &c
	}
	e.Counters = domain.Counters{Correct: correct, Incorrect: incorrect, Unanswered: unanswered}
	e.Results = domain.RestoreResultSequence(nil, sealed)

	return &e, sealed, nil
}

// encodedExecution holds the jsonb columns of an execution.
type encodedExecution struct {
	tags    []byte
	listIDs []byte
	config  []byte
}

func encodeExecution(e *domain.Execution) (encodedExecution, error) {
	var enc encodedExecution
	var err error

	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	if enc.tags, err = json.Marshal(tags); err != nil {
		return enc, fmt.Errorf("failed to encode execution tags: %w", err)
	}

	listIDs := e.ListIDs
	if listIDs == nil {
		listIDs = []uuid.UUID{}
	}
	if enc.listIDs, err = json.Marshal(listIDs); err != nil {
		return enc, fmt.Errorf("failed to encode execution list ids: %w", err)
	}

	if e.Config != nil {
		if enc.config, err = json.Marshal(e.Config); err != nil {
			return enc, fmt.Errorf("failed to encode execution config: %w", err)
		}
	}
	return enc, nil
}

// Create implements store.ExecutionStore.Create
// It saves the execution row and one row per result entry.
// Returns store.ErrDuplicate if an in-progress execution already covers the same list set.
func (s *PostgresExecutionStore) Create(ctx context.Context, execution *domain.Execution) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := execution.Validate(); err != nil {
		log.Warn("execution validation failed during create",
			redact.ErrorAttr(err),
			slog.String("execution_id", execution.ID.String()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	enc, err := encodeExecution(execution)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO executions (
			id, owner_id, name, tags, list_ids, list_key, in_progress, loop_count,
			cursor_position, config, sealed, correct, incorrect, unanswered, version,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		execution.ID,
		execution.OwnerID,
		execution.Name,
		enc.tags,
		enc.listIDs,
		execution.ListKey(),
		execution.InProgress,
		execution.LoopCount,
		execution.Cursor,
		enc.config,
		execution.Results.Sealed(),
		execution.Counters.Correct,
		execution.Counters.Incorrect,
		execution.Counters.Unanswered,
		execution.Version,
		execution.CreatedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("in-progress execution already covers this list set",
				slog.String("owner_id", execution.OwnerID.String()),
				slog.String("list_key", execution.ListKey()))
			return fmt.Errorf("%w: in-progress execution for list set", store.ErrDuplicate)
		}
		log.Error("failed to create execution",
			redact.ErrorAttr(err),
			slog.String("execution_id", execution.ID.String()),
			slog.String("owner_id", execution.OwnerID.String()))
		return wrapError("execution", "create", err)
	}

	entries := execution.Results.Snapshot()
	for _, entry := range entries {
		if err := s.insertResult(ctx, execution.ID, entry); err != nil {
			log.Error("failed to create execution result",
				redact.ErrorAttr(err),
				slog.String("execution_id", execution.ID.String()),
				slog.String("resource_id", entry.ResourceID.String()))
			return wrapError("execution", "create", err)
		}
	}

	log.Info("execution created successfully",
		slog.String("execution_id", execution.ID.String()),
		slog.String("owner_id", execution.OwnerID.String()),
		slog.Int("result_count", len(entries)))
	return nil
}

func (s *PostgresExecutionStore) insertResult(ctx context.Context, executionID uuid.UUID, entry domain.ResultEntry) error {
	listID := uuid.NullUUID{}
	if entry.ListID != nil {
		listID = uuid.NullUUID{UUID: *entry.ListID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_results (id, execution_id, resource_id, list_id, position, outcome)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, executionID, entry.ResourceID, listID, entry.Position, string(entry.Outcome))
	return err
}

// Get implements store.ExecutionStore.Get
func (s *PostgresExecutionStore) Get(ctx context.Context, ownerID, executionID uuid.UUID) (*domain.Execution, error) {
	return s.get(ctx, ownerID, executionID, false)
}

// GetForUpdate implements store.ExecutionStore.GetForUpdate
func (s *PostgresExecutionStore) GetForUpdate(
	ctx context.Context,
	ownerID, executionID uuid.UUID,
) (*domain.Execution, error) {
	return s.get(ctx, ownerID, executionID, true)
}

func (s *PostgresExecutionStore) get(
	ctx context.Context,
	ownerID, executionID uuid.UUID,
	forUpdate bool,
) (*domain.Execution, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	log.Debug("retrieving execution",
		slog.String("execution_id", executionID.String()),
		slog.Bool("for_update", forUpdate))

	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1 AND owner_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	execution, sealed, err := scanExecution(s.db.QueryRowContext(ctx, query, executionID, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("execution not found", slog.String("execution_id", executionID.String()))
			return nil, store.ErrExecutionNotFound
		}
		log.Error("failed to get execution",
			redact.ErrorAttr(err),
			slog.String("execution_id", executionID.String()))
		return nil, wrapError("execution", "get", err)
	}

	if err := s.loadResults(ctx, execution, sealed); err != nil {
		log.Error("failed to load execution results",
			redact.ErrorAttr(err),
			slog.String("execution_id", executionID.String()))
		return nil, err
	}

	return execution, nil
}

func (s *PostgresExecutionStore) loadResults(ctx context.Context, execution *domain.Execution, sealed bool) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, resource_id, list_id, position, outcome
		FROM execution_results
		WHERE execution_id = $1
		ORDER BY position
	`, execution.ID)
	if err != nil {
		return wrapError("execution", "load_results", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.ResultEntry
	for rows.Next() {
		var (
			entry   domain.ResultEntry
			listID  uuid.NullUUID
			outcome string
		)
		if err := rows.Scan(&entry.ID, &entry.ResourceID, &listID, &entry.Position, &outcome); err != nil {
			return wrapError("execution", "load_results", err)
		}
		if listID.Valid {
			id := listID.UUID
			entry.ListID = &id
		}
		entry.Outcome = domain.Outcome(outcome)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return wrapError("execution", "load_results", err)
	}

	execution.Results = domain.RestoreResultSequence(entries, sealed)
	return nil
}

// FindInProgressByListKey implements store.ExecutionStore.FindInProgressByListKey
func (s *PostgresExecutionStore) FindInProgressByListKey(
	ctx context.Context,
	ownerID uuid.UUID,
	listKey string,
) (*domain.Execution, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if listKey == "" {
		return nil, store.ErrExecutionNotFound
	}

	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM executions
		WHERE owner_id = $1 AND list_key = $2 AND in_progress
		ORDER BY created_at
		LIMIT 1
	`, ownerID, listKey).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrExecutionNotFound
		}
		log.Error("failed to look up in-progress execution",
			redact.ErrorAttr(err),
			slog.String("owner_id", ownerID.String()))
		return nil, wrapError("execution", "find_in_progress_by_list_key", err)
	}

	return s.get(ctx, ownerID, id, true)
}

// LockOwner implements store.ExecutionStore.LockOwner
// The advisory lock is released when the surrounding transaction ends.
func (s *PostgresExecutionStore) LockOwner(ctx context.Context, ownerID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ownerID.String()); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to lock owner",
			redact.ErrorAttr(err),
			slog.String("owner_id", ownerID.String()))
		return wrapError("execution", "lock_owner", err)
	}
	return nil
}

// Update implements store.ExecutionStore.Update
func (s *PostgresExecutionStore) Update(ctx context.Context, execution *domain.Execution) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := execution.Validate(); err != nil {
		log.Warn("execution validation failed during update",
			redact.ErrorAttr(err),
			slog.String("execution_id", execution.ID.String()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	enc, err := encodeExecution(execution)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE executions
		SET name = $1, tags = $2, in_progress = $3, loop_count = $4, cursor_position = $5,
			config = $6, sealed = $7, correct = $8, incorrect = $9, unanswered = $10,
			version = $11, updated_at = $12
		WHERE id = $13 AND owner_id = $14
	`,
		execution.Name,
		enc.tags,
		execution.InProgress,
		execution.LoopCount,
		execution.Cursor,
		enc.config,
		execution.Results.Sealed(),
		execution.Counters.Correct,
		execution.Counters.Incorrect,
		execution.Counters.Unanswered,
		execution.Version,
		execution.UpdatedAt,
		execution.ID,
		execution.OwnerID,
	)
	if err != nil {
		log.Error("failed to update execution",
			redact.ErrorAttr(err),
			slog.String("execution_id", execution.ID.String()))
		return wrapError("execution", "update", err)
	}

	if err := CheckRowsAffected(result, store.ErrExecutionNotFound); err != nil {
		log.Debug("execution not found for update", slog.String("execution_id", execution.ID.String()))
		return err
	}

	log.Debug("execution updated successfully",
		slog.String("execution_id", execution.ID.String()),
		slog.Int64("version", execution.Version),
		slog.String("state", string(execution.State())))
	return nil
}

// SaveResults implements store.ExecutionStore.SaveResults
func (s *PostgresExecutionStore) SaveResults(
	ctx context.Context,
	executionID uuid.UUID,
	entries []domain.ResultEntry,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for _, entry := range entries {
		result, err := s.db.ExecContext(ctx, `
			UPDATE execution_results
			SET outcome = $1, position = $2
			WHERE id = $3 AND execution_id = $4
		`, string(entry.Outcome), entry.Position, entry.ID, executionID)
		if err != nil {
			log.Error("failed to save execution result",
				redact.ErrorAttr(err),
				slog.String("execution_id", executionID.String()),
				slog.String("result_id", entry.ID.String()))
			return wrapError("execution", "save_results", err)
		}
		if err := CheckRowsAffected(result, domain.ErrResultEntryNotFound); err != nil {
			return err
		}
	}

	log.Debug("execution results saved",
		slog.String("execution_id", executionID.String()),
		slog.Int("count", len(entries)))
	return nil
}

// List implements store.ExecutionStore.List
// Result entries are not loaded; each execution carries an empty sequence.
func (s *PostgresExecutionStore) List(
	ctx context.Context,
	ownerID uuid.UUID,
	filter store.ExecutionFilter,
) ([]*domain.Execution, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args := buildListQuery(ownerID, filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list executions",
			redact.ErrorAttr(err),
			slog.String("owner_id", ownerID.String()))
		return nil, wrapError("execution", "list", err)
	}
	defer func() { _ = rows.Close() }()

	executions := make([]*domain.Execution, 0)
	for rows.Next() {
		execution, sealed, err := scanExecution(rows)
		if err != nil {
			log.Error("failed to scan execution", redact.ErrorAttr(err))
			return nil, wrapError("execution", "list", err)
		}
		execution.Results = domain.RestoreResultSequence(nil, sealed)
		executions = append(executions, execution)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("execution", "list", err)
	}

	log.Debug("executions listed",
		slog.String("owner_id", ownerID.String()),
		slog.Int("count", len(executions)))
	return executions, nil
}

// buildListQuery renders the filtered listing query and its arguments.
func buildListQuery(ownerID uuid.UUID, filter store.ExecutionFilter) (string, []any) {
	var b strings.Builder
	args := []any{ownerID}

	b.WriteString(`SELECT ` + executionColumns + ` FROM executions WHERE owner_id = $1`)

	if filter.InProgress != nil {
		args = append(args, *filter.InProgress)
		fmt.Fprintf(&b, ` AND in_progress = $%d`, len(args))
	}
	if filter.ListID != nil {
		args = append(args, fmt.Sprintf(`[%q]`, filter.ListID.String()))
		fmt.Fprintf(&b, ` AND list_ids @> $%d::jsonb`, len(args))
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		args = append(args, tag)
		fmt.Fprintf(&b,
			` AND EXISTS (SELECT 1 FROM jsonb_array_elements_text(tags) AS t(tag) WHERE lower(t.tag) = lower($%d))`,
			len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit, offset)
	fmt.Fprintf(&b, ` ORDER BY updated_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return b.String(), args
}
