package execution

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/domain/stats"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/redact"
	"github.com/phrazzld/drill-api/internal/store"
)

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

// Options tunes the service. Zero values select the defaults.
type Options struct {
	// Defaults is the configuration underneath an execution's first patch.
	Defaults *domain.ExecutionConfig
	// Rand drives shuffles.
	Rand domain.IntN
	// Now is the clock.
	Now func() time.Time
}

type serviceImpl struct {
	db         *sql.DB
	executions store.ExecutionStore
	stats      store.StatsStore
	catalog    store.CatalogStore
	aggregator stats.Aggregator
	defaults   domain.ExecutionConfig
	rng        domain.IntN
	now        func() time.Time
	logger     *slog.Logger
}

// NewService creates the execution Service.
// It returns an error if any of the required dependencies are nil.
func NewService(
	db *sql.DB,
	executions store.ExecutionStore,
	statsStore store.StatsStore,
	catalog store.CatalogStore,
	aggregator stats.Aggregator,
	opts Options,
	logger *slog.Logger,
) (Service, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if executions == nil {
		return nil, domain.NewValidationError("executions", "cannot be nil", domain.ErrValidation)
	}
	if statsStore == nil {
		return nil, domain.NewValidationError("stats", "cannot be nil", domain.ErrValidation)
	}
	if catalog == nil {
		return nil, domain.NewValidationError("catalog", "cannot be nil", domain.ErrValidation)
	}
	if aggregator == nil {
		aggregator = stats.NewAggregator()
	}

	defaults := domain.DefaultExecutionConfig()
	if opts.Defaults != nil {
		if err := opts.Defaults.Validate(); err != nil {
			return nil, err
		}
		defaults = *opts.Defaults
	}
	rng := opts.Rand
	if rng == nil {
		rng = NewRand(0)
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &serviceImpl{
		db:         db,
		executions: executions,
		stats:      statsStore,
		catalog:    catalog,
		aggregator: aggregator,
		defaults:   defaults,
		rng:        rng,
		now:        now,
		logger:     logger.With(slog.String("component", "execution_service")),
	}, nil
}

// txStores are the stores bound to one transaction.
type txStores struct {
	executions store.ExecutionStore
	stats      store.StatsStore
	catalog    store.CatalogStore
}

func (s *serviceImpl) runInTransaction(ctx context.Context, fn func(ctx context.Context, tx txStores) error) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, txStores{
			executions: s.executions.WithTx(tx),
			stats:      s.stats.WithTx(tx),
			catalog:    s.catalog.WithTx(tx),
		})
	})
}

// Start implements Service.Start
func (s *serviceImpl) Start(ctx context.Context, ownerID uuid.UUID, listIDs []uuid.UUID) (*ExecutionView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	key := domain.ListKey(listIDs)
	if key == "" {
		return nil, NewStartError("no lists selected",
			domain.NewValidationError("list_ids", "must not be empty", domain.ErrNoExecutionSources))
	}

	var view *ExecutionView
	err := s.runInTransaction(ctx, func(ctx context.Context, tx txStores) error {
		if err := tx.executions.LockOwner(ctx, ownerID); err != nil {
			return err
		}

		existing, err := tx.executions.FindInProgressByListKey(ctx, ownerID, key)
		switch {
		case err == nil:
			log.Debug("resuming in-progress execution",
				slog.String("execution_id", existing.ID.String()),
				slog.String("owner_id", ownerID.String()))
			view, err = s.view(ctx, tx.catalog, existing, ViewOptions{})
			return err
		case !errors.Is(err, store.ErrExecutionNotFound):
			return err
		}

		lists := make([]*domain.List, 0, len(listIDs))
		for _, id := range listIDs {
			list, err := tx.catalog.GetList(ctx, ownerID, id)
			if err != nil {
				return err
			}
			lists = append(lists, list)
		}

		created, err := domain.NewExecution(ownerID, lists, s.now())
		if err != nil {
			return err
		}
		if err := tx.executions.Create(ctx, created); err != nil {
			return err
		}
		view, err = s.view(ctx, tx.catalog, created, ViewOptions{})
		return err
	})
	if err != nil {
		log.Error("failed to start execution",
			redact.ErrorAttr(err),
			slog.String("owner_id", ownerID.String()),
			slog.Int("list_count", len(listIDs)))
		return nil, NewStartError("failed to start execution", err)
	}

	log.Info("execution started",
		slog.String("execution_id", view.ID.String()),
		slog.String("owner_id", ownerID.String()),
		slog.Int("result_count", len(view.Results)))
	return view, nil
}

// StartTemporary implements Service.StartTemporary
func (s *serviceImpl) StartTemporary(
	ctx context.Context,
	ownerID uuid.UUID,
	name string,
	tags []string,
	resourceIDs []uuid.UUID,
) (*ExecutionView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	execution, err := domain.NewTemporaryExecution(ownerID, name, tags, resourceIDs, s.now())
	if err != nil {
		return nil, NewStartError("invalid temporary execution", err)
	}

	var view *ExecutionView
	err = s.runInTransaction(ctx, func(ctx context.Context, tx txStores) error {
		ids := make([]uuid.UUID, 0, execution.Results.Len())
		for _, entry := range execution.Results.Snapshot() {
			ids = append(ids, entry.ResourceID)
		}
		found, err := tx.catalog.GetResources(ctx, ownerID, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				log.Debug("resource not found for temporary execution", slog.String("resource_id", id.String()))
				return store.ErrResourceNotFound
			}
		}
		if err := tx.executions.Create(ctx, execution); err != nil {
			return err
		}
		view = join(execution, found, ViewOptions{})
		return nil
	})
	if err != nil {
		log.Error("failed to start temporary execution",
			redact.ErrorAttr(err),
			slog.String("owner_id", ownerID.String()))
		return nil, NewStartError("failed to start temporary execution", err)
	}

	log.Info("temporary execution started",
		slog.String("execution_id", execution.ID.String()),
		slog.String("owner_id", ownerID.String()),
		slog.Int("result_count", execution.Results.Len()))
	return view, nil
}

// Get implements Service.Get
func (s *serviceImpl) Get(
	ctx context.Context,
	ownerID, executionID uuid.UUID,
	opts ViewOptions,
) (*ExecutionView, error) {
	if opts.Outcome != nil {
		if err := opts.Outcome.Validate(); err != nil {
			return nil, NewGetError("invalid outcome filter", err)
		}
	}

	execution, err := s.executions.Get(ctx, ownerID, executionID)
	if err != nil {
		return nil, NewGetError("failed to get execution", err)
	}
	view, err := s.view(ctx, s.catalog, execution, opts)
	if err != nil {
		return nil, NewGetError("failed to load resources", err)
	}
	return view, nil
}

// List implements Service.List
func (s *serviceImpl) List(
	ctx context.Context,
	ownerID uuid.UUID,
	filter store.ExecutionFilter,
) ([]*domain.Execution, error) {
	executions, err := s.executions.List(ctx, ownerID, filter)
	if err != nil {
		return nil, NewGetError("failed to list executions", err)
	}
	return executions, nil
}

// mutation is one state transition of a stored execution.
type mutation struct {
	ownerID         uuid.UUID
	executionID     uuid.UUID
	expectedVersion *int64
	// writesStats takes the owner lock before the row lock, so stats writers
	// for one user serialise even while their stats rows do not exist yet.
	writesStats bool
	apply       func(ctx context.Context, tx txStores, execution *domain.Execution) error
}

// run loads the execution with a row lock, checks the caller's version,
// applies the transition and persists the execution row.
func (m mutation) run(ctx context.Context, tx txStores) (*domain.Execution, error) {
	if m.writesStats {
		if err := tx.executions.LockOwner(ctx, m.ownerID); err != nil {
			return nil, err
		}
	}
	e, err := tx.executions.GetForUpdate(ctx, m.ownerID, m.executionID)
	if err != nil {
		return nil, err
	}
	if err := e.CheckVersion(m.expectedVersion); err != nil {
		return nil, err
	}
	if err := m.apply(ctx, tx, e); err != nil {
		return nil, err
	}
	if err := tx.executions.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// mutate runs m in its own transaction.
func (s *serviceImpl) mutate(ctx context.Context, m mutation) (*domain.Execution, error) {
	var execution *domain.Execution
	err := s.runInTransaction(ctx, func(ctx context.Context, tx txStores) error {
		var err error
		execution, err = m.run(ctx, tx)
		return err
	})
	return execution, err
}

// mutateView runs m and builds the resulting view before the transaction commits.
func (s *serviceImpl) mutateView(ctx context.Context, m mutation) (*ExecutionView, error) {
	var view *ExecutionView
	err := s.runInTransaction(ctx, func(ctx context.Context, tx txStores) error {
		execution, err := m.run(ctx, tx)
		if err != nil {
			return err
		}
		view, err = s.view(ctx, tx.catalog, execution, ViewOptions{})
		return err
	})
	return view, err
}

// Configure implements Service.Configure
func (s *serviceImpl) Configure(
	ctx context.Context,
	ownerID, executionID uuid.UUID,
	patch domain.ConfigPatch,
	expectedVersion *int64,
) (*ExecutionView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	view, err := s.mutateView(ctx, mutation{
		ownerID:         ownerID,
		executionID:     executionID,
		expectedVersion: expectedVersion,
		apply: func(ctx context.Context, tx txStores, e *domain.Execution) error {
			shuffled, err := e.Configure(patch, s.defaults, s.rng, s.now())
			if err != nil {
				return err
			}
			if shuffled {
				log.Debug("result order shuffled", slog.String("execution_id", e.ID.String()))
				return tx.executions.SaveResults(ctx, e.ID, e.Results.Snapshot())
			}
			return nil
		},
	})
	if err != nil {
		log.Warn("failed to configure execution",
			redact.ErrorAttr(err),
			slog.String("execution_id", executionID.String()))
		return nil, NewConfigureError("failed to configure execution", err)
	}
	return view, nil
}

// RecordAnswer implements Service.RecordAnswer
func (s *serviceImpl) RecordAnswer(
	ctx context.Context,
	ownerID, executionID uuid.UUID,
	answer AnswerInput,
	expectedVersion *int64,
) (*domain.Execution, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	execution, err := s.mutate(ctx, mutation{
		ownerID:         ownerID,
		executionID:     executionID,
		expectedVersion: expectedVersion,
		writesStats:     answer.Outcome.Answered(),
		apply: func(ctx context.Context, tx txStores, e *domain.Execution) error {
			now := s.now()
			entry, err := e.RecordAnswer(answer.ResourceID, answer.ListID, answer.Position, answer.Outcome, now)
			if err != nil {
				return err
			}
			if err := tx.executions.SaveResults(ctx, e.ID, []domain.ResultEntry{entry}); err != nil {
				return err
			}
			if !answer.Outcome.Answered() {
				return nil
			}
			return s.bumpResourceStats(ctx, tx.stats, ownerID, answer.ResourceID, answer.Outcome, now)
		},
	})
	if err != nil {
		log.Warn("failed to record answer",
			redact.ErrorAttr(err),
			slog.String("execution_id", executionID.String()),
			slog.String("resource_id", answer.ResourceID.String()))
		return nil, NewRecordAnswerError("failed to record answer", err)
	}

	log.Debug("answer recorded",
		slog.String("execution_id", executionID.String()),
		slog.String("resource_id", answer.ResourceID.String()),
		slog.String("outcome", string(answer.Outcome)),
		slog.Int("cursor", execution.Cursor))
	return execution, nil
}

// Restart implements Service.Restart
func (s *serviceImpl) Restart(
	ctx context.Context,
	ownerID, executionID uuid.UUID,
	expectedVersion *int64,
) (*ExecutionView, error) {
	view, err := s.mutateView(ctx, mutation{
		ownerID:         ownerID,
		executionID:     executionID,
		expectedVersion: expectedVersion,
		apply: func(ctx context.Context, tx txStores, e *domain.Execution) error {
			return e.Restart(s.now())
		},
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to restart execution",
			redact.ErrorAttr(err),
			slog.String("execution_id", executionID.String()))
		return nil, NewRestartError("failed to restart execution", err)
	}
	return view, nil
}

// Finish implements Service.Finish
func (s *serviceImpl) Finish(
	ctx context.Context,
	ownerID, executionID uuid.UUID,
	expectedVersion *int64,
) (*ExecutionView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	view, err := s.mutateView(ctx, mutation{
		ownerID:         ownerID,
		executionID:     executionID,
		expectedVersion: expectedVersion,
		writesStats:     true,
		apply: func(ctx context.Context, tx txStores, e *domain.Execution) error {
			now := s.now()
			breakdown := e.Finish(now)

			// ad-hoc entries only count towards the user totals
			for _, listID := range e.ListIDs {
				c := breakdown.PerList[listID]
				if err := s.bumpListStats(ctx, tx.stats, ownerID, listID, c, now); err != nil {
					return err
				}
			}
			return s.bumpUserStats(ctx, tx.stats, ownerID, breakdown.Total, now)
		},
	})
	if err != nil {
		log.Warn("failed to finish execution",
			redact.ErrorAttr(err),
			slog.String("execution_id", executionID.String()))
		return nil, NewFinishError("failed to finish execution", err)
	}

	log.Info("execution finished",
		slog.String("execution_id", view.ID.String()),
		slog.Int("correct", view.Counters.Correct),
		slog.Int("incorrect", view.Counters.Incorrect),
		slog.Int("unanswered", view.Counters.Unanswered))
	return view, nil
}

// view joins the execution's results with their resource content read through catalog.
func (s *serviceImpl) view(
	ctx context.Context,
	catalog store.CatalogStore,
	execution *domain.Execution,
	opts ViewOptions,
) (*ExecutionView, error) {
	entries := selectEntries(execution, opts)

	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ResourceID)
	}
	resources, err := catalog.GetResources(ctx, execution.OwnerID, ids)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load resources for execution",
			redact.ErrorAttr(err),
			slog.String("execution_id", execution.ID.String()))
		return nil, err
	}
	return join(execution, resources, opts), nil
}

func selectEntries(execution *domain.Execution, opts ViewOptions) []domain.ResultEntry {
	if opts.Outcome != nil {
		return execution.Results.Filter(*opts.Outcome)
	}
	return execution.Results.Snapshot()
}

// join pairs each selected result entry with its resource.
func join(execution *domain.Execution, resources map[uuid.UUID]*domain.Resource, opts ViewOptions) *ExecutionView {
	entries := selectEntries(execution, opts)
	results := make([]ResultView, 0, len(entries))
	for _, entry := range entries {
		results = append(results, ResultView{ResultEntry: entry, Resource: resources[entry.ResourceID]})
	}

	return &ExecutionView{
		Execution: execution,
		State:     execution.State(),
		Results:   results,
	}
}
