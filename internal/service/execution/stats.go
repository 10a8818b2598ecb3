package execution

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/redact"
	"github.com/phrazzld/drill-api/internal/store"
)

// absent maps a missing stats row to nil.
func absent[T any](row *T, err error) (*T, error) {
	if errors.Is(err, store.ErrStatsNotFound) {
		return nil, nil
	}
	return row, err
}

func (s *serviceImpl) bumpResourceStats(
	ctx context.Context,
	statsStore store.StatsStore,
	ownerID, resourceID uuid.UUID,
	outcome domain.Outcome,
	now time.Time,
) error {
	prev, err := absent(statsStore.GetResourceStatsForUpdate(ctx, ownerID, resourceID))
	if err != nil {
		return err
	}
	next, err := s.aggregator.BumpResource(prev, ownerID, resourceID, outcome, now)
	if err != nil {
		return err
	}
	return statsStore.UpsertResourceStats(ctx, next)
}

func (s *serviceImpl) bumpListStats(
	ctx context.Context,
	statsStore store.StatsStore,
	ownerID, listID uuid.UUID,
	c domain.Counters,
	now time.Time,
) error {
	prev, err := absent(statsStore.GetListStatsForUpdate(ctx, ownerID, listID))
	if err != nil {
		return err
	}
	next, err := s.aggregator.BumpList(prev, ownerID, listID, c.Correct, c.Incorrect, now)
	if err != nil {
		return err
	}
	return statsStore.UpsertListStats(ctx, next)
}

func (s *serviceImpl) bumpUserStats(
	ctx context.Context,
	statsStore store.StatsStore,
	ownerID uuid.UUID,
	c domain.Counters,
	now time.Time,
) error {
	prev, err := absent(statsStore.GetUserStatsForUpdate(ctx, ownerID))
	if err != nil {
		return err
	}
	next, err := s.aggregator.BumpUser(prev, ownerID, c.Correct, c.Incorrect, now)
	if err != nil {
		return err
	}
	return statsStore.UpsertUserStats(ctx, next)
}

// requireResource fails with store.ErrResourceNotFound unless ownerID owns resourceID.
func requireResource(ctx context.Context, catalog store.CatalogStore, ownerID, resourceID uuid.UUID) error {
	found, err := catalog.GetResources(ctx, ownerID, []uuid.UUID{resourceID})
	if err != nil {
		return err
	}
	if _, ok := found[resourceID]; !ok {
		return store.ErrResourceNotFound
	}
	return nil
}

// ToggleFavourite implements Service.ToggleFavourite
func (s *serviceImpl) ToggleFavourite(
	ctx context.Context,
	ownerID, resourceID uuid.UUID,
) (*domain.ResourceStats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var result *domain.ResourceStats
	err := s.runInTransaction(ctx, func(ctx context.Context, tx txStores) error {
		if err := requireResource(ctx, tx.catalog, ownerID, resourceID); err != nil {
			return err
		}
		if err := tx.executions.LockOwner(ctx, ownerID); err != nil {
			return err
		}
		prev, err := absent(tx.stats.GetResourceStatsForUpdate(ctx, ownerID, resourceID))
		if err != nil {
			return err
		}
		next, err := s.aggregator.ToggleFavourite(prev, ownerID, resourceID, s.now())
		if err != nil {
			return err
		}
		if err := tx.stats.UpsertResourceStats(ctx, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, store.ErrResourceNotFound) {
			level = slog.LevelDebug
		}
		log.LogAttrs(ctx, level, "failed to toggle favourite",
			redact.ErrorAttr(err),
			slog.String("resource_id", resourceID.String()))
		return nil, NewStatsError("failed to toggle favourite", err)
	}

	log.Debug("favourite toggled",
		slog.String("resource_id", resourceID.String()),
		slog.Bool("favourite", result.Favourite))
	return result, nil
}

// UserStats implements Service.UserStats
func (s *serviceImpl) UserStats(ctx context.Context, ownerID uuid.UUID) (*domain.UserStats, error) {
	row, err := absent(s.stats.GetUserStats(ctx, ownerID))
	if err != nil {
		return nil, NewStatsError("failed to get user stats", err)
	}
	if row == nil {
		row = &domain.UserStats{UserID: ownerID}
	}
	return row, nil
}

// ListStats implements Service.ListStats
func (s *serviceImpl) ListStats(ctx context.Context, ownerID, listID uuid.UUID) (*domain.ListStats, error) {
	if _, err := s.catalog.GetList(ctx, ownerID, listID); err != nil {
		return nil, NewStatsError("failed to get list stats", err)
	}
	row, err := absent(s.stats.GetListStats(ctx, ownerID, listID))
	if err != nil {
		return nil, NewStatsError("failed to get list stats", err)
	}
	if row == nil {
		row = &domain.ListStats{UserID: ownerID, ListID: listID}
	}
	return row, nil
}

// ResourceStats implements Service.ResourceStats
func (s *serviceImpl) ResourceStats(ctx context.Context, ownerID, resourceID uuid.UUID) (*domain.ResourceStats, error) {
	if err := requireResource(ctx, s.catalog, ownerID, resourceID); err != nil {
		return nil, NewStatsError("failed to get resource stats", err)
	}
	row, err := absent(s.stats.GetResourceStats(ctx, ownerID, resourceID))
	if err != nil {
		return nil, NewStatsError("failed to get resource stats", err)
	}
	if row == nil {
		row = &domain.ResourceStats{UserID: ownerID, ResourceID: resourceID}
	}
	return row, nil
}
