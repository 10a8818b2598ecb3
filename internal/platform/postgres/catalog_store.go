package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/redact"
	"github.com/phrazzld/drill-api/internal/store"
)

// PostgresCatalogStore implements the read-only store.CatalogStore interface
// over the lists, list_resources and resources tables.
type PostgresCatalogStore struct {
	db     *sqlx.DB
	q      sqlx.QueryerContext
	logger *slog.Logger
}

// NewPostgresCatalogStore wraps db for struct-mapped catalog reads.
// If logger is nil, a default logger will be used.
func NewPostgresCatalogStore(db *sql.DB, logger *slog.Logger) *PostgresCatalogStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	xdb := sqlx.NewDb(db, DriverName)
	return &PostgresCatalogStore{
		db:     xdb,
		q:      xdb,
		logger: logger.With(slog.String("component", "catalog_store")),
	}
}

// Ensure PostgresCatalogStore implements store.CatalogStore interface
var _ store.CatalogStore = (*PostgresCatalogStore)(nil)

// WithTx implements store.CatalogStore.WithTx
func (s *PostgresCatalogStore) WithTx(tx *sql.Tx) store.CatalogStore {
	return &PostgresCatalogStore{
		db:     s.db,
		q:      &sqlx.Tx{Tx: tx, Mapper: s.db.Mapper},
		logger: s.logger,
	}
}

type listRow struct {
	ID      uuid.UUID `db:"id"`
	OwnerID uuid.UUID `db:"owner_id"`
	Name    string    `db:"name"`
	Tags    []byte    `db:"tags"`
}

// GetList implements store.CatalogStore.GetList
func (s *PostgresCatalogStore) GetList(ctx context.Context, ownerID, listID uuid.UUID) (*domain.List, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var row listRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		SELECT id, owner_id, name, tags
		FROM lists
		WHERE id = $1 AND owner_id = $2
	`, listID, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("list not found", slog.String("list_id", listID.String()))
			return nil, store.ErrListNotFound
		}
		log.Error("failed to get list",
			redact.ErrorAttr(err),
			slog.String("list_id", listID.String()))
		return nil, wrapError("catalog", "get_list", err)
	}

	list := &domain.List{ID: row.ID, OwnerID: row.OwnerID, Name: row.Name}
	if err := json.Unmarshal(row.Tags, &list.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode list tags: %w", err)
	}

	if err := sqlx.SelectContext(ctx, s.q, &list.ResourceIDs, `
		SELECT resource_id
		FROM list_resources
		WHERE list_id = $1
		ORDER BY position, resource_id
	`, listID); err != nil {
		log.Error("failed to get list resources",
			redact.ErrorAttr(err),
			slog.String("list_id", listID.String()))
		return nil, wrapError("catalog", "get_list", err)
	}

	return list, nil
}

// GetResources implements store.CatalogStore.GetResources
func (s *PostgresCatalogStore) GetResources(
	ctx context.Context,
	ownerID uuid.UUID,
	ids []uuid.UUID,
) (map[uuid.UUID]*domain.Resource, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	out := make(map[uuid.UUID]*domain.Resource, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, owner_id, kind, primary_text, secondary_text,
			primary_audio, secondary_audio, created_at, updated_at
		FROM resources
		WHERE owner_id = ? AND id IN (?)
	`, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build resource query: %w", err)
	}

	var resources []domain.Resource
	if err := sqlx.SelectContext(ctx, s.q, &resources, s.db.Rebind(query), args...); err != nil {
		log.Error("failed to get resources",
			redact.ErrorAttr(err),
			slog.Int("requested", len(ids)))
		return nil, wrapError("catalog", "get_resources", err)
	}

	for i := range resources {
		out[resources[i].ID] = &resources[i]
	}

	log.Debug("resources loaded",
		slog.Int("requested", len(ids)),
		slog.Int("found", len(out)))
	return out, nil
}
