package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
)

// CatalogStore reads list and resource content owned by the catalog.
// The execution engine never writes through it.
type CatalogStore interface {
	// GetList returns a list with its resource ids in display order.
	// Returns ErrListNotFound if the list does not exist or is not owned by ownerID.
	GetList(ctx context.Context, ownerID, listID uuid.UUID) (*domain.List, error)

	// GetResources returns the resources among ids owned by ownerID, keyed by id.
	// Missing ids are simply absent from the map.
	GetResources(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*domain.Resource, error)

	// WithTx returns a new CatalogStore instance that reads through the given transaction.
	WithTx(tx *sql.Tx) CatalogStore
}
