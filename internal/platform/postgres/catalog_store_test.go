package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockCatalogStore(t *testing.T) (*PostgresCatalogStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresCatalogStore(db, nil), mock
}

func TestCatalogStoreGetList(t *testing.T) {
	ctx := context.Background()
	ownerID, listID := uuid.New(), uuid.New()

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockCatalogStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM lists")).
			WithArgs(listID, ownerID).
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetList(ctx, ownerID, listID)
		assert.ErrorIs(t, err, store.ErrListNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("resources in display order", func(t *testing.T) {
		s, mock := newMockCatalogStore(t)
		first, second := uuid.New(), uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta("FROM lists")).
			WithArgs(listID, ownerID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "tags"}).
				AddRow(listID.String(), ownerID.String(), "Kitchen", []byte(`["home","food"]`)))
		mock.ExpectQuery(regexp.QuoteMeta("FROM list_resources")).
			WithArgs(listID).
			WillReturnRows(sqlmock.NewRows([]string{"resource_id"}).
				AddRow(second.String()).
				AddRow(first.String()))

		list, err := s.GetList(ctx, ownerID, listID)
		require.NoError(t, err)
		assert.Equal(t, "Kitchen", list.Name)
		assert.Equal(t, []string{"home", "food"}, list.Tags)
		assert.Equal(t, []uuid.UUID{second, first}, list.ResourceIDs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCatalogStoreGetResources(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("no ids", func(t *testing.T) {
		s, mock := newMockCatalogStore(t)
		resources, err := s.GetResources(ctx, ownerID, nil)
		require.NoError(t, err)
		assert.Empty(t, resources)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing ids are absent", func(t *testing.T) {
		s, mock := newMockCatalogStore(t)
		found, missing := uuid.New(), uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery(regexp.QuoteMeta("WHERE owner_id = $1 AND id IN ($2, $3)")).
			WithArgs(ownerID, found, missing).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "owner_id", "kind", "primary_text", "secondary_text",
				"primary_audio", "secondary_audio", "created_at", "updated_at",
			}).AddRow(found.String(), ownerID.String(), "phrase", "Good morning", "Bonjour", nil, nil, now, now))

		resources, err := s.GetResources(ctx, ownerID, []uuid.UUID{found, missing})
		require.NoError(t, err)
		require.Len(t, resources, 1)
		assert.Equal(t, domain.ResourceKindPhrase, resources[found].Kind)
		assert.Equal(t, "Bonjour", resources[found].SecondaryText)
		assert.NotContains(t, resources, missing)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCatalogStoreWithTxReadsOnTransactionConnection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	ownerID, listID, resourceID := uuid.New(), uuid.New(), uuid.New()
	s := NewPostgresCatalogStore(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM lists")).
		WithArgs(listID, ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "tags"}).
			AddRow(listID.String(), ownerID.String(), "Kitchen", []byte(`[]`)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM list_resources")).
		WithArgs(listID).
		WillReturnRows(sqlmock.NewRows([]string{"resource_id"}).AddRow(resourceID.String()))
	mock.ExpectCommit()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// the only pooled connection is held by tx
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	list, err := s.WithTx(tx).GetList(ctx, ownerID, listID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{resourceID}, list.ResourceIDs)

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
