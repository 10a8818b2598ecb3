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

func newMockStatsStore(t *testing.T) (*PostgresStatsStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStatsStore(db, nil), mock
}

func TestStatsStoreGetMissingRows(t *testing.T) {
	ctx := context.Background()
	userID, otherID := uuid.New(), uuid.New()

	s, mock := newMockStatsStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM resource_stats")).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM list_stats")).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_stats")).WillReturnError(sql.ErrNoRows)

	_, err := s.GetResourceStats(ctx, userID, otherID)
	assert.ErrorIs(t, err, store.ErrStatsNotFound)
	_, err = s.GetListStats(ctx, userID, otherID)
	assert.ErrorIs(t, err, store.ErrStatsNotFound)
	_, err = s.GetUserStats(ctx, userID)
	assert.ErrorIs(t, err, store.ErrStatsNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsStoreGetResourceStatsForUpdate(t *testing.T) {
	s, mock := newMockStatsStore(t)
	userID, resourceID := uuid.New(), uuid.New()
	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND resource_id = $2 FOR UPDATE")).
		WithArgs(userID, resourceID).
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "resource_id", "executions", "correct", "incorrect",
			"last_executed_at", "last_outcome", "favourite", "created_at", "updated_at",
		}).AddRow(userID.String(), resourceID.String(), 3, 2, 1, now, "fail", true, now, now))

	stats, err := s.GetResourceStatsForUpdate(context.Background(), userID, resourceID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Executions)
	assert.True(t, stats.Favourite)
	require.NotNil(t, stats.LastOutcome)
	assert.Equal(t, domain.OutcomeFail, *stats.LastOutcome)
	require.NotNil(t, stats.LastExecutedAt)
	assert.True(t, now.Equal(*stats.LastExecutedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsStoreGetUserStatsWithoutHistory(t *testing.T) {
	s, mock := newMockStatsStore(t)
	userID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_stats")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "executions", "correct", "incorrect", "last_executed_at", "created_at", "updated_at",
		}).AddRow(userID.String(), 0, 0, 0, nil, now, now))

	stats, err := s.GetUserStats(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, stats.LastExecutedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsStoreUpserts(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	userID, listID, resourceID := uuid.New(), uuid.New(), uuid.New()

	t.Run("resource row", func(t *testing.T) {
		s, mock := newMockStatsStore(t)
		pass := domain.OutcomePass
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id, resource_id) DO UPDATE")).
			WithArgs(userID, resourceID, 1, 1, 0, sqlmock.AnyArg(), "pass", false, now, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.UpsertResourceStats(ctx, &domain.ResourceStats{
			UserID: userID, ResourceID: resourceID, Executions: 1, Correct: 1,
			LastExecutedAt: &now, LastOutcome: &pass, CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list row", func(t *testing.T) {
		s, mock := newMockStatsStore(t)
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id, list_id) DO UPDATE")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.UpsertListStats(ctx, &domain.ListStats{
			UserID: userID, ListID: listID, Executions: 2, Correct: 3, Incorrect: 1, CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("user row", func(t *testing.T) {
		s, mock := newMockStatsStore(t)
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id) DO UPDATE")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.UpsertUserStats(ctx, &domain.UserStats{UserID: userID, Executions: 1, CreatedAt: now, UpdatedAt: now})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid rows never reach the database", func(t *testing.T) {
		s, mock := newMockStatsStore(t)
		assert.ErrorIs(t, s.UpsertResourceStats(ctx, &domain.ResourceStats{UserID: userID}), domain.ErrEmptyStatsResourceID)
		assert.ErrorIs(t, s.UpsertListStats(ctx, &domain.ListStats{UserID: userID, ListID: listID, Correct: -1}),
			domain.ErrNegativeStats)
		assert.ErrorIs(t, s.UpsertUserStats(ctx, &domain.UserStats{}), domain.ErrEmptyStatsUserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
