package execution_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/domain/stats"
	"github.com/phrazzld/drill-api/internal/service/execution"
	"github.com/phrazzld/drill-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

// zeroRand always picks index 0, so a shuffle of [a b c] yields [b c a].
type zeroRand struct{}

func (zeroRand) IntN(int) int { return 0 }

type fixture struct {
	svc        execution.Service
	mock       sqlmock.Sqlmock
	executions *memoryExecutions
	stats      *memoryStats
	catalog    *memoryCatalog
	ownerID    uuid.UUID
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	f := &fixture{
		mock:       mock,
		executions: newMemoryExecutions(),
		stats:      newMemoryStats(),
		catalog:    newMemoryCatalog(),
		ownerID:    uuid.New(),
		now:        time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
	}

	f.svc, err = execution.NewService(db, f.executions, f.stats, f.catalog, stats.NewAggregator(),
		execution.Options{
			Rand: zeroRand{},
			Now: func() time.Time {
				f.now = f.now.Add(time.Second)
				return f.now
			},
		}, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return f
}

// commits expects n successful transactions.
func (f *fixture) commits(n int) {
	for i := 0; i < n; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
	}
}

func (f *fixture) rollsBack() {
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
}

func resourceIDs(view *execution.ExecutionView) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(view.Results))
	for _, r := range view.Results {
		ids = append(ids, r.ResourceID)
	}
	return ids
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = execution.NewService(nil, newMemoryExecutions(), newMemoryStats(), newMemoryCatalog(), nil, execution.Options{}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = execution.NewService(db, nil, newMemoryStats(), newMemoryCatalog(), nil, execution.Options{}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = execution.NewService(db, newMemoryExecutions(), nil, newMemoryCatalog(), nil, execution.Options{}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = execution.NewService(db, newMemoryExecutions(), newMemoryStats(), nil, nil, execution.Options{}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	bad := domain.ExecutionConfig{QuestionLanguage: "klingon"}
	_, err = execution.NewService(db, newMemoryExecutions(), newMemoryStats(), newMemoryCatalog(), nil,
		execution.Options{Defaults: &bad}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStartDeduplicatesInProgressListSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.catalog.addList(f.ownerID, "a", 2)
	b := f.catalog.addList(f.ownerID, "b", 1)

	f.commits(4)

	first, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStateUnconfigured, first.State)
	assert.Len(t, first.Results, 3)

	second, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{b.ID, a.ID})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same list set in any order resumes the session")

	_, err = f.svc.Finish(ctx, f.ownerID, first.ID, nil)
	require.NoError(t, err)

	third, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID, "a finished session is not resumed")
	assert.Equal(t, 4, f.executions.lockCalls, "every start and the finish take the owner lock")
}

func TestStartFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("no lists", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Start(ctx, f.ownerID, nil)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("list owned by someone else", func(t *testing.T) {
		f := newFixture(t)
		other := f.catalog.addList(uuid.New(), "theirs", 1)
		f.rollsBack()

		_, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{other.ID})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, err, store.ErrListNotFound)

		var svcErr *execution.ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, "start", svcErr.Operation)
		assert.Empty(t, f.executions.rows)
	})
}

func TestStartTemporaryNeverDeduplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r5 := f.catalog.addResource(f.ownerID)

	f.commits(2)

	first, err := f.svc.StartTemporary(ctx, f.ownerID, "Review", []string{}, []uuid.UUID{r5.ID})
	require.NoError(t, err)
	second, err := f.svc.StartTemporary(ctx, f.ownerID, "Review", []string{}, []uuid.UUID{r5.ID})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.IsTemporary())
	require.Len(t, first.Results, 1)
	assert.Nil(t, first.Results[0].ListID)
	require.NotNil(t, first.Results[0].Resource)
	assert.Equal(t, "hola", first.Results[0].Resource.SecondaryText)
}

func TestStartTemporaryRejectsUnknownResources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.StartTemporary(ctx, f.ownerID, "Review", nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.rollsBack()
	theirs := f.catalog.addResource(uuid.New())
	_, err = f.svc.StartTemporary(ctx, f.ownerID, "Review", nil, []uuid.UUID{theirs.ID})
	assert.ErrorIs(t, err, store.ErrResourceNotFound)
}

func TestExampleSessionOverOneList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 3)
	r1, r2, r3 := list.ResourceIDs[0], list.ResourceIDs[1], list.ResourceIDs[2]

	f.commits(6)

	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, e.Cursor)
	assert.Equal(t, []uuid.UUID{r1, r2, r3}, resourceIDs(e))

	noShuffle := false
	configured, err := f.svc.Configure(ctx, f.ownerID, e.ID, domain.ConfigPatch{Shuffle: &noShuffle}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStateRunning, configured.State)
	assert.Equal(t, []uuid.UUID{r1, r2, r3}, resourceIDs(configured))

	lid := list.ID
	answers := []execution.AnswerInput{
		{ResourceID: r1, ListID: &lid, Position: 0, Outcome: domain.OutcomePass},
		{ResourceID: r2, ListID: &lid, Position: 1, Outcome: domain.OutcomeFail},
		{ResourceID: r3, ListID: &lid, Position: 2, Outcome: domain.OutcomePass},
	}
	for _, answer := range answers {
		updated, err := f.svc.RecordAnswer(ctx, f.ownerID, e.ID, answer, nil)
		require.NoError(t, err)
		assert.Equal(t, answer.Position, updated.Cursor)
	}

	finished, err := f.svc.Finish(ctx, f.ownerID, e.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStateFinished, finished.State)
	assert.Equal(t, domain.Counters{Correct: 2, Incorrect: 1, Unanswered: 0}, finished.Counters)
	assert.Equal(t, 0, finished.Cursor)

	listStats, err := f.svc.ListStats(ctx, f.ownerID, list.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, listStats.Executions)
	assert.Equal(t, 2, listStats.Correct)
	assert.Equal(t, 1, listStats.Incorrect)

	userStats, err := f.svc.UserStats(ctx, f.ownerID)
	require.NoError(t, err)
	assert.Equal(t, 1, userStats.Executions)
	assert.Equal(t, 2, userStats.Correct)

	r2Stats, err := f.svc.ResourceStats(ctx, f.ownerID, r2)
	require.NoError(t, err)
	assert.Equal(t, 1, r2Stats.Executions)
	assert.Equal(t, 1, r2Stats.Incorrect)
	require.NotNil(t, r2Stats.LastOutcome)
	assert.Equal(t, domain.OutcomeFail, *r2Stats.LastOutcome)
}

func TestFinishCountersAreStableButStatsAreReapplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 2)
	lid := list.ID

	f.commits(4)

	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)
	_, err = f.svc.RecordAnswer(ctx, f.ownerID, e.ID,
		execution.AnswerInput{ResourceID: list.ResourceIDs[0], ListID: &lid, Position: 1, Outcome: domain.OutcomePass}, nil)
	require.NoError(t, err)

	once, err := f.svc.Finish(ctx, f.ownerID, e.ID, nil)
	require.NoError(t, err)
	twice, err := f.svc.Finish(ctx, f.ownerID, e.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, once.Counters, twice.Counters)
	assert.Equal(t, domain.Counters{Correct: 1, Unanswered: 1}, twice.Counters)
	assert.Equal(t, 2, twice.Counters.Total())

	listStats, err := f.svc.ListStats(ctx, f.ownerID, list.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, listStats.Executions)
	assert.Equal(t, 2, listStats.Correct)

	userStats, err := f.svc.UserStats(ctx, f.ownerID)
	require.NoError(t, err)
	assert.Equal(t, 2, userStats.Executions)
}

func TestRecordAnswerBumpsResourceStatsEveryTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 1)
	lid := list.ID
	r1 := list.ResourceIDs[0]

	f.commits(4)

	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)

	answer := execution.AnswerInput{ResourceID: r1, ListID: &lid, Position: 1, Outcome: domain.OutcomePass}
	_, err = f.svc.RecordAnswer(ctx, f.ownerID, e.ID, answer, nil)
	require.NoError(t, err)
	_, err = f.svc.RecordAnswer(ctx, f.ownerID, e.ID, answer, nil)
	require.NoError(t, err)

	answer.Outcome = domain.OutcomeUnanswered
	updated, err := f.svc.RecordAnswer(ctx, f.ownerID, e.ID, answer, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePass, updated.Results.Snapshot()[0].Outcome, "unanswered keeps the verdict")

	row, err := f.svc.ResourceStats(ctx, f.ownerID, r1)
	require.NoError(t, err)
	assert.Equal(t, 2, row.Executions, "re-answering counts again; unanswered does not")
	assert.Equal(t, 2, row.Correct)
}

func TestRecordAnswerUnknownEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 1)

	f.commits(1)
	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)

	f.rollsBack()
	_, err = f.svc.RecordAnswer(ctx, f.ownerID, e.ID,
		execution.AnswerInput{ResourceID: uuid.New(), Position: 0, Outcome: domain.OutcomePass}, nil)
	assert.ErrorIs(t, err, domain.ErrResultEntryNotFound)
	assert.Empty(t, f.stats.resources)
}

func TestStaleVersionIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 1)

	f.commits(2)
	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)
	seen := e.Version

	restarted, err := f.svc.Restart(ctx, f.ownerID, e.ID, &seen)
	require.NoError(t, err)
	assert.Equal(t, seen+1, restarted.Version)

	f.rollsBack()
	_, err = f.svc.Restart(ctx, f.ownerID, e.ID, &seen)
	assert.ErrorIs(t, err, domain.ErrStaleVersion)
	assert.ErrorIs(t, err, domain.ErrConflict)

	stored, err := f.svc.Get(ctx, f.ownerID, e.ID, execution.ViewOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stored.LoopCount, "rejected write left no trace")
}

func TestFinishedExecutionRejectsMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 1)
	lid := list.ID

	f.commits(2)
	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)
	_, err = f.svc.Finish(ctx, f.ownerID, e.ID, nil)
	require.NoError(t, err)

	f.rollsBack()
	_, err = f.svc.Configure(ctx, f.ownerID, e.ID, domain.ConfigPatch{}, nil)
	assert.ErrorIs(t, err, domain.ErrNotInProgress)

	f.rollsBack()
	_, err = f.svc.RecordAnswer(ctx, f.ownerID, e.ID,
		execution.AnswerInput{ResourceID: list.ResourceIDs[0], ListID: &lid, Outcome: domain.OutcomePass}, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)

	f.rollsBack()
	_, err = f.svc.Restart(ctx, f.ownerID, e.ID, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestOtherOwnersSeeNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 1)
	stranger := uuid.New()

	f.commits(1)
	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, stranger, e.ID, execution.ViewOptions{})
	assert.ErrorIs(t, err, store.ErrExecutionNotFound)

	f.rollsBack()
	_, err = f.svc.Finish(ctx, stranger, e.ID, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.ListStats(ctx, stranger, list.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConfigureShufflesOnlyOnFirstConfiguration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 3)
	r1, r2, r3 := list.ResourceIDs[0], list.ResourceIDs[1], list.ResourceIDs[2]
	shuffle := true

	f.commits(3)
	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)

	first, err := f.svc.Configure(ctx, f.ownerID, e.ID, domain.ConfigPatch{Shuffle: &shuffle}, nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{r2, r3, r1}, resourceIDs(first))
	assert.Equal(t, domain.QuestionLanguagePrimary, first.Config.QuestionLanguage)
	assert.Equal(t, 1, f.executions.saveCalls)

	second, err := f.svc.Configure(ctx, f.ownerID, e.ID, domain.ConfigPatch{Shuffle: &shuffle}, nil)
	require.NoError(t, err)
	assert.Equal(t, resourceIDs(first), resourceIDs(second))
	assert.Equal(t, 1, f.executions.saveCalls, "no further reorder was persisted")
	for i, r := range second.Results {
		assert.Equal(t, i, r.Position)
	}
}

func TestConfigureValidationRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 1)

	f.commits(1)
	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)

	f.rollsBack()
	lang := domain.QuestionLanguage("klingon")
	_, err = f.svc.Configure(ctx, f.ownerID, e.ID, domain.ConfigPatch{QuestionLanguage: &lang}, nil)

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "question_language", validationErr.Field)
}

func TestRestartKeepsOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 2)
	lid := list.ID

	f.commits(4)
	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)
	_, err = f.svc.RecordAnswer(ctx, f.ownerID, e.ID,
		execution.AnswerInput{ResourceID: list.ResourceIDs[1], ListID: &lid, Position: 2, Outcome: domain.OutcomeFail}, nil)
	require.NoError(t, err)

	for loop := 1; loop <= 2; loop++ {
		restarted, err := f.svc.Restart(ctx, f.ownerID, e.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, restarted.Cursor)
		assert.Equal(t, loop, restarted.LoopCount)
		assert.Equal(t, domain.OutcomeFail, restarted.Results[1].Outcome)
	}
}

func TestGetReviewModeFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 3)
	lid := list.ID

	f.commits(2)
	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)
	_, err = f.svc.RecordAnswer(ctx, f.ownerID, e.ID,
		execution.AnswerInput{ResourceID: list.ResourceIDs[2], ListID: &lid, Position: 3, Outcome: domain.OutcomeFail}, nil)
	require.NoError(t, err)

	fail := domain.OutcomeFail
	view, err := f.svc.Get(ctx, f.ownerID, e.ID, execution.ViewOptions{Outcome: &fail})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{list.ResourceIDs[2]}, resourceIDs(view))

	bogus := domain.Outcome("maybe")
	_, err = f.svc.Get(ctx, f.ownerID, e.ID, execution.ViewOptions{Outcome: &bogus})
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)
}

func TestTemporaryFinishOnlyTouchesUserStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.catalog.addResource(f.ownerID)

	f.commits(3)
	e, err := f.svc.StartTemporary(ctx, f.ownerID, "Adhoc", nil, []uuid.UUID{r.ID})
	require.NoError(t, err)
	_, err = f.svc.RecordAnswer(ctx, f.ownerID, e.ID,
		execution.AnswerInput{ResourceID: r.ID, Position: 1, Outcome: domain.OutcomePass}, nil)
	require.NoError(t, err)
	_, err = f.svc.Finish(ctx, f.ownerID, e.ID, nil)
	require.NoError(t, err)

	assert.Empty(t, f.stats.lists)
	assert.Equal(t, 1, f.stats.users[f.ownerID].Correct)
}

func TestToggleFavouriteAndStatsDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.catalog.addResource(f.ownerID)

	fresh, err := f.svc.ResourceStats(ctx, f.ownerID, r.ID)
	require.NoError(t, err)
	assert.Zero(t, fresh.Executions)
	assert.False(t, fresh.Favourite)

	user, err := f.svc.UserStats(ctx, f.ownerID)
	require.NoError(t, err)
	assert.Equal(t, f.ownerID, user.UserID)
	assert.Zero(t, user.Executions)

	f.commits(2)
	on, err := f.svc.ToggleFavourite(ctx, f.ownerID, r.ID)
	require.NoError(t, err)
	assert.True(t, on.Favourite)
	off, err := f.svc.ToggleFavourite(ctx, f.ownerID, r.ID)
	require.NoError(t, err)
	assert.False(t, off.Favourite)

	f.rollsBack()
	_, err = f.svc.ToggleFavourite(ctx, uuid.New(), r.ID)
	assert.ErrorIs(t, err, store.ErrResourceNotFound)
}

func TestStoreFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 1)

	f.commits(1)
	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)

	boom := errors.New("connection reset")
	f.executions.updateErr = boom
	f.rollsBack()

	_, err = f.svc.Restart(ctx, f.ownerID, e.ID, nil)
	assert.ErrorIs(t, err, boom)
	var svcErr *execution.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "restart", svcErr.Operation)
}

func TestListPassesFilterThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 1)

	f.commits(2)
	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)
	_, err = f.svc.Finish(ctx, f.ownerID, e.ID, nil)
	require.NoError(t, err)

	inProgress := true
	running, err := f.svc.List(ctx, f.ownerID, store.ExecutionFilter{InProgress: &inProgress})
	require.NoError(t, err)
	assert.Empty(t, running)

	all, err := f.svc.List(ctx, f.ownerID, store.ExecutionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMutationsReadCatalogInsideTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 2)
	r := f.catalog.addResource(f.ownerID)

	f.commits(7)
	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)
	_, err = f.svc.StartTemporary(ctx, f.ownerID, "Adhoc", nil, []uuid.UUID{r.ID})
	require.NoError(t, err)
	_, err = f.svc.Configure(ctx, f.ownerID, e.ID, domain.ConfigPatch{}, nil)
	require.NoError(t, err)
	_, err = f.svc.Restart(ctx, f.ownerID, e.ID, nil)
	require.NoError(t, err)
	view, err := f.svc.Finish(ctx, f.ownerID, e.ID, nil)
	require.NoError(t, err)
	require.Len(t, view.Results, 2)
	assert.NotNil(t, view.Results[0].Resource)
	_, err = f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)
	_, err = f.svc.ToggleFavourite(ctx, f.ownerID, r.ID)
	require.NoError(t, err)

	assert.Zero(t, f.catalog.reads.outsideTx)
}

func TestFinishRollsBackWhenViewCannotLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 1)

	f.commits(1)
	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)

	boom := errors.New("catalog unavailable")
	f.catalog.reads.resourcesErr = boom
	f.rollsBack()

	_, err = f.svc.Finish(ctx, f.ownerID, e.ID, nil)
	assert.ErrorIs(t, err, boom)
	var svcErr *execution.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "finish", svcErr.Operation)
}

func TestStatsWritersTakeOwnerLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list := f.catalog.addList(f.ownerID, "L", 2)

	f.commits(4)
	e, err := f.svc.Start(ctx, f.ownerID, []uuid.UUID{list.ID})
	require.NoError(t, err)
	require.Equal(t, 1, f.executions.lockCalls)

	_, err = f.svc.RecordAnswer(ctx, f.ownerID, e.ID,
		execution.AnswerInput{ResourceID: list.ResourceIDs[0], ListID: &list.ID, Position: 1, Outcome: domain.OutcomeUnanswered}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.executions.lockCalls, "unanswered writes no stats")

	_, err = f.svc.RecordAnswer(ctx, f.ownerID, e.ID,
		execution.AnswerInput{ResourceID: list.ResourceIDs[0], ListID: &list.ID, Position: 1, Outcome: domain.OutcomePass}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.executions.lockCalls)

	_, err = f.svc.ToggleFavourite(ctx, f.ownerID, list.ResourceIDs[1])
	require.NoError(t, err)
	assert.Equal(t, 3, f.executions.lockCalls)
}
