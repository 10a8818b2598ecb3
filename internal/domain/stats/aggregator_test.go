package stats

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBumpResource(t *testing.T) {
	t.Parallel()
	agg := NewAggregator()
	user, resource := uuid.New(), uuid.New()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	first, err := agg.BumpResource(nil, user, resource, domain.OutcomePass, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Executions)
	assert.Equal(t, 1, first.Correct)
	assert.Equal(t, 0, first.Incorrect)
	assert.Equal(t, domain.OutcomePass, *first.LastOutcome)
	assert.Equal(t, t0, *first.LastExecutedAt)
	assert.Equal(t, t0, first.CreatedAt)

	second, err := agg.BumpResource(first, user, resource, domain.OutcomeFail, t1)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Executions)
	assert.Equal(t, 1, second.Correct)
	assert.Equal(t, 1, second.Incorrect)
	assert.Equal(t, domain.OutcomeFail, *second.LastOutcome)
	assert.Equal(t, t1, *second.LastExecutedAt)
	assert.Equal(t, t0, second.CreatedAt)

	assert.Equal(t, 1, first.Executions, "previous row must not be mutated")
	assert.Equal(t, domain.OutcomePass, *first.LastOutcome)

	_, err = agg.BumpResource(first, user, resource, domain.OutcomeUnanswered, t1)
	assert.ErrorIs(t, err, ErrUnansweredBump)
	_, err = agg.BumpResource(first, uuid.New(), resource, domain.OutcomePass, t1)
	assert.ErrorIs(t, err, ErrMismatchedOwner)
}

func TestBumpListAndUser(t *testing.T) {
	t.Parallel()
	agg := NewAggregator()
	user, list := uuid.New(), uuid.New()
	now := time.Now().UTC()

	tests := []struct {
		name      string
		correct   int
		incorrect int
		wantErr   error
	}{
		{"zero deltas still count an execution", 0, 0, nil},
		{"positive deltas", 2, 1, nil},
		{"negative correct", -1, 0, ErrNegativeDelta},
		{"negative incorrect", 0, -1, ErrNegativeDelta},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prevList := &domain.ListStats{UserID: user, ListID: list, Executions: 3, Correct: 5, Incorrect: 4}
			prevUser := &domain.UserStats{UserID: user, Executions: 7, Correct: 10, Incorrect: 2}

			ls, err := agg.BumpList(prevList, user, list, tc.correct, tc.incorrect, now)
			us, uerr := agg.BumpUser(prevUser, user, tc.correct, tc.incorrect, now)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.ErrorIs(t, uerr, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, uerr)

			assert.Equal(t, 4, ls.Executions)
			assert.Equal(t, 5+tc.correct, ls.Correct)
			assert.Equal(t, 4+tc.incorrect, ls.Incorrect)
			assert.Equal(t, now, *ls.LastExecutedAt)

			assert.Equal(t, 8, us.Executions)
			assert.Equal(t, 10+tc.correct, us.Correct)
			assert.Equal(t, 2+tc.incorrect, us.Incorrect)
			assert.Equal(t, 3, prevList.Executions)
		})
	}

	first, err := agg.BumpList(nil, user, list, 1, 1, now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Executions)

	u, err := agg.BumpUser(nil, user, 0, 2, now)
	require.NoError(t, err)
	assert.Equal(t, 1, u.Executions)
	assert.Equal(t, 2, u.Incorrect)
}

func TestToggleFavourite(t *testing.T) {
	t.Parallel()
	agg := NewAggregator()
	user, resource := uuid.New(), uuid.New()

	on, err := agg.ToggleFavourite(nil, user, resource, time.Now())
	require.NoError(t, err)
	assert.True(t, on.Favourite)
	assert.Equal(t, 0, on.Executions)

	off, err := agg.ToggleFavourite(on, user, resource, time.Now())
	require.NoError(t, err)
	assert.False(t, off.Favourite)
	assert.True(t, on.Favourite)
}
