package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/api/middleware"
	"github.com/phrazzld/drill-api/internal/api/shared"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/service/execution"
	"github.com/phrazzld/drill-api/internal/store"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	mock.Mock
}

var _ execution.Service = (*mockService)(nil)

func (m *mockService) view(args mock.Arguments) (*execution.ExecutionView, error) {
	var v *execution.ExecutionView
	if arg := args.Get(0); arg != nil {
		v = arg.(*execution.ExecutionView)
	}
	return v, args.Error(1)
}

func (m *mockService) Start(ctx context.Context, ownerID uuid.UUID, listIDs []uuid.UUID) (*execution.ExecutionView, error) {
	return m.view(m.Called(ctx, ownerID, listIDs))
}

func (m *mockService) StartTemporary(
	ctx context.Context,
	ownerID uuid.UUID,
	name string,
	tags []string,
	resourceIDs []uuid.UUID,
) (*execution.ExecutionView, error) {
	return m.view(m.Called(ctx, ownerID, name, tags, resourceIDs))
}

func (m *mockService) Get(
	ctx context.Context,
	ownerID, executionID uuid.UUID,
	opts execution.ViewOptions,
) (*execution.ExecutionView, error) {
	return m.view(m.Called(ctx, ownerID, executionID, opts))
}

func (m *mockService) List(
	ctx context.Context,
	ownerID uuid.UUID,
	filter store.ExecutionFilter,
) ([]*domain.Execution, error) {
	args := m.Called(ctx, ownerID, filter)
	var out []*domain.Execution
	if arg := args.Get(0); arg != nil {
		out = arg.([]*domain.Execution)
	}
	return out, args.Error(1)
}

func (m *mockService) Configure(
	ctx context.Context,
	ownerID, executionID uuid.UUID,
	patch domain.ConfigPatch,
	expectedVersion *int64,
) (*execution.ExecutionView, error) {
	return m.view(m.Called(ctx, ownerID, executionID, patch, expectedVersion))
}

func (m *mockService) RecordAnswer(
	ctx context.Context,
	ownerID, executionID uuid.UUID,
	answer execution.AnswerInput,
	expectedVersion *int64,
) (*domain.Execution, error) {
	args := m.Called(ctx, ownerID, executionID, answer, expectedVersion)
	var e *domain.Execution
	if arg := args.Get(0); arg != nil {
		e = arg.(*domain.Execution)
	}
	return e, args.Error(1)
}

func (m *mockService) Restart(
	ctx context.Context,
	ownerID, executionID uuid.UUID,
	expectedVersion *int64,
) (*execution.ExecutionView, error) {
	return m.view(m.Called(ctx, ownerID, executionID, expectedVersion))
}

func (m *mockService) Finish(
	ctx context.Context,
	ownerID, executionID uuid.UUID,
	expectedVersion *int64,
) (*execution.ExecutionView, error) {
	return m.view(m.Called(ctx, ownerID, executionID, expectedVersion))
}

func (m *mockService) ToggleFavourite(ctx context.Context, ownerID, resourceID uuid.UUID) (*domain.ResourceStats, error) {
	args := m.Called(ctx, ownerID, resourceID)
	var s *domain.ResourceStats
	if arg := args.Get(0); arg != nil {
		s = arg.(*domain.ResourceStats)
	}
	return s, args.Error(1)
}

func (m *mockService) UserStats(ctx context.Context, ownerID uuid.UUID) (*domain.UserStats, error) {
	args := m.Called(ctx, ownerID)
	var s *domain.UserStats
	if arg := args.Get(0); arg != nil {
		s = arg.(*domain.UserStats)
	}
	return s, args.Error(1)
}

func (m *mockService) ListStats(ctx context.Context, ownerID, listID uuid.UUID) (*domain.ListStats, error) {
	args := m.Called(ctx, ownerID, listID)
	var s *domain.ListStats
	if arg := args.Get(0); arg != nil {
		s = arg.(*domain.ListStats)
	}
	return s, args.Error(1)
}

func (m *mockService) ResourceStats(ctx context.Context, ownerID, resourceID uuid.UUID) (*domain.ResourceStats, error) {
	args := m.Called(ctx, ownerID, resourceID)
	var s *domain.ResourceStats
	if arg := args.Get(0); arg != nil {
		s = arg.(*domain.ResourceStats)
	}
	return s, args.Error(1)
}

// harness serves the api routes with a fixed authenticated owner.
type harness struct {
	t       *testing.T
	svc     *mockService
	ownerID uuid.UUID
	router  http.Handler
	logs    *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		svc:     new(mockService),
		ownerID: uuid.New(),
		logs:    new(bytes.Buffer),
	}
	log := slog.New(slog.NewJSONHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := chi.NewRouter()
	r.Use(middleware.NewTraceMiddleware(log))
	r.Route("/api", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := context.WithValue(req.Context(), shared.UserIDContextKey, h.ownerID)
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		RegisterRoutes(r, NewExecutionHandler(h.svc, log), NewStatsHandler(h.svc, log))
	})
	h.router = r

	t.Cleanup(func() { h.svc.AssertExpectations(t) })
	return h
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

var fixedTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// sampleView builds a two-entry execution view over one list.
func sampleView(ownerID uuid.UUID) *execution.ExecutionView {
	listID := uuid.New()
	first, second := uuid.New(), uuid.New()
	lists := []*domain.List{{
		ID:          listID,
		OwnerID:     ownerID,
		Name:        "Verbs",
		Tags:        []string{"german"},
		ResourceIDs: []uuid.UUID{first, second},
	}}
	e, err := domain.NewExecution(ownerID, lists, fixedTime)
	if err != nil {
		panic(err)
	}

	entries := e.Results.Snapshot()
	results := make([]execution.ResultView, 0, len(entries))
	for _, entry := range entries {
		results = append(results, execution.ResultView{
			ResultEntry: entry,
			Resource: &domain.Resource{
				ID:            entry.ResourceID,
				OwnerID:       ownerID,
				Kind:          domain.ResourceKindVocabulary,
				PrimaryText:   "gehen",
				SecondaryText: "to go",
			},
		})
	}
	return &execution.ExecutionView{Execution: e, State: e.State(), Results: results}
}
