package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/api/shared"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/service/execution"
)

// ExecutionHandler handles execution-related HTTP requests.
type ExecutionHandler struct {
	service execution.Service
	logger  *slog.Logger
}

// NewExecutionHandler creates a new ExecutionHandler.
func NewExecutionHandler(service execution.Service, logger *slog.Logger) *ExecutionHandler {
	if service == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("service cannot be nil for ExecutionHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ExecutionHandler")
	}
	return &ExecutionHandler{
		service: service,
		logger:  logger.With(slog.String("component", "execution_handler")),
	}
}

// Start handles POST /api/executions.
// An in-progress execution over the same lists is returned instead of a new one.
func (h *ExecutionHandler) Start(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserID(w, r, log)
	if !ok {
		return
	}

	var req StartExecutionRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	view, err := h.service.Start(r.Context(), userID, req.ListIDs)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start execution")
		return
	}

	log.Debug("execution started",
		slog.String("execution_id", view.ID.String()),
		slog.Int("lists", len(req.ListIDs)))
	shared.RespondWithJSON(w, r, http.StatusCreated, viewToResponse(view))
}

// StartTemporary handles POST /api/executions/temporary.
func (h *ExecutionHandler) StartTemporary(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserID(w, r, log)
	if !ok {
		return
	}

	var req StartTemporaryRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	view, err := h.service.StartTemporary(r.Context(), userID, req.Name, req.Tags, req.ResourceIDs)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start execution")
		return
	}

	log.Debug("temporary execution started",
		slog.String("execution_id", view.ID.String()),
		slog.Int("resources", len(req.ResourceIDs)))
	shared.RespondWithJSON(w, r, http.StatusCreated, viewToResponse(view))
}

// List handles GET /api/executions.
func (h *ExecutionHandler) List(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserID(w, r, log)
	if !ok {
		return
	}

	filter, err := parseExecutionFilter(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	executions, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list executions")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, executionsToResponse(executions))
}

// Get handles GET /api/executions/{id}. ?outcome= narrows the results.
func (h *ExecutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, executionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	opts, err := parseViewOptions(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	view, err := h.service.Get(r.Context(), userID, executionID, opts)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get execution")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, viewToResponse(view))
}

// Configure handles PATCH /api/executions/{id}/config.
func (h *ExecutionHandler) Configure(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, executionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req ConfigureRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	view, err := h.service.Configure(r.Context(), userID, executionID, req.Patch(), req.Version)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to configure execution")
		return
	}

	log.Debug("execution configured",
		slog.String("execution_id", executionID.String()),
		slog.Int64("version", view.Version))
	shared.RespondWithJSON(w, r, http.StatusOK, viewToResponse(view))
}

// RecordAnswer handles POST /api/executions/{id}/results.
func (h *ExecutionHandler) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, executionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req RecordAnswerRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	answer := execution.AnswerInput{
		ResourceID: req.ResourceID,
		ListID:     req.ListID,
		Position:   req.Position,
		Outcome:    domain.Outcome(req.Outcome),
	}
	updated, err := h.service.RecordAnswer(r.Context(), userID, executionID, answer, req.Version)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to record answer")
		return
	}

	w.Header().Set("ETag", etag(updated.Version))
	w.WriteHeader(http.StatusNoContent)
}

// Restart handles POST /api/executions/{id}/restart.
func (h *ExecutionHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "restart", h.service.Restart)
}

// Finish handles POST /api/executions/{id}/finish.
func (h *ExecutionHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "finish", h.service.Finish)
}

// transition runs a body-optional, version-checked transition and responds
// with the updated execution.
func (h *ExecutionHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	name string,
	fn func(ctx context.Context, ownerID, executionID uuid.UUID, expectedVersion *int64) (*execution.ExecutionView, error),
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, executionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req VersionRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	view, err := fn(r.Context(), userID, executionID, req.Version)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to "+name+" execution")
		return
	}

	log.Debug("execution "+name+" applied",
		slog.String("execution_id", executionID.String()),
		slog.String("state", string(view.State)))
	shared.RespondWithJSON(w, r, http.StatusOK, viewToResponse(view))
}

// etag renders an execution version as a strong entity tag.
func etag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}
