package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/api/shared"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/service/execution"
	"github.com/phrazzld/drill-api/internal/store"
)

// getUserIDFromContext extracts the authenticated owner's UUID from the
// request context, where the authentication middleware placed it.
func getUserIDFromContext(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// handleUserID extracts the owner id or writes a 401 response.
func handleUserID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return uuid.Nil, false
	}
	return userID, true
}

// handleUserIDAndPathUUID is a composite helper that extracts both the user ID from context
// and a UUID from the path parameters. It writes an error response if either extraction fails.
func handleUserIDAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	log *slog.Logger,
) (uuid.UUID, uuid.UUID, bool) {
	if log == nil {
		log = logger.FromContextOrDefault(r.Context(), slog.Default())
	}

	userID, ok := handleUserID(w, r, log)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		log.Warn("invalid "+paramName,
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return uuid.Nil, uuid.Nil, false
	}

	return userID, pathID, true
}

// decodeAndValidate decodes the JSON body into v and validates it, writing a
// 400 response on failure. Optional bodies may be empty.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) bool {
	decode := shared.DecodeJSON
	if optional {
		decode = shared.DecodeOptionalJSON
	}
	if err := decode(r, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		handleValidationError(w, r, err)
		return false
	}
	return true
}

// parseExecutionFilter reads the listing filter from the query string.
func parseExecutionFilter(r *http.Request) (store.ExecutionFilter, error) {
	q := r.URL.Query()
	var filter store.ExecutionFilter

	if raw := q.Get("in_progress"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, domain.NewValidationError("in_progress", "must be true or false", domain.ErrValidation)
		}
		filter.InProgress = &v
	}

	if raw := q.Get("list_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, domain.NewValidationError("list_id", "has invalid format", domain.ErrInvalidID)
		}
		filter.ListID = &id
	}

	filter.Tag = q.Get("tag")

	var err error
	if filter.Limit, err = parseNonNegative(q.Get("limit"), "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseNonNegative(q.Get("offset"), "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseNonNegative(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(field, "must be a non-negative integer", domain.ErrValidation)
	}
	return n, nil
}

// parseViewOptions reads the review filter (?outcome=fail) from the query string.
func parseViewOptions(r *http.Request) (execution.ViewOptions, error) {
	raw := r.URL.Query().Get("outcome")
	if raw == "" {
		return execution.ViewOptions{}, nil
	}
	outcome := domain.Outcome(raw)
	if err := outcome.Validate(); err != nil {
		return execution.ViewOptions{}, err
	}
	return execution.ViewOptions{Outcome: &outcome}, nil
}
