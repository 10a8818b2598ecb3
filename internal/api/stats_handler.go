package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/drill-api/internal/api/shared"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/service/execution"
)

// StatsHandler serves the rolling practice statistics.
type StatsHandler struct {
	service execution.Service
	logger  *slog.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(service execution.Service, logger *slog.Logger) *StatsHandler {
	if service == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("service cannot be nil for StatsHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for StatsHandler")
	}
	return &StatsHandler{
		service: service,
		logger:  logger.With(slog.String("component", "stats_handler")),
	}
}

// ToggleFavourite handles POST /api/resources/{id}/favourite.
func (h *StatsHandler) ToggleFavourite(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, resourceID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	stats, err := h.service.ToggleFavourite(r.Context(), userID, resourceID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update favourite")
		return
	}

	log.Debug("favourite toggled",
		slog.String("resource_id", resourceID.String()),
		slog.Bool("favourite", stats.Favourite))
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// UserStats handles GET /api/stats/user.
func (h *StatsHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserID(w, r, log)
	if !ok {
		return
	}

	stats, err := h.service.UserStats(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get statistics")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// ListStats handles GET /api/stats/lists/{id}.
func (h *StatsHandler) ListStats(w http.ResponseWriter, r *http.Request) {
	userID, listID, ok := handleUserIDAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	stats, err := h.service.ListStats(r.Context(), userID, listID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get statistics")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// ResourceStats handles GET /api/stats/resources/{id}.
func (h *StatsHandler) ResourceStats(w http.ResponseWriter, r *http.Request) {
	userID, resourceID, ok := handleUserIDAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	stats, err := h.service.ResourceStats(r.Context(), userID, resourceID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get statistics")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}
