package api

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the execution and stats endpoints on r.
// Authentication middleware is expected to wrap r.
func RegisterRoutes(r chi.Router, executions *ExecutionHandler, stats *StatsHandler) {
	r.Route("/executions", func(r chi.Router) {
		r.Post("/", executions.Start)
		r.Get("/", executions.List)
		r.Post("/temporary", executions.StartTemporary)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", executions.Get)
			r.Patch("/config", executions.Configure)
			r.Post("/results", executions.RecordAnswer)
			r.Post("/restart", executions.Restart)
			r.Post("/finish", executions.Finish)
		})
	})

	r.Post("/resources/{id}/favourite", stats.ToggleFavourite)

	r.Route("/stats", func(r chi.Router) {
		r.Get("/user", stats.UserStats)
		r.Get("/lists/{id}", stats.ListStats)
		r.Get("/resources/{id}", stats.ResourceStats)
	})
}
