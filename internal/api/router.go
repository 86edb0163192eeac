// Package api exposes job control, settings, the notification log and the
// intercept hook over HTTP.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/pushkit/internal/api/handlers"
	"github.com/hoanghai1803/pushkit/internal/intercept"
	"github.com/hoanghai1803/pushkit/internal/jobs"
	"github.com/hoanghai1803/pushkit/internal/storage"
)

// Deps are the components the router serves.
type Deps struct {
	Runner *jobs.Runner
	Store  *storage.Store
	Hook   *intercept.Hook
	// Planner is optional; without it jobs are listed without schedules.
	Planner handlers.Planner
	// Token is the bearer token required on /api and /hook. Empty disables it.
	Token string
}

// NewRouter builds the HTTP router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestLogger)
	r.Use(Recovery)

	r.Get("/healthz", handlers.Health(d.Store))

	r.Group(func(r chi.Router) {
		r.Use(RequireToken(d.Token))

		r.Route("/api", func(api chi.Router) {
			api.Get("/jobs", handlers.ListJobs(d.Runner.Registry(), d.Planner))
			api.Post("/jobs/{name}/run", handlers.RunJob(d.Runner))

			api.Get("/runs", handlers.ListRuns(d.Store))
			api.Get("/runs/{id}", handlers.GetRun(d.Store))

			api.Get("/settings", handlers.GetSettings(d.Store.Settings()))
			api.Put("/settings", handlers.UpdateSettings(d.Store.Settings()))

			api.Get("/notifications", handlers.ListNotifications(d.Store))
		})

		r.Post("/hook/request", handlers.InterceptHook(d.Hook))
	})

	return r
}
