package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/pushkit/internal/jobs"
	"github.com/hoanghai1803/pushkit/internal/schedule"
)

// Planner lists the schedule entries.
type Planner interface {
	Planned() []schedule.Planned
}

type jobInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Schedule    []schedule.Planned `json:"schedule"`
}

// ListJobs handles GET /api/jobs. Each job carries its schedule entries
// with their next fire time.
func ListJobs(registry *jobs.Registry, planner Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		planned := map[string][]schedule.Planned{}
		if planner != nil {
			for _, p := range planner.Planned() {
				planned[p.Job] = append(planned[p.Job], p)
			}
		}

		out := []jobInfo{}
		for _, j := range registry.List() {
			entries := planned[j.Name()]
			if entries == nil {
				entries = []schedule.Planned{}
			}
			out = append(out, jobInfo{Name: j.Name(), Description: j.Description(), Schedule: entries})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type runRequest struct {
	Argument string `json:"argument"`
}

// RunJob handles POST /api/jobs/{name}/run. The argument is taken from the
// JSON body {"argument": "..."} or the ?argument= query. With ?async=1 the
// run continues in the background and 202 is returned immediately.
func RunJob(runner *jobs.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if _, ok := runner.Registry().Get(name); !ok {
			writeError(w, http.StatusNotFound, "unknown job "+name)
			return
		}

		argument := r.URL.Query().Get("argument")
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading body failed")
			return
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			var req runRequest
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			argument = req.Argument
		}

		if r.URL.Query().Get("async") == "1" {
			ctx := context.WithoutCancel(r.Context())
			go func() {
				if _, err := runner.Run(ctx, name, argument); err != nil {
					slog.Warn("background run failed", "job", name, "error", err)
				}
			}()
			writeJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": "accepted"})
			return
		}

		rec, err := runner.Run(r.Context(), name, argument)
		switch {
		case errors.Is(err, jobs.ErrBusy):
			writeError(w, http.StatusConflict, "job "+name+" is already running")
			return
		case errors.Is(err, jobs.ErrUnknownJob):
			writeError(w, http.StatusNotFound, "unknown job "+name)
			return
		}
		// A failed job is still a completed run; the record carries the error.
		writeJSON(w, http.StatusOK, rec)
	}
}
