package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/pushkit/internal/storage"
)

// ListRuns handles GET /api/runs?job=&limit=.
func ListRuns(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryLimit(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		runs, err := store.RecentRuns(r.Context(), r.URL.Query().Get("job"), limit)
		if err != nil {
			slog.Error("failed to list runs", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to list runs")
			return
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

// GetRun handles GET /api/runs/{id}.
func GetRun(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		run, err := store.GetRun(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if err != nil {
			slog.Error("failed to get run", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get run")
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

// ListNotifications handles GET /api/notifications?job=&limit=.
func ListNotifications(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryLimit(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		list, err := store.RecentNotifications(r.Context(), r.URL.Query().Get("job"), limit)
		if err != nil {
			slog.Error("failed to list notifications", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to list notifications")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// Health handles GET /healthz.
func Health(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
