package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/pushkit/internal/args"
	"github.com/hoanghai1803/pushkit/internal/kv"
)

// SettingsStore is the persisted settings namespace.
type SettingsStore interface {
	kv.Store
	kv.Lister
	Delete(ctx context.Context, key string) error
}

// GetSettings handles GET /api/settings. It returns every setting as a
// string-valued JSON object.
func GetSettings(store SettingsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := store.List(r.Context())
		if err != nil {
			slog.Error("failed to list settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get settings")
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

// UpdateSettings handles PUT /api/settings. Each key of the JSON object is
// saved separately: numbers and booleans are stored as text, lists are
// joined with commas and null deletes the key. The full settings are
// returned.
func UpdateSettings(store SettingsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		values := args.FromMap(body)
		for key := range body {
			if key == "" {
				continue
			}
			value, keep := values[key]
			var err error
			if keep {
				err = store.Write(ctx, key, value)
			} else {
				err = store.Delete(ctx, key)
			}
			if err != nil {
				slog.Error("failed to save setting", "key", key, "error", err)
				writeError(w, http.StatusInternalServerError, "Failed to save settings")
				return
			}
		}
		slog.Info("settings updated", "keys", len(body))

		settings, err := store.List(ctx)
		if err != nil {
			slog.Error("failed to list settings after save", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get settings")
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}
