package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hoanghai1803/pushkit/internal/intercept"
	"github.com/hoanghai1803/pushkit/internal/jobs"
	"github.com/hoanghai1803/pushkit/internal/storage"
)

func TestRouterGuardsAPIOnly(t *testing.T) {
	db, err := storage.OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	store := storage.NewStore(db)

	env := &jobs.Env{Notify: store, Settings: store.Settings(), State: store.State()}
	router := NewRouter(Deps{
		Runner: jobs.NewRunner(jobs.NewRegistry(), env, store),
		Store:  store,
		Hook:   intercept.NewHook(),
		Token:  "s3cret",
	})

	tests := []struct {
		method string
		path   string
		auth   bool
		want   int
	}{
		{http.MethodGet, "/healthz", false, http.StatusOK},
		{http.MethodGet, "/api/jobs", false, http.StatusUnauthorized},
		{http.MethodGet, "/api/jobs", true, http.StatusOK},
		{http.MethodGet, "/api/settings", true, http.StatusOK},
		{http.MethodPost, "/api/jobs/missing/run", true, http.StatusNotFound},
		{http.MethodPost, "/hook/request", false, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.path, nil)
		if tt.auth {
			r.Header.Set("Authorization", "Bearer s3cret")
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		if w.Code != tt.want {
			t.Errorf("%s %s (auth=%v): got status %d, want %d", tt.method, tt.path, tt.auth, w.Code, tt.want)
		}
	}
}
