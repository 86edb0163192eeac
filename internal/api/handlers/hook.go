package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/hoanghai1803/pushkit/internal/intercept"
)

// InterceptHook handles POST /hook/request. The proxy posts the intercepted
// request as JSON and is always told to continue, even when the body is
// unreadable.
func InterceptHook(hook *intercept.Hook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req intercept.Request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, intercept.Verdict{Continue: true})
			return
		}
		writeJSON(w, http.StatusOK, hook.Handle(r.Context(), req))
	}
}
