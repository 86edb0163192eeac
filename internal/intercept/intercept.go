// Package intercept inspects requests forwarded by an external MITM proxy
// and captures state from them. Requests are never modified or blocked.
package intercept

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Request is an intercepted outbound request.
type Request struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
}

// Header returns the value of name, ignoring case.
func (r Request) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Verdict is returned to the proxy. Continue is always true.
type Verdict struct {
	Continue bool     `json:"continue"`
	Captured []string `json:"captured,omitempty"`
}

// Observer captures state from matching requests.
type Observer interface {
	Name() string
	// Match reports whether the observer is interested in r.
	Match(r Request) bool
	// Observe returns true when state was captured.
	Observe(ctx context.Context, r Request) (bool, error)
}

// Hook dispatches intercepted requests to observers.
type Hook struct {
	observers []Observer
}

// NewHook returns a Hook over observers.
func NewHook(observers ...Observer) *Hook {
	return &Hook{observers: observers}
}

// Handle runs every matching observer. Observer errors are logged and the
// request is let through regardless.
func (h *Hook) Handle(ctx context.Context, r Request) Verdict {
	v := Verdict{Continue: true}
	for _, o := range h.observers {
		if !o.Match(r) {
			continue
		}
		captured, err := o.Observe(ctx, r)
		if err != nil {
			slog.Error("observer failed", "observer", o.Name(), "url", redact(r.URL), "error", err)
			continue
		}
		if captured {
			v.Captured = append(v.Captured, o.Name())
		}
	}
	return v
}

// redact drops the query string, which carries session tokens.
func redact(rawURL string) string {
	base, _, found := strings.Cut(rawURL, "?")
	if found {
		return fmt.Sprintf("%s?…", base)
	}
	return base
}
