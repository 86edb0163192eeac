package args

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hoanghai1803/pushkit/internal/coerce"
	"github.com/hoanghai1803/pushkit/internal/kv"
)

// Source identifies which layer supplied a resolved value.
type Source string

const (
	FromArgument Source = "argument"
	FromSetting  Source = "setting"
	FromDefault  Source = "default"
)

// Field describes one logical parameter: the argument keys it may appear
// under (aliases and positional indexes), the persisted setting that backs
// it, and its default.
type Field struct {
	Keys    []string
	Setting string
	Default string
}

// Resolver applies the precedence argument > setting > default. It never
// fails; unreadable settings degrade to the default.
type Resolver struct {
	args     Values
	settings kv.Store
}

// NewResolver creates a Resolver. settings may be nil.
func NewResolver(values Values, settings kv.Store) *Resolver {
	if values == nil {
		values = Values{}
	}
	return &Resolver{args: values, settings: settings}
}

// Lookup returns the effective raw value of f and the layer it came from.
func (r *Resolver) Lookup(ctx context.Context, f Field) (string, Source) {
	for _, k := range f.Keys {
		if v, ok := usable(r.args[k]); ok {
			return v, FromArgument
		}
	}
	if f.Setting != "" && r.settings != nil {
		raw, found, err := r.settings.Read(ctx, f.Setting)
		if err != nil {
			slog.Debug("reading setting failed, using default", "key", f.Setting, "error", err)
		} else if v, ok := usable(raw); found && ok {
			return v, FromSetting
		}
	}
	return strings.TrimSpace(f.Default), FromDefault
}

func usable(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" || IsPlaceholder(v) {
		return "", false
	}
	return v, true
}

// String returns the effective value of f.
func (r *Resolver) String(ctx context.Context, f Field) string {
	v, _ := r.Lookup(ctx, f)
	return v
}

// Int returns the effective value of f as an integer clamped to [lo, hi].
// An unparsable value falls back to def.
func (r *Resolver) Int(ctx context.Context, f Field, def, lo, hi int) int {
	v, src := r.Lookup(ctx, f)
	res := coerce.IntInRange(v, def, lo, hi)
	if res.Fallback && src != FromDefault {
		slog.Debug("argument is not a number, using default", "keys", f.Keys, "value", v, "default", def)
	}
	return res.Value
}

// Bool returns the effective value of f as a boolean.
func (r *Resolver) Bool(ctx context.Context, f Field, def bool) bool {
	v, _ := r.Lookup(ctx, f)
	return coerce.Bool(v, def).Value
}

// List returns the effective value of f as a lower-cased keyword list, or
// def when the value is empty.
func (r *Resolver) List(ctx context.Context, f Field, def []string) []string {
	v, _ := r.Lookup(ctx, f)
	if list := coerce.List(v); len(list) > 0 {
		return list
	}
	out := make([]string, 0, len(def))
	for _, k := range def {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Route returns the effective egress route of f. "AUTO" (any case) means the
// default route and resolves to "".
func (r *Resolver) Route(ctx context.Context, f Field) string {
	return NormalizeRoute(r.String(ctx, f))
}

// NormalizeRoute maps "AUTO" and blanks to the default route "".
func NormalizeRoute(route string) string {
	route = strings.TrimSpace(route)
	if strings.EqualFold(route, "auto") {
		return ""
	}
	return route
}

// Effective is the resolved configuration of one invocation. It is built
// once and not modified afterwards.
type Effective struct {
	Route     string
	Max       int
	Keywords  []string
	Overrides map[string]string
}

// Override returns a free-form override value.
func (e Effective) Override(key string) string {
	return e.Overrides[key]
}

// LogValue summarizes the configuration without leaking credentials.
func (e Effective) LogValue() slog.Value {
	route := e.Route
	if route == "" {
		route = "(auto)"
	}
	return slog.GroupValue(
		slog.String("route", route),
		slog.Int("max", e.Max),
		slog.Int("keywords", len(e.Keywords)),
		slog.Int("overrides", len(e.Overrides)),
	)
}
