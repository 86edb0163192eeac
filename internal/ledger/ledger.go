// Package ledger persists the last rendered summary of a job and the set of
// item keys already delivered.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hoanghai1803/pushkit/internal/kv"
	"github.com/hoanghai1803/pushkit/internal/models"
)

// DefaultLimit bounds how many keys a delivery ledger keeps per cache key.
const DefaultLimit = 300

// RenderCache stores one RenderRecord under a fixed key.
type RenderCache struct {
	store kv.Store
	key   string
}

// NewRenderCache creates a RenderCache.
func NewRenderCache(store kv.Store, key string) *RenderCache {
	return &RenderCache{store: store, key: key}
}

// Write overwrites the cached record.
func (c *RenderCache) Write(ctx context.Context, rec models.RenderRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding render cache: %w", err)
	}
	if err := c.store.Write(ctx, c.key, string(b)); err != nil {
		return fmt.Errorf("writing render cache %q: %w", c.key, err)
	}
	return nil
}

// Read returns the cached record. It reports false when there is none or
// when the stored value is unreadable or has no body.
func (c *RenderCache) Read(ctx context.Context) (models.RenderRecord, bool) {
	raw, ok, err := c.store.Read(ctx, c.key)
	if err != nil {
		slog.Warn("reading render cache failed", "key", c.key, "error", err)
		return models.RenderRecord{}, false
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return models.RenderRecord{}, false
	}
	var rec models.RenderRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		slog.Warn("render cache is corrupt, ignoring", "key", c.key, "error", err)
		return models.RenderRecord{}, false
	}
	if rec.Body == "" {
		return models.RenderRecord{}, false
	}
	return rec, true
}

// DeliveryLedger stores, under one fixed key, a JSON object mapping each
// filter cache key to the dedup keys already delivered for it.
type DeliveryLedger struct {
	store kv.Store
	key   string
	limit int
}

// NewDeliveryLedger creates a DeliveryLedger. A non-positive limit uses
// DefaultLimit.
func NewDeliveryLedger(store kv.Store, key string, limit int) *DeliveryLedger {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &DeliveryLedger{store: store, key: key, limit: limit}
}

// CacheKey builds the deterministic scope key for a filter configuration
// from ordered name/value pairs, e.g. "since=weekly|lang=all|kw=ai,llm".
func CacheKey(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, pairs[i]+"="+pairs[i+1])
	}
	return strings.Join(parts, "|")
}

func (l *DeliveryLedger) load(ctx context.Context) (map[string][]string, error) {
	raw, ok, err := l.store.Read(ctx, l.key)
	if err != nil {
		return nil, fmt.Errorf("reading delivery ledger %q: %w", l.key, err)
	}
	all := make(map[string][]string)
	if !ok || strings.TrimSpace(raw) == "" {
		return all, nil
	}
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		slog.Warn("delivery ledger is corrupt, starting fresh", "key", l.key, "error", err)
		return make(map[string][]string), nil
	}
	return all, nil
}

// Read returns the keys delivered under cacheKey, oldest first.
func (l *DeliveryLedger) Read(ctx context.Context, cacheKey string) ([]string, error) {
	all, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return all[cacheKey], nil
}

// Seen returns a lookup over the keys delivered under cacheKey. Keys
// compare case-insensitively.
func (l *DeliveryLedger) Seen(ctx context.Context, cacheKey string) (func(string) bool, error) {
	keys, err := l.Read(ctx, cacheKey)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = true
	}
	return func(k string) bool { return set[strings.ToLower(k)] }, nil
}

// Append adds newKeys under cacheKey and keeps only the most recent entries.
// Other cache keys are left untouched.
func (l *DeliveryLedger) Append(ctx context.Context, cacheKey string, newKeys []string) error {
	all, err := l.load(ctx)
	if err != nil {
		return err
	}

	keys := all[cacheKey]
	for _, k := range newKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) > l.limit {
		keys = keys[len(keys)-l.limit:]
	}
	all[cacheKey] = keys

	b, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encoding delivery ledger: %w", err)
	}
	if err := l.store.Write(ctx, l.key, string(b)); err != nil {
		return fmt.Errorf("writing delivery ledger %q: %w", l.key, err)
	}
	return nil
}
