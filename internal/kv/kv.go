// Package kv defines the persisted key-value capability used for settings,
// render caches and delivery ledgers.
package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Store is a process-wide string store. Read reports whether the key
// exists. There are no transactions and no expiry; callers bound growth.
type Store interface {
	Read(ctx context.Context, key string) (string, bool, error)
	Write(ctx context.Context, key, value string) error
}

// Lister is implemented by stores that can enumerate their contents.
type Lister interface {
	List(ctx context.Context) (map[string]string, error)
}

// Memory is an in-memory Store, used by tests and by ephemeral runs.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
}

var (
	_ Store  = (*Memory)(nil)
	_ Lister = (*Memory)(nil)
)

// NewMemory returns an empty Memory store, optionally seeded.
func NewMemory(seed map[string]string) *Memory {
	m := &Memory{data: make(map[string]string, len(seed))}
	for k, v := range seed {
		m.data[k] = v
	}
	return m
}

func (m *Memory) Read(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Write(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) List(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out, nil
}

// Keys returns the stored keys with the given prefix in sorted order.
func (m *Memory) Keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
