package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hoanghai1803/pushkit/internal/kv"
)

// Namespaces used by the application.
const (
	NamespaceSettings = "settings"
	NamespaceState    = "state"
)

// Namespace is a kv.Store view over one namespace of the kv table.
type Namespace struct {
	store *Store
	name  string
}

var (
	_ kv.Store  = (*Namespace)(nil)
	_ kv.Lister = (*Namespace)(nil)
)

// KV returns the view of namespace.
func (s *Store) KV(namespace string) *Namespace {
	return &Namespace{store: s, name: namespace}
}

// Settings returns the namespace holding user-facing settings.
func (s *Store) Settings() *Namespace { return s.KV(NamespaceSettings) }

// State returns the namespace holding caches, ledgers and sessions.
func (s *Store) State() *Namespace { return s.KV(NamespaceState) }

func (n *Namespace) Read(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := n.store.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`, n.name, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s/%s: %w", n.name, key, err)
	}
	return value, true, nil
}

// Write stores value under key, overwriting any previous value.
func (n *Namespace) Write(ctx context.Context, key, value string) error {
	_, err := n.store.db.ExecContext(ctx,
		`INSERT INTO kv (namespace, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at`,
		n.name, key, value, formatTime(n.store.now()),
	)
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", n.name, key, err)
	}
	return nil
}

// Delete removes key. Returns ErrNotFound if it did not exist.
func (n *Namespace) Delete(ctx context.Context, key string) error {
	res, err := n.store.db.ExecContext(ctx,
		`DELETE FROM kv WHERE namespace = ? AND key = ?`, n.name, key)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", n.name, key, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every key and value in the namespace.
func (n *Namespace) List(ctx context.Context) (map[string]string, error) {
	rows, err := n.store.db.QueryContext(ctx,
		`SELECT key, value FROM kv WHERE namespace = ?`, n.name)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", n.name, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", n.name, err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", n.name, err)
	}
	return out, nil
}
