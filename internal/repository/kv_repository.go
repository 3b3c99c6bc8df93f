package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// KV is a namespaced key/value store. Values are opaque serialized
// collections; every Set replaces the whole value.
type KV interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
	// Namespaces lists the namespaces holding key, sorted.
	Namespaces(ctx context.Context, key string) ([]string, error)
}

type SQLiteKV struct {
	db *sql.DB
}

func NewSQLiteKV(db *sql.DB) *SQLiteKV {
	return &SQLiteKV{db: db}
}

func (r *SQLiteKV) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(
		ctx,
		`SELECT value FROM kv_store WHERE namespace = ? AND key = ?`,
		namespace,
		key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

func (r *SQLiteKV) Set(ctx context.Context, namespace, key string, value []byte) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO kv_store (namespace, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE
		 SET value = excluded.value,
		     updated_at = excluded.updated_at`,
		namespace,
		key,
		value,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (r *SQLiteKV) Delete(ctx context.Context, namespace, key string) error {
	_, err := r.db.ExecContext(
		ctx,
		`DELETE FROM kv_store WHERE namespace = ? AND key = ?`,
		namespace,
		key,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (r *SQLiteKV) Namespaces(ctx context.Context, key string) ([]string, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT namespace FROM kv_store WHERE key = ? ORDER BY namespace`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("list namespaces for %s: %w", key, err)
	}
	defer rows.Close()

	items := make([]string, 0)
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		items = append(items, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate namespaces: %w", err)
	}
	return items, nil
}

// MemoryKV keeps values in process memory. It backs tests and runs where no
// local database is configured.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func memoryKey(namespace, key string) string {
	return namespace + "\x00" + key
}

func (m *MemoryKV) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[memoryKey(namespace, key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Set(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[memoryKey(namespace, key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, memoryKey(namespace, key))
	return nil
}

func (m *MemoryKV) Namespaces(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]string, 0)
	for k := range m.data {
		ns, rest, ok := strings.Cut(k, "\x00")
		if ok && rest == key {
			items = append(items, ns)
		}
	}
	sort.Strings(items)
	return items, nil
}
