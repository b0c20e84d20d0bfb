// Package storage defines the warehouse contract shared by the backends and
// the loader that replaces warehouse tables from curated datasets.
//
// Backends register a Factory for their kind in init; importing
// salesetl/internal/storage/all enables every built-in backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"salesetl/internal/ddl"
)

// ErrUnknownKind is returned by New for kinds nobody registered.
var ErrUnknownKind = errors.New("unsupported storage.kind")

// Repository is an open warehouse connection.
type Repository interface {
	// Dialect returns the DDL rules of the backend.
	Dialect() ddl.Dialect
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string) error
	// CopyFrom bulk-inserts rows aligned to columns into schema.table and
	// returns the number of rows inserted.
	CopyFrom(ctx context.Context, schema, table string, columns []string, rows [][]any) (int64, error)
	Close()
}

// Config carries the connection settings of every backend. DSN wins over the
// discrete fields when set.
type Config struct {
	Kind     string
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory of kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Repository of cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w=%s", ErrUnknownKind, cfg.Kind)
	}
	return f(ctx, cfg)
}
