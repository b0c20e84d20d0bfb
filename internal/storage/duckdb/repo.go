// Package duckdb implements an embedded DuckDB warehouse backend.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"salesetl/internal/ddl"
)

// Dialect renders DuckDB DDL.
var Dialect = ddl.Dialect{
	Name:    "duckdb",
	Quote:   ddl.DoubleQuote,
	Number:  "DOUBLE",
	Text:    "VARCHAR",
	Schemas: true,
}

// Config holds DuckDB settings. DSN is the database file path; ":memory:"
// opens a throwaway in-memory database.
type Config struct {
	DSN string
}

// Repository is a DuckDB-backed warehouse.
type Repository struct {
	db *sql.DB
}

// NewRepository opens the database file and returns a Close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if cfg.DSN == "" {
		return nil, nil, errors.New("duckdb: empty DSN")
	}
	db, err := sql.Open("duckdb", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db}, func() { _ = db.Close() }, nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return Dialect }

// Exec runs a single statement.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// CopyFrom inserts rows in one transaction with a prepared statement.
func (r *Repository) CopyFrom(ctx context.Context, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL(Dialect.FQN(schema, table), columns))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return 0, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int64(len(rows)), nil
}

func insertSQL(fqn string, columns []string) string {
	qcols := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		qcols[i] = ddl.DoubleQuote(c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		fqn, strings.Join(qcols, ", "), strings.Join(marks, ", "))
}
