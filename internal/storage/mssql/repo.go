// Package mssql implements a Microsoft SQL Server warehouse backend using
// the go-mssqldb bulk copy API.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"salesetl/internal/ddl"
)

// Dialect renders SQL Server DDL.
var Dialect = ddl.Dialect{
	Name:    "mssql",
	Quote:   msIdent,
	Number:  "FLOAT",
	Text:    "NVARCHAR(MAX)",
	Schemas: true,
	CreateSchemaSQL: func(schema string) string {
		// CREATE SCHEMA must be the only statement in its batch.
		lit := strings.ReplaceAll(schema, "'", "''")
		return fmt.Sprintf("IF SCHEMA_ID(N'%s') IS NULL EXEC(N'CREATE SCHEMA %s')",
			lit, strings.ReplaceAll(msIdent(schema), "'", "''"))
	},
}

// Config holds MSSQL connection settings. DSN wins when set.
type Config struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ConnString returns the DSN, or a sqlserver:// URL built from the discrete
// fields.
func (c Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	host := c.Host
	if c.Port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(c.Port))
	}
	u := url.URL{Scheme: "sqlserver", Host: host}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	if c.Database != "" {
		u.RawQuery = url.Values{"database": {c.Database}}.Encode()
	}
	return u.String()
}

// Repository is an MSSQL-backed warehouse.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn := cfg.ConnString()
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return Dialect }

// CopyFrom performs a bulk insert into schema.table.
func (r *Repository) CopyFrom(ctx context.Context, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(Dialect.FQN(schema, table), mssql.BulkOptions{}, columns...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }
