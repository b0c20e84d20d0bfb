// Package postgres implements the Postgres warehouse backend using pgx v5.
// Rows are bulk-loaded with the COPY protocol.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"salesetl/internal/ddl"
)

// Dialect renders Postgres DDL.
var Dialect = ddl.Dialect{
	Name:    "postgres",
	Quote:   pgIdent,
	Number:  "DOUBLE PRECISION",
	Text:    "TEXT",
	Schemas: true,
}

// Config holds Postgres connection settings. DSN wins when set.
type Config struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// ConnString returns the DSN, or a postgres:// URL built from the discrete
// fields.
func (c Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := url.URL{Scheme: "postgres", Path: "/" + c.Database}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	if c.Port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(c.Port))
	}
	u.Host = host
	switch {
	case c.User != "" && c.Password != "":
		u.User = url.UserPassword(c.User, c.Password)
	case c.User != "":
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// Repository is a Postgres warehouse connection.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects and pings, returning a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", describe(err))
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool}, closeFn, nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return Dialect }

// Exec implements storage.Repository.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return describe(err)
	}
	return nil
}

// CopyFrom streams rows into schema.table with COPY.
func (r *Repository) CopyFrom(ctx context.Context, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, identifier(schema, table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy: %w", describe(err))
	}
	return n, nil
}

// describe folds the detail of a server error into the message.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s, sqlstate %s)", err, pgErr.Detail, pgErr.SQLState())
	}
	return err
}

// identifier returns the pgx identifier of schema.table; an empty schema
// leaves the table unqualified.
func identifier(schema, table string) pgx.Identifier {
	if schema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, table}
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
