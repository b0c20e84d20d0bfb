// Package mysql provides a MySQL-backed warehouse. MySQL treats a schema as a
// database, so warehouse.schema names the database the tables land in.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"salesetl/internal/ddl"
)

// maxPlaceholders is the server's prepared statement parameter limit.
const maxPlaceholders = 65535

// Dialect renders MySQL DDL.
var Dialect = ddl.Dialect{
	Name:    "mysql",
	Quote:   myIdent,
	Number:  "DOUBLE",
	Text:    "TEXT",
	Schemas: true,
}

// Config holds MySQL connection settings. DSN wins when set.
type Config struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ConnString returns the DSN, or one formatted by the driver from the
// discrete fields.
func (c Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Database
	if c.Host != "" {
		mc.Net = "tcp"
		mc.Addr = c.Host
		if c.Port > 0 {
			mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		}
	}
	return mc.FormatDSN()
}

// Repository is a MySQL-backed warehouse.
type Repository struct {
	db *sql.DB
}

// NewRepository opens a pool and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn := cfg.ConnString()
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	db, err := sql.Open("mysql", dsn)
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

// CopyFrom inserts rows with multi-row INSERT statements inside one
// transaction, splitting so no statement exceeds maxPlaceholders.
func (r *Repository) CopyFrom(ctx context.Context, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: no columns for %s", table)
	}
	per := maxPlaceholders / len(columns)
	fqn := Dialect.FQN(schema, table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	var total int64
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		chunk := rows[start:end]
		args := make([]any, 0, len(chunk)*len(columns))
		for i, row := range chunk {
			if len(row) != len(columns) {
				_ = tx.Rollback()
				return 0, fmt.Errorf("row %d has %d values, want %d", start+i, len(row), len(columns))
			}
			args = append(args, row...)
		}
		res, err := tx.ExecContext(ctx, insertSQL(fqn, columns, len(chunk)), args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

func insertSQL(fqn string, columns []string, n int) string {
	qcols := make([]string, len(columns))
	for i, c := range columns {
		qcols[i] = myIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", fqn, strings.Join(qcols, ", "))
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
	}
	return b.String()
}

// myIdent backtick-quotes an identifier, doubling embedded backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
