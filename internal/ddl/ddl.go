// Package ddl renders the warehouse DDL of a curated table for a SQL dialect.
//
// A Dialect carries the quoting and type rules of one backend; TableDef is
// the dialect-neutral description built from a dataset schema.
package ddl

import (
	"fmt"
	"strings"

	"salesetl/internal/dataset"
)

// ColumnDef describes a single column.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, DOUBLE PRECISION)
//   - Nullable: whether NULL is allowed
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// TableDef is a table in a schema. Schema may be empty for backends without
// schemas.
type TableDef struct {
	Schema  string
	Name    string
	Columns []ColumnDef
}

// Dialect holds the rendering rules of one backend.
type Dialect struct {
	Name string
	// Quote quotes a single identifier segment.
	Quote func(string) string
	// Number and Text are the column types of numeric and all other columns.
	Number string
	Text   string
	// Schemas is false for backends without CREATE SCHEMA (SQLite).
	Schemas bool
	// CreateSchemaSQL, when set, replaces CREATE SCHEMA IF NOT EXISTS.
	CreateSchemaSQL func(schema string) string
}

// DoubleQuote quotes with "..." and doubles embedded quotes (ANSI).
func DoubleQuote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// FQN returns the quoted, schema-qualified table name. The schema is dropped
// when the dialect has no schemas.
func (d Dialect) FQN(schema, table string) string {
	if schema == "" || !d.Schemas {
		return d.Quote(table)
	}
	return d.Quote(schema) + "." + d.Quote(table)
}

// ColumnType returns the SQL type for a dataset value type.
func (d Dialect) ColumnType(t dataset.ValueType) string {
	if t == dataset.TypeNumber {
		return d.Number
	}
	return d.Text
}

// FromDataset describes a table holding cols. Column names are lower-cased
// and every column is nullable.
func (d Dialect) FromDataset(schema, table string, cols []dataset.Column) TableDef {
	td := TableDef{Schema: schema, Name: table, Columns: make([]ColumnDef, len(cols))}
	for i, c := range cols {
		td.Columns[i] = ColumnDef{
			Name:     strings.ToLower(c.Name),
			SQLType:  d.ColumnType(c.Type),
			Nullable: true,
		}
	}
	return td
}

// CreateSchema returns the statement that ensures schema exists, or "" when
// the dialect has no schemas.
func (d Dialect) CreateSchema(schema string) string {
	if !d.Schemas || schema == "" {
		return ""
	}
	if d.CreateSchemaSQL != nil {
		return d.CreateSchemaSQL(schema)
	}
	return "CREATE SCHEMA IF NOT EXISTS " + d.Quote(schema)
}

// DropTable returns DROP TABLE IF EXISTS for the table.
func (d Dialect) DropTable(schema, table string) string {
	return "DROP TABLE IF EXISTS " + d.FQN(schema, table)
}

// CreateTable renders a CREATE TABLE statement.
//
// Rules:
//   - t.Name must be non-empty.
//   - Each column must have a non-empty Name and SQLType.
//   - Column names must be unique.
func (d Dialect) CreateTable(t TableDef) (string, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	seen := make(map[string]struct{}, len(t.Columns))
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		cn := strings.TrimSpace(c.Name)
		if cn == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", name)
		}
		if _, dup := seen[cn]; dup {
			return "", fmt.Errorf("ddl: duplicate column %s in table %s", cn, name)
		}
		seen[cn] = struct{}{}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", cn)
		}

		var sb strings.Builder
		sb.WriteString(d.Quote(cn))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", d.FQN(t.Schema, name), strings.Join(cols, ",\n  ")), nil
}
