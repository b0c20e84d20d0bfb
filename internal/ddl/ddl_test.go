package ddl

import (
	"strings"
	"testing"

	"salesetl/internal/dataset"
)

var ansi = Dialect{Name: "test", Quote: DoubleQuote, Number: "DOUBLE PRECISION", Text: "TEXT", Schemas: true}

// TestCreateTable verifies CREATE TABLE rendering and its error cases.
func TestCreateTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty name returns error",
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "TEXT"}}},
			errContains: "table name must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{Name: "t"},
			errContains: "at least one column is required",
		},
		{
			name:        "empty column type returns error",
			def:         TableDef{Name: "t", Columns: []ColumnDef{{Name: "id"}}},
			errContains: "missing SQLType",
		},
		{
			name: "duplicate column returns error",
			def: TableDef{Name: "t", Columns: []ColumnDef{
				{Name: "id", SQLType: "TEXT"}, {Name: "id", SQLType: "TEXT"},
			}},
			errContains: "duplicate column id",
		},
		{
			name: "schema qualified with nullability",
			def: TableDef{Schema: "staging", Name: "dim_customers", Columns: []ColumnDef{
				{Name: "customer_id", SQLType: "TEXT"},
				{Name: "score", SQLType: "DOUBLE PRECISION", Nullable: true},
			}},
			wantSQL: "CREATE TABLE \"staging\".\"dim_customers\" (\n  \"customer_id\" TEXT NOT NULL,\n  \"score\" DOUBLE PRECISION\n)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ansi.CreateTable(tc.def)
			if tc.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tc.errContains) {
					t.Fatalf("err = %v, want containing %q", err, tc.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.wantSQL {
				t.Fatalf("SQL mismatch\n got: %q\nwant: %q", got, tc.wantSQL)
			}
		})
	}
}

// TestFromDataset verifies type mapping and lower-cased names.
func TestFromDataset(t *testing.T) {
	t.Parallel()

	td := ansi.FromDataset("staging", "fct_sales_enriched", []dataset.Column{
		{Name: "Customer_ID", Type: dataset.TypeIdentifier},
		{Name: "revenue", Type: dataset.TypeNumber},
		{Name: "date", Type: dataset.TypeDate},
	})
	want := []ColumnDef{
		{Name: "customer_id", SQLType: "TEXT", Nullable: true},
		{Name: "revenue", SQLType: "DOUBLE PRECISION", Nullable: true},
		{Name: "date", SQLType: "TEXT", Nullable: true},
	}
	for i, c := range td.Columns {
		if c != want[i] {
			t.Fatalf("column %d = %#v, want %#v", i, c, want[i])
		}
	}
}

// TestSchemaStatements covers schema-less dialects and overrides.
func TestSchemaStatements(t *testing.T) {
	t.Parallel()

	if got := ansi.CreateSchema("staging"); got != `CREATE SCHEMA IF NOT EXISTS "staging"` {
		t.Fatalf("CreateSchema = %q", got)
	}
	if got := ansi.DropTable("staging", "t"); got != `DROP TABLE IF EXISTS "staging"."t"` {
		t.Fatalf("DropTable = %q", got)
	}

	flat := ansi
	flat.Schemas = false
	if got := flat.CreateSchema("staging"); got != "" {
		t.Fatalf("schema-less CreateSchema = %q, want empty", got)
	}
	if got := flat.FQN("staging", "t"); got != `"t"` {
		t.Fatalf("schema-less FQN = %q", got)
	}

	custom := ansi
	custom.CreateSchemaSQL = func(s string) string { return "EXEC create " + s }
	if got := custom.CreateSchema("x"); got != "EXEC create x" {
		t.Fatalf("custom CreateSchema = %q", got)
	}
}

func TestDoubleQuote(t *testing.T) {
	t.Parallel()
	if got := DoubleQuote(`we"ird`); got != `"we""ird"` {
		t.Fatalf("DoubleQuote = %q", got)
	}
}
