package etl

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesetl/internal/config"
	"salesetl/internal/curated"
	"salesetl/internal/datasource/file"
	"salesetl/internal/gate"
	"salesetl/internal/logging"

	_ "salesetl/internal/storage/sqlite"
)

var fixtures = map[string]string{
	"sap_customers.csv": "customer_id,name\nC00001,Alice\nC00002,Bob\nC00002,Bobby\n",
	"sap_products.csv":  "product_id,name,price\nP00001,Widget,9.5\n",
	"sap_calendar.csv":  "cal_date,week\n2024-01-05,1\n2024-01-12,2\n",
	"sap_sales.csv": "customer_id,product_id,date,quantity,price\n" +
		" c00001 ,P00001,2024-01-05,3,9.5\n" +
		"C00002,P00001,2024-01-12,1,9.5\n" +
		"C00003,P00009,2024-01-12,2,1.25\n",
}

func testConfig(t *testing.T, files map[string]string) config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Job = "test"
	cfg.Paths = config.Paths{
		Raw:       filepath.Join(root, "raw"),
		Validated: filepath.Join(root, "validated"),
		Reports:   filepath.Join(root, "reports"),
		Curated:   filepath.Join(root, "curated"),
	}
	cfg.Warehouse = config.Warehouse{
		Kind:      "sqlite",
		DSN:       filepath.Join(root, "dw.sqlite"),
		Schema:    "staging",
		BatchSize: 2,
	}
	require.NoError(t, os.MkdirAll(cfg.Paths.Raw, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.Raw, name), []byte(body), 0o644))
	}
	return cfg
}

func newPipeline(cfg config.Config) *Pipeline {
	return New(cfg, file.NewDir(cfg.Paths.Raw), logging.Nop(),
		WithRunID("run-1"),
		WithClock(func() time.Time { return time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC) }))
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t, fixtures)

	s, err := newPipeline(cfg).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 4, s.Gate.Count(gate.Accepted))
	require.NotNil(t, s.Curated)
	assert.Equal(t, 3, s.Curated.Enriched.Len(), "sales rows are never dropped or duplicated")

	require.Len(t, s.Loaded, 4)
	assert.Equal(t, Loaded{Table: FactTable, Rows: 3}, s.Loaded[0])
	assert.Equal(t, Loaded{Table: curated.DimCustomers, Rows: 3}, s.Loaded[1])

	db, err := sql.Open("sqlite", cfg.Warehouse.DSN)
	require.NoError(t, err)
	defer db.Close()

	var name sql.NullString
	require.NoError(t, db.QueryRow(
		`SELECT "name" FROM "fct_sales_enriched" WHERE "customer_id" = 'C00002'`).Scan(&name))
	assert.Equal(t, "Bob", name.String, "first customer row wins")

	var revenue float64
	require.NoError(t, db.QueryRow(
		`SELECT "revenue" FROM "fct_sales_enriched" WHERE "customer_id" = 'C00001'`).Scan(&revenue))
	assert.InDelta(t, 28.5, revenue, 1e-9)

	var unmatched sql.NullString
	require.NoError(t, db.QueryRow(
		`SELECT "name" FROM "fct_sales_enriched" WHERE "customer_id" = 'C00003'`).Scan(&unmatched))
	assert.False(t, unmatched.Valid)
}

func TestRunDedupPolicyAndLenientCSV(t *testing.T) {
	files := map[string]string{}
	for k, v := range fixtures {
		files[k] = v
	}
	files["sap_sales.csv"] += "C00001,P00001\n"
	cfg := testConfig(t, files)
	cfg.CSV.Strict = false
	cfg.Enrich.DedupPolicy = "keep-last"

	s, err := newPipeline(cfg).Run(context.Background(), RunOptions{SkipLoad: true})
	require.NoError(t, err)
	sales := s.Gate.Files[3]
	assert.Equal(t, gate.Accepted, sales.Outcome)
	assert.Equal(t, 1, sales.Skipped)
	assert.Equal(t, 3, s.Curated.Enriched.Len())

	for _, r := range s.Curated.Enriched.Rows {
		if r["customer_id"] == "C00002" {
			assert.Equal(t, "Bobby", r["name"], "last customer row wins")
		}
	}
}

func TestRunStopsOnRejection(t *testing.T) {
	files := map[string]string{}
	for k, v := range fixtures {
		files[k] = v
	}
	files["sap_customers.csv"] = "id,name\n1,Alice\n"
	cfg := testConfig(t, files)

	s, err := newPipeline(cfg).Run(context.Background(), RunOptions{})
	require.ErrorIs(t, err, gate.ErrValidationFailed)
	assert.True(t, IsRejection(err))
	assert.Equal(t, 3, s.Gate.Count(gate.Accepted))
	assert.Nil(t, s.Curated)

	_, statErr := os.Stat(cfg.Paths.Curated)
	assert.ErrorIs(t, statErr, fs.ErrNotExist)
}

func TestCurateFromValidatedMatchesInMemory(t *testing.T) {
	cfg := testConfig(t, fixtures)

	s, err := newPipeline(cfg).Run(context.Background(), RunOptions{SkipLoad: true})
	require.NoError(t, err)
	assert.Empty(t, s.Loaded)

	// Re-entering from the validated CSVs must reproduce the same parquet bytes.
	cr, err := newPipeline(cfg).Curate(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, cr.Tables, 4)
	for _, w := range cr.Tables {
		assert.Equal(t, len(w.Files), w.Unchanged, w.Table)
	}
}

func TestCurateMissingValidated(t *testing.T) {
	cfg := testConfig(t, fixtures)

	_, err := newPipeline(cfg).Curate(context.Background(), nil)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadWithoutCuratedData(t *testing.T) {
	cfg := testConfig(t, fixtures)

	_, err := newPipeline(cfg).Load(context.Background())
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadReplacesTables(t *testing.T) {
	cfg := testConfig(t, fixtures)
	p := newPipeline(cfg)

	_, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	loaded, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), loaded[0].Rows)

	db, err := sql.Open("sqlite", cfg.Warehouse.DSN)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "fct_sales_enriched"`).Scan(&n))
	assert.Equal(t, 3, n, "a second load replaces instead of appending")
}

func TestTargetTable(t *testing.T) {
	assert.Equal(t, "fct_sales_enriched", TargetTable(curated.SalesEnriched))
	assert.Equal(t, "dim_calendar", TargetTable(curated.DimCalendar))
}

func TestNewSource(t *testing.T) {
	cfg := config.Default()

	src, err := NewSource(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &file.Dir{}, src)

	cfg.Source.Kind = "s3"
	_, err = NewSource(context.Background(), cfg)
	assert.Error(t, err, "bucket is required")

	cfg.Source.Kind = "ftp"
	_, err = NewSource(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported source.kind")
}

func TestRunIDGenerated(t *testing.T) {
	p := New(config.Default(), nil, nil)
	assert.Len(t, p.RunID(), 36)
}
