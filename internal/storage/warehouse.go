package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"salesetl/internal/dataset"
	"salesetl/internal/metrics"
)

// DefaultBatchSize is the number of rows per bulk copy.
const DefaultBatchSize = 5000

// Loader replaces warehouse tables with datasets.
type Loader struct {
	repo      Repository
	schema    string
	batchSize int
	job       string
	log       *zap.Logger
}

// NewLoader returns a Loader writing into schema. A batchSize below 1 means
// DefaultBatchSize.
func NewLoader(repo Repository, schema string, batchSize int, job string, log *zap.Logger) *Loader {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{repo: repo, schema: schema, batchSize: batchSize, job: job, log: log}
}

// EnsureSchema creates the target schema if the backend supports schemas.
func (l *Loader) EnsureSchema(ctx context.Context) error {
	stmt := l.repo.Dialect().CreateSchema(l.schema)
	if stmt == "" {
		return nil
	}
	if err := l.repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create schema %s: %w", l.schema, err)
	}
	return nil
}

// Replace drops table, recreates it from the columns of ds and copies every
// row in batches. Column names are lower-cased. It returns the rows copied.
func (l *Loader) Replace(ctx context.Context, table string, ds *dataset.Dataset) (int64, error) {
	start := time.Now()
	d := l.repo.Dialect()
	td := d.FromDataset(l.schema, table, ds.Columns)
	create, err := d.CreateTable(td)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", table, err)
	}

	if err := l.repo.Exec(ctx, d.DropTable(l.schema, table)); err != nil {
		return 0, fmt.Errorf("drop %s: %w", table, err)
	}
	if err := l.repo.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("create %s: %w", table, err)
	}

	columns := make([]string, len(td.Columns))
	for i, c := range td.Columns {
		columns[i] = c.Name
	}

	n, batches, err := CopyBatches(ctx, l.log.With(zap.String("table", table)), ds, ds.ColumnNames(), l.batchSize,
		func(ctx context.Context, rows [][]any) (int64, error) {
			return l.repo.CopyFrom(ctx, l.schema, table, columns, rows)
		})
	metrics.RecordBatches(l.job, int64(batches))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	metrics.RecordRows(l.job, table, "loaded", n)

	l.log.Info("table loaded",
		zap.String("table", qualified(l.schema, table)),
		zap.Int64("rows", n),
		zap.Int("columns", len(columns)),
		zap.Duration("duration", time.Since(start)),
	)
	return n, nil
}

func qualified(schema, table string) string {
	if schema == "" {
		return table
	}
	return strings.Join([]string{schema, table}, ".")
}
