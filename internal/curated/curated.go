// Package curated persists the final tables as Parquet datasets and reads
// them back for the warehouse load.
//
// Layout under the curated root:
//
//	sales_enriched/date=2024-01-05/part-0.parquet
//	sales_enriched/date=__HIVE_DEFAULT_PARTITION__/part-0.parquet
//	dim_customers/part-0.parquet
//
// Each directory holds a single part-0.parquet that is replaced on every
// write. Partitions a run does not produce are left in place.
package curated

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"salesetl/internal/artifact"
	"salesetl/internal/dataset"
	"salesetl/internal/enrich"
	"salesetl/pkg/records"
)

// ErrNoData is returned for a table without a dataset or without columns.
var ErrNoData = errors.New("curated: no data")

const (
	// PartFile is the single data file of a table or partition directory.
	PartFile = "part-0.parquet"
	// DefaultPartition names the partition of null partition values.
	DefaultPartition = "__HIVE_DEFAULT_PARTITION__"
)

// Table names of the curated layout.
const (
	SalesEnriched = enrich.EnrichedName
	DimCustomers  = "dim_customers"
	DimProducts   = "dim_products"
	DimCalendar   = "dim_calendar"
)

// TableNames lists the curated tables in load order.
var TableNames = []string{SalesEnriched, DimCustomers, DimProducts, DimCalendar}

var dimTables = map[dataset.Kind]string{
	dataset.KindCustomers: DimCustomers,
	dataset.KindProducts:  DimProducts,
	dataset.KindCalendar:  DimCalendar,
}

// Table is one dataset to persist. PartitionBy, when set and present in
// Data, splits rows into hive-style directories.
type Table struct {
	Name        string
	Data        *dataset.Dataset
	PartitionBy string
}

// Tables arranges the enriched facts and the dimension snapshots into the
// curated layout. The fact table is partitioned by date when it has one.
// Missing dimensions are left out.
func Tables(enriched *dataset.Dataset, dims map[dataset.Kind]*dataset.Dataset) []Table {
	out := []Table{{Name: SalesEnriched, Data: enriched}}
	if enriched.Has(dataset.ColDate) {
		out[0].PartitionBy = dataset.ColDate
	}
	for _, k := range []dataset.Kind{dataset.KindCustomers, dataset.KindProducts, dataset.KindCalendar} {
		if d := dims[k]; d != nil {
			out = append(out, Table{Name: dimTables[k], Data: d})
		}
	}
	return out
}

// Written summarises one persisted table.
type Written struct {
	Table string
	Rows  int
	// Files are the part files of this write, sorted.
	Files []string
	// Unchanged counts files that already held identical bytes.
	Unchanged int
}

// Writer persists tables under a root directory.
type Writer struct {
	root string
	log  *zap.Logger
}

// NewWriter returns a Writer rooted at root.
func NewWriter(root string, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{root: root, log: log}
}

// Write persists every table concurrently. The first error cancels the
// remaining writes; results are in input order.
func (w *Writer) Write(ctx context.Context, tables []Table) ([]Written, error) {
	out := make([]Written, len(tables))
	eg, ctx := errgroup.WithContext(ctx)
	for i, t := range tables {
		eg.Go(func() error {
			res, err := w.WriteTable(ctx, t)
			if err != nil {
				return fmt.Errorf("write %s: %w", t.Name, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteTable persists one table.
func (w *Writer) WriteTable(ctx context.Context, t Table) (Written, error) {
	start := time.Now()
	if t.Data == nil || len(t.Data.Columns) == 0 {
		return Written{}, fmt.Errorf("%s: %w", t.Name, ErrNoData)
	}
	res := Written{Table: t.Name, Rows: t.Data.Len()}
	dir := filepath.Join(w.root, t.Name)

	parts := map[string][]records.Record{"": t.Data.Rows}
	cols := t.Data.Columns
	if t.PartitionBy != "" && t.Data.Has(t.PartitionBy) {
		parts = partition(t.Data.Rows, t.PartitionBy)
		cols = without(cols, t.PartitionBy)
	}

	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return Written{}, err
		}
		path := filepath.Join(dir, k, PartFile)
		body, err := encode(t.Name, cols, parts[k])
		if err != nil {
			return Written{}, err
		}
		changed, err := artifact.WriteFile(path, body)
		if err != nil {
			return Written{}, err
		}
		if !changed {
			res.Unchanged++
		}
		res.Files = append(res.Files, path)
	}

	w.log.Info("curated table written",
		zap.String("table", t.Name),
		zap.Int("rows", res.Rows),
		zap.Int("files", len(res.Files)),
		zap.Int("unchanged", res.Unchanged),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// partition groups rows by the hive directory of their partition value.
// The partition column itself is stored only in the directory name.
func partition(rows []records.Record, col string) map[string][]records.Record {
	out := map[string][]records.Record{}
	for _, r := range rows {
		k := col + "=" + partitionValue(r[col])
		out[k] = append(out[k], r)
	}
	return out
}

func partitionValue(v any) string {
	s, ok := v.(string)
	if v == nil || (ok && s == "") {
		return DefaultPartition
	}
	if !ok {
		s = fmt.Sprint(v)
	}
	return escapePartition(s)
}

// escapePartition percent-encodes characters that cannot appear in a hive
// directory name.
func escapePartition(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7f || strings.IndexByte(`"#%'*/:=?\{[]^`, c) >= 0 {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func unescapePartition(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

func without(cols []dataset.Column, name string) []dataset.Column {
	out := make([]dataset.Column, 0, len(cols))
	for _, c := range cols {
		if c.Name != name {
			out = append(out, c)
		}
	}
	return out
}

func encode(name string, cols []dataset.Column, rows []records.Record) ([]byte, error) {
	schema := schemaFor(name, cols)
	types := make(map[string]dataset.ValueType, len(cols))
	for _, c := range cols {
		types[c.Name] = c.Type
	}

	var buf bytes.Buffer
	pw := parquet.NewWriter(&buf, schema)
	batch := make([]parquet.Row, 0, 1024)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := pw.WriteRows(batch); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		batch = batch[:0]
		return nil
	}
	for _, r := range rows {
		batch = append(batch, toRow(schema, types, r))
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
