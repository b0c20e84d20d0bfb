package curated

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"salesetl/internal/dataset"
	"salesetl/pkg/records"
)

// Read loads a curated table from root. Partition directories are read in
// name order and their column is appended after the file columns, with
// DefaultPartition read back as null. A missing table is an error that
// wraps fs.ErrNotExist.
func Read(root, table string) (*dataset.Dataset, error) {
	dir := filepath.Join(root, table)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("curated table %s: %w", table, err)
	}

	ds := dataset.New(table)
	if _, err := os.Stat(filepath.Join(dir, PartFile)); err == nil {
		if err := readPart(ds, filepath.Join(dir, PartFile), "", nil); err != nil {
			return nil, err
		}
		return ds, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var partCol string
	var parts []string
	for _, e := range entries {
		col, _, ok := strings.Cut(e.Name(), "=")
		if !e.IsDir() || !ok {
			continue
		}
		if partCol != "" && col != partCol {
			return nil, fmt.Errorf("curated table %s: mixed partition columns %q and %q", table, partCol, col)
		}
		partCol = col
		parts = append(parts, e.Name())
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("curated table %s: %w", table, fs.ErrNotExist)
	}
	sort.Strings(parts)

	for _, p := range parts {
		_, raw, _ := strings.Cut(p, "=")
		var val any
		if raw != DefaultPartition {
			val = unescapePartition(raw)
		}
		if err := readPart(ds, filepath.Join(dir, p, PartFile), partCol, val); err != nil {
			return nil, err
		}
	}
	ds.AddColumn(dataset.Column{Name: partCol, Type: dataset.TypeText})
	return ds, nil
}

func readPart(ds *dataset.Dataset, path, partCol string, partVal any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	fields := pf.Schema().Fields()
	names := make([]string, len(fields))
	for i, fl := range fields {
		names[i] = fl.Name()
		ds.AddColumn(dataset.Column{Name: fl.Name(), Type: columnType(fl)})
	}

	buf := make([]parquet.Row, 256)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				rec := make(records.Record, len(names)+1)
				for _, v := range row {
					val, err := fromValue(v)
					if err != nil {
						_ = rows.Close()
						return fmt.Errorf("%s: %w", path, err)
					}
					rec[names[v.Column()]] = val
				}
				if partCol != "" {
					rec[partCol] = partVal
				}
				ds.Append(rec)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = rows.Close()
				return fmt.Errorf("read %s: %w", path, err)
			}
		}
		if err := rows.Close(); err != nil {
			return err
		}
	}
	return nil
}
