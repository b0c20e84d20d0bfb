package csv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"salesetl/internal/dataset"
)

// Write emits ds as CSV: a header of column names followed by one line per
// row. Numbers use the shortest representation that round-trips and nulls
// are written as empty cells, so the output of Write parses back to the same
// normalized dataset.
func Write(w io.Writer, ds *dataset.Dataset) error {
	cw := csv.NewWriter(w)
	names := ds.ColumnNames()
	if err := cw.Write(names); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	line := make([]string, len(names))
	for _, r := range ds.Rows {
		for i, n := range names {
			line[i] = FormatValue(r[n])
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Encode renders ds into memory with Write.
func Encode(ds *dataset.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, ds); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatValue renders one cell value.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}
