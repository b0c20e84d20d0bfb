// Package csv reads raw extracts into datasets and writes datasets back out
// as delimited text. Every cell is read as text; typing is left to the schema
// normalizer.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"salesetl/internal/dataset"
	"salesetl/pkg/records"
)

// ErrMalformed is returned by a strict parser for rows that cannot be read or
// whose width differs from the header.
var ErrMalformed = errors.New("malformed csv")

// Options configures the CSV parser behavior. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value. Raw
	// extracts keep padding by default; identifiers are trimmed later.
	TrimSpace bool

	// Strict turns unreadable rows and width mismatches into ErrMalformed.
	// Otherwise such rows are skipped and counted.
	Strict bool

	// OnSkip, when set, is called for every skipped row in lenient mode.
	OnSkip func(line int, err error)
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Parse reads a header row followed by data rows. Column order follows the
// header; empty cells become nil. An input with no header at all yields an
// empty dataset with no columns.
func (p *Parser) Parse(name string, r io.Reader) (*dataset.Dataset, int, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	ds := dataset.New(name)
	h, err := cr.Read()
	if err == io.EOF {
		return ds, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	headers := uniqueHeaders(h)
	for _, col := range headers {
		ds.AddColumn(dataset.Column{Name: col})
	}

	var skipped int
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err == nil && len(row) != len(headers) {
			err = fmt.Errorf("line %d: expected %d fields, got %d", line, len(headers), len(row))
		}
		if err != nil {
			if p.opt.Strict {
				return nil, skipped, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			if p.opt.OnSkip != nil {
				p.opt.OnSkip(line, err)
			}
			skipped++
			continue
		}

		rec := make(records.Record, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[headers[i]] = emptyToNil(val)
		}
		ds.Append(rec)
	}
	return ds, skipped, nil
}

// emptyToNil converts an empty string to nil; all other values are returned as-is.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// uniqueHeaders strips the BOM from the first cell, names blank cells col_N and
// suffixes repeated names so every cell maps to its own column.
func uniqueHeaders(h []string) []string {
	res := make([]string, len(h))
	seen := make(map[string]int, len(h))
	for i, col := range h {
		if i == 0 {
			col = strings.TrimPrefix(col, utf8BOM)
		}
		if strings.TrimSpace(col) == "" {
			col = fmt.Sprintf("col_%d", i)
		}
		if n, dup := seen[col]; dup {
			seen[col] = n + 1
			col = fmt.Sprintf("%s.%d", col, n+1)
		}
		seen[col] = 0
		res[i] = col
	}
	return res
}
