// Package builtin contains the dataset transforms that make up the schema
// normalizer and the enrichment helpers.
//
// Every transform mutates the dataset in place and returns it, so a chain of
// transforms never copies rows. Transforms are idempotent: applying one to its
// own output changes nothing.
package builtin

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"salesetl/internal/dataset"
	"salesetl/pkg/records"
)

const utf8BOM = "\uFEFF"

// CanonicalName folds a raw header cell into the column naming convention:
// BOM stripped, NFC composed, trimmed, lower-cased.
func CanonicalName(raw string) string {
	s := strings.TrimPrefix(raw, utf8BOM)
	s = norm.NFC.String(s)
	return strings.ToLower(strings.TrimSpace(s))
}

// Headers canonicalizes column names and applies aliases. An alias is only
// applied when its target column does not already exist, e.g. cal_date is
// renamed to date unless date is present.
type Headers struct {
	Aliases map[string]string
}

func (h Headers) Apply(d *dataset.Dataset) *dataset.Dataset {
	rename := make(map[string]string, len(d.Columns))
	used := make(map[string]int, len(d.Columns))
	changed := false
	for i, c := range d.Columns {
		name := CanonicalName(c.Name)
		// Two raw headers may fold to the same name; later ones get a
		// numeric suffix so no column is lost.
		if n, dup := used[name]; dup {
			used[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		}
		used[name] = 0
		if name != c.Name {
			changed = true
		}
		rename[c.Name] = name
		d.Columns[i].Name = name
	}
	if changed {
		for i, r := range d.Rows {
			out := make(records.Record, len(r))
			for k, v := range r {
				if to, ok := rename[k]; ok {
					out[to] = v
				} else {
					out[k] = v
				}
			}
			d.Rows[i] = out
		}
	}

	// Deterministic alias order.
	from := make([]string, 0, len(h.Aliases))
	for k := range h.Aliases {
		from = append(from, k)
	}
	sort.Strings(from)
	for _, f := range from {
		to := h.Aliases[f]
		if d.Has(f) && !d.Has(to) {
			d.RenameColumn(f, to)
		}
	}
	return d
}

// Identifiers trims and upper-cases identifier columns. Identifiers are never
// converted to numbers so values such as C00001 keep their prefix and leading
// zeros. Empty cells become nil.
type Identifiers struct {
	Columns []string
}

func (n Identifiers) Apply(d *dataset.Dataset) *dataset.Dataset {
	for _, col := range n.Columns {
		if !d.Has(col) {
			continue
		}
		d.SetType(col, dataset.TypeIdentifier)
		for _, r := range d.Rows {
			r[col] = normalizeIdentifier(r[col])
		}
	}
	return d
}

func normalizeIdentifier(v any) any {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case float64:
		// An identifier that reached us as a number; render without exponent.
		s = fmt.Sprintf("%.0f", t)
	default:
		s = fmt.Sprint(t)
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	return s
}
