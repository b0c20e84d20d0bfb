package builtin

import (
	"math"
	"strconv"
	"strings"
	"time"

	"salesetl/internal/dataset"
)

// ISODate is the canonical date layout of normalized datasets.
const ISODate = "2006-01-02"

// DefaultDateLayouts are tried in order when parsing raw date cells.
var DefaultDateLayouts = []string{
	ISODate,
	"2006-1-2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"20060102",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// Dates coerces date columns to ISO strings. Values that match none of the
// layouts become nil; coercion never fails the dataset.
type Dates struct {
	Columns []string
	Layouts []string // DefaultDateLayouts when empty
}

func (c Dates) Apply(d *dataset.Dataset) *dataset.Dataset {
	layouts := c.Layouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	for _, col := range c.Columns {
		if !d.Has(col) {
			continue
		}
		d.SetType(col, dataset.TypeDate)
		for _, r := range d.Rows {
			if t, ok := parseDate(r[col], layouts); ok {
				r[col] = t.Format(ISODate)
			} else {
				r[col] = nil
			}
		}
	}
	return d
}

// parseDate accepts a time.Time or a string in one of layouts.
func parseDate(v any, layouts []string) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, l := range layouts {
			if tm, err := time.Parse(l, s); err == nil {
				return tm, true
			}
		}
	}
	return time.Time{}, false
}

// Measures coerces measure columns to float64. Unparseable cells, NaN and
// infinities become nil.
type Measures struct {
	Columns []string
}

func (c Measures) Apply(d *dataset.Dataset) *dataset.Dataset {
	for _, col := range c.Columns {
		if !d.Has(col) {
			continue
		}
		d.SetType(col, dataset.TypeNumber)
		for _, r := range d.Rows {
			if f, ok := ParseNumber(r[col]); ok {
				r[col] = f
			} else {
				r[col] = nil
			}
		}
	}
	return d
}

// ParseNumber converts a cell to a finite float64. It reports false for nil,
// empty, non-numeric text, NaN and ±Inf (strconv accepts "inf" and
// "Infinity").
func ParseNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
