// Package dataset holds the in-memory tabular model passed between the
// normalizer, the quality engine, the enrichment engine and the writers.
//
// A Dataset is fully materialized: every row lives in memory for the duration
// of a run. Column order is insertion order and is only used to produce stable
// output files; it carries no meaning for joins or rules.
package dataset

import (
	"strings"

	"salesetl/pkg/records"
)

// ValueType classifies the values a column may hold after normalization.
type ValueType string

const (
	// TypeText is free text, kept as string.
	TypeText ValueType = "text"
	// TypeIdentifier is a trimmed, upper-cased business key such as C00001.
	TypeIdentifier ValueType = "identifier"
	// TypeDate is an ISO calendar date string (YYYY-MM-DD).
	TypeDate ValueType = "date"
	// TypeNumber is a float64 measure.
	TypeNumber ValueType = "number"
)

// Well-known column names.
const (
	ColCustomerID = "customer_id"
	ColProductID  = "product_id"
	ColDate       = "date"
	ColCalDate    = "cal_date"
	ColQuantity   = "quantity"
	ColPrice      = "price"
	ColRevenue    = "revenue"
)

// Column describes one named column.
type Column struct {
	Name string
	Type ValueType
}

// Dataset is an ordered sequence of records with a fixed set of columns.
type Dataset struct {
	// Name is the logical name, usually the source file name.
	Name    string
	Columns []Column
	Rows    []records.Record
}

// New returns an empty dataset with the given columns.
func New(name string, cols ...Column) *Dataset {
	d := &Dataset{Name: name}
	for _, c := range cols {
		d.AddColumn(c)
	}
	return d
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Index returns the position of the named column or -1.
func (d *Dataset) Index(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether the named column exists.
func (d *Dataset) Has(name string) bool { return d != nil && d.Index(name) >= 0 }

// Column returns the named column.
func (d *Dataset) Column(name string) (Column, bool) {
	if i := d.Index(name); i >= 0 {
		return d.Columns[i], true
	}
	return Column{}, false
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// AddColumn appends c unless a column of the same name exists. It reports
// whether the column was added.
func (d *Dataset) AddColumn(c Column) bool {
	if d.Index(c.Name) >= 0 {
		return false
	}
	if c.Type == "" {
		c.Type = TypeText
	}
	d.Columns = append(d.Columns, c)
	return true
}

// SetType changes the value type of an existing column.
func (d *Dataset) SetType(name string, t ValueType) {
	if i := d.Index(name); i >= 0 {
		d.Columns[i].Type = t
	}
}

// RenameColumn renames a column in the schema and in every row. Renaming onto
// an existing name is refused and reported as false.
func (d *Dataset) RenameColumn(from, to string) bool {
	i := d.Index(from)
	if i < 0 || from == to || d.Index(to) >= 0 {
		return false
	}
	d.Columns[i].Name = to
	for _, r := range d.Rows {
		if v, ok := r[from]; ok {
			r[to] = v
			delete(r, from)
		}
	}
	return true
}

// Append adds a row.
func (d *Dataset) Append(r records.Record) { d.Rows = append(d.Rows, r) }

// Values returns the values of one column in row order.
func (d *Dataset) Values(name string) []any {
	out := make([]any, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r[name]
	}
	return out
}

// Clone returns a copy whose schema and rows can be mutated without touching d.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Name:    d.Name,
		Columns: append([]Column(nil), d.Columns...),
		Rows:    make([]records.Record, len(d.Rows)),
	}
	for i, r := range d.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Kind is the dataset kind that selects required-column rules.
type Kind string

const (
	KindUnknown   Kind = ""
	KindCustomers Kind = "customers"
	KindProducts  Kind = "products"
	KindCalendar  Kind = "calendar"
	KindSales     Kind = "sales"
)

// Kinds lists the known kinds in processing order.
var Kinds = []Kind{KindCustomers, KindProducts, KindCalendar, KindSales}

// KindForFile derives the kind from a file name by substring match, e.g.
// "sap_sales.csv" -> KindSales.
func KindForFile(name string) Kind {
	n := strings.ToLower(name)
	for _, k := range Kinds {
		if strings.Contains(n, string(k)) {
			return k
		}
	}
	return KindUnknown
}
