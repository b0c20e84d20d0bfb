// Package enrich denormalizes the sales facts with dimension attributes.
//
// Joins are left joins in a fixed order (customers, products, calendar). A
// sales row is never dropped or repeated: each dimension is first reduced to
// one row per key, by default the first one seen.
package enrich

import (
	"errors"
	"fmt"

	"salesetl/internal/dataset"
	"salesetl/internal/transformer/builtin"
	"salesetl/pkg/records"
)

// ErrNoSales is returned when there is no sales dataset to enrich.
var ErrNoSales = errors.New("enrich: no sales dataset")

// EnrichedName is the name of the enriched fact dataset.
const EnrichedName = "sales_enriched"

// Join describes one dimension join.
type Join struct {
	Kind   dataset.Kind
	Key    string
	Suffix string
}

// Joins are applied in this order.
var Joins = []Join{
	{Kind: dataset.KindCustomers, Key: dataset.ColCustomerID, Suffix: "_cust"},
	{Kind: dataset.KindProducts, Key: dataset.ColProductID, Suffix: "_prod"},
	{Kind: dataset.KindCalendar, Key: dataset.ColDate, Suffix: "_cal"},
}

// Step reports what one join did. Reason is set when the join was skipped.
type Step struct {
	Join
	Applied bool
	Reason  string
	// Columns are the names the dimension attributes received in the output.
	Columns []string
	Matched int
}

// Options tunes Enrich.
type Options struct {
	// DedupPolicy picks the surviving dimension row per key; one of the
	// builtin.DeDup policies. Empty means builtin.KeepFirst.
	DedupPolicy string
}

// Enrich left-joins sales against dims keyed by kind, keeping the first
// dimension row of each key. sales itself is not modified. Missing dimensions
// and missing key columns skip their join.
func Enrich(sales *dataset.Dataset, dims map[dataset.Kind]*dataset.Dataset) (*dataset.Dataset, []Step, error) {
	return EnrichWith(sales, dims, Options{})
}

// EnrichWith is Enrich with an explicit dimension dedup policy.
func EnrichWith(sales *dataset.Dataset, dims map[dataset.Kind]*dataset.Dataset, opt Options) (*dataset.Dataset, []Step, error) {
	policy := opt.DedupPolicy
	if policy == "" {
		policy = builtin.KeepFirst
	}
	if sales == nil {
		return nil, nil, ErrNoSales
	}
	out := sales.Clone()
	out.Name = EnrichedName

	steps := make([]Step, 0, len(Joins))
	for _, j := range Joins {
		steps = append(steps, join(out, dims[j.Kind], j, policy))
	}
	return out, steps, nil
}

func join(out, dim *dataset.Dataset, j Join, policy string) Step {
	st := Step{Join: j}
	switch {
	case dim == nil:
		st.Reason = "no dimension"
		return st
	case !out.Has(j.Key):
		st.Reason = fmt.Sprintf("sales has no %s column", j.Key)
		return st
	case !dim.Has(j.Key):
		st.Reason = fmt.Sprintf("%s has no %s column", j.Kind, j.Key)
		return st
	}

	var attrs []dataset.Column
	for _, c := range dim.Columns {
		if c.Name != j.Key {
			attrs = append(attrs, c)
		}
	}
	if len(attrs) == 0 {
		st.Reason = "no attribute columns"
		return st
	}

	rows := builtin.DeDup{Keys: []string{j.Key}, Policy: policy}.Records(dim.Rows)
	index := make(map[string]records.Record, len(rows))
	for _, r := range rows {
		if k, ok := keyOf(r[j.Key]); ok {
			if _, seen := index[k]; !seen {
				index[k] = r
			}
		}
	}

	names := make([]string, len(attrs))
	for i, c := range attrs {
		name := c.Name
		for out.Has(name) {
			name += j.Suffix
		}
		names[i] = name
		out.AddColumn(dataset.Column{Name: name, Type: c.Type})
	}

	for _, r := range out.Rows {
		var match records.Record
		if k, ok := keyOf(r[j.Key]); ok {
			match = index[k]
		}
		if match != nil {
			st.Matched++
		}
		for i, c := range attrs {
			if match == nil {
				r[names[i]] = nil
			} else {
				r[names[i]] = match[c.Name]
			}
		}
	}

	st.Applied = true
	st.Columns = names
	return st
}

// keyOf renders a join key. Null keys never match.
func keyOf(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, t != ""
	default:
		return fmt.Sprint(t), true
	}
}
