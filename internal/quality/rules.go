// Package quality evaluates the data-quality contract of an extract.
//
// Rules are plain values tagged with a RuleKind. Evaluate looks each kind up
// in a single dispatch table, so the set of checks a dataset receives is data
// (RulesFor) and not control flow.
package quality

import (
	"fmt"
	"regexp"

	"salesetl/internal/dataset"
)

// RuleKind tags a rule with the predicate it applies.
type RuleKind string

const (
	// KindRegex requires values to match Rule.Pattern.
	KindRegex RuleKind = "regex"
	// KindMinValue requires numeric values to be >= Rule.Min.
	KindMinValue RuleKind = "min_value"
	// KindColumnExists requires Rule.Column to be part of the schema.
	KindColumnExists RuleKind = "column_exists"
	// KindNotNull requires every value of Rule.Column to be non-null.
	KindNotNull RuleKind = "not_null"
)

// Rule is one check: a target column, a predicate kind with its parameters,
// and the fraction of evaluated rows that must satisfy it.
type Rule struct {
	Kind   RuleKind
	Column string

	// Pattern is the regular expression of a KindRegex rule.
	Pattern string
	// Min is the inclusive lower bound of a KindMinValue rule.
	Min float64
	// NullsFail counts null values as failures instead of excluding them
	// from the denominator.
	NullsFail bool

	// Mostly is the required success fraction in [0,1].
	Mostly float64
}

// ID names the rule in reports, e.g. "regex:customer_id".
func (r Rule) ID() string { return fmt.Sprintf("%s:%s", r.Kind, r.Column) }

// Patterns of the identifier and date rules.
const (
	CustomerIDPattern = `(?i)^[C][0-9]{5}$`
	ProductIDPattern  = `(?i)^[P][0-9]{5}$`
	ISODatePattern    = `^\d{4}-\d{2}-\d{2}$`
)

// DateMostly is the share of rows that must carry a valid ISO date.
const DateMostly = 0.95

var compiled = map[string]*regexp.Regexp{
	CustomerIDPattern: regexp.MustCompile(CustomerIDPattern),
	ProductIDPattern:  regexp.MustCompile(ProductIDPattern),
	ISODatePattern:    regexp.MustCompile(ISODatePattern),
}

// required lists the columns each kind must carry. Sales columns must also be
// non-null in every row.
var required = map[dataset.Kind][]string{
	dataset.KindCustomers: {dataset.ColCustomerID},
	dataset.KindProducts:  {dataset.ColProductID},
	dataset.KindCalendar:  {dataset.ColDate},
	dataset.KindSales:     {dataset.ColCustomerID, dataset.ColProductID, dataset.ColDate},
}

// RulesFor returns the rules that apply to ds as a dataset of the given kind:
// column rules for the columns ds carries, then the kind's required-column
// rules. An unknown kind receives the column rules only. Identifier and date
// rules count null cells as violations; measure rules skip them.
func RulesFor(kind dataset.Kind, ds *dataset.Dataset) []Rule {
	var out []Rule
	if ds.Has(dataset.ColCustomerID) {
		out = append(out, Rule{Kind: KindRegex, Column: dataset.ColCustomerID, Pattern: CustomerIDPattern, NullsFail: true, Mostly: 1})
	}
	if ds.Has(dataset.ColProductID) {
		out = append(out, Rule{Kind: KindRegex, Column: dataset.ColProductID, Pattern: ProductIDPattern, NullsFail: true, Mostly: 1})
	}
	if ds.Has(dataset.ColDate) {
		out = append(out, Rule{Kind: KindRegex, Column: dataset.ColDate, Pattern: ISODatePattern, NullsFail: true, Mostly: DateMostly})
	}
	for _, m := range []string{dataset.ColQuantity, dataset.ColPrice, dataset.ColRevenue} {
		if ds.Has(m) {
			out = append(out, Rule{Kind: KindMinValue, Column: m, Min: 0, Mostly: 1})
		}
	}

	for _, col := range required[kind] {
		out = append(out, Rule{Kind: KindColumnExists, Column: col, Mostly: 1})
	}
	if kind == dataset.KindSales {
		for _, col := range required[kind] {
			if ds.Has(col) {
				out = append(out, Rule{Kind: KindNotNull, Column: col, Mostly: 1})
			}
		}
	}
	return out
}

func patternFor(p string) (*regexp.Regexp, error) {
	if re, ok := compiled[p]; ok {
		return re, nil
	}
	return regexp.Compile(p)
}
