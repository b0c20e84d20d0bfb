package quality

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesetl/internal/dataset"
	"salesetl/pkg/records"
)

func result(t *testing.T, rep Report, id string) Result {
	t.Helper()
	for _, r := range rep.Results {
		if r.Rule == id {
			return r
		}
	}
	t.Fatalf("rule %s not in report %+v", id, rep.Results)
	return Result{}
}

// salesWithDates builds n valid sales rows and replaces the first bad of them
// with a null date.
func salesWithDates(n, bad int) *dataset.Dataset {
	d := dataset.New("sap_sales.csv",
		dataset.Column{Name: "customer_id"},
		dataset.Column{Name: "product_id"},
		dataset.Column{Name: "date"},
		dataset.Column{Name: "quantity"},
		dataset.Column{Name: "price"},
		dataset.Column{Name: "revenue"},
	)
	for i := 0; i < n; i++ {
		var date any = "2024-01-05"
		if i < bad {
			date = nil
		}
		d.Append(records.Record{
			"customer_id": fmt.Sprintf("C%05d", i),
			"product_id":  "P00001",
			"date":        date,
			"quantity":    1.0,
			"price":       2.0,
			"revenue":     2.0,
		})
	}
	return d
}

func TestRulesFor(t *testing.T) {
	tests := []struct {
		name string
		kind dataset.Kind
		cols []string
		want []string
	}{
		{"customers", dataset.KindCustomers, []string{"customer_id", "name"},
			[]string{"regex:customer_id", "column_exists:customer_id"}},
		{"customers missing id", dataset.KindCustomers, []string{"name"},
			[]string{"column_exists:customer_id"}},
		{"calendar", dataset.KindCalendar, []string{"date", "week"},
			[]string{"regex:date", "column_exists:date"}},
		{"sales", dataset.KindSales, []string{"customer_id", "product_id", "date", "quantity", "price", "revenue"},
			[]string{
				"regex:customer_id", "regex:product_id", "regex:date",
				"min_value:quantity", "min_value:price", "min_value:revenue",
				"column_exists:customer_id", "column_exists:product_id", "column_exists:date",
				"not_null:customer_id", "not_null:product_id", "not_null:date",
			}},
		{"unknown", dataset.KindUnknown, []string{"price"}, []string{"min_value:price"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := dataset.New("x")
			for _, c := range tc.cols {
				d.AddColumn(dataset.Column{Name: c})
			}
			var got []string
			for _, r := range RulesFor(tc.kind, d) {
				got = append(got, r.ID())
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

/*
TestRegexFractionPerViolation verifies that each row violating the identifier
pattern lowers the observed fraction by exactly 1/row-count.
*/
func TestRegexFractionPerViolation(t *testing.T) {
	const n = 8
	for bad := 0; bad <= 3; bad++ {
		d := dataset.New("sap_customers.csv", dataset.Column{Name: "customer_id"})
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("C%05d", i)
			if i < bad {
				id = fmt.Sprintf("X%d", i)
			}
			d.Append(records.Record{"customer_id": id})
		}
		rep := Evaluate(d, dataset.KindCustomers)
		res := result(t, rep, "regex:customer_id")
		assert.InDelta(t, 1-float64(bad)/n, res.Observed.Fraction, 1e-12, "bad=%d", bad)
		assert.Equal(t, bad, res.Observed.UnexpectedCount)
		assert.Equal(t, bad == 0, rep.Success)
	}
}

func TestRegexCaseInsensitive(t *testing.T) {
	d := dataset.New("sap_products.csv", dataset.Column{Name: "product_id"})
	d.Append(records.Record{"product_id": "p00001"})
	d.Append(records.Record{"product_id": "P00002"})

	rep := Evaluate(d, dataset.KindProducts)
	assert.True(t, result(t, rep, "regex:product_id").Success)
	assert.True(t, rep.Success)
}

/*
TestBlankIdentifierRejected verifies that a blank key counts against the
identifier rule of its dimension: one blank row in n gives (n-1)/n.
*/
func TestBlankIdentifierRejected(t *testing.T) {
	tests := []struct {
		file string
		kind dataset.Kind
		col  string
		ids  []any
	}{
		{"sap_products.csv", dataset.KindProducts, "product_id", []any{"P00001", nil, "P00002", "P00003"}},
		{"sap_customers.csv", dataset.KindCustomers, "customer_id", []any{"C00001", "C00002", nil}},
	}
	for _, tc := range tests {
		t.Run(tc.file, func(t *testing.T) {
			d := dataset.New(tc.file, dataset.Column{Name: tc.col}, dataset.Column{Name: "name"})
			for _, id := range tc.ids {
				d.Append(records.Record{tc.col: id, "name": "x"})
			}
			n := len(tc.ids)

			rep := Evaluate(d, tc.kind)
			res := result(t, rep, "regex:"+tc.col)
			assert.False(t, res.Success)
			assert.InDelta(t, float64(n-1)/float64(n), res.Observed.Fraction, 1e-12)
			assert.Equal(t, n, res.Observed.EvaluatedCount)
			assert.Equal(t, 1, res.Observed.NullCount)
			assert.False(t, rep.Success)
		})
	}
}

/*
TestDateThresholdBoundary verifies the 95% date rule: one null date in ten
rows rejects, exactly 95% passes, 94% fails.
*/
func TestDateThresholdBoundary(t *testing.T) {
	tests := []struct {
		n, bad   int
		fraction float64
		pass     bool
	}{
		{10, 1, 0.9, false},
		{100, 5, 0.95, true},
		{20, 1, 0.95, true},
		{100, 6, 0.94, false},
		{10, 0, 1, true},
	}
	for _, tc := range tests {
		rep := Evaluate(salesWithDates(tc.n, tc.bad), dataset.KindSales)
		res := result(t, rep, "regex:date")
		assert.Equal(t, tc.fraction, res.Observed.Fraction, "n=%d bad=%d", tc.n, tc.bad)
		assert.Equal(t, tc.pass, res.Success, "n=%d bad=%d", tc.n, tc.bad)
		assert.Equal(t, 0.95, res.Kwargs["mostly"])
	}
}

func TestSalesNullDateFailsNotNull(t *testing.T) {
	rep := Evaluate(salesWithDates(100, 5), dataset.KindSales)
	assert.True(t, result(t, rep, "regex:date").Success)
	assert.False(t, result(t, rep, "not_null:date").Success)
	assert.False(t, rep.Success)
	assert.Equal(t, 1, rep.Statistics.UnsuccessfulExpectations)
}

func TestCustomersMissingIDRejected(t *testing.T) {
	d := dataset.New("sap_customers.csv", dataset.Column{Name: "name"})
	d.Append(records.Record{"name": "Alice"})

	rep := Evaluate(d, dataset.KindCustomers)
	assert.False(t, rep.Success)
	require.Len(t, rep.Results, 1)
	assert.Equal(t, "expect_column_to_exist", rep.Results[0].ExpectationType)
	assert.Zero(t, rep.Results[0].Observed.Fraction)
}

func TestMinValueExcludesNulls(t *testing.T) {
	d := dataset.New("x", dataset.Column{Name: "price"})
	d.Append(records.Record{"price": 1.0})
	d.Append(records.Record{"price": nil})
	d.Append(records.Record{"price": 0.0})
	rep := Evaluate(d, dataset.KindUnknown)
	res := result(t, rep, "min_value:price")
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Observed.EvaluatedCount)

	d.Append(records.Record{"price": -0.5})
	res = result(t, Evaluate(d, dataset.KindUnknown), "min_value:price")
	assert.False(t, res.Success)
	assert.Equal(t, []any{-0.5}, res.Observed.UnexpectedSample)
}

func TestNonFiniteSampleEncodes(t *testing.T) {
	d := dataset.New("x", dataset.Column{Name: "price"})
	d.Append(records.Record{"price": 1.0})
	d.Append(records.Record{"price": math.Inf(-1)})

	rep := Evaluate(d, dataset.KindUnknown)
	res := result(t, rep, "min_value:price")
	assert.False(t, res.Success)
	assert.Equal(t, []any{"-Inf"}, res.Observed.UnexpectedSample)
	_, err := json.Marshal(rep)
	require.NoError(t, err)
}

func TestEmptyDatasetPasses(t *testing.T) {
	d := dataset.New("sap_sales.csv",
		dataset.Column{Name: "customer_id"}, dataset.Column{Name: "product_id"}, dataset.Column{Name: "date"})
	rep := Evaluate(d, dataset.KindSales)
	assert.True(t, rep.Success)
	for _, r := range rep.Results {
		assert.Equal(t, 1.0, r.Observed.Fraction, r.Rule)
	}
}

func TestUnknownRuleKindFails(t *testing.T) {
	d := dataset.New("x", dataset.Column{Name: "a"})
	rep := EvaluateRules(d, dataset.KindUnknown, []Rule{{Kind: "between", Column: "a", Mostly: 1}})
	assert.False(t, rep.Success)
	assert.Contains(t, rep.Results[0].Error, "unknown rule kind")
}

func TestReportJSONShape(t *testing.T) {
	rep := Evaluate(salesWithDates(10, 1), dataset.KindSales)
	b, err := json.Marshal(rep)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, false, m["success"])
	results, ok := m["results"].([]any)
	require.True(t, ok)
	first := results[0].(map[string]any)
	assert.Equal(t, "expect_column_values_to_match_regex", first["expectation_type"])
	assert.Contains(t, first, "kwargs")
	meta := m["meta"].(map[string]any)
	assert.Equal(t, "sales", meta["kind"])
	assert.NotContains(t, meta, "validation_time")
}
