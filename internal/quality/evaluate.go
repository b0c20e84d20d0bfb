package quality

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"salesetl/internal/dataset"
	"salesetl/internal/transformer/builtin"
)

// sampleSize bounds the unexpected values echoed into a result.
const sampleSize = 20

// Observed carries the counts behind a rule outcome. Fraction is
// (evaluated - unexpected) / evaluated, or 1 when nothing was evaluated.
type Observed struct {
	ElementCount     int     `json:"element_count"`
	NullCount        int     `json:"null_count"`
	EvaluatedCount   int     `json:"evaluated_count"`
	UnexpectedCount  int     `json:"unexpected_count"`
	Fraction         float64 `json:"observed_fraction"`
	UnexpectedSample []any   `json:"partial_unexpected_list,omitempty"`
}

// Result is the outcome of one rule.
type Result struct {
	Rule            string         `json:"rule"`
	ExpectationType string         `json:"expectation_type"`
	Column          string         `json:"column"`
	Kwargs          map[string]any `json:"kwargs"`
	Success         bool           `json:"success"`
	Observed        Observed       `json:"result"`
	Error           string         `json:"exception_info,omitempty"`
}

// Statistics summarises a report.
type Statistics struct {
	EvaluatedExpectations    int     `json:"evaluated_expectations"`
	SuccessfulExpectations   int     `json:"successful_expectations"`
	UnsuccessfulExpectations int     `json:"unsuccessful_expectations"`
	SuccessPercent           float64 `json:"success_percent"`
}

// Meta identifies what was evaluated. Evaluate fills Dataset, Kind and
// RowCount; the gate adds the run and source identity.
type Meta struct {
	Dataset           string    `json:"dataset"`
	Kind              string    `json:"kind"`
	RowCount          int       `json:"row_count"`
	RunID             string    `json:"run_id,omitempty"`
	SourceFingerprint string    `json:"source_fingerprint,omitempty"`
	EvaluatedAt       time.Time `json:"validation_time,omitzero"`
}

// Report is the verdict over one dataset. Success is the AND of every result.
type Report struct {
	Success    bool       `json:"success"`
	Results    []Result   `json:"results"`
	Statistics Statistics `json:"statistics"`
	Meta       Meta       `json:"meta"`
	// Error is set on the report of a file that failed before evaluation.
	Error string `json:"exception_info,omitempty"`
}

// Failed returns the results that did not pass.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Success {
			out = append(out, res)
		}
	}
	return out
}

type evaluator struct {
	expectation string
	eval        func(Rule, *dataset.Dataset) (Observed, error)
}

// evaluators is the single dispatch table over rule kinds.
var evaluators = map[RuleKind]evaluator{
	KindRegex:        {"expect_column_values_to_match_regex", evalRegex},
	KindMinValue:     {"expect_column_values_to_be_between", evalMinValue},
	KindColumnExists: {"expect_column_to_exist", evalExists},
	KindNotNull:      {"expect_column_values_to_not_be_null", evalNotNull},
}

// Evaluate runs the rules of kind against ds. It has no side effects.
func Evaluate(ds *dataset.Dataset, kind dataset.Kind) Report {
	return EvaluateRules(ds, kind, RulesFor(kind, ds))
}

// EvaluateRules runs an explicit rule list. A rule of an unknown kind fails.
func EvaluateRules(ds *dataset.Dataset, kind dataset.Kind, rules []Rule) Report {
	rep := Report{
		Success: true,
		Results: make([]Result, 0, len(rules)),
		Meta:    Meta{Dataset: ds.Name, Kind: string(kind), RowCount: ds.Len()},
	}
	for _, rule := range rules {
		res := Result{
			Rule:   rule.ID(),
			Column: rule.Column,
			Kwargs: kwargs(rule),
		}
		ev, ok := evaluators[rule.Kind]
		if !ok {
			res.ExpectationType = string(rule.Kind)
			res.Error = fmt.Sprintf("unknown rule kind %q", rule.Kind)
		} else {
			res.ExpectationType = ev.expectation
			obs, err := ev.eval(rule, ds)
			if err != nil {
				res.Error = err.Error()
			} else {
				res.Observed = obs
				res.Success = obs.Fraction >= rule.Mostly
			}
		}
		rep.Success = rep.Success && res.Success
		rep.Results = append(rep.Results, res)
	}

	st := &rep.Statistics
	st.EvaluatedExpectations = len(rep.Results)
	for _, res := range rep.Results {
		if res.Success {
			st.SuccessfulExpectations++
		}
	}
	st.UnsuccessfulExpectations = st.EvaluatedExpectations - st.SuccessfulExpectations
	st.SuccessPercent = 100
	if st.EvaluatedExpectations > 0 {
		st.SuccessPercent = 100 * float64(st.SuccessfulExpectations) / float64(st.EvaluatedExpectations)
	}
	return rep
}

func kwargs(r Rule) map[string]any {
	kw := map[string]any{"column": r.Column, "mostly": r.Mostly}
	switch r.Kind {
	case KindRegex:
		kw["regex"] = r.Pattern
	case KindMinValue:
		kw["min_value"] = r.Min
	}
	return kw
}

// tally walks a column and counts rows by predicate. Nulls are excluded from
// the denominator unless nullsFail is set.
func tally(ds *dataset.Dataset, col string, nullsFail bool, ok func(any) bool) Observed {
	obs := Observed{ElementCount: ds.Len()}
	for _, r := range ds.Rows {
		v := r[col]
		if r.IsNull(col) {
			obs.NullCount++
			if !nullsFail {
				continue
			}
			obs.EvaluatedCount++
			obs.UnexpectedCount++
			continue
		}
		obs.EvaluatedCount++
		if !ok(v) {
			obs.UnexpectedCount++
			if len(obs.UnexpectedSample) < sampleSize {
				obs.UnexpectedSample = append(obs.UnexpectedSample, sample(v))
			}
		}
	}
	obs.Fraction = fraction(obs.EvaluatedCount-obs.UnexpectedCount, obs.EvaluatedCount)
	return obs
}

// sample returns v in a JSON-encodable form. Non-finite floats are kept as
// their text, e.g. "+Inf".
func sample(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return v
}

func fraction(good, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(good) / float64(total)
}

func evalRegex(r Rule, ds *dataset.Dataset) (Observed, error) {
	re, err := patternFor(r.Pattern)
	if err != nil {
		return Observed{}, fmt.Errorf("compile %q: %w", r.Pattern, err)
	}
	return tally(ds, r.Column, r.NullsFail, func(v any) bool {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		return re.MatchString(s)
	}), nil
}

func evalMinValue(r Rule, ds *dataset.Dataset) (Observed, error) {
	return tally(ds, r.Column, r.NullsFail, func(v any) bool {
		f, ok := builtin.ParseNumber(v)
		return ok && f >= r.Min
	}), nil
}

func evalExists(r Rule, ds *dataset.Dataset) (Observed, error) {
	obs := Observed{ElementCount: ds.Len(), EvaluatedCount: 1, Fraction: 1}
	if !ds.Has(r.Column) {
		obs.UnexpectedCount = 1
		obs.Fraction = 0
	}
	return obs, nil
}

func evalNotNull(r Rule, ds *dataset.Dataset) (Observed, error) {
	obs := Observed{ElementCount: ds.Len(), EvaluatedCount: ds.Len()}
	for _, row := range ds.Rows {
		if row.IsNull(r.Column) {
			obs.NullCount++
			obs.UnexpectedCount++
		}
	}
	obs.Fraction = fraction(obs.EvaluatedCount-obs.UnexpectedCount, obs.EvaluatedCount)
	return obs, nil
}
