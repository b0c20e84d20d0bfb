package builtin

import (
	"math"

	"github.com/shopspring/decimal"

	"salesetl/internal/dataset"
)

// DeriveRevenue adds revenue = quantity * price when the dataset has no
// revenue column. A dataset that already carries revenue is left untouched,
// which also makes repeated application a no-op. Rows missing either factor
// get a nil revenue.
type DeriveRevenue struct {
	Quantity string // default "quantity"
	Price    string // default "price"
	Revenue  string // default "revenue"
}

func (t DeriveRevenue) Apply(d *dataset.Dataset) *dataset.Dataset {
	qty, price, rev := t.names()
	if d.Has(rev) || !d.Has(qty) || !d.Has(price) {
		return d
	}
	d.AddColumn(dataset.Column{Name: rev, Type: dataset.TypeNumber})
	for _, r := range d.Rows {
		q, okQ := ParseNumber(r[qty])
		p, okP := ParseNumber(r[price])
		if !okQ || !okP {
			r[rev] = nil
			continue
		}
		if v, ok := multiply(q, p); ok {
			r[rev] = v
		} else {
			r[rev] = nil
		}
	}
	return d
}

func (t DeriveRevenue) names() (string, string, string) {
	qty, price, rev := t.Quantity, t.Price, t.Revenue
	if qty == "" {
		qty = dataset.ColQuantity
	}
	if price == "" {
		price = dataset.ColPrice
	}
	if rev == "" {
		rev = dataset.ColRevenue
	}
	return qty, price, rev
}

// multiply uses decimal arithmetic so that 3 * 0.1 yields 0.3 rather than
// 0.30000000000000004. decimal.NewFromFloat panics on non-finite input, so
// both factors are checked first.
func multiply(a, b float64) (float64, bool) {
	if !finite(a) || !finite(b) {
		return 0, false
	}
	f, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Float64()
	return f, finite(f)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
