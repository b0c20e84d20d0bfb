package builtin

import (
	"math"
	"reflect"
	"testing"

	"salesetl/internal/dataset"
	"salesetl/pkg/records"
)

func sales(cols []string, rows ...records.Record) *dataset.Dataset {
	d := dataset.New("sap_sales.csv")
	for _, c := range cols {
		d.AddColumn(dataset.Column{Name: c, Type: dataset.TypeNumber})
	}
	for _, r := range rows {
		d.Append(r)
	}
	return d
}

func TestDeriveRevenue(t *testing.T) {
	d := sales([]string{"quantity", "price"},
		records.Record{"quantity": 3.0, "price": 9.5},
		records.Record{"quantity": 3.0, "price": 0.1},
		records.Record{"quantity": nil, "price": 2.0},
		records.Record{"quantity": 1.0, "price": nil},
	)
	DeriveRevenue{}.Apply(d)

	want := []any{28.5, 0.3, nil, nil}
	if got := d.Values("revenue"); !reflect.DeepEqual(got, want) {
		t.Fatalf("revenue=%#v; want %#v", got, want)
	}
}

/*
TestDeriveRevenue_Idempotent verifies that an existing revenue column is never
recomputed, even when it disagrees with quantity * price.
*/
func TestDeriveRevenue_Idempotent(t *testing.T) {
	d := sales([]string{"quantity", "price", "revenue"},
		records.Record{"quantity": 3.0, "price": 9.5, "revenue": 1.0},
		records.Record{"quantity": 2.0, "price": 2.0, "revenue": nil},
	)
	before := d.Clone()
	DeriveRevenue{}.Apply(d)
	DeriveRevenue{}.Apply(d)

	if !reflect.DeepEqual(d.Rows, before.Rows) {
		t.Fatalf("rows changed: %#v", d.Rows)
	}
}

func TestDeriveRevenue_MissingFactor(t *testing.T) {
	d := sales([]string{"quantity"}, records.Record{"quantity": 3.0})
	DeriveRevenue{}.Apply(d)
	if d.Has("revenue") {
		t.Fatalf("revenue must not be derived without price")
	}
}

/*
TestDeriveRevenue_NonFinite verifies that infinite factors and a product that
overflows float64 leave revenue nil instead of failing.
*/
func TestDeriveRevenue_NonFinite(t *testing.T) {
	d := sales([]string{"quantity", "price"},
		records.Record{"quantity": "inf", "price": 9.5},
		records.Record{"quantity": 3.0, "price": "-inf"},
		records.Record{"quantity": math.Inf(1), "price": 1.0},
		records.Record{"quantity": 1e308, "price": 10.0},
		records.Record{"quantity": 2.0, "price": 1.5},
	)
	DeriveRevenue{}.Apply(d)

	want := []any{nil, nil, nil, nil, 3.0}
	if got := d.Values("revenue"); !reflect.DeepEqual(got, want) {
		t.Fatalf("revenue=%#v; want %#v", got, want)
	}
}
