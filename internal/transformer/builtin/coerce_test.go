package builtin

import (
	"math"
	"reflect"
	"testing"

	"salesetl/internal/dataset"
	"salesetl/pkg/records"
)

func TestDates(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"2024-01-05", "2024-01-05"},
		{" 2024-01-05 ", "2024-01-05"},
		{"2024-1-5", "2024-01-05"},
		{"2024-11-5", "2024-11-05"},
		{"2024-01-05T10:11:12Z", "2024-01-05"},
		{"2024-01-05 10:11:12", "2024-01-05"},
		{"2024/01/05", "2024-01-05"},
		{"01/05/2024", "2024-01-05"},
		{"1/5/2024", "2024-01-05"},
		{"05.01.2024", "2024-01-05"},
		{"20240105", "2024-01-05"},
		{"Jan 5, 2024", "2024-01-05"},
		{"5 Jan 2024", "2024-01-05"},
		{"2024-13-45", nil},
		{"soon", nil},
		{"", nil},
		{nil, nil},
		{7.0, nil},
	}
	for _, tc := range cases {
		d := dataset.New("x", dataset.Column{Name: "date"})
		d.Append(records.Record{"date": tc.in})
		Dates{Columns: []string{"date"}}.Apply(d)
		if got := d.Rows[0]["date"]; got != tc.want {
			t.Errorf("Dates(%#v)=%#v; want %#v", tc.in, got, tc.want)
		}
	}
}

func TestDates_CustomLayouts(t *testing.T) {
	d := dataset.New("x", dataset.Column{Name: "date"})
	d.Append(records.Record{"date": "05-01-2024"})
	d.Append(records.Record{"date": "2024-01-05"})
	Dates{Columns: []string{"date"}, Layouts: []string{"02-01-2006"}}.Apply(d)

	want := []any{"2024-01-05", nil}
	if got := d.Values("date"); !reflect.DeepEqual(got, want) {
		t.Fatalf("values=%#v; want %#v", got, want)
	}
}

func TestMeasures(t *testing.T) {
	d := dataset.New("x", dataset.Column{Name: "price"})
	for _, v := range []any{"9.5", " 3 ", "-1", "abc", "", "NaN", nil, 2.25, 4} {
		d.Append(records.Record{"price": v})
	}
	Measures{Columns: []string{"price", "quantity"}}.Apply(d)

	want := []any{9.5, 3.0, -1.0, nil, nil, nil, nil, 2.25, 4.0}
	if got := d.Values("price"); !reflect.DeepEqual(got, want) {
		t.Fatalf("values=%#v; want %#v", got, want)
	}
	c, _ := d.Column("price")
	if c.Type != dataset.TypeNumber {
		t.Fatalf("type=%q", c.Type)
	}
}

func TestParseNumber(t *testing.T) {
	if _, ok := ParseNumber(math.NaN()); ok {
		t.Fatalf("NaN must not parse")
	}
	if f, ok := ParseNumber(int64(7)); !ok || f != 7 {
		t.Fatalf("int64: %v %v", f, ok)
	}
	if _, ok := ParseNumber(true); ok {
		t.Fatalf("bool must not parse")
	}
	for _, in := range []any{"inf", "-inf", "+Inf", "Infinity", " -infinity ", math.Inf(1), math.Inf(-1)} {
		if f, ok := ParseNumber(in); ok {
			t.Errorf("ParseNumber(%#v)=%v; want no value", in, f)
		}
	}
}

func TestMeasuresInfinityBecomesNil(t *testing.T) {
	d := dataset.New("x", dataset.Column{Name: "price"})
	d.Append(records.Record{"price": "inf"})
	d.Append(records.Record{"price": "-Infinity"})
	d.Append(records.Record{"price": "1e3"})
	Measures{Columns: []string{"price"}}.Apply(d)

	want := []any{nil, nil, 1000.0}
	if got := d.Values("price"); !reflect.DeepEqual(got, want) {
		t.Fatalf("price=%#v; want %#v", got, want)
	}
}
