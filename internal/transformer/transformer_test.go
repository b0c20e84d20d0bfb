package transformer

import (
	"reflect"
	"sync/atomic"
	"testing"

	"salesetl/internal/dataset"
	"salesetl/pkg/records"
)

/*
addFieldTransformer sets key -> value on every row. Used to verify mutation
flows through Chain.
*/
type addFieldTransformer struct {
	key string
	val any
}

func (t addFieldTransformer) Apply(d *dataset.Dataset) *dataset.Dataset {
	d.AddColumn(dataset.Column{Name: t.key})
	for _, r := range d.Rows {
		r[t.key] = t.val
	}
	return d
}

/*
counterTransformer increments *calls whenever Apply is invoked.
*/
type counterTransformer struct{ calls *int32 }

func (t counterTransformer) Apply(d *dataset.Dataset) *dataset.Dataset {
	atomic.AddInt32(t.calls, 1)
	return d
}

func rawSales(rows ...records.Record) *dataset.Dataset {
	d := dataset.New("sap_sales.csv",
		dataset.Column{Name: "Customer_ID "},
		dataset.Column{Name: "product_id"},
		dataset.Column{Name: "DATE"},
		dataset.Column{Name: "quantity"},
		dataset.Column{Name: "price"},
	)
	for _, r := range rows {
		d.Append(r)
	}
	return d
}

/*
TestChainApply_Composition_Order verifies that each transformer sees the
output of the one before it, in declared order.
*/
func TestChainApply_Composition_Order(t *testing.T) {
	d := dataset.New("x", dataset.Column{Name: "id"})
	d.Append(records.Record{"id": 1})
	c := Chain{
		addFieldTransformer{key: "a", val: "first"},
		addFieldTransformer{key: "b", val: "second"},
		addFieldTransformer{key: "a", val: "third"},
	}
	out := c.Apply(d)

	want := records.Record{"id": 1, "a": "third", "b": "second"}
	if !reflect.DeepEqual(out.Rows[0], want) {
		t.Fatalf("composition mismatch:\n got: %#v\nwant: %#v", out.Rows[0], want)
	}
	if got := out.ColumnNames(); !reflect.DeepEqual(got, []string{"id", "a", "b"}) {
		t.Fatalf("columns=%v", got)
	}
}

/*
TestChainApply_NilAndEmptyChain verifies that a nil or empty Chain returns its
input unchanged, and nil transformers are skipped.
*/
func TestChainApply_NilAndEmptyChain(t *testing.T) {
	d := dataset.New("x")
	var cNil Chain
	if cNil.Apply(d) != d {
		t.Fatalf("nil chain should return its input")
	}
	var calls int32
	c := Chain{nil, counterTransformer{&calls}, nil, counterTransformer{&calls}}
	if c.Apply(d) != d {
		t.Fatalf("chain should return its input")
	}
	if calls != 2 {
		t.Fatalf("calls=%d; want 2", calls)
	}
}

/*
TestSchemaNormalizer_SalesRow verifies the canonical scenario: padded lower-case
identifiers are upper-cased, measures become numbers and revenue is derived.
*/
func TestSchemaNormalizer_SalesRow(t *testing.T) {
	d := rawSales(records.Record{
		"Customer_ID ": " c00001 ",
		"product_id":   "p00001",
		"DATE":         "2024-01-05",
		"quantity":     "3",
		"price":        "9.5",
	})
	out := SchemaNormalizer(NormalizeOptions{}).Apply(d)

	want := records.Record{
		"customer_id": "C00001",
		"product_id":  "P00001",
		"date":        "2024-01-05",
		"quantity":    3.0,
		"price":       9.5,
		"revenue":     28.5,
	}
	if !reflect.DeepEqual(out.Rows[0], want) {
		t.Fatalf("row mismatch:\n got: %#v\nwant: %#v", out.Rows[0], want)
	}
	wantCols := []string{"customer_id", "product_id", "date", "quantity", "price", "revenue"}
	if got := out.ColumnNames(); !reflect.DeepEqual(got, wantCols) {
		t.Fatalf("columns=%v; want %v", got, wantCols)
	}
	col, _ := out.Column("revenue")
	if col.Type != dataset.TypeNumber {
		t.Fatalf("revenue type=%q", col.Type)
	}
}

/*
TestSchemaNormalizer_Idempotent verifies that normalizing normalized data
changes nothing, including an explicit revenue that differs from q*p.
*/
func TestSchemaNormalizer_Idempotent(t *testing.T) {
	d := rawSales(
		records.Record{"Customer_ID ": "c00001", "product_id": "P00002", "DATE": "01/31/2024", "quantity": "2", "price": "x"},
		records.Record{"Customer_ID ": "", "product_id": nil, "DATE": "garbage", "quantity": "1", "price": "4"},
	)
	n := SchemaNormalizer(NormalizeOptions{})
	once := n.Apply(d).Clone()
	once.Rows[1]["revenue"] = 99.0 // overridden value must survive
	twice := n.Apply(once.Clone())

	if !reflect.DeepEqual(once.Rows, twice.Rows) {
		t.Fatalf("second pass changed rows:\n got: %#v\nwant: %#v", twice.Rows, once.Rows)
	}
	if !reflect.DeepEqual(once.Columns, twice.Columns) {
		t.Fatalf("second pass changed columns: %v vs %v", twice.Columns, once.Columns)
	}
	if once.Rows[0]["date"] != "2024-01-31" || once.Rows[0]["revenue"] != nil {
		t.Fatalf("unexpected first row %#v", once.Rows[0])
	}
	if once.Rows[1]["customer_id"] != nil || once.Rows[1]["date"] != nil {
		t.Fatalf("empty identifier and bad date should be nil: %#v", once.Rows[1])
	}
}

/*
TestSchemaNormalizer_CalendarAlias verifies cal_date is renamed to date and a
configured alias is applied on top of it.
*/
func TestSchemaNormalizer_CalendarAlias(t *testing.T) {
	d := dataset.New("sap_calendar.csv", dataset.Column{Name: "CAL_DATE"}, dataset.Column{Name: "Wk"})
	d.Append(records.Record{"CAL_DATE": "20240105", "Wk": "1"})
	out := SchemaNormalizer(NormalizeOptions{Aliases: map[string]string{"WK": "week"}}).Apply(d)

	want := records.Record{"date": "2024-01-05", "week": "1"}
	if !reflect.DeepEqual(out.Rows[0], want) {
		t.Fatalf("got %#v want %#v", out.Rows[0], want)
	}
}
