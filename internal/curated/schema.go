package curated

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"salesetl/internal/dataset"
	csvout "salesetl/internal/parser/csv"
	"salesetl/internal/transformer/builtin"
	"salesetl/pkg/records"
)

// schemaFor builds a flat schema of optional columns: numbers as DOUBLE,
// everything else as UTF-8 strings. Parquet groups order their fields by
// name, so the file column order is alphabetical.
func schemaFor(name string, cols []dataset.Column) *parquet.Schema {
	g := parquet.Group{}
	for _, c := range cols {
		if c.Type == dataset.TypeNumber {
			g[c.Name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		} else {
			g[c.Name] = parquet.Optional(parquet.String())
		}
	}
	return parquet.NewSchema(name, g)
}

// toRow renders rec in the leaf order of schema. Missing and nil values are
// written as nulls.
func toRow(schema *parquet.Schema, types map[string]dataset.ValueType, rec records.Record) parquet.Row {
	fields := schema.Fields()
	row := make(parquet.Row, len(fields))
	for i, f := range fields {
		v := leafValue(types[f.Name()], rec[f.Name()])
		if v.IsNull() {
			row[i] = v.Level(0, 0, i)
		} else {
			row[i] = v.Level(0, 1, i)
		}
	}
	return row
}

func leafValue(t dataset.ValueType, v any) parquet.Value {
	if v == nil {
		return parquet.NullValue()
	}
	if t == dataset.TypeNumber {
		if f, ok := builtin.ParseNumber(v); ok {
			return parquet.DoubleValue(f)
		}
		return parquet.NullValue()
	}
	if s, ok := v.(string); ok {
		return parquet.ByteArrayValue([]byte(s))
	}
	return parquet.ByteArrayValue([]byte(csvout.FormatValue(v)))
}

// fromValue converts a leaf value read from a file back to a record value.
func fromValue(v parquet.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	switch v.Kind() {
	case parquet.Double:
		return v.Double(), nil
	case parquet.Float:
		return float64(v.Float()), nil
	case parquet.Int32:
		return float64(v.Int32()), nil
	case parquet.Int64:
		return float64(v.Int64()), nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray()), nil
	case parquet.Boolean:
		return fmt.Sprint(v.Boolean()), nil
	default:
		return nil, fmt.Errorf("unsupported parquet value kind %s", v.Kind())
	}
}

func columnType(n parquet.Node) dataset.ValueType {
	switch n.Type().Kind() {
	case parquet.Double, parquet.Float, parquet.Int32, parquet.Int64:
		return dataset.TypeNumber
	default:
		return dataset.TypeText
	}
}
