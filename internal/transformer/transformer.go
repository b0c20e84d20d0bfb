// Package transformer defines the dataset transform contract and the schema
// normalizer chain applied to every raw and validated extract.
package transformer

import (
	"salesetl/internal/dataset"
	"salesetl/internal/transformer/builtin"
)

// Transformer rewrites a dataset. Implementations may mutate and return their
// input.
type Transformer interface {
	Apply(*dataset.Dataset) *dataset.Dataset
}

// Chain is an ordered list of transformers.
type Chain []Transformer

func (c Chain) Apply(in *dataset.Dataset) *dataset.Dataset {
	if len(c) == 0 {
		return in
	}

	out := in
	for _, t := range c {
		if t == nil {
			continue
		}
		out = t.Apply(out)
	}
	return out
}

// NormalizeOptions tunes the schema normalizer.
type NormalizeOptions struct {
	// DateLayouts replaces builtin.DefaultDateLayouts when non-empty.
	DateLayouts []string
	// Aliases maps a canonical source column to its target name. The
	// cal_date -> date alias is always present.
	Aliases map[string]string
}

// SchemaNormalizer returns the chain that canonicalizes an extract: column
// names, identifiers, the date column, measures, then revenue derivation.
// Applying the chain to its own output is a no-op.
func SchemaNormalizer(opt NormalizeOptions) Chain {
	aliases := map[string]string{dataset.ColCalDate: dataset.ColDate}
	for k, v := range opt.Aliases {
		aliases[builtin.CanonicalName(k)] = builtin.CanonicalName(v)
	}
	return Chain{
		builtin.Headers{Aliases: aliases},
		builtin.Identifiers{Columns: []string{dataset.ColCustomerID, dataset.ColProductID}},
		builtin.Dates{Columns: []string{dataset.ColDate}, Layouts: opt.DateLayouts},
		builtin.Measures{Columns: []string{dataset.ColQuantity, dataset.ColPrice, dataset.ColRevenue}},
		builtin.DeriveRevenue{},
	}
}
