// Package parser defines the contract for turning a raw extract into a
// dataset.
package parser

import (
	"io"

	"salesetl/internal/dataset"
)

// Parser reads one extract. It returns the dataset and the number of rows
// skipped as unreadable.
type Parser interface {
	Parse(name string, r io.Reader) (*dataset.Dataset, int, error)
}
