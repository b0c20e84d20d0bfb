// Package datasource defines where raw extracts come from.
package datasource

import (
	"context"
	"io"
)

// Source opens a single stream of bytes.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Provider resolves extract file names, e.g. "sap_sales.csv", to readable
// streams. Missing objects are reported with an error wrapping
// fs.ErrNotExist.
type Provider interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Location describes where name is read from, for logs and reports.
	Location(name string) string
}
