package file

import (
	"context"
	"io"
	"path/filepath"

	"salesetl/internal/datasource"
)

var _ datasource.Provider = (*Dir)(nil)

// Dir provides extracts from a local directory.
type Dir struct{ root string }

// NewDir returns a provider reading files under root.
func NewDir(root string) *Dir { return &Dir{root: root} }

// Open opens root/name. Names are joined as-is, without leaving root through
// absolute paths or "..".
func (d *Dir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return NewLocal(d.path(name)).Open(ctx)
}

// Location returns the filesystem path of name.
func (d *Dir) Location(name string) string { return d.path(name) }

func (d *Dir) path(name string) string {
	return filepath.Join(d.root, filepath.Clean("/"+name))
}
