// Package all wires all built-in warehouse backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init function of each backend, which registers its
// factory with the storage package. After the import, storage.New accepts
// the kinds "postgres", "mssql", "mysql", "sqlite" and "duckdb".
//
// A binary that needs only a subset of backends can blank-import the
// individual packages instead.
package all

import (
	_ "salesetl/internal/storage/duckdb"
	_ "salesetl/internal/storage/mssql"
	_ "salesetl/internal/storage/mysql"
	_ "salesetl/internal/storage/postgres"
	_ "salesetl/internal/storage/sqlite"
)
