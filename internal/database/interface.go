package database

import "context"

// Backend is the central contract every storage strategy implements.
// The table editor and the config table editor talk only to this
// interface; they never import the sqlite, mysql, postgres or remote
// packages directly.
//
// Statements passed to Select and Execute use "?" placeholders. Backends
// whose engine wants another style rewrite them before execution.
type Backend interface {
	// Describe returns the raw column list of table in declaration order.
	Describe(ctx context.Context, table string) ([]RawColumn, error)

	// Select runs a statement that returns rows.
	Select(ctx context.Context, query string, args ...any) ([]Record, error)

	// Execute runs a statement whose result set, if any, is discarded.
	Execute(ctx context.Context, query string, args ...any) error

	// CheckRowDeletable asks whether the row at rowIndex may be deleted.
	// Embedded backends allow everything; the remote backend defers to
	// the server-side policy.
	CheckRowDeletable(ctx context.Context, table string, rowIndex int, row Record) (bool, error)

	// Close releases all resources held by the backend.
	Close() error
}

// RawColumn is one column as reported by the backend, before its native
// type is mapped onto the canonical set.
type RawColumn struct {
	Name       string  `json:"name"`
	NativeType string  `json:"type"`
	PrimaryKey bool    `json:"pk"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default,omitempty"`
}

// AllowAll is embedded by backends that have no deletion policy of their own.
type AllowAll struct{}

// CheckRowDeletable always allows the deletion.
func (AllowAll) CheckRowDeletable(context.Context, string, int, Record) (bool, error) {
	return true, nil
}

// ForeignKey describes a single column that references another table.
type ForeignKey struct {
	Table     string // table holding the referencing column
	Column    string
	RefTable  string
	RefColumn string
}

// ReferenceInspector is implemented by backends that can list the foreign
// keys pointing at a table. The RPC server uses it to refuse deleting rows
// that are still referenced.
type ReferenceInspector interface {
	ReferencingKeys(ctx context.Context, table string) ([]ForeignKey, error)
}

// Rows is an abstraction over a driver result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}
