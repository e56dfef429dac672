// Package dialect maps native column types onto the canonical type set
// {string, int, float, bool} and derives value constraints from the type
// parameters a dialect spells out (varchar(40), decimal(8,2), …).
//
// Adding a backend means adding one Dialect implementation; the table
// editor only ever sees Canonical and Constraint.
package dialect

import (
	"strings"

	"github.com/koustreak/sqlgrid/internal/errs"
)

// Canonical is the cross-dialect value type of a column.
type Canonical int

const (
	String Canonical = iota
	Int
	Float
	Bool
)

func (c Canonical) String() string {
	switch c {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	default:
		return "string"
	}
}

// MarshalText lets Canonical travel as its name in JSON.
func (c Canonical) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Constraint reports whether a cell value is acceptable for a column.
// A nil Constraint accepts everything.
type Constraint func(value string) bool

// Dialect is a backend's native type vocabulary.
type Dialect interface {
	Name() string
	Normalize(native string) Canonical
	Constraint(native string) Constraint
}

// Lookup returns the built-in dialect registered under name.
func Lookup(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "mysql", "mariadb":
		return MySQL{}, nil
	case "postgres", "postgresql":
		return Postgres{}, nil
	default:
		return nil, errs.Newf(errs.ErrKindUnsupported, "unknown dialect %q", name)
	}
}

// Check applies c to value, treating a nil constraint as "anything goes".
func (c Constraint) Check(value string) bool {
	if c == nil {
		return true
	}
	return c(value)
}
