package dialect

import "strings"

// SQLite is the embedded-engine dialect. Its declared types are advisory,
// so the mapping is coarse and no constraints are derived.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Normalize(native string) Canonical {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "integer":
		return Int
	case "real":
		return Float
	default:
		return String
	}
}

func (SQLite) Constraint(string) Constraint { return nil }
