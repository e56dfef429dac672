package database

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/koustreak/sqlgrid/internal/errs"
)

// identPattern is the allowlist for table and column names. Identifiers
// cannot be parameterized, so anything outside it is rejected before a
// statement is built.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidIdentifier reports whether name can be spliced into a statement.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

func checkIdentifiers(names ...string) error {
	for _, n := range names {
		if !ValidIdentifier(n) {
			return errs.Newf(errs.ErrKindInvalidInput, "invalid identifier: %q", n)
		}
	}
	return nil
}

// BuildSelectAll produces the statement that loads a whole table.
//
// orderBy, when set, is used verbatim as the ORDER BY clause; it comes from
// host configuration, never from cell data. Otherwise rows are ordered by
// the primary key columns, and a table without one is left unordered.
//
//	SELECT * FROM users ORDER BY id
func BuildSelectAll(table, orderBy string, primaryKeys []string) (string, error) {
	if err := checkIdentifiers(table); err != nil {
		return "", err
	}
	if err := checkIdentifiers(primaryKeys...); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(table)

	switch {
	case strings.TrimSpace(orderBy) != "":
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	case len(primaryKeys) > 0:
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(primaryKeys, ","))
	}
	return sb.String(), nil
}

// BuildInsert produces an INSERT for the columns of row, in row order.
//
//	INSERT INTO users (name) VALUES (?)
func BuildInsert(table string, row Record) (string, []any, error) {
	if row.Len() == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "nothing to insert")
	}
	cols := row.Keys()
	if err := checkIdentifiers(append([]string{table}, cols...)...); err != nil {
		return "", nil, err
	}

	marks := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ","), marks)
	return q, row.Values(), nil
}

// BuildUpdate produces an UPDATE assigning set and matching where. Args are
// the set values followed by the where values.
//
//	UPDATE users SET name=? WHERE id=?
func BuildUpdate(table string, set, where Record) (string, []any, error) {
	if set.Len() == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "nothing to update")
	}
	if where.Len() == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "update requires a primary key")
	}
	if err := checkIdentifiers(append(append([]string{table}, set.Keys()...), where.Keys()...)...); err != nil {
		return "", nil, err
	}

	assigns := make([]string, 0, set.Len())
	for _, c := range set.Keys() {
		assigns = append(assigns, c+"=?")
	}

	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(assigns, ","), whereClause(where))
	return q, append(set.Values(), where.Values()...), nil
}

// BuildDelete produces a DELETE matching where.
//
//	DELETE FROM users WHERE id=?
func BuildDelete(table string, where Record) (string, []any, error) {
	if where.Len() == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "delete requires a primary key")
	}
	if err := checkIdentifiers(append([]string{table}, where.Keys()...)...); err != nil {
		return "", nil, err
	}

	q := fmt.Sprintf("DELETE FROM %s WHERE %s", table, whereClause(where))
	return q, where.Values(), nil
}

func whereClause(where Record) string {
	parts := make([]string, 0, where.Len())
	for _, c := range where.Keys() {
		parts = append(parts, c+"=?")
	}
	return strings.Join(parts, " AND ")
}

// Project returns the subset of row named by cols, in cols order.
// Columns missing from row are bound as NULL.
func Project(row Record, cols []string) Record {
	out := Record{fields: make([]Field, 0, len(cols))}
	for _, c := range cols {
		out.Set(c, row.Value(c))
	}
	return out
}
