package configtable

import (
	"context"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
)

// Selector runs read-only statements. database.Backend and editor.Editor
// both satisfy it.
type Selector interface {
	Select(ctx context.Context, query string, args ...any) ([]database.Record, error)
}

// ResolveChoices returns the choices of a list descriptor. Inline values
// are split directly; a reference is looked up in table. A referenced row
// with an empty value yields an empty, valid choice set; a missing row is
// a NotFound error.
func ResolveChoices(ctx context.Context, sel Selector, table string, opts Options, meta Metadata) ([]string, error) {
	opts = opts.withDefaults()

	l, ok := meta.(List)
	if !ok {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "%s metadata has no choices", meta.Type())
	}
	sep := l.SeparatorOr(opts.DefaultSeparator)

	if l.Ref == "" {
		return splitChoices(l.Values, sep), nil
	}

	q, err := lookupQuery(table, opts)
	if err != nil {
		return nil, err
	}
	rows, err := sel.Select(ctx, q, l.Ref)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errNoRow(l.Ref)
	}
	return splitChoices(rows[0].String(opts.ValueColumn), sep), nil
}

func lookupQuery(table string, opts Options) (string, error) {
	if err := opts.check(); err != nil {
		return "", err
	}
	if !database.ValidIdentifier(table) {
		return "", errs.Newf(errs.ErrKindInvalidInput, "invalid table name %q", table)
	}
	return "SELECT " + opts.ValueColumn + " FROM " + table + " WHERE " + opts.PrimaryKeyColumn + "=?", nil
}
