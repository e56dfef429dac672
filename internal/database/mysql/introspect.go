package mysql

import (
	"context"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
)

// Describe reads the columns of table from information_schema. The native
// type is column_type, which keeps the display width and parameters
// (int(11), tinyint(1), decimal(8,2)) the dialect needs.
func (b *Backend) Describe(ctx context.Context, table string) ([]database.RawColumn, error) {
	const q = `
		SELECT column_name,
		       column_type,
		       column_key = 'PRI',
		       is_nullable = 'YES',
		       column_default
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name   = ?
		ORDER BY ordinal_position`

	ctx, cancel := database.WithQueryTimeout(ctx, b.cfg.QueryTimeout)
	defer cancel()

	rows, err := b.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to describe table")
	}
	defer rows.Close()

	var cols []database.RawColumn
	for rows.Next() {
		var c database.RawColumn
		if err := rows.Scan(&c.Name, &c.NativeType, &c.PrimaryKey, &c.Nullable, &c.Default); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating columns")
	}
	if len(cols) == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %q does not exist", table)
	}
	return cols, nil
}

// ReferencingKeys lists the foreign keys in the current schema that point at table.
func (b *Backend) ReferencingKeys(ctx context.Context, table string) ([]database.ForeignKey, error) {
	const q = `
		SELECT table_name,
		       column_name,
		       referenced_table_name,
		       referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema          = DATABASE()
		  AND referenced_table_name = ?
		ORDER BY table_name, ordinal_position`

	ctx, cancel := database.WithQueryTimeout(ctx, b.cfg.QueryTimeout)
	defer cancel()

	rows, err := b.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch foreign keys")
	}
	defer rows.Close()

	var fks []database.ForeignKey
	for rows.Next() {
		var fk database.ForeignKey
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, mapError(err, "failed to scan foreign key")
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating foreign keys")
	}
	return fks, nil
}
