// Package postgres is the PostgreSQL backend, backed by pgxpool.
package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/logger"
)

// Backend is a PostgreSQL implementation of database.Backend.
// It is safe for concurrent use by multiple goroutines.
type Backend struct {
	database.AllowAll

	pool *pgxpool.Pool
	cfg  *database.Config
	log  *logger.Logger
}

// New connects to PostgreSQL using the provided Config and returns a Backend.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config, log *logger.Logger) (*Backend, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create connection pool", err)
	}

	b := &Backend{pool: pool, cfg: cfg, log: logger.OrNop(log).Component("postgres")}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, mapError(err, "ping failed")
	}

	return b, nil
}

// rebind rewrites "?" placeholders into Postgres' $1, $2, … form.
func rebind(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

// --- database.Backend implementation ---

func (b *Backend) Select(ctx context.Context, query string, args ...any) ([]database.Record, error) {
	query = rebind(query)
	b.log.Statement("select", query, args)

	ctx, cancel := database.WithQueryTimeout(ctx, b.cfg.QueryTimeout)
	defer cancel()

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	recs, err := database.ScanRecords(&pgxRows{rows: rows})
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return recs, nil
}

func (b *Backend) Execute(ctx context.Context, query string, args ...any) error {
	query = rebind(query)
	b.log.Statement("execute", query, args)

	ctx, cancel := database.WithQueryTimeout(ctx, b.cfg.QueryTimeout)
	defer cancel()

	if _, err := b.pool.Exec(ctx, query, args...); err != nil {
		return mapError(err, "statement failed")
	}
	return nil
}

// Close drains the connection pool.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

// Describe reads the columns of table in the current search path.
// format_type keeps type modifiers, so varchar(40) arrives as
// "character varying(40)" and numeric(8,2) as "numeric(8,2)".
func (b *Backend) Describe(ctx context.Context, table string) ([]database.RawColumn, error) {
	const q = `
		SELECT a.attname,
		       format_type(a.atttypid, a.atttypmod),
		       COALESCE(i.indisprimary, false),
		       NOT a.attnotnull,
		       pg_get_expr(d.adbin, d.adrelid)
		FROM pg_attribute a
		JOIN pg_class c      ON c.oid = a.attrelid
		LEFT JOIN pg_index i ON i.indrelid = c.oid
		                    AND i.indisprimary
		                    AND a.attnum = ANY(i.indkey)
		LEFT JOIN pg_attrdef d ON d.adrelid = c.oid AND d.adnum = a.attnum
		WHERE c.relname = $1
		  AND pg_table_is_visible(c.oid)
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum`

	ctx, cancel := database.WithQueryTimeout(ctx, b.cfg.QueryTimeout)
	defer cancel()

	rows, err := b.pool.Query(ctx, q, table)
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

// ReferencingKeys lists the single-column foreign keys that point at table.
func (b *Backend) ReferencingKeys(ctx context.Context, table string) ([]database.ForeignKey, error) {
	const q = `
		SELECT src.relname,
		       sa.attname,
		       dst.relname,
		       da.attname
		FROM pg_constraint con
		JOIN pg_class src     ON src.oid = con.conrelid
		JOIN pg_class dst     ON dst.oid = con.confrelid
		JOIN pg_attribute sa  ON sa.attrelid = con.conrelid  AND sa.attnum = con.conkey[1]
		JOIN pg_attribute da  ON da.attrelid = con.confrelid AND da.attnum = con.confkey[1]
		WHERE con.contype = 'f'
		  AND dst.relname = $1
		  AND pg_table_is_visible(dst.oid)
		ORDER BY src.relname, sa.attname`

	ctx, cancel := database.WithQueryTimeout(ctx, b.cfg.QueryTimeout)
	defer cancel()

	rows, err := b.pool.Query(ctx, q, table)
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

// --- pgx type wrappers ---

// pgxRows wraps pgx.Rows to satisfy database.Rows.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool { return r.rows.Next() }
func (r *pgxRows) Close()     { r.rows.Close() }
func (r *pgxRows) Err() error { return r.rows.Err() }

// Scan decodes the current row. Generic *any destinations receive plain
// values instead of pgtype wrappers so every backend yields the same shapes.
func (r *pgxRows) Scan(dest ...any) error {
	for _, d := range dest {
		if _, ok := d.(*any); !ok {
			return r.rows.Scan(dest...)
		}
	}

	vals, err := r.rows.Values()
	if err != nil {
		return err
	}
	for i := range dest {
		if i < len(vals) {
			*(dest[i].(*any)) = plainValue(vals[i])
		}
	}
	return nil
}

func (r *pgxRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}

func plainValue(v any) any {
	switch t := v.(type) {
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		return numericString(t)
	case [16]byte:
		return uuid.UUID(t).String()
	default:
		return v
	}
}

// numericString renders n in plain decimal notation, "123456.78" rather
// than the "12345678e-2" form pgtype uses on the wire.
func numericString(n pgtype.Numeric) string {
	switch {
	case n.NaN:
		return "NaN"
	case n.InfinityModifier == pgtype.Infinity:
		return "Infinity"
	case n.InfinityModifier == pgtype.NegativeInfinity:
		return "-Infinity"
	case n.Int == nil:
		return "0"
	}

	digits := n.Int.String()
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}

	if n.Exp >= 0 {
		return sign + digits + strings.Repeat("0", int(n.Exp))
	}
	scale := int(-n.Exp)
	if len(digits) <= scale {
		digits = strings.Repeat("0", scale-len(digits)+1) + digits
	}
	return sign + digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
}

// --- error mapping ---

// PostgreSQL SQLSTATE codes with a kind of their own.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrUndefinedTable    = "42P01"
	pgErrInsufficientPriv  = "42501"
	pgErrQueryCanceled     = "57014"
	pgErrLockNotAvailable  = "55P03"
	pgErrInvalidAuthSpec   = "28000"
	pgErrInvalidPassword   = "28P01"
	pgErrClassConnection   = "08"
	pgErrClassInsufficient = "53"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	var e *errs.Error
	if errors.As(err, &e) && e.Cause != nil {
		err = e.Cause
	}

	// Context cancellation / deadline exceeded
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	// Postgres server-side error (SQLSTATE codes)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.WrapDetail(classifySQLState(pgErr.Code), msg, pgErr.Message, err)
	}

	// Fallthrough: connection-level errors (TLS, network, auth)
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

func classifySQLState(code string) errs.ErrKind {
	switch code {
	case pgErrUndefinedTable:
		return errs.ErrKindNotFound
	case pgErrInsufficientPriv:
		return errs.ErrKindPermissionDenied
	case pgErrQueryCanceled, pgErrLockNotAvailable:
		return errs.ErrKindTimeout
	case pgErrInvalidAuthSpec, pgErrInvalidPassword:
		return errs.ErrKindConnectionFailed
	}
	if len(code) >= 2 && (code[:2] == pgErrClassConnection || code[:2] == pgErrClassInsufficient) {
		return errs.ErrKindConnectionFailed
	}
	return errs.ErrKindQueryFailed
}
