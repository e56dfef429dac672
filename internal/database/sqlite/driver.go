// Package sqlite is the embedded-engine backend: an in-process SQLite
// database reached through sqlx and mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/logger"
)

// Backend is a SQLite implementation of database.Backend.
// It holds a single connection so ":memory:" databases keep their content
// for the life of the backend.
type Backend struct {
	database.AllowAll

	db  *sqlx.DB
	cfg *database.Config
	log *logger.Logger
}

// New opens the database file (or ":memory:") named by cfg.DSN.
func New(ctx context.Context, cfg *database.Config, log *logger.Logger) (*Backend, error) {
	db, err := sqlx.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	// One writer at a time, and a recycled connection would drop an
	// in-memory database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	b := &Backend{
		db:  db,
		cfg: cfg,
		log: logger.OrNop(log).Component("sqlite"),
	}

	pingCtx, cancel := database.WithQueryTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, mapError(err, "ping failed")
	}
	return b, nil
}

// DB exposes the underlying handle, mainly for fixtures in tests and examples.
func (b *Backend) DB() *sqlx.DB { return b.db }

// --- database.Backend implementation ---

// pragmaColumn is one row of PRAGMA table_info.
type pragmaColumn struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull bool           `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

func (b *Backend) Describe(ctx context.Context, table string) ([]database.RawColumn, error) {
	if !database.ValidIdentifier(table) {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "invalid table name %q", table)
	}

	ctx, cancel := database.WithQueryTimeout(ctx, b.cfg.QueryTimeout)
	defer cancel()

	var info []pragmaColumn
	if err := b.db.SelectContext(ctx, &info, fmt.Sprintf("PRAGMA table_info(%s)", table)); err != nil {
		return nil, mapError(err, "failed to describe table")
	}
	if len(info) == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %q does not exist", table)
	}

	cols := make([]database.RawColumn, 0, len(info))
	for _, c := range info {
		col := database.RawColumn{
			Name:       c.Name,
			NativeType: c.Type,
			PrimaryKey: c.PK > 0,
			Nullable:   !c.NotNull,
		}
		if c.Default.Valid {
			def := c.Default.String
			col.Default = &def
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func (b *Backend) Select(ctx context.Context, query string, args ...any) ([]database.Record, error) {
	b.log.Statement("select", query, args)

	ctx, cancel := database.WithQueryTimeout(ctx, b.cfg.QueryTimeout)
	defer cancel()

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	recs, err := database.ScanRecords(&sqliteRows{rows: rows})
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return recs, nil
}

func (b *Backend) Execute(ctx context.Context, query string, args ...any) error {
	b.log.Statement("execute", query, args)

	ctx, cancel := database.WithQueryTimeout(ctx, b.cfg.QueryTimeout)
	defer cancel()

	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return mapError(err, "statement failed")
	}
	return nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

// --- database.ReferenceInspector implementation ---

// pragmaForeignKey is one row of PRAGMA foreign_key_list.
type pragmaForeignKey struct {
	ID       int            `db:"id"`
	Seq      int            `db:"seq"`
	Table    string         `db:"table"`
	From     string         `db:"from"`
	To       sql.NullString `db:"to"`
	OnUpdate string         `db:"on_update"`
	OnDelete string         `db:"on_delete"`
	Match    string         `db:"match"`
}

// ReferencingKeys lists the foreign keys of every table that point at table.
func (b *Backend) ReferencingKeys(ctx context.Context, table string) ([]database.ForeignKey, error) {
	ctx, cancel := database.WithQueryTimeout(ctx, b.cfg.QueryTimeout)
	defer cancel()

	var tables []string
	const q = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
	if err := b.db.SelectContext(ctx, &tables, q); err != nil {
		return nil, mapError(err, "failed to list tables")
	}

	var fks []database.ForeignKey
	for _, t := range tables {
		if !database.ValidIdentifier(t) {
			continue
		}
		var list []pragmaForeignKey
		if err := b.db.SelectContext(ctx, &list, fmt.Sprintf("PRAGMA foreign_key_list(%s)", t)); err != nil {
			return nil, mapError(err, "failed to fetch foreign keys")
		}
		for _, fk := range list {
			if fk.Table != table {
				continue
			}
			ref := fk.To.String
			if !fk.To.Valid || ref == "" {
				// REFERENCES t without a column list targets t's primary key.
				if ref, _ = b.singlePrimaryKey(ctx, table); ref == "" {
					continue
				}
			}
			fks = append(fks, database.ForeignKey{
				Table:     t,
				Column:    fk.From,
				RefTable:  table,
				RefColumn: ref,
			})
		}
	}
	return fks, nil
}

func (b *Backend) singlePrimaryKey(ctx context.Context, table string) (string, error) {
	cols, err := b.Describe(ctx, table)
	if err != nil {
		return "", err
	}
	var pk string
	for _, c := range cols {
		if c.PrimaryKey {
			if pk != "" {
				return "", nil
			}
			pk = c.Name
		}
	}
	return pk, nil
}

// --- sql.Rows wrapper ---

type sqliteRows struct {
	rows *sql.Rows
}

func (r *sqliteRows) Next() bool                 { return r.rows.Next() }
func (r *sqliteRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *sqliteRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqliteRows) Close()                     { _ = r.rows.Close() }
func (r *sqliteRows) Err() error                 { return r.rows.Err() }

// --- error mapping ---

// mapError translates go-sqlite3 errors into *errs.Error. The engine's own
// message is kept in Message so it can be shown to the user verbatim.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	var e *errs.Error
	if errors.As(err, &e) && e.Cause != nil {
		err = e.Cause
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return errs.WrapDetail(classifySQLiteCode(sqliteErr.Code), msg, sqliteErr.Error(), err)
	}

	return errs.WrapDetail(errs.ErrKindQueryFailed, msg, err.Error(), err)
}

// classifySQLiteCode maps SQLite primary result codes to ErrKind.
func classifySQLiteCode(code sqlite3.ErrNo) errs.ErrKind {
	switch code {
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrIoErr:
		return errs.ErrKindConnectionFailed
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return errs.ErrKindTimeout
	case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
		return errs.ErrKindPermissionDenied
	default:
		return errs.ErrKindQueryFailed
	}
}
