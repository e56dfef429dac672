// Package mysql is the server-table backend for MySQL and MariaDB.
package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/logger"
)

// Backend is a MySQL implementation of database.Backend backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Backend struct {
	database.AllowAll

	db  *sql.DB
	cfg *database.Config
	log *logger.Logger
}

// New opens a MySQL connection pool using the provided Config and returns a Backend.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config, log *logger.Logger) (*Backend, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	b := &Backend{db: db, cfg: cfg, log: logger.OrNop(log).Component("mysql")}

	pingCtx, cancel := database.WithQueryTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, mapError(err, "ping failed")
	}

	return b, nil
}

// --- database.Backend implementation ---

func (b *Backend) Select(ctx context.Context, query string, args ...any) ([]database.Record, error) {
	b.log.Statement("select", query, args)

	ctx, cancel := database.WithQueryTimeout(ctx, b.cfg.QueryTimeout)
	defer cancel()

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	recs, err := database.ScanRecords(&mysqlRows{rows: rows})
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

// --- sql.DB type wrappers ---

type mysqlRows struct {
	rows *sql.Rows
}

func (r *mysqlRows) Next() bool                 { return r.rows.Next() }
func (r *mysqlRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *mysqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *mysqlRows) Close()                     { _ = r.rows.Close() }
func (r *mysqlRows) Err() error                 { return r.rows.Err() }

// --- error mapping ---

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDBAccessDenied  = 1044
	errAccessDenied    = 1045
	errNoDatabase      = 1046
	errUnknownDatabase = 1049
	errTooManyConns    = 1040
	errUserConnLimit   = 1203
	errTableAccess     = 1142
	errColumnAccess    = 1143
	errLockWait        = 1205
	errNoSuchTable     = 1146
)

// mapError translates go-sql-driver/mysql errors into *errs.Error.
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

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.WrapDetail(classifyMySQLCode(mysqlErr.Number), msg, mysqlErr.Message, err)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case errDBAccessDenied, errAccessDenied, errNoDatabase, errUnknownDatabase,
		errTooManyConns, errUserConnLimit:
		return errs.ErrKindConnectionFailed
	case errTableAccess, errColumnAccess:
		return errs.ErrKindPermissionDenied
	case errLockWait:
		return errs.ErrKindTimeout
	case errNoSuchTable:
		return errs.ErrKindNotFound
	default:
		return errs.ErrKindQueryFailed
	}
}
