// Package drivers opens the concrete Backend named by a database.Config.
// It lives apart from package database so the contract carries no driver
// imports.
package drivers

import (
	"context"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/database/mysql"
	"github.com/koustreak/sqlgrid/internal/database/postgres"
	"github.com/koustreak/sqlgrid/internal/database/remote"
	"github.com/koustreak/sqlgrid/internal/database/sqlite"
	"github.com/koustreak/sqlgrid/internal/dialect"
	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/logger"
)

// Open returns the backend for cfg.Driver.
func Open(ctx context.Context, cfg *database.Config, log *logger.Logger, opts ...remote.Option) (database.Backend, error) {
	if cfg == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "missing database config")
	}

	var (
		b   database.Backend
		err error
	)
	// Each case assigns through a typed variable so a failed open never
	// yields a non-nil interface holding a nil pointer.
	switch cfg.Driver {
	case database.DriverSQLite:
		var s *sqlite.Backend
		if s, err = sqlite.New(ctx, cfg, log); err == nil {
			b = s
		}
	case database.DriverMySQL:
		var m *mysql.Backend
		if m, err = mysql.New(ctx, cfg, log); err == nil {
			b = m
		}
	case database.DriverPostgres:
		var p *postgres.Backend
		if p, err = postgres.New(ctx, cfg, log); err == nil {
			b = p
		}
	case database.DriverRemote:
		var r *remote.Backend
		if r, err = remote.New(cfg, log, opts...); err == nil {
			b = r
		}
	default:
		err = errs.Newf(errs.ErrKindUnsupported, "unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	logger.OrNop(log).With().Str("driver", string(cfg.Driver)).Logger().Info("backend opened")
	return b, nil
}

// DialectFor returns the type dialect matching driver. A remote backend
// has no dialect of its own; name tells which server sits behind it.
func DialectFor(driver database.Driver, name string) (dialect.Dialect, error) {
	if name != "" {
		return dialect.Lookup(name)
	}
	switch driver {
	case database.DriverSQLite:
		return dialect.SQLite{}, nil
	case database.DriverMySQL, database.DriverRemote:
		return dialect.MySQL{}, nil
	case database.DriverPostgres:
		return dialect.Postgres{}, nil
	default:
		return nil, errs.Newf(errs.ErrKindUnsupported, "unknown driver %q", driver)
	}
}
