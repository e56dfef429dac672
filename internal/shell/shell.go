// Package shell lets a user pick which table to edit among an allowed
// list and keeps at most one editor open at a time.
package shell

import (
	"context"
	"slices"
	"sync"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/dialect"
	"github.com/koustreak/sqlgrid/internal/editor"
	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/logger"
)

// Session is an open table editor. *editor.Editor and *configtable.Editor
// both satisfy it.
type Session interface {
	Setup(ctx context.Context) error
	Teardown()
}

// Factory builds an unloaded session for table.
type Factory func(table string) (Session, error)

// EditorFactory returns a Factory building plain table editors.
func EditorFactory(backend database.Backend, d dialect.Dialect, opts editor.Options) Factory {
	return func(table string) (Session, error) {
		ed, err := editor.New(backend, d, table, opts)
		if err != nil {
			return nil, err
		}
		return ed, nil
	}
}

// Shell holds the table list and the current session.
type Shell struct {
	tables  []string
	factory Factory
	log     *logger.Logger

	mu      sync.Mutex
	table   string
	current Session
}

// New returns a shell offering tables. Duplicates are dropped; order is
// kept.
func New(tables []string, factory Factory, log *logger.Logger) (*Shell, error) {
	if factory == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "missing editor factory")
	}

	list := make([]string, 0, len(tables))
	for _, t := range tables {
		if !database.ValidIdentifier(t) {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "invalid table name %q", t)
		}
		if !slices.Contains(list, t) {
			list = append(list, t)
		}
	}

	return &Shell{
		tables:  list,
		factory: factory,
		log:     logger.OrNop(log).Component("shell"),
	}, nil
}

// Tables returns the selectable tables.
func (s *Shell) Tables() []string {
	return slices.Clone(s.tables)
}

// Select closes the current editor and opens table. An empty name only
// closes. A session whose setup fails is discarded.
func (s *Shell) Select(ctx context.Context, table string) error {
	if table != "" && !slices.Contains(s.tables, table) {
		return errs.Newf(errs.ErrKindInvalidInput, "table %q is not editable", table)
	}

	s.mu.Lock()
	old := s.current
	s.current, s.table = nil, ""
	s.mu.Unlock()
	if old != nil {
		old.Teardown()
	}

	if table == "" {
		s.log.Debug("editor closed")
		return nil
	}

	sess, err := s.factory(table)
	if err != nil {
		return err
	}
	if err := sess.Setup(ctx); err != nil {
		sess.Teardown()
		s.log.With().Str("table", table).Err(err).Logger().Warn("table setup failed")
		return err
	}

	s.mu.Lock()
	prev := s.current
	s.current, s.table = sess, table
	s.mu.Unlock()
	if prev != nil {
		prev.Teardown()
	}

	s.log.With().Str("table", table).Logger().Info("table opened")
	return nil
}

// Reload reopens the current table. Nothing happens when no table is
// open.
func (s *Shell) Reload(ctx context.Context) error {
	table, _ := s.Current()
	if table == "" {
		return nil
	}
	return s.Select(ctx, table)
}

// Current returns the open table and its session, or "" and nil.
func (s *Shell) Current() (string, Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table, s.current
}

// Close tears down the current session.
func (s *Shell) Close() {
	_ = s.Select(context.Background(), "")
}
