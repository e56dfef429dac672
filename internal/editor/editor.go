// Package editor turns a table name into a described, loaded and editable
// grid: it describes the table through a database.Backend, normalizes the
// native column types with a dialect, loads every row and translates grid
// edits into INSERT, UPDATE and DELETE statements keyed on the primary key.
package editor

import (
	"context"
	"slices"
	"sync"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/dialect"
	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/logger"
)

// DeletionDenied is shown to the user when a deletion is refused.
const DeletionDenied = "Row deletion has been denied by server-side"

// IsDeletionDenied reports whether err is the refusal OnDelete returns
// after alerting DeletionDenied.
func IsDeletionDenied(err error) bool {
	return errs.IsPermissionDenied(err) && errs.MessageOf(err) == DeletionDenied
}

// Editor edits one table. Only one CRUD operation runs at a time; a second
// one started while the first is pending fails with an InvalidInput error.
type Editor struct {
	backend database.Backend
	dialect dialect.Dialect
	table   string
	opts    Options
	log     *logger.Logger

	mu       sync.Mutex
	state    State
	gen      uint64 // bumped by Teardown so late results are dropped
	columns  []Column
	gridCols []GridColumn
	pks      []string
	rows     []database.Record
	grid     Grid
}

// New returns an unloaded editor for table. Call Setup to load it.
func New(backend database.Backend, d dialect.Dialect, table string, opts Options) (*Editor, error) {
	if backend == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "missing backend")
	}
	if d == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "missing dialect")
	}
	if !database.ValidIdentifier(table) {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "invalid table name %q", table)
	}

	return &Editor{
		backend: backend,
		dialect: d,
		table:   table,
		opts:    opts,
		log:     logger.OrNop(opts.Logger).Component("editor").With().Str("table", table).Logger(),
	}, nil
}

// --- lifecycle ---

// Setup describes the table, loads its rows and hands both to a fresh
// grid. Calling it on a loaded editor reloads the table; if the reload
// fails the previous content is kept.
func (e *Editor) Setup(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateUnloaded && e.state != StateLoaded {
		defer e.mu.Unlock()
		return errBusy(e.state)
	}
	prev := e.state
	e.state = StateDescribing
	gen := e.gen
	e.mu.Unlock()

	cols, rows, err := e.load(ctx)
	if err != nil {
		e.restore(gen, prev)
		return err
	}

	gridCols := make([]GridColumn, 0, len(cols))
	for _, c := range cols {
		gridCols = append(gridCols, e.gridColumn(c))
	}
	if e.opts.OnSetupGridColumns != nil {
		gridCols = e.opts.OnSetupGridColumns(gridCols)
	}

	g := e.opts.newGrid()
	cb := Callbacks{
		OnInsert:   e.OnInsert,
		OnChange:   e.OnChange,
		OnDelete:   e.OnDelete,
		OnValidate: e.opts.OnRowValidate,
	}
	if err := g.Render(gridCols, e.opts.DefaultValues.Clone(), cb); err != nil {
		e.restore(gen, prev)
		return err
	}
	if err := g.SetData(cloneRows(rows)); err != nil {
		e.restore(gen, prev)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return errTornDown()
	}
	e.columns = cols
	e.gridCols = gridCols
	e.pks = primaryKeys(cols)
	e.rows = rows
	e.grid = g
	e.state = StateLoaded

	e.log.With().Int("columns", len(cols)).Int("rows", len(rows)).Logger().Debug("table loaded")
	return nil
}

func (e *Editor) load(ctx context.Context) ([]Column, []database.Record, error) {
	raw, err := e.backend.Describe(ctx, e.table)
	if err != nil {
		return nil, nil, err
	}

	cols := make([]Column, 0, len(raw))
	for _, r := range raw {
		cols = append(cols, newColumn(r, e.dialect))
	}

	q, err := database.BuildSelectAll(e.table, e.opts.OrderBy, primaryKeys(cols))
	if err != nil {
		return nil, nil, err
	}
	rows, err := e.backend.Select(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	return cols, rows, nil
}

// Teardown unloads the editor. Statements still in flight run to
// completion but their results are no longer applied.
func (e *Editor) Teardown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	e.state = StateUnloaded
	e.columns, e.gridCols, e.pks, e.rows = nil, nil, nil, nil
	e.grid = nil
}

// --- grid callbacks ---

// OnInsert inserts row with the columns it carries and records it at
// rowIndex.
func (e *Editor) OnInsert(ctx context.Context, rowIndex int, row database.Record) (int, error) {
	gen, err := e.begin(StateInserting)
	if err != nil {
		return -1, err
	}

	q, args, err := database.BuildInsert(e.table, row)
	if err == nil {
		err = e.backend.Execute(ctx, q, args...)
	}
	if err != nil {
		e.restore(gen, StateLoaded)
		return -1, err
	}

	idx := rowIndex
	e.commit(gen, func() {
		if idx < 0 || idx > len(e.rows) {
			idx = len(e.rows)
		}
		e.rows = slices.Insert(e.rows, idx, row.Clone())
	})
	return idx, nil
}

// OnChange updates the row at rowIndex with the columns of row. The WHERE
// clause uses the primary key values of the row as loaded, so an edited
// key still finds its original row.
func (e *Editor) OnChange(ctx context.Context, rowIndex int, row database.Record) (int, error) {
	gen, err := e.begin(StateEditing)
	if err != nil {
		return -1, err
	}

	loaded, pks, err := e.keyedRow(rowIndex)
	if err == nil {
		var (
			q    string
			args []any
		)
		where := database.Project(loaded, pks)
		err = requireKeys(rowIndex, where)
		if err == nil {
			q, args, err = database.BuildUpdate(e.table, row, where)
		}
		if err == nil {
			err = e.backend.Execute(ctx, q, args...)
		}
	}
	if err != nil {
		e.restore(gen, StateLoaded)
		return -1, err
	}

	e.commit(gen, func() {
		if rowIndex < len(e.rows) {
			e.rows[rowIndex] = e.rows[rowIndex].Merge(row)
		}
	})
	return rowIndex, nil
}

// OnDelete asks for approval, then deletes the row matching the primary
// key values of row. A denial alerts the user and fails with a
// PermissionDenied error; no statement is issued.
func (e *Editor) OnDelete(ctx context.Context, rowIndex int, row database.Record) (int, error) {
	gen, err := e.begin(StateDeleting)
	if err != nil {
		return -1, err
	}

	loaded, pks, err := e.keyedRow(rowIndex)
	if err != nil {
		e.restore(gen, StateLoaded)
		return -1, err
	}

	allowed, err := e.allowDelete(ctx, rowIndex, row)
	if err != nil {
		e.restore(gen, StateLoaded)
		return -1, err
	}
	if !allowed {
		e.restore(gen, StateLoaded)
		e.log.With().Int("row", rowIndex).Logger().Info("row deletion denied")
		e.alert(DeletionDenied)
		return -1, errs.New(errs.ErrKindPermissionDenied, DeletionDenied)
	}

	where := database.NewRecord()
	for _, pk := range pks {
		if v, ok := row.Get(pk); ok {
			where.Set(pk, v)
		} else {
			where.Set(pk, loaded.Value(pk))
		}
	}

	err = requireKeys(rowIndex, where)
	if err != nil {
		e.restore(gen, StateLoaded)
		return -1, err
	}

	q, args, err := database.BuildDelete(e.table, where)
	if err == nil {
		err = e.backend.Execute(ctx, q, args...)
	}
	if err != nil {
		e.restore(gen, StateLoaded)
		return -1, err
	}

	e.commit(gen, func() {
		if rowIndex < len(e.rows) {
			e.rows = slices.Delete(e.rows, rowIndex, rowIndex+1)
		}
	})
	return rowIndex, nil
}

func (e *Editor) allowDelete(ctx context.Context, rowIndex int, row database.Record) (bool, error) {
	if e.opts.OnAllowDelete != nil {
		ok, err := e.opts.OnAllowDelete(ctx, e.table, rowIndex, row)
		if err != nil || !ok {
			return false, err
		}
	}
	return e.backend.CheckRowDeletable(ctx, e.table, rowIndex, row)
}

// --- state guard ---

func (e *Editor) begin(to State) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateLoaded:
	case StateUnloaded:
		return 0, errs.New(errs.ErrKindInvalidInput, "table not loaded")
	default:
		return 0, errBusy(e.state)
	}
	e.state = to
	return e.gen, nil
}

func (e *Editor) restore(gen uint64, s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == gen {
		e.state = s
	}
}

// commit applies fn and returns to Loaded, unless the editor was torn
// down while the statement ran.
func (e *Editor) commit(gen uint64, fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return
	}
	fn()
	e.state = StateLoaded
}

func (e *Editor) keyedRow(rowIndex int) (database.Record, []string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pks) == 0 {
		return database.Record{}, nil, errs.Newf(errs.ErrKindInvalidInput, "table %s has no primary key", e.table)
	}
	if rowIndex < 0 || rowIndex >= len(e.rows) {
		return database.Record{}, nil, errs.Newf(errs.ErrKindInvalidInput, "row %d out of range", rowIndex)
	}
	return e.rows[rowIndex].Clone(), e.pks, nil
}

// requireKeys refuses a WHERE clause that binds NULL. A row inserted
// without its generated key only gets one after a reload.
func requireKeys(rowIndex int, where database.Record) error {
	for _, k := range where.Keys() {
		if where.Value(k) == nil {
			return errs.Newf(errs.ErrKindInvalidInput, "row %d has no value for key column `%s`, reload the table first", rowIndex, k)
		}
	}
	return nil
}

func errBusy(s State) error {
	return errs.Newf(errs.ErrKindInvalidInput, "editor busy (%s)", s)
}

func errTornDown() error {
	return errs.New(errs.ErrKindInvalidInput, "editor was torn down")
}

// --- grid passthroughs ---

// InsertRow opens a blank row in the grid, prefilled with DefaultValues.
func (e *Editor) InsertRow() error {
	g, err := e.loadedGrid()
	if err != nil {
		return err
	}
	return g.InsertRow()
}

// SetData replaces the loaded rows without touching the database.
func (e *Editor) SetData(rows []database.Record) error {
	e.mu.Lock()
	if e.state == StateUnloaded {
		e.mu.Unlock()
		return errs.New(errs.ErrKindInvalidInput, "table not loaded")
	}
	e.rows = cloneRows(rows)
	g := e.grid
	e.mu.Unlock()

	if g == nil {
		return nil
	}
	return g.SetData(cloneRows(rows))
}

// UpdateLocal sets one cell of the loaded data without issuing a
// statement, for callers that already wrote the value themselves.
func (e *Editor) UpdateLocal(rowIndex int, column string, value any) error {
	e.mu.Lock()
	if e.state == StateUnloaded {
		e.mu.Unlock()
		return errs.New(errs.ErrKindInvalidInput, "table not loaded")
	}
	if rowIndex < 0 || rowIndex >= len(e.rows) {
		e.mu.Unlock()
		return errs.Newf(errs.ErrKindInvalidInput, "row %d out of range", rowIndex)
	}
	e.rows[rowIndex].Set(column, value)
	rows := cloneRows(e.rows)
	g := e.grid
	e.mu.Unlock()

	if g == nil {
		return nil
	}
	return g.SetData(rows)
}

func (e *Editor) alert(msg string) {
	e.mu.Lock()
	g := e.grid
	e.mu.Unlock()
	if g != nil {
		g.Alert(msg)
	}
}

func (e *Editor) loadedGrid() (Grid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateUnloaded || e.grid == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "table not loaded")
	}
	return e.grid, nil
}

// --- backend passthroughs ---

// Select runs a read-only statement on the editor's backend.
func (e *Editor) Select(ctx context.Context, query string, args ...any) ([]database.Record, error) {
	return e.backend.Select(ctx, query, args...)
}

// Execute runs a statement on the editor's backend. The loaded rows are
// not refreshed.
func (e *Editor) Execute(ctx context.Context, query string, args ...any) error {
	return e.backend.Execute(ctx, query, args...)
}

// --- accessors ---

func (e *Editor) Table() string { return e.table }

func (e *Editor) Dialect() dialect.Dialect { return e.dialect }

func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Columns returns the normalized columns in declaration order.
func (e *Editor) Columns() []Column {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.columns)
}

// GridColumns returns the column layout handed to the grid.
func (e *Editor) GridColumns() []GridColumn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.gridCols)
}

// PrimaryKeys returns the primary key column names in declaration order.
func (e *Editor) PrimaryKeys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.pks)
}

// Rows returns a copy of the loaded rows.
func (e *Editor) Rows() []database.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRows(e.rows)
}

// Row returns a copy of the row at rowIndex.
func (e *Editor) Row(rowIndex int) (database.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rowIndex < 0 || rowIndex >= len(e.rows) {
		return database.Record{}, errs.Newf(errs.ErrKindInvalidInput, "row %d out of range", rowIndex)
	}
	return e.rows[rowIndex].Clone(), nil
}

// Grid returns the grid built by the last Setup, or nil.
func (e *Editor) Grid() Grid {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid
}

// DefaultValues returns the values prefilled in inserted rows.
func (e *Editor) DefaultValues() database.Record {
	return e.opts.DefaultValues.Clone()
}

func cloneRows(rows []database.Record) []database.Record {
	out := make([]database.Record, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
