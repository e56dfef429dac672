// Package grid is a headless implementation of editor.Grid. It keeps the
// rendered columns and rows in memory and applies edits the way an
// interactive grid does: the change is shown at once, handed to the
// editor callback, and rolled back if the callback fails.
package grid

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/editor"
	"github.com/koustreak/sqlgrid/internal/errs"
)

// Model is a grid without a screen. The zero value is not usable; build
// one with New or through Factory.
type Model struct {
	mu       sync.Mutex
	options  map[string]any
	columns  []editor.GridColumn
	defaults database.Record
	cb       editor.Callbacks
	rows     []database.Record

	pending   *database.Record // row opened by InsertRow
	busy      bool
	alerts    []string
	maxAlerts int
}

// New returns an empty model carrying options.
func New(options map[string]any) *Model {
	return &Model{options: options, maxAlerts: 50}
}

// Factory builds Models for editor.Options.Grid.
func Factory() editor.GridFactory {
	return func(options map[string]any) editor.Grid { return New(options) }
}

// Of returns the Model behind an editor, or nil when the editor renders
// into another kind of grid.
func Of(ed *editor.Editor) *Model {
	m, _ := ed.Grid().(*Model)
	return m
}

// --- editor.Grid ---

func (m *Model) Render(cols []editor.GridColumn, defaults database.Record, cb editor.Callbacks) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.columns = slices.Clone(cols)
	m.defaults = defaults.Clone()
	m.cb = cb
	m.pending = nil
	return nil
}

func (m *Model) SetData(rows []database.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rows = make([]database.Record, len(rows))
	for i, r := range rows {
		m.rows[i] = r.Clone()
	}
	return nil
}

// InsertRow opens a new row prefilled with the default values.
func (m *Model) InsertRow() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending != nil {
		return errs.New(errs.ErrKindInvalidInput, "a row is already being inserted")
	}
	row := m.defaults.Clone()
	m.pending = &row
	return nil
}

func (m *Model) Alert(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts = append(m.alerts, msg)
	if len(m.alerts) > m.maxAlerts {
		m.alerts = m.alerts[len(m.alerts)-m.maxAlerts:]
	}
}

// --- edits ---

// Insert commits a new row built from the defaults, the row opened by
// InsertRow if any, and row. It returns the index the row landed at.
func (m *Model) Insert(ctx context.Context, row database.Record) (int, error) {
	m.mu.Lock()
	if err := m.acquire(); err != nil {
		m.mu.Unlock()
		return -1, err
	}
	full := m.defaults.Clone()
	if m.pending != nil {
		full = full.Merge(*m.pending)
	}
	full = full.Merge(row)

	if err := m.validate(-1, full, database.Record{}); err != nil {
		m.release()
		m.mu.Unlock()
		return -1, m.fail(err)
	}

	idx := len(m.rows)
	m.rows = append(m.rows, full)
	cb := m.cb.OnInsert
	m.mu.Unlock()

	got, err := callback(ctx, cb, idx, full)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
	if err != nil {
		if idx < len(m.rows) {
			m.rows = slices.Delete(m.rows, idx, idx+1)
		}
		return -1, m.fail(err)
	}
	m.pending = nil
	if got != idx && got >= 0 && got < len(m.rows) {
		r := m.rows[idx]
		m.rows = slices.Insert(slices.Delete(m.rows, idx, idx+1), got, r)
		idx = got
	}
	return idx, nil
}

// CancelInsert discards the row opened by InsertRow.
func (m *Model) CancelInsert() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
}

// Change overlays row onto the row at rowIndex and commits it.
func (m *Model) Change(ctx context.Context, rowIndex int, row database.Record) (int, error) {
	m.mu.Lock()
	if err := m.checkIndex(rowIndex); err != nil {
		m.mu.Unlock()
		return -1, err
	}
	if err := m.acquire(); err != nil {
		m.mu.Unlock()
		return -1, err
	}
	old := m.rows[rowIndex]
	merged := old.Merge(row)

	if err := m.validate(rowIndex, merged, old); err != nil {
		m.release()
		m.mu.Unlock()
		return -1, m.fail(err)
	}

	m.rows[rowIndex] = merged
	cb := m.cb.OnChange
	m.mu.Unlock()

	_, err := callback(ctx, cb, rowIndex, row)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
	if err != nil {
		if rowIndex < len(m.rows) {
			m.rows[rowIndex] = old
		}
		return -1, m.fail(err)
	}
	return rowIndex, nil
}

// Delete removes the row at rowIndex once the editor confirms.
func (m *Model) Delete(ctx context.Context, rowIndex int) (int, error) {
	m.mu.Lock()
	if err := m.checkIndex(rowIndex); err != nil {
		m.mu.Unlock()
		return -1, err
	}
	if err := m.acquire(); err != nil {
		m.mu.Unlock()
		return -1, err
	}
	row := m.rows[rowIndex]
	m.rows = slices.Delete(m.rows, rowIndex, rowIndex+1)
	cb := m.cb.OnDelete
	m.mu.Unlock()

	_, err := callback(ctx, cb, rowIndex, row.Clone())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
	if err != nil {
		at := min(rowIndex, len(m.rows))
		m.rows = slices.Insert(m.rows, at, row)
		return -1, m.fail(err)
	}
	return rowIndex, nil
}

// validate runs column validators, the required rule, read-only rules
// and the editor row validator. old is the row before the edit, empty for
// inserts.
func (m *Model) validate(rowIndex int, row, old database.Record) error {
	for _, col := range m.columns {
		v, ok := row.Get(col.ID)
		if !ok {
			continue
		}
		text := database.FormatValue(v)

		if rowIndex >= 0 && (col.ReadOnly || col.ReadOnlyEdit) && text != old.String(col.ID) {
			return errs.Validation(col.ID, fmt.Sprintf("`%s` column is read-only", col.ID))
		}
		if col.Required && text == "" {
			return errs.Validation(col.ID, fmt.Sprintf("`%s` column is mandatory", col.ID))
		}
		if text != "" && !col.Validator.Check(text) {
			return errs.Validation(col.ID, fmt.Sprintf("invalid value for column `%s`", col.ID))
		}
	}

	if m.cb.OnValidate != nil {
		return m.cb.OnValidate(rowIndex, row.Clone())
	}
	return nil
}

// fail surfaces err to the user. Deletion denials were already alerted by
// the editor.
func (m *Model) fail(err error) error {
	if !editor.IsDeletionDenied(err) {
		m.alerts = append(m.alerts, errs.MessageOf(err))
	}
	return err
}

func (m *Model) acquire() error {
	if m.busy {
		return errs.New(errs.ErrKindInvalidInput, "an edit is already pending")
	}
	m.busy = true
	return nil
}

func (m *Model) release() { m.busy = false }

func (m *Model) checkIndex(rowIndex int) error {
	if rowIndex < 0 || rowIndex >= len(m.rows) {
		return errs.Newf(errs.ErrKindInvalidInput, "row %d out of range", rowIndex)
	}
	return nil
}

func callback(ctx context.Context, fn editor.RowFunc, rowIndex int, row database.Record) (int, error) {
	if fn == nil {
		return rowIndex, nil
	}
	return fn(ctx, rowIndex, row)
}

// --- read side ---

// Snapshot is a copy of what the grid displays.
type Snapshot struct {
	Columns   []editor.GridColumn `json:"columns"`
	Rows      []database.Record   `json:"rows"`
	Defaults  database.Record     `json:"defaults"`
	Inserting bool                `json:"inserting"`
	Pending   *database.Record    `json:"pending,omitempty"`
	Alerts    []string            `json:"alerts,omitempty"`
}

// Snapshot returns the displayed state and clears the alert queue.
func (m *Model) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Columns:   slices.Clone(m.columns),
		Rows:      make([]database.Record, len(m.rows)),
		Defaults:  m.defaults.Clone(),
		Inserting: m.pending != nil,
		Alerts:    m.alerts,
	}
	for i, r := range m.rows {
		s.Rows[i] = r.Clone()
	}
	if m.pending != nil {
		p := m.pending.Clone()
		s.Pending = &p
	}
	m.alerts = nil
	return s
}

// Rows returns a copy of the displayed rows.
func (m *Model) Rows() []database.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]database.Record, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.Clone()
	}
	return out
}

// Columns returns the rendered column layout.
func (m *Model) Columns() []editor.GridColumn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.columns)
}

// Alerts returns the queued messages without clearing them.
func (m *Model) Alerts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.alerts)
}

// IsInserting reports whether a row opened by InsertRow is pending.
func (m *Model) IsInserting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Option returns the grid option named name.
func (m *Model) Option(name string) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.options[name]
}
