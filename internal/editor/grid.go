package editor

import (
	"context"

	"github.com/koustreak/sqlgrid/internal/database"
)

// RowFunc is called by the grid when the user commits a row edit. It
// returns the index the grid should commit the row at; an error means the
// grid must roll back its optimistic change.
type RowFunc func(ctx context.Context, rowIndex int, row database.Record) (int, error)

// ValidateFunc checks a row before the grid hands it to OnInsert or
// OnChange. rowIndex is -1 for a row being inserted.
type ValidateFunc func(rowIndex int, row database.Record) error

// Callbacks are the hooks an editor registers with its grid.
type Callbacks struct {
	OnInsert   RowFunc
	OnChange   RowFunc
	OnDelete   RowFunc
	OnValidate ValidateFunc
}

// Grid is the rendering widget an editor drives. Any UI toolkit can sit
// behind it; internal/grid provides a headless one.
type Grid interface {
	// Render installs the column layout, the default values for new rows
	// and the editor callbacks.
	Render(columns []GridColumn, defaults database.Record, cb Callbacks) error

	// SetData replaces the displayed rows.
	SetData(rows []database.Record) error

	// InsertRow opens a blank row for editing.
	InsertRow() error

	// Alert shows a message to the user.
	Alert(msg string)
}

// GridFactory builds a grid for one Setup. options are passed through
// from Options.GridOptions untouched.
type GridFactory func(options map[string]any) Grid

type discardGrid struct{}

func (discardGrid) Render([]GridColumn, database.Record, Callbacks) error { return nil }
func (discardGrid) SetData([]database.Record) error                      { return nil }
func (discardGrid) InsertRow() error                                     { return nil }
func (discardGrid) Alert(string)                                         {}
