package editor

import (
	"context"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/logger"
)

// AllowDeleteFunc approves or denies deleting a row. Returning false is a
// denial; an error means the check itself failed.
type AllowDeleteFunc func(ctx context.Context, table string, rowIndex int, row database.Record) (bool, error)

// Options configures an Editor. The zero value is usable.
type Options struct {
	// OnAllowDelete runs before the backend's own deletability check.
	// Nil allows every deletion.
	OnAllowDelete AllowDeleteFunc

	// OnSetupGridColumns post-processes the computed grid columns.
	OnSetupGridColumns func(cols []GridColumn) []GridColumn

	// OnRowValidate is handed to the grid as its row validator.
	OnRowValidate ValidateFunc

	// DefaultValues prefill rows opened with InsertRow.
	DefaultValues database.Record

	// NoPrimaryKeyEdit makes primary key cells read-only on existing rows.
	// Nil means true.
	NoPrimaryKeyEdit *bool

	// OrderBy replaces the primary key ordering of the initial select.
	OrderBy string

	Grid        GridFactory
	GridOptions map[string]any

	Logger *logger.Logger
}

// Bool returns a pointer to b, for optional fields such as NoPrimaryKeyEdit.
func Bool(b bool) *bool { return &b }

func (o *Options) noPrimaryKeyEdit() bool {
	return o.NoPrimaryKeyEdit == nil || *o.NoPrimaryKeyEdit
}

func (o *Options) newGrid() Grid {
	if o.Grid == nil {
		return discardGrid{}
	}
	opts := map[string]any{
		"editable":           true,
		"rowToStringColumns": "first",
	}
	for k, v := range o.GridOptions {
		opts[k] = v
	}
	if g := o.Grid(opts); g != nil {
		return g
	}
	return discardGrid{}
}
