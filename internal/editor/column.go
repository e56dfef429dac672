package editor

import (
	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/dialect"
)

// KeyMarker is appended to the title of primary key columns.
const KeyMarker = " 🔑"

// Column is a described table column after type normalization.
type Column struct {
	Name       string
	Type       dialect.Canonical
	NativeType string
	PrimaryKey bool
	Nullable   bool
	Default    *string
	Constraint dialect.Constraint
}

// GridColumn is a column definition in the shape the grid widget expects.
type GridColumn struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Type     dialect.Canonical `json:"type"`
	SubTitle string            `json:"subTitle"`
	Required bool              `json:"required"`

	// ReadOnly forbids editing the cell at all; ReadOnlyEdit only forbids it
	// on rows that already exist.
	ReadOnly     bool `json:"readonly"`
	ReadOnlyEdit bool `json:"readonlyEdit"`

	// HTML cells are drawn by a custom renderer instead of plain text.
	HTML bool `json:"html"`

	Validator dialect.Constraint `json:"-"`
}

func newColumn(raw database.RawColumn, d dialect.Dialect) Column {
	return Column{
		Name:       raw.Name,
		Type:       d.Normalize(raw.NativeType),
		NativeType: raw.NativeType,
		PrimaryKey: raw.PrimaryKey,
		Nullable:   raw.Nullable,
		Default:    raw.Default,
		Constraint: d.Constraint(raw.NativeType),
	}
}

func (e *Editor) gridColumn(c Column) GridColumn {
	g := GridColumn{
		ID:           c.Name,
		Title:        c.Name,
		Type:         c.Type,
		SubTitle:     c.NativeType,
		Required:     c.PrimaryKey,
		ReadOnlyEdit: c.PrimaryKey && e.opts.noPrimaryKeyEdit(),
		Validator:    c.Constraint,
	}
	if g.SubTitle == "" {
		g.SubTitle = c.Type.String()
	}
	if c.PrimaryKey {
		g.Title += KeyMarker
	}
	return g
}

func primaryKeys(cols []Column) []string {
	var pks []string
	for _, c := range cols {
		if c.PrimaryKey {
			pks = append(pks, c.Name)
		}
	}
	return pks
}
