package configtable

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/dialect"
	"github.com/koustreak/sqlgrid/internal/editor"
	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/grid"
	"github.com/koustreak/sqlgrid/internal/logger"
)

// QuickSelect is a standalone choice control bound to a list-typed row.
type QuickSelect struct {
	Key      string   `json:"key"`
	Hint     string   `json:"hint,omitempty"`
	Required bool     `json:"required"`
	Choices  []string `json:"choices"`
	Selected string   `json:"selected"`
}

// Editor is a table editor specialised for config tables. Every Refresh
// builds a new underlying editor.Editor, like a page reload would.
type Editor struct {
	backend database.Backend
	dialect dialect.Dialect
	table   string
	opts    Options
	edOpts  editor.Options
	log     *logger.Logger

	mu    sync.Mutex
	ed    *editor.Editor
	quick []QuickSelect
}

// New returns an editor for the config table. edOpts are passed to the
// underlying table editor; its column hook, default values and row
// validator are extended, not replaced. A nil grid factory defaults to the
// headless grid.
func New(backend database.Backend, d dialect.Dialect, table string, opts Options, edOpts editor.Options) (*Editor, error) {
	opts = opts.withDefaults()
	if err := opts.check(); err != nil {
		return nil, err
	}
	if !database.ValidIdentifier(table) {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "invalid table name %q", table)
	}
	if backend == nil || d == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "missing backend or dialect")
	}
	if edOpts.Grid == nil {
		edOpts.Grid = grid.Factory()
	}

	return &Editor{
		backend: backend,
		dialect: d,
		table:   table,
		opts:    opts,
		edOpts:  edOpts,
		log:     logger.OrNop(edOpts.Logger).Component("configtable").With().Str("table", table).Logger(),
	}, nil
}

// Setup loads the table for the first time.
func (c *Editor) Setup(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Refresh rebuilds the table editor and the quick selects. When the quick
// selects fail, the freshly loaded grid is kept and the error returned.
func (c *Editor) Refresh(ctx context.Context) error {
	ed, err := editor.New(c.backend, c.dialect, c.table, c.tableOptions())
	if err != nil {
		return err
	}
	if err := ed.Setup(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	old := c.ed
	c.ed = ed
	c.quick = nil
	c.mu.Unlock()
	if old != nil {
		old.Teardown()
	}

	quick, err := c.loadQuickSelects(ctx, ed)
	if err != nil {
		c.log.With().Err(err).Logger().Warn("quick selects unavailable")
		return err
	}

	c.mu.Lock()
	if c.ed == ed {
		c.quick = quick
	}
	c.mu.Unlock()
	return nil
}

func (c *Editor) tableOptions() editor.Options {
	o := c.edOpts
	userCols := o.OnSetupGridColumns
	o.OnSetupGridColumns = func(cols []editor.GridColumn) []editor.GridColumn {
		for i := range cols {
			switch cols[i].ID {
			case c.opts.MetadataColumn:
				cols[i].ReadOnly = true
				cols[i].HTML = true
			case c.opts.ValueColumn:
				cols[i].HTML = true
			}
		}
		if userCols != nil {
			cols = userCols(cols)
		}
		return cols
	}

	defaults := database.NewRecord(database.Field{Name: c.opts.MetadataColumn, Value: DefaultMetadata})
	o.DefaultValues = defaults.Merge(o.DefaultValues)

	userValidate := o.OnRowValidate
	o.OnRowValidate = func(rowIndex int, row database.Record) error {
		if err := Validate(c.opts, row); err != nil {
			return err
		}
		if userValidate != nil {
			return userValidate(rowIndex, row)
		}
		return nil
	}
	return o
}

func (c *Editor) loadQuickSelects(ctx context.Context, ed *editor.Editor) ([]QuickSelect, error) {
	o := c.opts
	q := fmt.Sprintf("SELECT %s,%s,%s FROM %s WHERE %s LIKE ? ORDER BY %s",
		o.PrimaryKeyColumn, o.MetadataColumn, o.ValueColumn, c.table, o.MetadataColumn, o.PrimaryKeyColumn)

	rows, err := ed.Select(ctx, q, `%"list"%`)
	if err != nil {
		return nil, err
	}

	quick := make([]QuickSelect, 0, len(rows))
	for _, r := range rows {
		key := r.String(o.PrimaryKeyColumn)

		meta, err := ParseMetadata(r.String(o.MetadataColumn))
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindCorrupt, fmt.Sprintf("Unreadable metadata for row with key `%s`", key), err)
		}
		if meta.Type() != TypeList {
			continue
		}

		choices, err := ResolveChoices(ctx, ed, c.table, o, meta)
		if err != nil {
			return nil, err
		}
		quick = append(quick, QuickSelect{
			Key:      key,
			Hint:     meta.Common().Hint,
			Required: meta.Common().Required,
			Choices:  choices,
			Selected: r.String(o.ValueColumn),
		})
	}
	return quick, nil
}

// --- quick selects ---

// QuickSelects returns the controls built by the last Refresh.
func (c *Editor) QuickSelects() []QuickSelect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.quick)
}

// ChangeQuickSelect stores value for key and refreshes everything, since
// other lists may take their choices from that row. A blank selection on
// a required control is refused without a statement.
func (c *Editor) ChangeQuickSelect(ctx context.Context, key, value string) error {
	ed, err := c.current()
	if err != nil {
		return err
	}

	c.mu.Lock()
	i := slices.IndexFunc(c.quick, func(q QuickSelect) bool { return q.Key == key })
	var qs QuickSelect
	if i >= 0 {
		qs = c.quick[i]
	}
	c.mu.Unlock()
	if i < 0 {
		return errs.Newf(errs.ErrKindInvalidInput, "no quick select for key `%s`", key)
	}

	if qs.Required && value == "" {
		msg := fmt.Sprintf("Selecting a value is mandatory for key `%s`", key)
		c.alert(ed, msg)
		return errs.Validation(key, msg)
	}

	q, args, err := database.BuildUpdate(c.table,
		database.NewRecord(database.Field{Name: c.opts.ValueColumn, Value: value}),
		database.NewRecord(database.Field{Name: c.opts.PrimaryKeyColumn, Value: key}))
	if err != nil {
		return err
	}
	if err := ed.Execute(ctx, q, args...); err != nil {
		c.alert(ed, errs.MessageOf(err))
		return err
	}
	return c.Refresh(ctx)
}

// --- metadata dialog ---

// MetadataFormFor prefills the metadata dialog for the row at rowIndex.
func (c *Editor) MetadataFormFor(rowIndex int) (MetadataForm, error) {
	ed, err := c.current()
	if err != nil {
		return MetadataForm{}, err
	}
	row, err := ed.Row(rowIndex)
	if err != nil {
		return MetadataForm{}, err
	}
	meta, err := ParseMetadata(row.String(c.opts.MetadataColumn))
	if err != nil {
		return MetadataForm{}, err
	}
	return FormFor(meta, c.opts), nil
}

// EditMetadata stores the descriptor submitted through form for the row
// at rowIndex, updates the loaded row in place and returns the repainted
// metadata cell. It is refused while a new row is being inserted.
func (c *Editor) EditMetadata(ctx context.Context, rowIndex int, form MetadataForm) (Cell, error) {
	ed, err := c.current()
	if err != nil {
		return Cell{}, err
	}
	if g := grid.Of(ed); g != nil && g.IsInserting() {
		return Cell{}, errs.New(errs.ErrKindInvalidInput, "metadata cannot be edited while a row is being inserted")
	}

	row, err := ed.Row(rowIndex)
	if err != nil {
		return Cell{}, err
	}
	if _, err := ParseMetadata(row.String(c.opts.MetadataColumn)); err != nil {
		return Cell{}, err
	}
	if err := form.Validate(); err != nil {
		return Cell{}, err
	}

	encoded, err := EncodeMetadata(form.Metadata())
	if err != nil {
		return Cell{}, err
	}

	q, args, err := database.BuildUpdate(c.table,
		database.NewRecord(database.Field{Name: c.opts.MetadataColumn, Value: encoded}),
		database.NewRecord(database.Field{Name: c.opts.PrimaryKeyColumn, Value: row.Value(c.opts.PrimaryKeyColumn)}))
	if err != nil {
		return Cell{}, err
	}
	if err := ed.Execute(ctx, q, args...); err != nil {
		c.alert(ed, errs.MessageOf(err))
		return Cell{}, err
	}

	if err := ed.UpdateLocal(rowIndex, c.opts.MetadataColumn, encoded); err != nil {
		return Cell{}, err
	}
	return RenderMetadata(encoded, false), nil
}

// --- cells ---

// RenderCell builds the view of one cell. rowIndex -1 is the row being
// inserted. A cell that cannot be rendered comes back as an error cell
// together with the error; other cells are unaffected.
func (c *Editor) RenderCell(rowIndex int, column string, editing bool) (Cell, error) {
	ed, err := c.current()
	if err != nil {
		return Cell{}, err
	}
	row, err := c.rowOrDefaults(ed, rowIndex)
	if err != nil {
		return Cell{}, err
	}

	switch column {
	case c.opts.MetadataColumn:
		cell := RenderMetadata(row.String(column), editing)
		if cell.Widget == WidgetError {
			return cell, errs.New(errs.ErrKindCorrupt, cell.Hint)
		}
		return cell, nil

	case c.opts.ValueColumn:
		meta, err := ParseMetadata(row.String(c.opts.MetadataColumn))
		if err != nil {
			return ErrorCell("/!\\ Unreadable metadata", err), err
		}
		cell, err := RenderValue(meta, editing, row.String(column), c.renderContext(ed))
		if err != nil {
			return ErrorCell("/!\\ "+errs.MessageOf(err), err), err
		}
		return cell, nil

	default:
		return Cell{Widget: WidgetText, Text: row.String(column)}, nil
	}
}

// ExtractCell returns the value to store for column from an edit-mode
// cell of the row at rowIndex (-1 for the row being inserted).
func (c *Editor) ExtractCell(rowIndex int, column string, in Input) (string, error) {
	ed, err := c.current()
	if err != nil {
		return "", err
	}
	row, err := c.rowOrDefaults(ed, rowIndex)
	if err != nil {
		return "", err
	}

	switch column {
	case c.opts.ValueColumn:
		meta, err := ParseMetadata(row.String(c.opts.MetadataColumn))
		if err != nil {
			return "", err
		}
		return ExtractValue(meta, in), nil
	case c.opts.MetadataColumn:
		return row.String(column), nil
	default:
		return in.Text, nil
	}
}

// RenderRows renders the metadata and value cells of every loaded row.
func (c *Editor) RenderRows(editingRow int) ([]map[string]Cell, error) {
	ed, err := c.current()
	if err != nil {
		return nil, err
	}

	n := len(ed.Rows())
	out := make([]map[string]Cell, n)
	for i := 0; i < n; i++ {
		out[i] = make(map[string]Cell, 2)
		for _, col := range []string{c.opts.MetadataColumn, c.opts.ValueColumn} {
			cell, _ := c.RenderCell(i, col, i == editingRow)
			out[i][col] = cell
		}
	}
	return out, nil
}

// ResolveChoices resolves a list descriptor against the config table.
func (c *Editor) ResolveChoices(ctx context.Context, meta Metadata) ([]string, error) {
	return ResolveChoices(ctx, c.backend, c.table, c.opts, meta)
}

func (c *Editor) renderContext(ed *editor.Editor) RenderContext {
	rows := ed.Rows()
	return RenderContext{
		LineLength:       c.opts.LineLength,
		DefaultSeparator: c.opts.DefaultSeparator,
		Lookup: func(key string) (string, bool) {
			for _, r := range rows {
				if r.String(c.opts.PrimaryKeyColumn) == key {
					return r.String(c.opts.ValueColumn), true
				}
			}
			return "", false
		},
	}
}

func (c *Editor) rowOrDefaults(ed *editor.Editor, rowIndex int) (database.Record, error) {
	if rowIndex < 0 {
		return ed.DefaultValues(), nil
	}
	return ed.Row(rowIndex)
}

// --- accessors ---

func (c *Editor) Table() string { return c.table }

func (c *Editor) Options() Options { return c.opts }

// TableEditor returns the current underlying editor, or nil before Setup.
func (c *Editor) TableEditor() *editor.Editor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ed
}

// Grid returns the headless grid of the current editor, or nil.
func (c *Editor) Grid() *grid.Model {
	ed := c.TableEditor()
	if ed == nil {
		return nil
	}
	return grid.Of(ed)
}

// Teardown unloads the editor.
func (c *Editor) Teardown() {
	c.mu.Lock()
	ed := c.ed
	c.ed, c.quick = nil, nil
	c.mu.Unlock()
	if ed != nil {
		ed.Teardown()
	}
}

func (c *Editor) current() (*editor.Editor, error) {
	ed := c.TableEditor()
	if ed == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "config table not loaded")
	}
	return ed, nil
}

func (c *Editor) alert(ed *editor.Editor, msg string) {
	if g := ed.Grid(); g != nil {
		g.Alert(msg)
	}
}
