package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/sqlgrid/internal/configtable"
	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/filestore"
	"github.com/koustreak/sqlgrid/internal/grid"
)

type selectRequest struct {
	Table string `json:"table"`
}

// rowRequest carries an edited row. For config tables, Cells holds the
// raw state of edit-mode cells; their extracted values override Row.
type rowRequest struct {
	Row   database.Record              `json:"row"`
	Cells map[string]configtable.Input `json:"cells,omitempty"`
}

type rowResponse struct {
	Index int           `json:"index"`
	Grid  grid.Snapshot `json:"grid"`
}

type gridView struct {
	Table string         `json:"table"`
	Grid  *grid.Snapshot `json:"grid,omitempty"`
}

type configView struct {
	Table        string                        `json:"table"`
	Grid         grid.Snapshot                 `json:"grid"`
	Cells        []map[string]configtable.Cell `json:"cells"`
	QuickSelects []configtable.QuickSelect     `json:"quickSelects"`
}

type quickSelectRequest struct {
	Value string `json:"value"`
}

type cellResponse struct {
	Cell  configtable.Cell `json:"cell"`
	Error string           `json:"error,omitempty"`
}

type metadataFormResponse struct {
	Form  configtable.MetadataForm `json:"form"`
	Types []configtable.ValueType  `json:"types"`
}

// --- shell ---

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) {
	current, _ := s.shell.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"tables":  s.shell.Tables(),
		"current": current,
	})
}

func (s *Server) selectTable(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.shell.Select(r.Context(), req.Table); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeGrid(w)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	if err := s.shell.Reload(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeGrid(w)
}

func (s *Server) showGrid(w http.ResponseWriter, r *http.Request) {
	s.writeGrid(w)
}

func (s *Server) writeGrid(w http.ResponseWriter) {
	table, m, err := s.currentGrid()
	if err != nil {
		writeJSON(w, http.StatusOK, gridView{})
		return
	}
	snap := m.Snapshot()
	writeJSON(w, http.StatusOK, gridView{Table: table, Grid: &snap})
}

// --- rows ---

func (s *Server) openRow(w http.ResponseWriter, r *http.Request) {
	_, m, err := s.currentGrid()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := m.InsertRow(); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeGrid(w)
}

func (s *Server) cancelRow(w http.ResponseWriter, r *http.Request) {
	_, m, err := s.currentGrid()
	if err != nil {
		writeError(w, r, err)
		return
	}
	m.CancelInsert()
	s.writeGrid(w)
}

func (s *Server) insertRow(w http.ResponseWriter, r *http.Request) {
	_, m, err := s.currentGrid()
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req rowRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	idx, err := m.Insert(r.Context(), req.Row)
	writeRowResult(w, r, m, idx, err)
}

func (s *Server) changeRow(w http.ResponseWriter, r *http.Request) {
	_, m, err := s.currentGrid()
	if err != nil {
		writeError(w, r, err)
		return
	}
	idx, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req rowRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	idx, err = m.Change(r.Context(), idx, req.Row)
	writeRowResult(w, r, m, idx, err)
}

func (s *Server) deleteRow(w http.ResponseWriter, r *http.Request) {
	_, m, err := s.currentGrid()
	if err != nil {
		writeError(w, r, err)
		return
	}
	idx, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	idx, err = m.Delete(r.Context(), idx)
	writeRowResult(w, r, m, idx, err)
}

func writeRowResult(w http.ResponseWriter, r *http.Request, m *grid.Model, idx int, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowResponse{Index: idx, Grid: m.Snapshot()})
}

// --- config table ---

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	editing := -1
	if v := r.URL.Query().Get("editing"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, errs.Newf(errs.ErrKindInvalidInput, "invalid row index %q", v))
			return
		}
		editing = i
	}
	s.writeConfig(w, r, editing)
}

func (s *Server) refreshConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.config.Refresh(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeConfig(w, r, -1)
}

func (s *Server) writeConfig(w http.ResponseWriter, r *http.Request, editing int) {
	m := s.config.Grid()
	if m == nil {
		writeError(w, r, errs.New(errs.ErrKindInvalidInput, "config table not loaded"))
		return
	}
	cells, err := s.config.RenderRows(editing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configView{
		Table:        s.config.Table(),
		Grid:         m.Snapshot(),
		Cells:        cells,
		QuickSelects: s.config.QuickSelects(),
	})
}

// configRow applies the extracted cell values of req to its row.
func (s *Server) configRow(rowIndex int, req rowRequest) (database.Record, error) {
	row := req.Row.Clone()
	for col, in := range req.Cells {
		v, err := s.config.ExtractCell(rowIndex, col, in)
		if err != nil {
			return database.Record{}, err
		}
		row.Set(col, v)
	}
	return row, nil
}

func (s *Server) insertConfigRow(w http.ResponseWriter, r *http.Request) {
	m := s.config.Grid()
	if m == nil {
		writeError(w, r, errs.New(errs.ErrKindInvalidInput, "config table not loaded"))
		return
	}
	var req rowRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	row, err := s.configRow(-1, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	idx, err := m.Insert(r.Context(), row)
	writeRowResult(w, r, m, idx, err)
}

func (s *Server) changeConfigRow(w http.ResponseWriter, r *http.Request) {
	m := s.config.Grid()
	if m == nil {
		writeError(w, r, errs.New(errs.ErrKindInvalidInput, "config table not loaded"))
		return
	}
	idx, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req rowRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	row, err := s.configRow(idx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	idx, err = m.Change(r.Context(), idx, row)
	writeRowResult(w, r, m, idx, err)
}

func (s *Server) deleteConfigRow(w http.ResponseWriter, r *http.Request) {
	m := s.config.Grid()
	if m == nil {
		writeError(w, r, errs.New(errs.ErrKindInvalidInput, "config table not loaded"))
		return
	}
	idx, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	idx, err = m.Delete(r.Context(), idx)
	writeRowResult(w, r, m, idx, err)
}

func (s *Server) renderConfigCell(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	editing, _ := strconv.ParseBool(r.URL.Query().Get("editing"))

	cell, err := s.config.RenderCell(idx, chi.URLParam(r, "column"), editing)
	if err != nil && cell.Widget != configtable.WidgetError {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cellResponse{Cell: cell, Error: errs.MessageOf(err)})
}

func (s *Server) changeQuickSelect(w http.ResponseWriter, r *http.Request) {
	var req quickSelectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.config.ChangeQuickSelect(r.Context(), chi.URLParam(r, "key"), req.Value); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeConfig(w, r, -1)
}

func (s *Server) metadataForm(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	form, err := s.config.MetadataFormFor(idx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metadataFormResponse{Form: form, Types: configtable.ValueTypes()})
}

func (s *Server) editMetadata(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var form configtable.MetadataForm
	if err := decode(r, &form); err != nil {
		writeError(w, r, err)
		return
	}
	cell, err := s.config.EditMetadata(r.Context(), idx, form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cellResponse{Cell: cell})
}

// --- export ---

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, r, errs.New(errs.ErrKindUnsupported, "snapshot export is not configured"))
		return
	}
	table, m, err := s.currentGrid()
	if err != nil {
		writeError(w, r, err)
		return
	}

	cols := m.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.ID
	}

	res, err := s.exporter.Export(r.Context(), filestore.Snapshot{
		Table:   table,
		Columns: names,
		Rows:    m.Rows(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.log.With().Str("table", table).Str("key", res.Object.Key).Logger().Info("snapshot exported")
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) exportLink(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, r, errs.New(errs.ErrKindUnsupported, "snapshot export is not configured"))
		return
	}
	res, err := s.exporter.Lookup(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
