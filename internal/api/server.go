// Package api exposes the table editor to a browser grid as a JSON HTTP
// API. The browser sends the edits; the headless grid applies them with
// the same optimistic-then-rollback protocol and reports the result.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/sqlgrid/internal/configtable"
	"github.com/koustreak/sqlgrid/internal/editor"
	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/filestore"
	"github.com/koustreak/sqlgrid/internal/grid"
	"github.com/koustreak/sqlgrid/internal/logger"
	"github.com/koustreak/sqlgrid/internal/rpc"
	"github.com/koustreak/sqlgrid/internal/shell"
)

// Server serves the shell, the config editor and snapshot export.
type Server struct {
	shell    *shell.Shell
	config   *configtable.Editor
	exporter *filestore.Exporter
	log      *logger.Logger
	timeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithConfigEditor serves ed under /api/config.
func WithConfigEditor(ed *configtable.Editor) Option {
	return func(s *Server) { s.config = ed }
}

// WithExporter enables the /api/export routes.
func WithExporter(e *filestore.Exporter) Option {
	return func(s *Server) { s.exporter = e }
}

// WithLogger sets the request logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New returns a server over sh.
func New(sh *shell.Shell, opts ...Option) *Server {
	s := &Server{shell: sh, timeout: 30 * time.Second}
	for _, o := range opts {
		o(s)
	}
	s.log = logger.OrNop(s.log).Component("api")
	return s
}

// Routes returns the chi router serving the API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(rpc.RequestLogger(s.log))
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errs.New(errs.ErrKindNotFound, "unknown endpoint"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/tables", s.listTables)
		r.Post("/select", s.selectTable)
		r.Post("/reload", s.reload)

		r.Get("/grid", s.showGrid)
		r.Post("/rows", s.insertRow)
		r.Post("/rows/pending", s.openRow)
		r.Delete("/rows/pending", s.cancelRow)
		r.Put("/rows/{index}", s.changeRow)
		r.Delete("/rows/{index}", s.deleteRow)

		r.Route("/config", func(r chi.Router) {
			r.Use(s.requireConfig)
			r.Get("/", s.showConfig)
			r.Post("/refresh", s.refreshConfig)
			r.Post("/rows", s.insertConfigRow)
			r.Put("/rows/{index}", s.changeConfigRow)
			r.Delete("/rows/{index}", s.deleteConfigRow)
			r.Get("/cells/{index}/{column}", s.renderConfigCell)
			r.Put("/quickselect/{key}", s.changeQuickSelect)
			r.Get("/metadata/{index}", s.metadataForm)
			r.Put("/metadata/{index}", s.editMetadata)
		})

		r.Post("/export", s.export)
		r.Get("/export/{table}/{id}", s.exportLink)
	})

	return r
}

func (s *Server) requireConfig(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config == nil {
			writeError(w, r, errs.New(errs.ErrKindNotFound, "no config table configured"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// currentGrid returns the headless grid of the table open in the shell.
func (s *Server) currentGrid() (string, *grid.Model, error) {
	table, sess := s.shell.Current()
	var m *grid.Model
	switch ed := sess.(type) {
	case *editor.Editor:
		m = grid.Of(ed)
	case *configtable.Editor:
		m = ed.Grid()
	}
	if m == nil {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "no table selected")
	}
	return table, m, nil
}

// --- encoding ---

// errorBody is the JSON error shape.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the error body. Server-side failures are also
// logged through the request logger.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]any{
			"kind":   errs.KindOf(err).String(),
			"path":   r.URL.Path,
			"status": status,
		})
	}
	writeJSON(w, status, errorBody{
		Error: errs.MessageOf(err),
		Kind:  errs.KindOf(err).String(),
		Field: errs.FieldOf(err),
	})
}

// statusOf maps an error kind to an HTTP status.
func statusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindValidation, errs.ErrKindCorrupt:
		return http.StatusUnprocessableEntity
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindUnsupported:
		return http.StatusNotImplemented
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid request body", err)
	}
	return nil
}

func indexParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.Newf(errs.ErrKindInvalidInput, "invalid row index %q", raw)
	}
	return i, nil
}
