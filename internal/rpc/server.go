package rpc

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/logger"
)

// Routes mounts the dispatcher on a chi router. Every route answers with
// HTTP 200 and an envelope; failures never use another channel.
func (d *Dispatcher) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(d.log))

	r.Post("/", d.serveEnvelope)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, Fail("unknown endpoint"), false)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, Fail("requests must be sent with POST"), false)
	})
	return r
}

func (d *Dispatcher) serveEnvelope(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r)
	if err != nil {
		writeEnvelope(w, d.fail(req, err), req.Compress)
		return
	}
	writeEnvelope(w, d.Handle(r.Context(), req), req.Compress)
}

func writeEnvelope(w http.ResponseWriter, resp Response, compress bool) {
	payload, err := json.Marshal(resp)
	if err != nil {
		payload, _ = json.Marshal(Fail(errs.MessageOf(err)))
	}

	w.Header().Set("Content-Type", "application/json")
	if !compress {
		_, _ = w.Write(payload)
		return
	}

	w.Header().Set("Content-Encoding", "gzip")
	zw := gzip.NewWriter(w)
	_, _ = zw.Write(payload)
	_ = zw.Close()
}

// RequestLogger logs one line per request, tagged with a request id taken
// from X-Request-Id or generated.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	log = logger.OrNop(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", id)

			reqLog := log.With().Str("request_id", id).Logger()
			r = r.WithContext(reqLog.WithContext(r.Context()))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.HTTPEvent().
				Str("request_id", id).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
