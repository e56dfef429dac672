// Package remote is the backend that ships every statement to a server
// dispatcher as one form-encoded envelope per call.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/logger"
	"github.com/koustreak/sqlgrid/internal/rpc"
)

// Backend is a database.Backend that talks to an rpc.Dispatcher over HTTP.
// It holds no session: every call is a self-contained envelope.
type Backend struct {
	endpoint string
	client   *http.Client
	cfg      *database.Config
	log      *logger.Logger

	// describeWithStatement issues DESCRIBE through a query instead of the
	// describe capability. Only MySQL servers understand it.
	describeWithStatement bool
}

// Option customises a Backend.
type Option func(*Backend)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.client = c }
}

// WithDescribeStatement makes Describe run "DESCRIBE <table>" as a query.
func WithDescribeStatement() Option {
	return func(b *Backend) { b.describeWithStatement = true }
}

// New returns a Backend posting to cfg.DSN.
func New(cfg *database.Config, log *logger.Logger, opts ...Option) (*Backend, error) {
	u, err := url.Parse(cfg.DSN)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "invalid dispatcher URL %q", cfg.DSN)
	}

	b := &Backend{
		endpoint: u.String(),
		client:   &http.Client{},
		cfg:      cfg,
		log:      logger.OrNop(log).Component("remote"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// --- database.Backend implementation ---

func (b *Backend) Select(ctx context.Context, query string, args ...any) ([]database.Record, error) {
	b.log.Statement("select", query, args)

	body, err := b.call(ctx, rpc.Request{Type: rpc.KindQuery, Request: query, Body: encodeArgs(args)})
	if err != nil {
		return nil, err
	}

	recs := make([]database.Record, 0)
	if len(body) == 0 || string(body) == "null" {
		return recs, nil
	}
	if err := json.Unmarshal(body, &recs); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "unexpected query response", err)
	}
	return recs, nil
}

func (b *Backend) Execute(ctx context.Context, query string, args ...any) error {
	b.log.Statement("execute", query, args)

	_, err := b.call(ctx, rpc.Request{Type: rpc.KindQuery, Request: query, Body: encodeArgs(args), NoResponse: true})
	return err
}

// CheckRowDeletable asks the server-side policy. A false answer is a denial,
// not an error; an answer that is not a boolean is an error.
func (b *Backend) CheckRowDeletable(ctx context.Context, table string, rowIndex int, row database.Record) (bool, error) {
	payload, err := json.Marshal(rpc.DeleteRequest{TableName: table, RowNumber: rowIndex, Row: row})
	if err != nil {
		return false, errs.Wrap(errs.ErrKindInvalidInput, "failed to encode row", err)
	}

	body, err := b.call(ctx, rpc.Request{Type: rpc.KindRequest, Request: string(rpc.CapAllowDelete), Body: payload})
	if err != nil {
		return false, err
	}

	var allowed bool
	if err := json.Unmarshal(body, &allowed); err != nil {
		return false, errs.Wrap(errs.ErrKindQueryFailed, "unexpected allowDelete response", err)
	}
	return allowed, nil
}

func (b *Backend) Describe(ctx context.Context, table string) ([]database.RawColumn, error) {
	if b.describeWithStatement {
		return b.describeStatement(ctx, table)
	}

	payload, err := json.Marshal(rpc.DescribeRequest{TableName: table})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to encode describe request", err)
	}

	body, err := b.call(ctx, rpc.Request{Type: rpc.KindRequest, Request: string(rpc.CapDescribe), Body: payload})
	if err != nil {
		return nil, err
	}

	var cols []database.RawColumn
	if err := json.Unmarshal(body, &cols); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "unexpected describe response", err)
	}
	if len(cols) == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %q does not exist", table)
	}
	return cols, nil
}

// describeStatement maps the Field/Type/Null/Key/Default rows of MySQL's
// DESCRIBE onto RawColumn.
func (b *Backend) describeStatement(ctx context.Context, table string) ([]database.RawColumn, error) {
	if !database.ValidIdentifier(table) {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "invalid table name %q", table)
	}

	rows, err := b.Select(ctx, "DESCRIBE "+table)
	if err != nil {
		return nil, err
	}

	cols := make([]database.RawColumn, 0, len(rows))
	for _, r := range rows {
		col := database.RawColumn{
			Name:       r.String("Field"),
			NativeType: r.String("Type"),
			PrimaryKey: r.String("Key") == "PRI",
			Nullable:   r.String("Null") == "YES",
		}
		if v := r.Value("Default"); v != nil {
			def := database.FormatValue(v)
			col.Default = &def
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %q does not exist", table)
	}
	return cols, nil
}

func (b *Backend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// --- transport ---

func encodeArgs(args []any) json.RawMessage {
	if len(args) == 0 {
		return json.RawMessage(`[]`)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		// Bound values come from scanned rows and JSON input, both encodable.
		return json.RawMessage(`[]`)
	}
	return raw
}

// call posts one envelope and returns its responseBody.
func (b *Backend) call(ctx context.Context, req rpc.Request) (json.RawMessage, error) {
	req.Compress = b.cfg.Compress

	ctx, cancel := database.WithQueryTimeout(ctx, b.cfg.QueryTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, strings.NewReader(req.Form().Encode()))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if req.Compress {
		httpReq.Header.Set("Accept-Encoding", "gzip")
	}

	res, err := b.client.Do(httpReq)
	if err != nil {
		return nil, mapError(err, "dispatcher unreachable")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.ErrKindConnectionFailed, "dispatcher answered %s", res.Status)
	}

	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(res.Body)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "corrupt compressed response", err)
		}
		defer zr.Close()
		r = zr
	}

	var env rpc.Response
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, mapError(err, "malformed response envelope")
	}
	if !env.Status {
		// The server message is shown to the user as is.
		return nil, errs.New(errs.ErrKindQueryFailed, env.Message)
	}
	return env.ResponseBody, nil
}

// mapError classifies transport failures.
func mapError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, fmt.Sprintf("%s: %s", msg, urlErr.Op), err)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
