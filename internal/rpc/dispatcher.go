package rpc

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/logger"
)

type kindHandler func(ctx context.Context, req Request) (any, error)

type capabilityHandler func(ctx context.Context, body json.RawMessage) (any, error)

// Dispatcher executes envelopes against a backend. Command kinds and
// capabilities are routed through fixed tables; anything not in them is
// rejected with an errs.ErrKindUnsupported error turned into a failed
// envelope.
type Dispatcher struct {
	backend database.Backend
	policy  DeletePolicy
	log     *logger.Logger

	kinds        map[Kind]kindHandler
	capabilities map[Capability]capabilityHandler
}

// NewDispatcher wires backend and policy into a dispatcher. A nil policy
// allows every deletion.
func NewDispatcher(backend database.Backend, policy DeletePolicy, log *logger.Logger) *Dispatcher {
	if policy == nil {
		policy = AllowAllPolicy{}
	}
	d := &Dispatcher{
		backend: backend,
		policy:  policy,
		log:     logger.OrNop(log).Component("rpc"),
	}
	d.kinds = map[Kind]kindHandler{
		KindQuery:   d.handleQuery,
		KindRequest: d.handleCapability,
	}
	d.capabilities = map[Capability]capabilityHandler{
		CapAllowDelete: d.handleAllowDelete,
		CapDescribe:    d.handleDescribe,
	}
	return d
}

// Handle runs one request and always answers with an envelope.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	h, ok := d.kinds[req.Type]
	if !ok {
		return d.fail(req, errs.Newf(errs.ErrKindUnsupported, "unknown request type %q", req.Type))
	}

	body, err := h(ctx, req)
	if err != nil {
		return d.fail(req, err)
	}

	resp, err := OK(body)
	if err != nil {
		return d.fail(req, err)
	}
	return resp
}

func (d *Dispatcher) fail(req Request, err error) Response {
	d.log.With().
		Str("type", string(req.Type)).
		Str("kind", errs.KindOf(err).String()).
		Err(err).
		Logger().
		Warn("request failed")
	return Fail(errs.MessageOf(err))
}

// --- command kinds ---

func (d *Dispatcher) handleQuery(ctx context.Context, req Request) (any, error) {
	args, err := DecodeArgs(req.Body)
	if err != nil {
		return nil, err
	}

	if req.NoResponse {
		return nil, d.backend.Execute(ctx, req.Request, args...)
	}
	return d.backend.Select(ctx, req.Request, args...)
}

func (d *Dispatcher) handleCapability(ctx context.Context, req Request) (any, error) {
	h, ok := d.capabilities[Capability(req.Request)]
	if !ok {
		return nil, errs.Newf(errs.ErrKindUnsupported, "unknown request %q", req.Request)
	}
	return h(ctx, req.Body)
}

// --- capabilities ---

func (d *Dispatcher) handleAllowDelete(ctx context.Context, body json.RawMessage) (any, error) {
	var dr DeleteRequest
	if err := unmarshalNumbers(body, &dr); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed allowDelete body", err)
	}
	if dr.TableName == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "missing tableName")
	}

	allowed, err := d.policy.AllowDelete(ctx, dr)
	if err != nil {
		return nil, err
	}
	return allowed, nil
}

func (d *Dispatcher) handleDescribe(ctx context.Context, body json.RawMessage) (any, error) {
	var dr DescribeRequest
	if err := unmarshalNumbers(body, &dr); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed describe body", err)
	}
	return d.backend.Describe(ctx, dr.TableName)
}

func unmarshalNumbers(data []byte, v any) error {
	if len(data) == 0 {
		return errs.New(errs.ErrKindInvalidInput, "empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
