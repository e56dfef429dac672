package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
)

// mockBackend lets each test override only what it needs.
type mockBackend struct {
	database.AllowAll

	describeFn func(ctx context.Context, table string) ([]database.RawColumn, error)
	selectFn   func(ctx context.Context, q string, args ...any) ([]database.Record, error)
	executeFn  func(ctx context.Context, q string, args ...any) error
	fksFn      func(ctx context.Context, table string) ([]database.ForeignKey, error)
}

func (m *mockBackend) Describe(ctx context.Context, table string) ([]database.RawColumn, error) {
	return m.describeFn(ctx, table)
}

func (m *mockBackend) Select(ctx context.Context, q string, args ...any) ([]database.Record, error) {
	return m.selectFn(ctx, q, args...)
}

func (m *mockBackend) Execute(ctx context.Context, q string, args ...any) error {
	return m.executeFn(ctx, q, args...)
}

func (m *mockBackend) ReferencingKeys(ctx context.Context, table string) ([]database.ForeignKey, error) {
	return m.fksFn(ctx, table)
}

func (m *mockBackend) Close() error { return nil }

func TestDispatcher_Query(t *testing.T) {
	var gotQuery string
	var gotArgs []any
	backend := &mockBackend{
		selectFn: func(_ context.Context, q string, args ...any) ([]database.Record, error) {
			gotQuery, gotArgs = q, args
			return []database.Record{
				database.NewRecord(database.Field{Name: "id", Value: int64(1)}, database.Field{Name: "name", Value: "Ann"}),
			}, nil
		},
	}
	d := NewDispatcher(backend, nil, nil)

	resp := d.Handle(context.Background(), Request{
		Type:    KindQuery,
		Request: "SELECT * FROM users WHERE id=?",
		Body:    json.RawMessage(`[1]`),
	})

	require.True(t, resp.Status)
	assert.JSONEq(t, `[{"id":1,"name":"Ann"}]`, string(resp.ResponseBody))
	assert.Equal(t, "SELECT * FROM users WHERE id=?", gotQuery)
	assert.Equal(t, []any{int64(1)}, gotArgs)
}

func TestDispatcher_QueryNoResponse(t *testing.T) {
	executed := false
	backend := &mockBackend{
		executeFn: func(_ context.Context, q string, args ...any) error {
			executed = true
			assert.Equal(t, []any{"Ann"}, args)
			return nil
		},
	}
	d := NewDispatcher(backend, nil, nil)

	resp := d.Handle(context.Background(), Request{
		Type:       KindQuery,
		Request:    "INSERT INTO users (name) VALUES (?)",
		Body:       json.RawMessage(`["Ann"]`),
		NoResponse: true,
	})

	assert.True(t, executed)
	assert.Equal(t, Response{Status: true}, resp)
}

func TestDispatcher_QueryEmptyResult(t *testing.T) {
	backend := &mockBackend{
		selectFn: func(context.Context, string, ...any) ([]database.Record, error) {
			return []database.Record{}, nil
		},
	}

	resp := NewDispatcher(backend, nil, nil).Handle(context.Background(), Request{Type: KindQuery, Request: "SELECT 1"})

	require.True(t, resp.Status)
	assert.Equal(t, "[]", string(resp.ResponseBody))
}

func TestDispatcher_StatementFailure(t *testing.T) {
	backend := &mockBackend{
		executeFn: func(context.Context, string, ...any) error {
			return errs.Wrap(errs.ErrKindQueryFailed, "statement failed: UNIQUE constraint failed: users.id", errors.New("sqlite"))
		},
	}

	resp := NewDispatcher(backend, nil, nil).Handle(context.Background(), Request{
		Type: KindQuery, Request: "INSERT INTO users (id) VALUES (?)", Body: json.RawMessage(`[1]`), NoResponse: true,
	})

	assert.False(t, resp.Status)
	assert.Equal(t, "statement failed: UNIQUE constraint failed: users.id", resp.Message)
	assert.Empty(t, resp.ResponseBody)
}

func TestDispatcher_RejectsUnknownCommands(t *testing.T) {
	d := NewDispatcher(&mockBackend{}, nil, nil)

	resp := d.Handle(context.Background(), Request{Type: "exec", Request: "x"})
	assert.False(t, resp.Status)
	assert.Contains(t, resp.Message, "unknown request type")

	resp = d.Handle(context.Background(), Request{Type: KindRequest, Request: "dropEverything"})
	assert.False(t, resp.Status)
	assert.Contains(t, resp.Message, "unknown request")
}

func TestDispatcher_MalformedArgs(t *testing.T) {
	d := NewDispatcher(&mockBackend{}, nil, nil)

	resp := d.Handle(context.Background(), Request{Type: KindQuery, Request: "SELECT 1", Body: json.RawMessage(`{"a":1}`)})

	assert.False(t, resp.Status)
	assert.Equal(t, "bound values must be a JSON array", resp.Message)
}

func TestDispatcher_AllowDelete(t *testing.T) {
	d := NewDispatcher(&mockBackend{}, EvenRowsPolicy(), nil)

	even := d.Handle(context.Background(), Request{
		Type: KindRequest, Request: string(CapAllowDelete),
		Body: json.RawMessage(`{"tableName":"users","rowNumber":2,"row":{"id":3}}`),
	})
	require.True(t, even.Status)
	assert.Equal(t, "true", string(even.ResponseBody))

	odd := d.Handle(context.Background(), Request{
		Type: KindRequest, Request: string(CapAllowDelete),
		Body: json.RawMessage(`{"tableName":"users","rowNumber":1,"row":{"id":2}}`),
	})
	require.True(t, odd.Status, "a denial is an answer, not a failure")
	assert.Equal(t, "false", string(odd.ResponseBody))
}

func TestDispatcher_AllowDeleteRequiresTable(t *testing.T) {
	d := NewDispatcher(&mockBackend{}, nil, nil)

	resp := d.Handle(context.Background(), Request{Type: KindRequest, Request: string(CapAllowDelete), Body: json.RawMessage(`{}`)})

	assert.False(t, resp.Status)
	assert.Equal(t, "missing tableName", resp.Message)
}

func TestDispatcher_Describe(t *testing.T) {
	backend := &mockBackend{
		describeFn: func(_ context.Context, table string) ([]database.RawColumn, error) {
			if table != "users" {
				return nil, errs.Newf(errs.ErrKindNotFound, "table %q does not exist", table)
			}
			return []database.RawColumn{{Name: "id", NativeType: "int(11)", PrimaryKey: true}}, nil
		},
	}
	d := NewDispatcher(backend, nil, nil)

	resp := d.Handle(context.Background(), Request{Type: KindRequest, Request: string(CapDescribe), Body: json.RawMessage(`{"tableName":"users"}`)})
	require.True(t, resp.Status)
	assert.JSONEq(t, `[{"name":"id","type":"int(11)","pk":true,"nullable":false}]`, string(resp.ResponseBody))

	resp = d.Handle(context.Background(), Request{Type: KindRequest, Request: string(CapDescribe), Body: json.RawMessage(`{"tableName":"ghost"}`)})
	assert.False(t, resp.Status)
	assert.Equal(t, `table "ghost" does not exist`, resp.Message)
}
