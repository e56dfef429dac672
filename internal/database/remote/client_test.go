package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/database/sqlite"
	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/rpc"
)

// newRemote starts a dispatcher over an in-memory SQLite database and
// returns a remote backend pointed at it.
func newRemote(t *testing.T, policy rpc.DeletePolicy, compress bool) *Backend {
	t.Helper()
	ctx := context.Background()

	local, err := sqlite.New(ctx, database.DefaultConfig(database.DriverSQLite, ":memory:"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })
	_, err = local.DB().Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name varchar(40))`)
	require.NoError(t, err)

	srv := httptest.NewServer(rpc.NewDispatcher(local, policy, nil).Routes())
	t.Cleanup(srv.Close)

	cfg := database.DefaultConfig(database.DriverRemote, srv.URL+"/")
	cfg.Compress = compress
	b, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackend_RoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "gzip"}[compress], func(t *testing.T) {
			ctx := context.Background()
			b := newRemote(t, nil, compress)

			require.NoError(t, b.Execute(ctx, "INSERT INTO users (name) VALUES (?)", "Ann"))
			require.NoError(t, b.Execute(ctx, "INSERT INTO users (name) VALUES (?)", "Bob"))

			rows, err := b.Select(ctx, "SELECT * FROM users WHERE id > ? ORDER BY id", 0)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, []string{"id", "name"}, rows[0].Keys())
			assert.Equal(t, int64(1), rows[0].Value("id"))
			assert.Equal(t, "Bob", rows[1].Value("name"))
		})
	}
}

func TestBackend_EmptySelect(t *testing.T) {
	rows, err := newRemote(t, nil, false).Select(context.Background(), "SELECT * FROM users")

	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestBackend_ServerMessageIsVerbatim(t *testing.T) {
	b := newRemote(t, nil, false)

	err := b.Execute(context.Background(), "INSERT INTO nope (x) VALUES (?)", 1)

	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
	assert.Equal(t, "statement failed: no such table: nope", errs.MessageOf(err))
}

func TestBackend_Describe(t *testing.T) {
	b := newRemote(t, nil, false)

	cols, err := b.Describe(context.Background(), "users")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].PrimaryKey)
	assert.Equal(t, "varchar(40)", cols[1].NativeType)

	_, err = b.Describe(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestBackend_CheckRowDeletable(t *testing.T) {
	b := newRemote(t, rpc.EvenRowsPolicy(), false)
	row := database.NewRecord(database.Field{Name: "id", Value: int64(1)})

	ok, err := b.CheckRowDeletable(context.Background(), "users", 0, row)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.CheckRowDeletable(context.Background(), "users", 1, row)
	require.NoError(t, err, "a denial resolves to false without an error")
	assert.False(t, ok)
}

func TestBackend_NonBooleanDeletableAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"responseBody":"maybe"}`))
	}))
	defer srv.Close()

	b, err := New(database.DefaultConfig(database.DriverRemote, srv.URL), nil)
	require.NoError(t, err)

	_, err = b.CheckRowDeletable(context.Background(), "users", 0, database.Record{})
	assert.True(t, errs.IsQueryFailed(err))
}

func TestBackend_DescribeWithStatement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "DESCRIBE users", r.PostForm.Get("request"))
		_, _ = w.Write([]byte(`{"status":true,"responseBody":[
			{"Field":"id","Type":"int(11)","Null":"NO","Key":"PRI","Default":null,"Extra":"auto_increment"},
			{"Field":"name","Type":"varchar(40)","Null":"YES","Key":"","Default":"x","Extra":""}
		]}`))
	}))
	defer srv.Close()

	b, err := New(database.DefaultConfig(database.DriverRemote, srv.URL), nil, WithDescribeStatement())
	require.NoError(t, err)

	cols, err := b.Describe(context.Background(), "users")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, database.RawColumn{Name: "id", NativeType: "int(11)", PrimaryKey: true}, cols[0])
	assert.True(t, cols[1].Nullable)
	require.NotNil(t, cols[1].Default)
	assert.Equal(t, "x", *cols[1].Default)
}

func TestBackend_TransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := database.DefaultConfig(database.DriverRemote, srv.URL)
	cfg.QueryTimeout = 20 * time.Millisecond
	b, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = b.Select(context.Background(), "SELECT 1")
	assert.True(t, errs.IsTimeout(err))

	down, err := New(database.DefaultConfig(database.DriverRemote, "http://127.0.0.1:1"), nil)
	require.NoError(t, err)
	err = down.Execute(context.Background(), "DELETE FROM users WHERE id=?", 1)
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, dsn := range []string{"", "users.db", "ftp://host/x"} {
		_, err := New(database.DefaultConfig(database.DriverRemote, dsn), nil)
		assert.True(t, errs.IsInvalidInput(err), dsn)
	}
}
