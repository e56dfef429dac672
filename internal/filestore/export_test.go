package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
)

type memStore struct {
	objects map[string][]byte
	opts    map[string]PutOptions
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, opts: map[string]PutOptions{}}
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

func (m *memStore) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) (*ObjectInfo, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != size {
		return nil, errs.New(errs.ErrKindInvalidInput, "size mismatch")
	}
	m.objects[bucket+"/"+key] = data
	m.opts[bucket+"/"+key] = opts
	return &ObjectInfo{Key: key, Size: size, ContentType: opts.ContentType, ContentEncoding: opts.ContentEncoding}, nil
}

func (m *memStore) StatObject(_ context.Context, bucket, key string) (*ObjectInfo, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "no such key")
	}
	return &ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memStore) PresignGetURL(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return "http://store/" + bucket + "/" + key + "?ttl=" + ttl.String(), nil
}

func fixedExporter(store Store, cfg *Config) *Exporter {
	e := NewExporter(store, cfg)
	e.newID = func() string { return "0000-id" }
	e.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return e
}

func snapshot() Snapshot {
	return Snapshot{
		Table:   "users",
		Columns: []string{"id", "name"},
		Rows: []database.Record{
			database.NewRecord(database.Field{Name: "id", Value: 1}, database.Field{Name: "name", Value: "Ann"}),
		},
	}
}

func TestExporter_Export(t *testing.T) {
	store := newMemStore()
	cfg := DefaultConfig("localhost:9000", "k", "s")
	e := fixedExporter(store, cfg)

	res, err := e.Export(context.Background(), snapshot())
	require.NoError(t, err)
	assert.Equal(t, "snapshots/users/0000-id.json", res.Object.Key)
	assert.Equal(t, "http://store/sqlgrid/snapshots/users/0000-id.json?ttl=15m0s", res.URL)

	data := store.objects["sqlgrid/snapshots/users/0000-id.json"]
	assert.JSONEq(t, `{
		"table": "users",
		"columns": ["id", "name"],
		"rows": [{"id": 1, "name": "Ann"}],
		"exportedAt": "2026-01-02T03:04:05Z"
	}`, string(data))
	assert.Equal(t, "application/json", store.opts["sqlgrid/snapshots/users/0000-id.json"].ContentType)

	info, err := store.StatObject(context.Background(), "sqlgrid", res.Object.Key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size)
}

func TestExporter_Compressed(t *testing.T) {
	store := newMemStore()
	cfg := DefaultConfig("localhost:9000", "k", "s")
	cfg.Compress = true
	e := fixedExporter(store, cfg)

	res, err := e.Export(context.Background(), snapshot())
	require.NoError(t, err)
	assert.Equal(t, "snapshots/users/0000-id.json.gz", res.Object.Key)
	assert.Equal(t, "gzip", res.Object.ContentEncoding)

	zr, err := gzip.NewReader(bytes.NewReader(store.objects["sqlgrid/"+res.Object.Key]))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, "users", snap.Table)
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, "Ann", snap.Rows[0].Value("name"))
}

func TestExporter_Errors(t *testing.T) {
	store := newMemStore()
	e := fixedExporter(store, DefaultConfig("localhost:9000", "k", "s"))

	snap := snapshot()
	snap.Table = "../etc"
	_, err := e.Export(context.Background(), snap)
	assert.True(t, errs.IsInvalidInput(err))

	store.putErr = errs.New(errs.ErrKindPermissionDenied, "denied")
	_, err = e.Export(context.Background(), snapshot())
	assert.True(t, errs.IsPermissionDenied(err))

	noBucket := fixedExporter(store, &Config{})
	_, err = noBucket.Export(context.Background(), snapshot())
	assert.True(t, errs.IsInvalidInput(err))
}

func TestExporter_Lookup(t *testing.T) {
	const id = "5f0c6a1e-3b7d-4c2a-9e51-0a8b9c1d2e3f"

	store := newMemStore()
	e := fixedExporter(store, DefaultConfig("localhost:9000", "k", "s"))
	e.newID = func() string { return id }

	_, err := e.Export(context.Background(), snapshot())
	require.NoError(t, err)

	res, err := e.Lookup(context.Background(), "users", id)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/users/"+id+".json", res.Object.Key)
	assert.NotZero(t, res.Object.Size)
	assert.Contains(t, res.URL, "/sqlgrid/snapshots/users/"+id+".json")

	_, err = e.Lookup(context.Background(), "users", "5f0c6a1e-3b7d-4c2a-9e51-000000000000")
	assert.True(t, errs.IsNotFound(err))

	_, err = e.Lookup(context.Background(), "users", "../x")
	assert.True(t, errs.IsInvalidInput(err))
}
