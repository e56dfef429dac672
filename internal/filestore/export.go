package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
)

// Snapshot is the exported content of a loaded table.
type Snapshot struct {
	Table      string            `json:"table"`
	Columns    []string          `json:"columns"`
	Rows       []database.Record `json:"rows"`
	ExportedAt time.Time         `json:"exportedAt"`
}

// Export is the result of a snapshot upload.
type Export struct {
	Object ObjectInfo `json:"object"`
	URL    string     `json:"url"`
}

// Exporter uploads snapshots to a Store.
type Exporter struct {
	store    Store
	bucket   string
	prefix   string
	ttl      time.Duration
	compress bool

	newID func() string
	now   func() time.Time
}

// NewExporter returns an exporter writing to the bucket named by cfg.
func NewExporter(store Store, cfg *Config) *Exporter {
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Exporter{
		store:    store,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		ttl:      ttl,
		compress: cfg.Compress,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Key returns the object key of a snapshot of table with the given id.
func (e *Exporter) Key(table, id string) string {
	name := id + ".json"
	if e.compress {
		name += ".gz"
	}
	return path.Join(e.prefix, table, name)
}

// Export uploads snap under a fresh key and returns a download link.
func (e *Exporter) Export(ctx context.Context, snap Snapshot) (*Export, error) {
	if !database.ValidIdentifier(snap.Table) {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "invalid table name %q", snap.Table)
	}
	if e.bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "no export bucket configured")
	}
	if snap.ExportedAt.IsZero() {
		snap.ExportedAt = e.now().UTC()
	}
	if snap.Rows == nil {
		snap.Rows = []database.Record{}
	}

	body, err := e.encode(snap)
	if err != nil {
		return nil, err
	}

	opts := PutOptions{ContentType: "application/json"}
	if e.compress {
		opts.ContentEncoding = "gzip"
	}

	key := e.Key(snap.Table, e.newID())
	info, err := e.store.PutObject(ctx, e.bucket, key, bytes.NewReader(body), int64(len(body)), opts)
	if err != nil {
		return nil, err
	}

	url, err := e.store.PresignGetURL(ctx, e.bucket, key, e.ttl)
	if err != nil {
		return nil, err
	}
	return &Export{Object: *info, URL: url}, nil
}

// Lookup returns a fresh download link for a snapshot exported earlier.
// A missing object is a NotFound error.
func (e *Exporter) Lookup(ctx context.Context, table, id string) (*Export, error) {
	if !database.ValidIdentifier(table) {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "invalid table name %q", table)
	}
	if err := uuid.Validate(id); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid snapshot id", err)
	}

	key := e.Key(table, id)
	info, err := e.store.StatObject(ctx, e.bucket, key)
	if err != nil {
		return nil, err
	}
	url, err := e.store.PresignGetURL(ctx, e.bucket, key, e.ttl)
	if err != nil {
		return nil, err
	}
	return &Export{Object: *info, URL: url}, nil
}

func (e *Exporter) encode(snap Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to encode snapshot", err)
	}
	if !e.compress {
		return data, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, errs.Wrap(errs.ErrKindUnknown, "failed to compress snapshot", err)
	}
	if err := zw.Close(); err != nil {
		return nil, errs.Wrap(errs.ErrKindUnknown, "failed to compress snapshot", err)
	}
	return buf.Bytes(), nil
}
