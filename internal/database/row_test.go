package database

import (
	"errors"
	"testing"

	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRows replays a fixed result set.
type fakeRows struct {
	cols    []string
	data    [][]any
	pos     int
	iterErr error
	closed  bool
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.data) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.data[f.pos-1]
	for i := range dest {
		*(dest[i].(*any)) = row[i]
	}
	return nil
}

func (f *fakeRows) Columns() ([]string, error) { return f.cols, nil }
func (f *fakeRows) Close()                     { f.closed = true }
func (f *fakeRows) Err() error                 { return f.iterErr }

func TestScanRecords(t *testing.T) {
	rows := &fakeRows{
		cols: []string{"id", "name"},
		data: [][]any{
			{int64(1), []byte("Ann")},
			{int64(2), nil},
		},
	}

	got, err := ScanRecords(rows)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, []string{"id", "name"}, got[0].Keys())
	assert.Equal(t, "Ann", got[0].Value("name"), "[]byte is handed over as string")
	assert.Nil(t, got[1].Value("name"))
	assert.True(t, rows.closed)
}

func TestScanRecords_Empty(t *testing.T) {
	got, err := ScanRecords(&fakeRows{cols: []string{"id"}})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestScanRecords_IterationError(t *testing.T) {
	rows := &fakeRows{cols: []string{"id"}, iterErr: errors.New("conn reset")}

	_, err := ScanRecords(rows)

	assert.True(t, errs.IsQueryFailed(err))
	assert.True(t, rows.closed)
}
