package configtable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/database/sqlite"
	"github.com/koustreak/sqlgrid/internal/errs"
)

const configSchema = `CREATE TABLE config (key TEXT PRIMARY KEY, metadata TEXT NOT NULL, value TEXT)`

func newConfigBackend(t *testing.T, fixtures ...string) *sqlite.Backend {
	t.Helper()

	b, err := sqlite.New(context.Background(), database.DefaultConfig(database.DriverSQLite, ":memory:"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	for _, q := range append([]string{configSchema}, fixtures...) {
		_, err = b.DB().Exec(q)
		require.NoError(t, err)
	}
	return b
}

var colorFixtures = []string{
	`INSERT INTO config VALUES ('A', '{"type":"list","list":"B"}', 'green')`,
	`INSERT INTO config VALUES ('B', '{"type":"text"}', 'red;green;blue')`,
	`INSERT INTO config VALUES ('C', '{"type":"list","list":"missing-key"}', '')`,
	`INSERT INTO config VALUES ('D', '{"type":"text"}', '')`,
}

func TestResolveChoices(t *testing.T) {
	ctx := context.Background()
	b := newConfigBackend(t, colorFixtures...)
	opts := DefaultOptions()

	got, err := ResolveChoices(ctx, b, "config", opts, List{Ref: "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "green", "blue"}, got)

	_, err = ResolveChoices(ctx, b, "config", opts, List{Ref: "missing-key"})
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, "No row found with key `missing-key`", errs.MessageOf(err))

	got, err = ResolveChoices(ctx, b, "config", opts, List{Ref: "D"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	got, err = ResolveChoices(ctx, b, "config", opts, List{Values: "x,y", Separator: ","})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got)
}

func TestResolveChoices_NotAList(t *testing.T) {
	b := newConfigBackend(t)

	_, err := ResolveChoices(context.Background(), b, "config", DefaultOptions(), Text{})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestResolveChoices_BadTable(t *testing.T) {
	b := newConfigBackend(t)

	_, err := ResolveChoices(context.Background(), b, "config; DROP TABLE x", DefaultOptions(), List{Ref: "B"})
	assert.True(t, errs.IsInvalidInput(err))
}
