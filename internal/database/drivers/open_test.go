package drivers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/database/remote"
	"github.com/koustreak/sqlgrid/internal/database/sqlite"
	"github.com/koustreak/sqlgrid/internal/dialect"
	"github.com/koustreak/sqlgrid/internal/errs"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, database.DefaultConfig(database.DriverSQLite, ":memory:"), nil)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Backend{}, b)
	require.NoError(t, b.Close())

	r, err := Open(ctx, database.DefaultConfig(database.DriverRemote, "http://localhost:8081/"), nil)
	require.NoError(t, err)
	assert.IsType(t, &remote.Backend{}, r)

	_, err = Open(ctx, database.DefaultConfig("oracle", "x"), nil)
	assert.True(t, errs.IsUnsupported(err))

	_, err = Open(ctx, nil, nil)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver database.Driver
		name   string
		want   dialect.Dialect
	}{
		{database.DriverSQLite, "", dialect.SQLite{}},
		{database.DriverMySQL, "", dialect.MySQL{}},
		{database.DriverPostgres, "", dialect.Postgres{}},
		{database.DriverRemote, "", dialect.MySQL{}},
		{database.DriverRemote, "postgres", dialect.Postgres{}},
	}

	for _, tt := range tests {
		got, err := DialectFor(tt.driver, tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := DialectFor("oracle", "")
	assert.True(t, errs.IsUnsupported(err))
}
