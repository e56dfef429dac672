package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"

	"github.com/koustreak/sqlgrid/internal/errs"
)

func TestRebind(t *testing.T) {
	assert.Equal(t, "UPDATE users SET name=$1 WHERE id=$2", rebind("UPDATE users SET name=? WHERE id=?"))
	assert.Equal(t, "SELECT * FROM users ORDER BY id", rebind("SELECT * FROM users ORDER BY id"))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"no rows", pgx.ErrNoRows, errs.ErrKindNotFound},
		{"undefined table", &pgconn.PgError{Code: "42P01", Message: `relation "x" does not exist`}, errs.ErrKindNotFound},
		{"privilege", &pgconn.PgError{Code: "42501", Message: "permission denied"}, errs.ErrKindPermissionDenied},
		{"canceled", &pgconn.PgError{Code: "57014", Message: "canceling statement"}, errs.ErrKindTimeout},
		{"bad password", &pgconn.PgError{Code: "28P01", Message: "auth failed"}, errs.ErrKindConnectionFailed},
		{"connection class", &pgconn.PgError{Code: "08006", Message: "connection failure"}, errs.ErrKindConnectionFailed},
		{"unique violation", &pgconn.PgError{Code: "23505", Message: "duplicate key"}, errs.ErrKindQueryFailed},
		{"syntax", &pgconn.PgError{Code: "42601", Message: "syntax error"}, errs.ErrKindQueryFailed},
		{"network", errors.New("dial tcp: i/o timeout"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "statement failed")
			assert.Equal(t, tt.kind, got.Kind)
		})
	}
}

func TestMapError_KeepsServerMessage(t *testing.T) {
	err := mapError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"}, "statement failed")

	assert.Equal(t, "statement failed: duplicate key value", errs.MessageOf(err))
	assert.NotContains(t, err.Error(), "SQLSTATE")
}

func TestPlainValue(t *testing.T) {
	var num pgtype.Numeric
	assert.NoError(t, num.Scan("123456.78"))

	assert.Equal(t, "123456.78", plainValue(num))
	assert.Nil(t, plainValue(pgtype.Numeric{}))
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", plainValue([16]byte{15: 1}))
	assert.Equal(t, int32(7), plainValue(int32(7)))
}

func TestNumericString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123456.78", "123456.78"},
		{"-0.05", "-0.05"},
		{"42", "42"},
		{"1200", "1200"},
	}

	for _, tt := range tests {
		var n pgtype.Numeric
		assert.NoError(t, n.Scan(tt.in))
		assert.Equal(t, tt.want, numericString(n), tt.in)
	}
}
