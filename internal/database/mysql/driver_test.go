package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/koustreak/sqlgrid/internal/errs"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"cancelled", fmt.Errorf("wrapped: %w", context.Canceled), errs.ErrKindTimeout},
		{"no rows", sql.ErrNoRows, errs.ErrKindNotFound},
		{"access denied", &gomysql.MySQLError{Number: 1045, Message: "Access denied"}, errs.ErrKindConnectionFailed},
		{"table access", &gomysql.MySQLError{Number: 1142, Message: "DELETE command denied"}, errs.ErrKindPermissionDenied},
		{"lock wait", &gomysql.MySQLError{Number: 1205, Message: "Lock wait timeout"}, errs.ErrKindTimeout},
		{"no such table", &gomysql.MySQLError{Number: 1146, Message: "Table 'x.y' doesn't exist"}, errs.ErrKindNotFound},
		{"duplicate", &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry '1'"}, errs.ErrKindQueryFailed},
		{"syntax", &gomysql.MySQLError{Number: 1064, Message: "You have an error"}, errs.ErrKindQueryFailed},
		{"network", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "statement failed")
			assert.Equal(t, tt.kind, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestMapError_KeepsServerMessage(t *testing.T) {
	err := mapError(&gomysql.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'PRIMARY'"}, "statement failed")

	assert.Equal(t, "statement failed: Duplicate entry '1' for key 'PRIMARY'", err.Message)
	assert.NotContains(t, err.Error(), "Error 1062")
}

func TestMapError_UnwrapsScanErrors(t *testing.T) {
	inner := &gomysql.MySQLError{Number: 1146, Message: "gone"}
	scanErr := errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", inner)

	assert.Equal(t, errs.ErrKindNotFound, mapError(scanErr, "query failed").Kind)
	assert.Nil(t, mapError(nil, "x"))
}
