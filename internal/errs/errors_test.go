package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", New(ErrKindNotFound, "x"), IsNotFound},
		{"timeout", New(ErrKindTimeout, "x"), IsTimeout},
		{"connection", New(ErrKindConnectionFailed, "x"), IsConnectionFailed},
		{"query", New(ErrKindQueryFailed, "x"), IsQueryFailed},
		{"invalid", New(ErrKindInvalidInput, "x"), IsInvalidInput},
		{"denied", New(ErrKindPermissionDenied, "x"), IsPermissionDenied},
		{"validation", Validation("value", "x"), IsValidation},
		{"corrupt", New(ErrKindCorrupt, "x"), IsCorrupt},
		{"unsupported", New(ErrKindUnsupported, "x"), IsUnsupported},
		{"wrapped chain", fmt.Errorf("outer: %w", New(ErrKindNotFound, "x")), IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestError_Format(t *testing.T) {
	cause := errors.New("boom")

	assert.Equal(t, "[query_failed] insert failed: boom", Wrap(ErrKindQueryFailed, "insert failed", cause).Error())
	assert.Equal(t, "[not_found] missing", New(ErrKindNotFound, "missing").Error())

	detailed := WrapDetail(ErrKindPermissionDenied, "statement failed", "attempt to write a readonly database", cause)
	assert.Equal(t, "[permission_denied] statement failed: attempt to write a readonly database", detailed.Error())
	assert.Equal(t, "statement failed: attempt to write a readonly database", MessageOf(detailed))
	assert.ErrorIs(t, detailed, cause)
	assert.ErrorIs(t, Wrap(ErrKindQueryFailed, "x", cause), cause)
}

func TestFieldAndMessage(t *testing.T) {
	err := fmt.Errorf("ctx: %w", Validation("value", "`value` column is mandatory"))

	assert.Equal(t, "value", FieldOf(err))
	assert.Equal(t, "`value` column is mandatory", MessageOf(err))
	assert.Equal(t, ErrKindValidation, KindOf(err))

	plain := errors.New("plain")
	assert.Equal(t, "", FieldOf(plain))
	assert.Equal(t, "plain", MessageOf(plain))
	assert.Equal(t, ErrKindUnknown, KindOf(plain))
	assert.Equal(t, "", MessageOf(nil))
}
