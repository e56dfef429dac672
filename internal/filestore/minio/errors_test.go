package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"

	"github.com/koustreak/sqlgrid/internal/errs"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"canceled", fmt.Errorf("put: %w", context.Canceled), errs.ErrKindTimeout},
		{"no such key", miniogo.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"no such bucket", miniogo.ErrorResponse{Code: "NoSuchBucket"}, errs.ErrKindNotFound},
		{"access denied", miniogo.ErrorResponse{Code: "AccessDenied"}, errs.ErrKindPermissionDenied},
		{"bad name", miniogo.ErrorResponse{Code: "InvalidObjectName"}, errs.ErrKindInvalidInput},
		{"slow down", miniogo.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, errs.ErrKindTimeout},
		{"status only", miniogo.ErrorResponse{StatusCode: http.StatusForbidden}, errs.ErrKindPermissionDenied},
		{"other", errors.New("connection reset"), errs.ErrKindConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op")
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, "op", got.Message)
			assert.Equal(t, tt.err, got.Cause)
		})
	}

	assert.Nil(t, mapError(nil, "op"))
}
