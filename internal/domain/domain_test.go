package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Constructors(t *testing.T) {
	tests := []struct {
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{ErrValidation("bad input"), CodeValidation, 400},
		{ErrBadRequest("nope"), CodeBadRequest, 400},
		{ErrAuthentication(""), CodeAuthentication, 401},
		{ErrAuthorization(""), CodeAuthorization, 403},
		{ErrNotFound("ticket", "9"), CodeNotFound, 404},
		{ErrRateLimited(50), CodeRateLimited, 429},
		{ErrInternal("oops", nil), CodeInternal, 500},
		{ErrServiceUnavailable("down", nil), CodeServiceUnavailable, 503},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.Status)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestAppError_DefaultMessages(t *testing.T) {
	assert.Equal(t, "Authentication required", ErrAuthentication("").Message)
	assert.Equal(t, "Insufficient permissions", ErrAuthorization("").Message)
}

func TestErrRateLimited_CarriesRetryAfter(t *testing.T) {
	err := ErrRateLimited(50)
	assert.Equal(t, 50, err.Details["retryAfter"])
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrInternal("wrapped", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "root cause")
}

func TestClassify_AppErrorPassesThrough(t *testing.T) {
	orig := ErrNotFound("project", "p1")
	wrapped := fmt.Errorf("fetching: %w", orig)

	got := Classify(wrapped, false)
	assert.Equal(t, orig, got)
}

func TestClassify_Mapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"validation shaped", errors.New("validation failed on field name"), CodeValidation},
		{"store permission", errors.New("pq: permission denied for table projects"), CodeAuthorization},
		{"store unreachable", errors.New("dial tcp: connection refused"), CodeServiceUnavailable},
		{"deadline", context.DeadlineExceeded, CodeServiceUnavailable},
		{"anything else", errors.New("nil pointer somewhere"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, Classify(tt.err, false).Code)
		})
	}
}

func TestClassify_SuppressesInternalDetailOutsideDev(t *testing.T) {
	err := errors.New("pgx: secret table layout exploded")

	prod := Classify(err, false)
	require.Equal(t, CodeInternal, prod.Code)
	assert.Equal(t, "internal server error", prod.Message)

	dev := Classify(err, true)
	assert.Contains(t, dev.Message, "exploded")
}

func TestIdentity_IsAdmin(t *testing.T) {
	assert.True(t, Identity{Role: RoleAdmin}.IsAdmin())
	assert.False(t, Identity{Role: RoleEditor}.IsAdmin())
	assert.False(t, Identity{}.IsAdmin())
}
