package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.Nil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeNotFound,
				Message: "user not found",
				Err:     errors.New("db error"),
			},
			wantMsg: "not_found: user not found (db error)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid input",
			},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
	assert.ErrorIs(t, domainErr, baseErr)
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same sentinel",
			err:    ErrCredentialInvalid,
			target: ErrCredentialInvalid,
			want:   true,
		},
		{
			name:   "same type, different message",
			err:    ErrTokenRefreshRejected,
			target: ErrCredentialInvalid,
			want:   false,
		},
		{
			name:   "target without message matches any of its type",
			err:    ErrUserExists,
			target: &DomainError{Type: ErrorTypeConflict},
			want:   true,
		},
		{
			name:   "different type",
			err:    ErrUnknownRole,
			target: ErrUserExists,
			want:   false,
		},
		{
			name:   "wrapped in fmt error",
			err:    fmt.Errorf("login: %w", ErrCredentialInvalid),
			target: ErrCredentialInvalid,
			want:   true,
		},
		{
			name:   "copy with details",
			err:    ErrTooManyAttempts.WithDetail("retry_after", time.Minute),
			target: ErrTooManyAttempts,
			want:   true,
		},
		{
			name:   "non-domain target",
			err:    ErrDatabaseError,
			target: errors.New("database error"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	withDetail := ErrUnknownRole.WithDetail("roles", []string{"GHOST"})

	assert.Equal(t, []string{"GHOST"}, withDetail.Details["roles"])
	assert.Nil(t, ErrUnknownRole.Details, "sentinel must not be mutated")

	chained := withDetail.WithDetail("extra", 1)
	assert.Len(t, chained.Details, 2)
	assert.Len(t, withDetail.Details, 1)
}

func TestDomainError_Wrap(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := ErrDatabaseError.Wrap(cause)

	assert.ErrorIs(t, wrapped, cause)
	assert.ErrorIs(t, wrapped, ErrDatabaseError)
	assert.Nil(t, ErrDatabaseError.Err)
}

func TestErrorTypeCheckers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", NewDomainError(ErrorTypeNotFound, "user not found", nil), IsNotFoundError},
		{"validation", ErrInvalidInput, IsValidationError},
		{"unknown role", ErrUnknownRole, IsValidationError},
		{"unauthorized", ErrCredentialInvalid, IsUnauthorizedError},
		{"refresh rejected", ErrTokenRefreshRejected, IsUnauthorizedError},
		{"role not assignable", ErrRoleNotAssignable, IsForbiddenError},
		{"rate limit", ErrTooManyAttempts, IsRateLimitError},
		{"conflict", ErrUserExists, IsConflictError},
		{"internal", ErrDatabaseError, IsInternalError},
	}

	checkers := []func(error) bool{
		IsNotFoundError, IsValidationError, IsUnauthorizedError, IsForbiddenError,
		IsRateLimitError, IsConflictError, IsInternalError,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, tt.check(fmt.Errorf("wrapped: %w", tt.err)))

			matches := 0
			for _, c := range checkers {
				if c(tt.err) {
					matches++
				}
			}
			assert.Equal(t, 1, matches, "exactly one checker should match")
		})
	}

	t.Run("plain errors match nothing", func(t *testing.T) {
		plain := errors.New("plain")
		for _, c := range checkers {
			assert.False(t, c(plain))
		}
		assert.False(t, IsNotFoundError(nil))
	})
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeConflict, GetErrorType(ErrUserExists))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
	assert.Equal(t, ErrorType(""), GetErrorType(nil))
}

func TestGetErrorDetails(t *testing.T) {
	err := ErrUnknownRole.WithDetail("roles", []string{"X"})
	assert.Equal(t, map[string]interface{}{"roles": []string{"X"}}, GetErrorDetails(err))
	assert.Nil(t, GetErrorDetails(errors.New("plain")))
}

func TestGetRetryAfter(t *testing.T) {
	assert.Equal(t, 90*time.Second, GetRetryAfter(ErrTooManyAttempts.WithDetail("retry_after", 90*time.Second)))
	assert.Zero(t, GetRetryAfter(ErrTooManyAttempts))
	assert.Zero(t, GetRetryAfter(ErrTooManyAttempts.WithDetail("retry_after", "soon")))
	assert.Zero(t, GetRetryAfter(errors.New("plain")))
}

func TestWrapInternal(t *testing.T) {
	cause := errors.New("cause")
	err := WrapInternal("failed", cause)

	assert.True(t, IsInternalError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed")
}
