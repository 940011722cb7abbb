package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
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
				Message: "lease not found",
				Err:     errors.New("store error"),
			},
			wantMsg: "not_found: lease not found (store error)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid request",
				Err:     nil,
			},
			wantMsg: "validation: invalid request",
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

	unwrapped := errors.Unwrap(domainErr)
	assert.Equal(t, baseErr, unwrapped)
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same error type",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: ErrLeaseNotFound,
			want:   true,
		},
		{
			name:   "different error type",
			err:    NewDomainError(ErrorTypeValidation, "validation", nil),
			target: ErrLeaseNotFound,
			want:   false,
		},
		{
			name:   "not a domain error",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: errors.New("regular error"),
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
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)

	err.WithDetail("field", "actor_id").WithDetail("value", "")

	assert.Equal(t, "actor_id", err.Details["field"])
	assert.Equal(t, "", err.Details["value"])
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"lease not found", ErrLeaseNotFound, true},
		{"wrapped not found", fmt.Errorf("wrapped: %w", ErrApprovalNotFound), true},
		{"validation error", ErrInvalidRequest, false},
		{"regular error", errors.New("regular"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFoundError(tt.err))
		})
	}
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation error", ErrInvalidRequest, true},
		{"wrapped validation", fmt.Errorf("wrapped: %w", ErrInvalidPolicyBundle), true},
		{"lease not found", ErrLeaseNotFound, false},
		{"regular error", errors.New("regular"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidationError(tt.err))
		})
	}
}

func TestIsUnauthorizedError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unauthorized error", ErrUnauthorized, true},
		{"invalid service token", ErrInvalidServiceToken, true},
		{"used approval token", ErrApprovalTokenUsed, true},
		{"validation error", ErrInvalidRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUnauthorizedError(tt.err))
		})
	}
}

func TestIsForbiddenError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"forbidden error", ErrForbidden, true},
		{"approval required", ErrApprovalRequired, true},
		{"circuit breaker", ErrWorkspaceBreaker, true},
		{"unauthorized error", ErrUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsForbiddenError(tt.err))
		})
	}
}

func TestIsCapacityError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit error", ErrRateLimitExceeded, true},
		{"concurrency exhausted", ErrConcurrencyExhausted, true},
		{"context too large", ErrContextTooLarge, true},
		{"budget error", ErrDailyBudgetExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCapacityError(tt.err))
		})
	}
}

func TestIsBudgetError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"daily budget", ErrDailyBudgetExceeded, true},
		{"quota exhausted", ErrQuotaExhausted, true},
		{"rate limit error", ErrRateLimitExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBudgetError(tt.err))
		})
	}
}

func TestIsConflictError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate idempotency key", ErrDuplicateIdempotencyKey, true},
		{"policy version mismatch", ErrPolicyVersionMismatch, true},
		{"validation error", ErrInvalidRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConflictError(tt.err))
		})
	}
}

func TestIsInternalError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"internal error", ErrInternal, true},
		{"state store failure", ErrStateStoreFailed, true},
		{"audit write failure", ErrAuditWriteFailed, true},
		{"policy denial", ErrPolicyDenied, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInternalError(tt.err))
		})
	}
}

func TestIsPolicyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"policy denied", ErrPolicyDenied, true},
		{"model not allowed", ErrModelNotAllowed, true},
		{"tool category denied", ErrToolCategoryDenied, true},
		{"validation error", ErrInvalidRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPolicyError(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"not found", ErrLeaseNotFound, ErrorTypeNotFound},
		{"validation", ErrInvalidRequest, ErrorTypeValidation},
		{"capacity", ErrRateLimitExceeded, ErrorTypeCapacity},
		{"budget", ErrDailyBudgetExceeded, ErrorTypeBudget},
		{"regular error", errors.New("regular"), ErrorType("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)
	err.WithDetail("field", "model_id").WithDetail("reason", "unknown model")

	details := GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "model_id", details["field"])
	assert.Equal(t, "unknown model", details["reason"])

	regularErr := errors.New("regular error")
	assert.Nil(t, GetErrorDetails(regularErr))
}

func TestWrapError(t *testing.T) {
	baseErr := errors.New("base error")
	wrapped := WrapError(ErrorTypeInternal, "wrapped message", baseErr)

	var domainErr *DomainError
	require.True(t, errors.As(wrapped, &domainErr))
	assert.Equal(t, ErrorTypeInternal, domainErr.Type)
	assert.Equal(t, "wrapped message", domainErr.Message)
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}

func TestWrapInternal(t *testing.T) {
	baseErr := errors.New("sqlite write failed")
	wrapped := WrapInternal("failed to persist lease", baseErr)

	assert.True(t, IsInternalError(wrapped))
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}

func TestErrorTypeCheckersCoverage(t *testing.T) {
	typeCheckers := map[ErrorType]func(error) bool{
		ErrorTypeNotFound:     IsNotFoundError,
		ErrorTypeValidation:   IsValidationError,
		ErrorTypeUnauthorized: IsUnauthorizedError,
		ErrorTypeForbidden:    IsForbiddenError,
		ErrorTypeCapacity:     IsCapacityError,
		ErrorTypeBudget:       IsBudgetError,
		ErrorTypeConflict:     IsConflictError,
		ErrorTypeInternal:     IsInternalError,
		ErrorTypePolicy:       IsPolicyError,
	}

	for errType, checker := range typeCheckers {
		t.Run(string(errType), func(t *testing.T) {
			err := NewDomainError(errType, "test error", nil)
			assert.True(t, checker(err), "checker should return true for %s", errType)
		})
	}
}
