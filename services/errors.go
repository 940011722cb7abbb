package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeCapacity     ErrorType = "capacity"
	ErrorTypeBudget       ErrorType = "budget"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypePolicy       ErrorType = "policy"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrLeaseNotFound        = NewDomainError(ErrorTypeNotFound, "lease not found", nil)
	ErrApprovalNotFound     = NewDomainError(ErrorTypeNotFound, "approval not found", nil)
	ErrToolSubLeaseNotFound = NewDomainError(ErrorTypeNotFound, "tool sub-lease not found", nil)
	ErrToolNotRegistered    = NewDomainError(ErrorTypeNotFound, "tool not registered", nil)
	ErrStagedPolicyNotFound = NewDomainError(ErrorTypeNotFound, "no staged policy bundle", nil)

	// Validation Errors
	ErrInvalidRequest      = NewDomainError(ErrorTypeValidation, "invalid request", nil)
	ErrInvalidPolicyBundle = NewDomainError(ErrorTypeValidation, "invalid policy bundle", nil)
	ErrInvalidReceiptKey   = NewDomainError(ErrorTypeValidation, "invalid receipt signing key", nil)

	// Authorization Errors
	ErrUnauthorized        = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidServiceToken = NewDomainError(ErrorTypeUnauthorized, "invalid service account token", nil)
	ErrApprovalTokenUsed   = NewDomainError(ErrorTypeUnauthorized, "approval token already used", nil)
	ErrApprovalExpired     = NewDomainError(ErrorTypeUnauthorized, "approval expired", nil)

	// Permission Errors
	ErrForbidden        = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrApprovalRequired = NewDomainError(ErrorTypeForbidden, "approval required", nil)
	ErrWorkspaceBreaker = NewDomainError(ErrorTypeForbidden, "workspace circuit breaker open", nil)

	// Capacity Errors
	ErrConcurrencyExhausted = NewDomainError(ErrorTypeCapacity, "concurrency limit reached", nil)
	ErrComputeExhausted     = NewDomainError(ErrorTypeCapacity, "compute capacity reached", nil)
	ErrRateLimitExceeded    = NewDomainError(ErrorTypeCapacity, "rate limit reached", nil)
	ErrContextTooLarge      = NewDomainError(ErrorTypeCapacity, "context exceeds caps", nil)

	// Budget Errors
	ErrDailyBudgetExceeded = NewDomainError(ErrorTypeBudget, "daily budget exceeded", nil)
	ErrQuotaExhausted      = NewDomainError(ErrorTypeBudget, "hierarchical quota exhausted", nil)

	// Conflict Errors
	ErrDuplicateIdempotencyKey = NewDomainError(ErrorTypeConflict, "idempotency key already active", nil)
	ErrPolicyVersionMismatch   = NewDomainError(ErrorTypeConflict, "staged policy version mismatch", nil)

	// Internal Errors
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal error", nil)
	ErrStateStoreFailed  = NewDomainError(ErrorTypeInternal, "durable state store failure", nil)
	ErrAuditWriteFailed  = NewDomainError(ErrorTypeInternal, "audit write failure", nil)
	ErrReceiptSignFailed = NewDomainError(ErrorTypeInternal, "receipt signing failure", nil)

	// Policy Errors
	ErrPolicyDenied       = NewDomainError(ErrorTypePolicy, "denied by policy", nil)
	ErrModelNotAllowed    = NewDomainError(ErrorTypePolicy, "model not allowed by policy", nil)
	ErrToolNotAllowed     = NewDomainError(ErrorTypePolicy, "tool not allowed by policy", nil)
	ErrCapabilityDenied   = NewDomainError(ErrorTypePolicy, "capability not allowed by policy", nil)
	ErrToolCategoryDenied = NewDomainError(ErrorTypePolicy, "tool category denied by policy", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUnauthorized
	}
	return false
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeForbidden
	}
	return false
}

// IsCapacityError checks if an error is a capacity error
func IsCapacityError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeCapacity
	}
	return false
}

// IsBudgetError checks if an error is a budget error
func IsBudgetError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeBudget
	}
	return false
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConflict
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// IsPolicyError checks if an error is a policy denial
func IsPolicyError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypePolicy
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
