package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeProvider      = "PROVIDER_ERROR"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyInput      = NewDomainError(ErrCodeValidation, "input text is empty")
	ErrInvalidCategory = NewDomainError(ErrCodeValidation, "invalid chunk category")
	ErrInvalidPriority = NewDomainError(ErrCodeValidation, "invalid chunk priority")
)

// Provider errors. A request cannot proceed without a valid vector, so these
// always propagate to the caller.
var (
	ErrDimensionMismatch = NewDomainError(ErrCodeProvider, "embedding dimension mismatch")
	ErrProviderFailure   = NewDomainError(ErrCodeProvider, "embedding provider call failed")
)

// Store errors
var (
	ErrChunkNotFound = NewDomainError(ErrCodeNotFound, "knowledge chunk not found")
)
