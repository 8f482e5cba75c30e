// Package errors provides structured error types for the Growlog store.
// All errors include a category, code, message, and retryable flag so callers
// can distinguish transient failures (safe to retry with backoff) from fatal
// ones (must not retry, must alert).
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by failure origin.
type ErrorCategory string

const (
	// ErrCategoryValidation marks caller bugs: a malformed record that the
	// store refused before touching the durable medium.
	ErrCategoryValidation ErrorCategory = "VALIDATION"

	// ErrCategoryStorage marks failures of the durable medium itself.
	ErrCategoryStorage ErrorCategory = "STORAGE"

	// ErrCategoryInternal marks unexpected conditions inside the store.
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeMissingField = "MISSING_FIELD"

	// Storage codes
	CodeOpenFailed       = "OPEN_FAILED"
	CodeSchemaInitFailed = "SCHEMA_INIT_FAILED"
	CodeWriteFailed      = "WRITE_FAILED"
	CodeQueryFailed      = "QUERY_FAILED"
	CodeLockTimeout      = "LOCK_TIMEOUT"
	CodeCorruption       = "CORRUPTION"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// GrowlogError is the structured error type used throughout the store.
type GrowlogError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *GrowlogError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *GrowlogError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *GrowlogError) Is(target error) bool {
	var t *GrowlogError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new GrowlogError.
func New(category ErrorCategory, code, message string) *GrowlogError {
	return &GrowlogError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new GrowlogError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *GrowlogError {
	return &GrowlogError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *GrowlogError) WithDetails(details map[string]interface{}) *GrowlogError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ge *GrowlogError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}

// IsValidation reports whether the error chain contains a validation error.
func IsValidation(err error) bool {
	return GetCategory(err) == ErrCategoryValidation
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a GrowlogError.
func GetCategory(err error) ErrorCategory {
	var ge *GrowlogError
	if errors.As(err, &ge) {
		return ge.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a GrowlogError.
func GetCode(err error) string {
	var ge *GrowlogError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only lock contention
// is transient; corruption and validation failures must never be retried.
func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryStorage && code == CodeLockTimeout
}

// Convenience constructors for common errors.

func NewValidationError(message string) *GrowlogError {
	return New(ErrCategoryValidation, CodeMissingField, message)
}

func NewStorageError(code, message string, cause error) *GrowlogError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *GrowlogError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
