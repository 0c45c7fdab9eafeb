// Package errors provides structured errors with machine-readable codes.
//
// Commands return StructuredError values for failures the user can act on
// (bad flags, missing files) so the CLI can pick an exit code without
// string matching. Everything else is wrapped with fmt.Errorf and %w.
//
// Usage:
//
//	return errors.New(errors.ErrCodeInvalidRequest, "HF_TOKEN is required")
//
//	if err != nil {
//	    return errors.Wrap(errors.ErrCodeNotFound, "config file not found", err)
//	}
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeInternal       ErrorCode = "INTERNAL"
	ErrCodeUnavailable    ErrorCode = "UNAVAILABLE"
	ErrCodeTimeout        ErrorCode = "TIMEOUT"

	// Status server codes.
	ErrCodeMethodNotAllowed  ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// StructuredError is an error with a code, a human-readable message,
// an optional cause and optional context details.
type StructuredError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a StructuredError without a cause.
func New(code ErrorCode, message string) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a StructuredError around cause.
func Wrap(code ErrorCode, message string, cause error) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithContext creates a StructuredError around cause with additional
// context details, e.g. the offending path or key.
func WrapWithContext(code ErrorCode, message string, cause error, context map[string]any) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: context,
	}
}

// CodeOf returns the code of the first StructuredError in err's chain,
// or ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var se *StructuredError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err's chain carries a StructuredError with code.
func IsCode(err error, code ErrorCode) bool {
	var se *StructuredError
	if !stderrors.As(err, &se) {
		return false
	}
	return se.Code == code
}
