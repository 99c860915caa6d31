package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInvalidPrecondition = "INVALID_PRECONDITION"
	ErrCodeStoreUnavailable    = "STORE_UNAVAILABLE"
	ErrCodeStore               = "STORE_ERROR"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeExecution           = "EXECUTION_ERROR"
)

// Error is the structured error type surfaced by every FlowLite operation.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// NotFound builds the error returned when an identity does not resolve to an
// entity of the expected kind.
func NotFound(kind, id string) *Error {
	return NewErrorf(ErrCodeNotFound, "%s %q not found", kind, id).
		WithDetails(map[string]any{"kind": kind, "id": id})
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether the caller may retry the failed operation with backoff.
// Only transient store failures qualify; NOT_FOUND and precondition errors are final.
func IsRetryable(err error) bool {
	return IsCode(err, ErrCodeStoreUnavailable)
}
