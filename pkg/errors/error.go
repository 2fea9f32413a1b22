// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid parameters and configuration
//   - Data/Transport errors (200-299): Empty results and provider failures
//   - Pipeline errors (300-399): Schema, history and forecasting failures
//
// Usage:
//
//	err := errors.Newf(errors.ErrCodeEmptyData, "no data for %s", ticker)
//	err := errors.Wrap(errors.ErrCodeTransport, "yahoo request failed", cause)
//	if errors.HasCode(err, errors.ErrCodeEmptyData) { ... }
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101

	// Data/Transport errors (200-299)
	ErrCodeEmptyData ErrorCode = 200
	ErrCodeTransport ErrorCode = 201

	// Pipeline errors (300-399)
	ErrCodeSchemaAmbiguity     ErrorCode = 300
	ErrCodeInsufficientHistory ErrorCode = 301
	ErrCodeForecastFailed      ErrorCode = 302
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Coder is implemented by domain errors that carry their own code
// without being an *Error (for example frame.SchemaAmbiguityError).
type Coder interface {
	ErrorCode() ErrorCode
}

// GetCode extracts the ErrorCode from the first coded error in err's chain.
// Returns ErrCodeUnknown if there is none.
func GetCode(err error) ErrorCode {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Code
		case Coder:
			return e.ErrorCode()
		}
		err = errors.Unwrap(err)
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}
