package catalog

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeNotFound        = "NOT_FOUND"
	CodeInternal        = "INTERNAL_ERROR"
)

// Error is a structured catalog error. Code decides how callers surface it.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// NewError creates a new Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func invalidf(format string, args ...any) *Error {
	return NewError(CodeInvalidArgument, fmt.Sprintf(format, args...))
}

func internal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf("%s: %v", message, cause), cause: cause}
}

// ErrorCode returns the catalog code carried by err, or CodeInternal.
func ErrorCode(err error) string {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return CodeInternal
}

// ErrorMessage returns the human message carried by err.
func ErrorMessage(err error) string {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Message
	}
	return err.Error()
}
