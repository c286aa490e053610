// Package derrors defines coded errors shared across service boundaries.
// Services attach a Code when they classify a failure; transport layers map
// codes to status lines without inspecting error text.
package derrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers that branch on failure kind.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInvalidState Code = "invalid_state"
	CodeUnauthorized Code = "unauthorized"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal"
)

// Error is a classified error. Message is safe to surface to clients for
// every code except CodeInternal.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a coded error with a fixed message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error while keeping it in the chain for
// errors.Is and errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from the outermost coded error in the chain.
// Unclassified errors report CodeInternal.
func CodeOf(err error) Code {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Code
	}
	return CodeInternal
}

// HasCode reports whether any coded error in the chain carries the code.
func HasCode(err error, code Code) bool {
	for err != nil {
		if derr, ok := err.(*Error); ok && derr.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
