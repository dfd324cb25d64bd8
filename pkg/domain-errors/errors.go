// Package domainerrors provides coded errors for the governance core.
//
// Services return these so callers (handlers, workflow layer) can branch on
// the kind of failure without string matching. Codes split into two families:
//   - retryable coordination failures (CodeConflict, CodeTimeout)
//   - terminal rejections (CodeTransferBlocked, CodeValidation, ...)
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for programmatic handling.
type Code string

const (
	// CodeConflict marks a retryable coordination failure: a lock-protected
	// re-validation found that concurrent writers changed the picture between
	// the unlocked preliminary read and the locked authoritative read. The
	// caller should retry the whole operation.
	CodeConflict Code = "conflict"

	// CodeTransferBlocked marks a non-retryable business rejection: the
	// requested membership change would silently alter the scope of a plan
	// whose monitoring cycle is already executing.
	CodeTransferBlocked Code = "transfer_blocked"

	CodeNotFound           Code = "not_found"
	CodeValidation         Code = "validation"
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal"
)

// Error is a coded error with an optional wrapped cause.
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

// New creates a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// Is is a readable alias for HasCode at handler call sites.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded
// errors so transports never leak raw internals.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// Retryable reports whether the caller may retry the failed operation
// verbatim and expect a different outcome.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeConflict, CodeTimeout:
		return true
	}
	return false
}
