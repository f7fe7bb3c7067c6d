// Package errors defines coded errors shared across the aide services.
package errors

import (
	"errors"
	"fmt"
)

// Code is a stable identifier for a failure mode.
type Code string

const (
	// LimiterDisposed indicates work was submitted to a disposed limiter.
	LimiterDisposed Code = "LIMITER_DISPOSED"
	// TaskCleared indicates a queued task was dropped before it started.
	TaskCleared Code = "TASK_CLEARED"
	// StaleHunk indicates an edit hunk targeted an outdated document version.
	StaleHunk Code = "STALE_HUNK"
	// RangeInvalid indicates an edit hunk addressed lines outside the document.
	RangeInvalid Code = "RANGE_INVALID"
	// ConfigInvalid indicates the settings file failed to parse or validate.
	ConfigInvalid Code = "CONFIG_INVALID"
	// SymbolNotFound indicates definition lookup found no declaration.
	SymbolNotFound Code = "SYMBOL_NOT_FOUND"
	// SessionNotFound indicates a probe session id does not exist.
	SessionNotFound Code = "SESSION_NOT_FOUND"
	// Internal indicates an unexpected error.
	Internal Code = "INTERNAL_ERROR"
)

// Error is a coded error with an optional wrapped cause and a short
// remediation hint surfaced to CLI users.
type Error struct {
	Code        Code   `json:"code"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
	cause       error
}

// New creates a coded error wrapping cause. cause may be nil.
func New(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WithRemediation attaches a remediation hint and returns the error.
func (e *Error) WithRemediation(hint string) *Error {
	e.Remediation = hint
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf extracts the code from err, or Internal for uncoded errors.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return Internal
}
