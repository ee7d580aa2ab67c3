// Package apperrors defines the failure taxonomy shared by the hunter components.
//
// Each failure class has one recovery policy:
//
//	TRANSIENT_FETCH   search request failed; the query counts as zero results
//	MALFORMED_INPUT   missing title/body/timestamp; documented defaults apply
//	ACTION_FAILURE    outbound post failed; the opportunity is marked failed, the run continues
//	CONFIGURATION     required option missing or invalid; fatal before any network activity
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies a failure class.
type Code string

const (
	CodeTransientFetch Code = "TRANSIENT_FETCH"
	CodeMalformedInput Code = "MALFORMED_INPUT"
	CodeActionFailure  Code = "ACTION_FAILURE"
	CodeConfiguration  Code = "CONFIGURATION"
)

// Error is a classified application error.
type Error struct {
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransientFetchError wraps a failed search request for the given query.
func NewTransientFetchError(query string, err error) *Error {
	return &Error{
		Code:      CodeTransientFetch,
		Message:   "search request failed",
		Details:   fmt.Sprintf("query: %s, error: %v", query, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewMalformedInputError reports a field that had to be defaulted.
func NewMalformedInputError(field, details string) *Error {
	return &Error{
		Code:      CodeMalformedInput,
		Message:   fmt.Sprintf("malformed %s", field),
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewActionFailure wraps an outbound action error.
func NewActionFailure(err error) *Error {
	return &Error{
		Code:      CodeActionFailure,
		Message:   "outbound action failed",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewConfigurationError reports an invalid or missing option.
func NewConfigurationError(option, details string) *Error {
	return &Error{
		Code:      CodeConfiguration,
		Message:   fmt.Sprintf("invalid configuration option %q", option),
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// Is reports whether err, or anything it wraps, carries the given code.
func Is(err error, code Code) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
