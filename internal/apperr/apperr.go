// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind groups errors by how a caller should react to them
type Kind string

const (
	KindValidation  Kind = "validation"
	KindPermission  Kind = "permission"
	KindNotFound    Kind = "not_found"
	KindRateLimited Kind = "rate_limited"
	KindInternal    Kind = "internal"
)

// Error is a classified application error. Code is a stable machine-readable
// identifier such as "title_too_long" or "post_cooldown".
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	RetryAfter int
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a validation error
func Validation(code string) *Error {
	return &Error{Kind: KindValidation, Code: code}
}

// Permission creates a permission error
func Permission(code string) *Error {
	return &Error{Kind: KindPermission, Code: code}
}

// NotFound creates a not-found error
func NotFound(code string) *Error {
	return &Error{Kind: KindNotFound, Code: code}
}

// RateLimited creates a rate-limit error carrying a retry hint in seconds
func RateLimited(code, message string, retryAfter int) *Error {
	return &Error{Kind: KindRateLimited, Code: code, Message: message, RetryAfter: retryAfter}
}

// Internal wraps an unexpected failure
func Internal(code string, err error) *Error {
	return &Error{Kind: KindInternal, Code: code, Err: err}
}

// WithMessage returns a copy of e with a human-readable message
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// As extracts an *Error from err's chain
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for unclassified errors
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error with the given code
func Is(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
