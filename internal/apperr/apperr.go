// Package apperr classifies errors into the taxonomy from spec.md §7 so the
// API layer can map them to the right HTTP status without every handler
// re-deriving that mapping.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories named in the error-handling design.
type Kind int

const (
	// KindInternal is the default for anything not otherwise classified.
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindRateLimited
	KindConflict
	KindNotFound
)

// Error carries a Kind alongside the wrapped cause so callers further up the
// stack can still use errors.Is/As/Unwrap normally.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a 400-class error.
func Validation(format string, args ...interface{}) error { return newErr(KindValidation, format, args...) }

// Unauthorized builds a 401-class error.
func Unauthorized(format string, args ...interface{}) error {
	return newErr(KindUnauthorized, format, args...)
}

// Forbidden builds a 403-class error.
func Forbidden(format string, args ...interface{}) error { return newErr(KindForbidden, format, args...) }

// RateLimited builds a 429-class error.
func RateLimited(format string, args ...interface{}) error {
	return newErr(KindRateLimited, format, args...)
}

// Conflict builds a 409-class error.
func Conflict(format string, args ...interface{}) error { return newErr(KindConflict, format, args...) }

// NotFound builds a 404-class error.
func NotFound(format string, args ...interface{}) error { return newErr(KindNotFound, format, args...) }

// Internal builds a 500-class error with no underlying cause to wrap, for
// conditions detected directly rather than surfaced by a failing call.
func Internal(format string, args ...interface{}) error { return newErr(KindInternal, format, args...) }

// Wrap annotates err as an internal (500-class) error while preserving it
// for logging via Unwrap; this is the default for unexpected exceptions and
// unhandled DB constraint violations per spec.md §7.
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Cause: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err
// does not carry one (e.g. a bare error from a third-party library).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
