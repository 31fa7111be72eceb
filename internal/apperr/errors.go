// Package apperr provides the tagged error variants returned by services.
// Each Kind maps to exactly one HTTP status at the API boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the class of a service failure.
type Kind string

// Error kinds used throughout the application.
const (
	KindValidation Kind = "VALIDATION"
	KindConflict   Kind = "CONFLICT"
	KindAuth       Kind = "UNAUTHORIZED"
	KindForbidden  Kind = "FORBIDDEN"
	KindNotFound   Kind = "NOT_FOUND"
	KindInternal   Kind = "INTERNAL"
)

// HTTPStatus returns the response status for k.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a service error with a kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation, Message: "validation error"}
	ErrConflict   = &Error{Kind: KindConflict, Message: "conflict"}
	ErrAuth       = &Error{Kind: KindAuth, Message: "unauthorized"}
	ErrForbidden  = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInternal   = &Error{Kind: KindInternal, Message: "internal error"}
)

// Validation creates a validation error.
func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

// Conflict creates a conflict error.
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// Auth creates an authentication error.
func Auth(msg string) *Error { return &Error{Kind: KindAuth, Message: msg} }

// Forbidden creates an ownership/permission error.
func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

// NotFound creates a not found error.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Internal creates an internal error.
func Internal(msg string) *Error { return &Error{Kind: KindInternal, Message: msg} }

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, cause: cause}
}

// KindOf reports the kind of err, or KindInternal for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of err.
// Untagged errors yield a generic message so internals never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}
