// Package apperr provides typed domain errors shared by all modules.
// Services return these errors and the HTTP layer maps the Kind to a
// response status, so handlers never hand-pick status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorises a domain error.
type Kind int

const (
	// KindUnknown is the default when no kind was set.
	KindUnknown Kind = iota
	// KindNotFound indicates a missing resource (lead, token, note).
	KindNotFound
	// KindValidation indicates invalid input data.
	KindValidation
	// KindConflict indicates a clash with existing state.
	KindConflict
	// KindForbidden indicates the caller's role does not permit the action.
	KindForbidden
	// KindUnauthorized indicates a missing or invalid credential.
	KindUnauthorized
	// KindBadRequest indicates a malformed request.
	KindBadRequest
	// KindGone indicates an expired resource, e.g. a verification token.
	KindGone
	// KindInternal indicates an unexpected upstream or internal failure.
	KindInternal
)

// Error is a domain error carrying a Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string // operation that failed, optional
	Err     error  // underlying cause, optional
	Details any    // extra payload for the error response, optional
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to a response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindGone:
		return http.StatusGone
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// New creates a domain error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a domain error around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp sets the failing operation and returns the error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails attaches response details and returns the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// Convenience constructors.

func NotFound(message string) *Error     { return New(KindNotFound, message) }
func Validation(message string) *Error   { return New(KindValidation, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }
func Forbidden(message string) *Error    { return New(KindForbidden, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func BadRequest(message string) *Error   { return New(KindBadRequest, message) }
func Gone(message string) *Error         { return New(KindGone, message) }
func Internal(message string) *Error     { return New(KindInternal, message) }

// GetKind extracts the Kind from err, or KindUnknown when err is not an *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
