// Package apperr defines the typed error outcomes services hand to the transport layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindConflict        Kind = "conflict"
	KindNotFound        Kind = "not_found"
	KindStateConflict   Kind = "state_conflict"
	KindInternal        Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindValidation:      http.StatusBadRequest,
	KindUnauthenticated: http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindConflict:        http.StatusBadRequest,
	KindNotFound:        http.StatusNotFound,
	KindStateConflict:   http.StatusBadRequest,
	KindInternal:        http.StatusInternalServerError,
}

// Error carries a kind for status mapping, a stable machine code and a client-safe message.
// Err is kept for logging only and is never rendered.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]string
	Err     error
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code string, err error, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Internal wraps an unexpected failure. The message shown to clients is fixed.
func Internal(err error, op string) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    "internal_error",
		Message: "internal server error",
		Err:     fmt.Errorf("%s: %w", op, err),
	}
}

// WithDetails returns a copy carrying per-field details for the client.
func (e *Error) WithDetails(details map[string]string) *Error {
	clone := *e
	clone.Details = details
	return &clone
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

// Is matches another *Error by code so callers can compare against package-level values.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func As(err error) (*Error, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// KindOf returns KindInternal for errors that are not *Error.
func KindOf(err error) Kind {
	if typed, ok := As(err); ok {
		return typed.Kind
	}
	return KindInternal
}

func HTTPStatus(kind Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Body is the JSON error envelope returned to clients.
type Body struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Render maps any error to a status and client-safe body. Errors that are not *Error
// render as a generic internal error.
func Render(err error) (int, Body) {
	typed, ok := As(err)
	if !ok {
		typed = Internal(err, "unhandled")
	}
	return HTTPStatus(typed.Kind), Body{Error: typed.Code, Message: typed.Message, Details: typed.Details}
}
