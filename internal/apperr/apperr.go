// Package apperr defines SmartRecover's error-kind taxonomy (not-found,
// invalid-input, conflict, upstream-failure, config-error, cancelled) and
// the HTTP status each maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the taxonomy's error kinds.
type Kind string

const (
	NotFound        Kind = "not-found"
	InvalidInput    Kind = "invalid-input"
	Conflict        Kind = "conflict"
	UpstreamFailure Kind = "upstream-failure"
	ConfigError     Kind = "config-error"
	Cancelled       Kind = "cancelled"
)

// Error is a taxonomy-tagged error. Kind drives HTTP status mapping at the
// API boundary; it is never inspected by the orchestrator, which treats
// every non-nil agent/connector error the same way (graceful degradation).
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a new taxonomy error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds a new taxonomy error wrapping err.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind of err, if any of its wrapped errors is an
// *Error; otherwise returns "" (callers typically default to 500).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps a Kind to the status code spec.md §7 assigns it.
// Cancelled has no HTTP mapping (it is never surfaced as an API error); 499
// is returned here only so callers that do map it get a sensible non-2xx
// code rather than falling through to 500.
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case InvalidInput:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case UpstreamFailure:
		return http.StatusBadGateway
	case ConfigError:
		return http.StatusInternalServerError
	case Cancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}
