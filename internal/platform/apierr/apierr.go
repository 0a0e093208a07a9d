package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Codes shared between the engine and the HTTP layer. Every error the engine
// returns carries one of these so handlers can map it to a status without
// string matching.
const (
	CodeUnauthenticated = "unauthenticated"
	CodeNotFound        = "not_found"
	CodeNotAccessible   = "not_accessible"
	CodeObjectiveUnmet  = "objective_unmet"
	CodeInvalidArgument = "invalid_argument"
	CodePersistence     = "persistence_failure"
	CodeUpstream        = "upstream_unavailable"
	CodeInternal        = "internal"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Unauthenticated(err error) *Error {
	return New(http.StatusUnauthorized, CodeUnauthenticated, err)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func NotAccessible(format string, args ...interface{}) *Error {
	return New(http.StatusForbidden, CodeNotAccessible, fmt.Errorf(format, args...))
}

func ObjectiveUnmet(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, CodeObjectiveUnmet, fmt.Errorf(format, args...))
}

func InvalidArgument(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, CodeInvalidArgument, fmt.Errorf(format, args...))
}

func Persistence(err error) *Error {
	return New(http.StatusInternalServerError, CodePersistence, err)
}

func Upstream(err error) *Error {
	return New(http.StatusInternalServerError, CodeUpstream, err)
}

// From extracts an *Error from err's chain, wrapping unknown errors as a
// generic 500 so handlers always have a status and code to respond with.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return New(http.StatusInternalServerError, CodeInternal, err)
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}
