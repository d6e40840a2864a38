// Package apperr holds the error kinds domain services return and their
// mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid request")
	ErrUnauthorized = errors.New("unauthorized")
)

// kindError carries a user-facing message and the kind it belongs to.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKind(kind error, format string, args ...interface{}) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...interface{}) error {
	return newKind(ErrInvalid, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newKind(ErrNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return newKind(ErrForbidden, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return newKind(ErrConflict, format, args...)
}

func Unauthorized(format string, args ...interface{}) error {
	return newKind(ErrUnauthorized, format, args...)
}

// HTTP converts a service error to an echo.HTTPError. Unknown errors become a
// 500 whose message does not leak internals.
func HTTP(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalid):
		code = http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrConflict):
		code = http.StatusConflict
	}
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error())
}
