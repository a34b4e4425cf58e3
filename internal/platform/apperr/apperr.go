// Package apperr defines the error taxonomy shared by all domain services.
//
// Handlers translate these into HTTP status codes at the boundary; services
// and repositories only ever return wrapped sentinels or typed errors from
// this package, never echo errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	// ErrAuthentication covers any credential failure: unknown key, revoked
	// key, inactive tenant, or master key used on a tenant surface. The
	// response body never distinguishes these cases.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotFound is returned both when a record does not exist and when it
	// belongs to another tenant. Callers must not be able to tell the two
	// apart.
	ErrNotFound = errors.New("resource not found")

	// ErrSchedulingConflict is returned when a booking overlaps an existing
	// appointment or blocked interval for the same doctor.
	ErrSchedulingConflict = errors.New("scheduling conflict")

	// ErrIsolationViolation is returned when a request reaches a persistence
	// path without a bound tenant scope. It indicates a wiring bug, not a
	// client mistake, and maps to 500.
	ErrIsolationViolation = errors.New("tenant scope not bound")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Validation builds a field-level validation error.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err wraps ErrSchedulingConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrSchedulingConflict) }

// ToHTTP maps a service error to an echo HTTPError. Unknown errors map to
// 500 with a generic message so internals never leak to API clients.
func ToHTTP(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrAuthentication):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	case errors.Is(err, ErrSchedulingConflict):
		return echo.NewHTTPError(http.StatusConflict, "the requested time is no longer available")
	case IsValidation(err):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrIsolationViolation):
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
