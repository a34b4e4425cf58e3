package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery converts a handler panic into a 500 without leaking internals to
// the client. The stack goes to the log together with the request and tenant
// identifiers so the failing request can be traced.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					ev := logger.Error().
						Str("panic", fmt.Sprintf("%v", r)).
						Str("path", c.Request().URL.Path).
						Str("stack", string(debug.Stack()))
					if id, ok := c.Get("request_id").(string); ok && id != "" {
						ev = ev.Str("request_id", id)
					}
					if tid, ok := c.Get("tenant_id").(string); ok && tid != "" {
						ev = ev.Str("tenant_id", tid)
					}
					ev.Msg("panic recovered")

					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				}
			}()
			return next(c)
		}
	}
}
