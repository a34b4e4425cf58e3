package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/secreapi/secre/internal/platform/db"
)

// Middleware authenticates every request with an API key. It checks the
// X-Api-Key header first, then falls back to Authorization: Bearer when the
// token carries the key prefix. On success the resolved scope is attached to
// the request context; on any failure the request is rejected with a uniform
// 401 before reaching business logic. The response never reveals whether the
// key was unknown, revoked, or belongs to a deactivated tenant.
func Middleware(manager *Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawKey := extractAPIKey(c)
			if rawKey == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
			}

			scope, key, err := manager.Resolve(c.Request().Context(), rawKey)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
			}

			ctx := db.WithScope(c.Request().Context(), scope)
			c.SetRequest(c.Request().WithContext(ctx))
			if key != nil {
				c.Set("api_key_id", key.ID.String())
			}

			return next(c)
		}
	}
}

// RequireMaster restricts a route group to the master credential. Tenant
// keys are rejected even though they are otherwise valid.
func RequireMaster() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			scope, ok := db.ScopeFromContext(c.Request().Context())
			if !ok || !scope.Master {
				return echo.NewHTTPError(http.StatusForbidden, "master API key required")
			}
			return next(c)
		}
	}
}

// RequireTenant restricts a route group to tenant credentials. The master
// key administers tenants; it never reads or writes tenant data.
func RequireTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			scope, ok := db.ScopeFromContext(c.Request().Context())
			if !ok || scope.Master {
				return echo.NewHTTPError(http.StatusForbidden, "tenant API key required")
			}
			return next(c)
		}
	}
}

// extractAPIKey returns the raw API key from the request, checking the
// X-Api-Key header first and then the Authorization: Bearer header.
func extractAPIKey(c echo.Context) string {
	if apiKey := c.Request().Header.Get("X-Api-Key"); apiKey != "" {
		return apiKey
	}

	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	token := parts[1]
	if strings.HasPrefix(token, apiKeyPrefix) || strings.HasPrefix(token, "mk_") {
		return token
	}
	return ""
}
