package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// AuditEntry records one access to patient-scoped data: who (tenant and
// key), what, when, from where, and the outcome.
type AuditEntry struct {
	TenantID   string
	APIKeyID   string
	Action     string // read, create, update, delete, search
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries. Decoupling the sink from the
// middleware lets tests capture entries in memory.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit returns middleware that logs every access under /v1/ with the
// resolved tenant and API key. Entries go to the recorders when given,
// otherwise to the structured log.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/v1/") {
				return next(c)
			}

			err := next(c)

			tenantID, _ := c.Get("tenant_id").(string)
			keyID, _ := c.Get("api_key_id").(string)
			rid, _ := c.Get("request_id").(string)

			entry := AuditEntry{
				TenantID:   tenantID,
				APIKeyID:   keyID,
				Action:     actionForMethod(req.Method, req.URL.RawQuery),
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				Path:       req.URL.Path,
				Method:     req.Method,
				Timestamp:  time.Now().UTC(),
				RequestID:  rid,
				StatusCode: c.Response().Status,
			}

			if len(recorders) > 0 {
				for _, r := range recorders {
					if recErr := r.RecordAccess(entry); recErr != nil {
						logger.Error().Err(recErr).Msg("audit recorder failed")
					}
				}
			} else {
				logger.Info().
					Str("tenant_id", entry.TenantID).
					Str("api_key_id", entry.APIKeyID).
					Str("action", entry.Action).
					Str("method", entry.Method).
					Str("path", entry.Path).
					Int("status", entry.StatusCode).
					Str("request_id", entry.RequestID).
					Str("remote_ip", entry.IPAddress).
					Msg("audit")
			}

			return err
		}
	}
}

func actionForMethod(method, rawQuery string) string {
	switch method {
	case "GET":
		if rawQuery != "" {
			return "search"
		}
		return "read"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
