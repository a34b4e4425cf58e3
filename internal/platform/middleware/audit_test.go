package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestAudit_RecordsEntry(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/patients/123", nil)
	req.Header.Set("User-Agent", "test-client")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("tenant_id", "tenant-1")
	c.Set("api_key_id", "key-1")
	c.Set("request_id", "req-1")

	var captured []AuditEntry
	recorder := AuditRecorderFunc(func(entry AuditEntry) error {
		captured = append(captured, entry)
		return nil
	})

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := Audit(logger, recorder)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(captured) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(captured))
	}
	entry := captured[0]
	if entry.TenantID != "tenant-1" {
		t.Errorf("tenant = %q, want tenant-1", entry.TenantID)
	}
	if entry.APIKeyID != "key-1" {
		t.Errorf("api key = %q, want key-1", entry.APIKeyID)
	}
	if entry.Action != "read" {
		t.Errorf("action = %q, want read", entry.Action)
	}
	if entry.Path != "/v1/patients/123" {
		t.Errorf("path = %q", entry.Path)
	}
	if entry.UserAgent != "test-client" {
		t.Errorf("user agent = %q", entry.UserAgent)
	}
}

func TestAudit_SkipsNonAPIPaths(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var captured []AuditEntry
	recorder := AuditRecorderFunc(func(entry AuditEntry) error {
		captured = append(captured, entry)
		return nil
	})

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := Audit(logger, recorder)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(captured) != 0 {
		t.Fatalf("expected no audit entries for /health, got %d", len(captured))
	}
}

func TestAudit_ActionMapping(t *testing.T) {
	tests := []struct {
		method string
		target string
		want   string
	}{
		{http.MethodGet, "/v1/patients/1", "read"},
		{http.MethodGet, "/v1/patients?name=maria", "search"},
		{http.MethodPost, "/v1/appointments", "create"},
		{http.MethodPut, "/v1/appointments/1", "update"},
		{http.MethodDelete, "/v1/appointments/1", "delete"},
	}

	logger := zerolog.New(os.Stderr)
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var captured []AuditEntry
			recorder := AuditRecorderFunc(func(entry AuditEntry) error {
				captured = append(captured, entry)
				return nil
			})

			handler := func(c echo.Context) error {
				return c.NoContent(http.StatusNoContent)
			}
			if err := Audit(logger, recorder)(handler)(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(captured) != 1 {
				t.Fatalf("expected 1 entry, got %d", len(captured))
			}
			if captured[0].Action != tt.want {
				t.Errorf("action = %q, want %q", captured[0].Action, tt.want)
			}
		})
	}
}

func TestAudit_PropagatesHandlerError(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/patients/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var captured []AuditEntry
	recorder := AuditRecorderFunc(func(entry AuditEntry) error {
		captured = append(captured, entry)
		return nil
	})

	handler := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}

	err := Audit(logger, recorder)(handler)(c)
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}
	if len(captured) != 1 {
		t.Fatalf("expected entry even on error, got %d", len(captured))
	}
}
