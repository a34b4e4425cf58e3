package db

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/secreapi/secre/internal/platform/apperr"
)

func TestScopeRoundTrip(t *testing.T) {
	tenantID := uuid.New()
	ctx := WithScope(context.Background(), Scope{TenantID: tenantID})

	s, ok := ScopeFromContext(ctx)
	if !ok {
		t.Fatal("expected scope in context")
	}
	if s.TenantID != tenantID {
		t.Errorf("expected tenant %s, got %s", tenantID, s.TenantID)
	}
	if s.Master {
		t.Error("expected non-master scope")
	}
}

func TestScopeFromContext_Empty(t *testing.T) {
	if _, ok := ScopeFromContext(context.Background()); ok {
		t.Error("expected no scope in empty context")
	}
}

func TestTenantFromContext(t *testing.T) {
	tenantID := uuid.New()
	ctx := WithScope(context.Background(), Scope{TenantID: tenantID})

	got, err := TenantFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != tenantID {
		t.Errorf("expected %s, got %s", tenantID, got)
	}
}

func TestTenantFromContext_Unscoped(t *testing.T) {
	_, err := TenantFromContext(context.Background())
	if !errors.Is(err, apperr.ErrIsolationViolation) {
		t.Errorf("expected isolation violation, got %v", err)
	}
}

func TestTenantFromContext_MasterRejected(t *testing.T) {
	// The master credential administers tenants; it never reads tenant data.
	ctx := WithScope(context.Background(), Scope{Master: true})
	_, err := TenantFromContext(ctx)
	if !errors.Is(err, apperr.ErrIsolationViolation) {
		t.Errorf("expected isolation violation for master scope, got %v", err)
	}
}

func TestTenantFromContext_NilTenant(t *testing.T) {
	ctx := WithScope(context.Background(), Scope{})
	_, err := TenantFromContext(ctx)
	if !errors.Is(err, apperr.ErrIsolationViolation) {
		t.Errorf("expected isolation violation for nil tenant, got %v", err)
	}
}

func TestConn_Unscoped(t *testing.T) {
	// No pool fallback: repositories must fail closed outside a bound scope.
	_, err := Conn(context.Background())
	if !errors.Is(err, apperr.ErrIsolationViolation) {
		t.Errorf("expected isolation violation, got %v", err)
	}
}

func TestScopeMiddleware_RejectsUnscopedRequest(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/patients", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := ScopeMiddleware(nil)(func(c echo.Context) error {
		called = true
		return nil
	})

	err := h(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
	if called {
		t.Error("handler ran without a bound scope")
	}
}

func TestScopeMiddleware_RejectsMasterScope(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/patients", nil)
	req = req.WithContext(WithScope(req.Context(), Scope{Master: true}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := ScopeMiddleware(nil)(func(c echo.Context) error {
		called = true
		return nil
	})

	err := h(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for master scope, got %v", err)
	}
	if called {
		t.Error("handler ran under master scope")
	}
}

func TestWithTx_Unscoped(t *testing.T) {
	err := WithTx(context.Background(), pgx.TxOptions{}, func(ctx context.Context) error {
		t.Error("fn ran without a scoped connection")
		return nil
	})
	if !errors.Is(err, apperr.ErrIsolationViolation) {
		t.Errorf("expected isolation violation, got %v", err)
	}
}

func TestWithSerializableTx_Unscoped(t *testing.T) {
	err := WithSerializableTx(context.Background(), func(ctx context.Context) error {
		t.Error("fn ran without a scoped connection")
		return nil
	})
	if !errors.Is(err, apperr.ErrIsolationViolation) {
		t.Errorf("expected isolation violation, got %v", err)
	}
}
