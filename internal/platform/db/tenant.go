package db

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/secreapi/secre/internal/platform/apperr"
)

// Scope identifies who a request acts as. Either a concrete tenant, or the
// master credential (admin surface only). A request without a scope never
// reaches a repository.
type Scope struct {
	TenantID uuid.UUID
	Master   bool
}

type contextKey string

const (
	scopeKey contextKey = "tenant_scope"
	connKey  contextKey = "db_conn"
	txKey    contextKey = "db_tx"
)

// WithScope returns a context carrying the given scope.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// ScopeFromContext retrieves the request scope, if one is bound.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey).(Scope)
	return s, ok
}

// TenantFromContext returns the tenant a request is scoped to. Master scope
// and unscoped contexts both fail: neither may touch tenant data.
func TenantFromContext(ctx context.Context) (uuid.UUID, error) {
	s, ok := ctx.Value(scopeKey).(Scope)
	if !ok || s.Master || s.TenantID == uuid.Nil {
		return uuid.Nil, apperr.ErrIsolationViolation
	}
	return s.TenantID, nil
}

// Querier is the query surface shared by pooled connections, pools, and
// transactions. Repositories accept it so transactional and plain calls go
// through the same code path.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Conn returns the query surface bound to this request: an open transaction
// if one is in flight, otherwise the tenant-scoped connection. There is no
// pool fallback; calling Conn outside a bound scope is an isolation bug.
func Conn(ctx context.Context) (Querier, error) {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx, nil
	}
	if conn, ok := ctx.Value(connKey).(*pgxpool.Conn); ok {
		return conn, nil
	}
	return nil, apperr.ErrIsolationViolation
}

// scopedConn returns the raw pooled connection for transaction control.
func scopedConn(ctx context.Context) (*pgxpool.Conn, error) {
	conn, ok := ctx.Value(connKey).(*pgxpool.Conn)
	if !ok {
		return nil, apperr.ErrIsolationViolation
	}
	return conn, nil
}

// WithScopedConn runs fn with a tenant-bound connection, the same binding
// ScopeMiddleware performs for HTTP requests. Non-HTTP callers (CLI commands,
// tests) use it to reach tenant data through the full isolation path.
func WithScopedConn(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID, fn func(ctx context.Context) error) error {
	if tenantID == uuid.Nil {
		return apperr.ErrIsolationViolation
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "RESET app.tenant_id")
		conn.Release()
	}()

	_, err = conn.Exec(ctx, "SELECT set_config('app.tenant_id', $1, false)", tenantID.String())
	if err != nil {
		return err
	}

	ctx = WithScope(ctx, Scope{TenantID: tenantID})
	ctx = context.WithValue(ctx, connKey, conn)
	return fn(ctx)
}

// ScopeMiddleware binds the authenticated tenant to a database connection for
// the duration of the request. It pins a pooled connection, sets
// app.tenant_id so row level security policies apply, and attaches the
// connection to the request context. Repositories additionally filter by
// tenant_id in SQL; the two mechanisms are independent and either alone is
// sufficient to contain a cross-tenant query.
//
// Must run after the authentication middleware; a request that reaches it
// without a tenant scope is rejected before any persistence call.
func ScopeMiddleware(pool *pgxpool.Pool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			scope, ok := ScopeFromContext(ctx)
			if !ok || scope.Master || scope.TenantID == uuid.Nil {
				return echo.NewHTTPError(http.StatusForbidden, "tenant scope required")
			}

			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer func() {
				// Clear the session setting before the connection returns to
				// the pool so a later request can never inherit this tenant.
				_, _ = conn.Exec(context.Background(), "RESET app.tenant_id")
				conn.Release()
			}()

			_, err = conn.Exec(ctx, "SELECT set_config('app.tenant_id', $1, false)", scope.TenantID.String())
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "tenant binding failed")
			}

			ctx = context.WithValue(ctx, connKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_id", scope.TenantID.String())

			return next(c)
		}
	}
}
