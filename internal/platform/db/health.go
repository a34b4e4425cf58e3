package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// HealthStatus is the body of the /health endpoint. It reports database
// reachability and how much pool capacity is in use; tenant scoping plays no
// part here, health checks run unauthenticated.
type HealthStatus struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	AcquiredConns int32  `json:"acquired_conns"`
	IdleConns     int32  `json:"idle_conns"`
	MaxConns      int32  `json:"max_conns"`
}

// healthStatus assembles the report from a ping outcome and pool counters.
func healthStatus(pingErr error, acquired, idle, max int32) HealthStatus {
	s := HealthStatus{
		Status:        "ok",
		Database:      "reachable",
		AcquiredConns: acquired,
		IdleConns:     idle,
		MaxConns:      max,
	}
	if pingErr != nil {
		s.Status = "unavailable"
		s.Database = "unreachable"
	}
	return s
}

// HealthHandler pings the database with a short deadline and reports pool
// usage. Returns 503 when the ping fails so load balancers stop routing here.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		pingErr := pool.Ping(ctx)
		stat := pool.Stat()
		status := healthStatus(pingErr, stat.AcquiredConns(), stat.IdleConns(), stat.MaxConns())

		code := http.StatusOK
		if pingErr != nil {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, status)
	}
}
