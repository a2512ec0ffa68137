package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler exposes liveness and dependency checks.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Health reports process liveness without touching dependencies.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "time": time.Now().UTC()})
}

// TestConnection pings MySQL and, when configured, Redis. Returns 503 if
// the database is unreachable; a missing Redis only degrades caching so
// it is reported but does not fail the check.
func (h *HealthHandler) TestConnection(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	out := echo.Map{"database": "ok", "redis": "disabled"}

	if err := h.DB.PingContext(ctx); err != nil {
		out["database"] = err.Error()
		return c.JSON(http.StatusServiceUnavailable, out)
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			out["redis"] = err.Error()
		} else {
			out["redis"] = "ok"
		}
	}
	return c.JSON(http.StatusOK, out)
}
