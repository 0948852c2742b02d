package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const readinessTimeout = 2 * time.Second

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// handleReadiness checks the optional collaborators that are actually
// configured. A total failure of the live layer never takes down the
// dashboard, but a broken store or relay is worth surfacing here.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	type readinessCheck struct {
		name string
		fn   func(context.Context) error
	}

	var checks []readinessCheck
	if s.db != nil {
		checks = append(checks, readinessCheck{"postgres", s.db.Ping})
	}
	if s.redis != nil {
		checks = append(checks, readinessCheck{"redis", func(ctx context.Context) error {
			return s.redis.Ping(ctx).Err()
		}})
	}

	for _, check := range checks {
		if err := check.fn(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":       "unhealthy",
				"failed_check": check.name,
				"error":        err.Error(),
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":            "ready",
		"connected_clients": s.hub.ClientCount(),
	})
}
