package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Overlay transports (public; OBS browser sources carry no credentials)
	obs := s.echo.Group("/api/obs")
	obs.GET("/events", s.handleEvents)
	obs.GET("/websocket", s.handleWebSocket)

	// Producer triggers (admin-gated when a token is configured)
	obs.POST("/bell", s.handleBell, s.requireAdmin, newRateLimiter(s.config.BellRatePerSecond, s.config.BellBurst))
	obs.POST("/trade", s.handleTrade, s.requireAdmin)
	obs.POST("/leaderboard/refresh", s.handleLeaderboardRefresh, s.requireAdmin)
}
