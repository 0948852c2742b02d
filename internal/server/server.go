// Package server wires the live broadcast layer into an HTTP surface: the
// two overlay transports, the producer trigger endpoints, and the usual
// health/metrics plumbing.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jamesaja2/tradesim-live/internal/config"
	apperrors "github.com/jamesaja2/tradesim-live/internal/errors"
	"github.com/jamesaja2/tradesim-live/internal/event"
	"github.com/jamesaja2/tradesim-live/internal/hub"
)

// LeaderboardSource reads current standings. nil when no database is
// configured; the refresh endpoint then requires entries in the body.
type LeaderboardSource interface {
	Standings(ctx context.Context) ([]event.LeaderboardEntry, error)
}

// postgresPinger is the minimal surface needed for readiness checks.
type postgresPinger interface {
	Ping(ctx context.Context) error
}

// redisPinger is the minimal surface needed for readiness checks.
type redisPinger interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	hub         *hub.Hub
	publisher   hub.Publisher
	leaderboard LeaderboardSource
	db          postgresPinger
	redis       redisPinger
	clock       clockwork.Clock
}

// NewServer builds the HTTP server around an explicitly constructed hub
// and publisher. leaderboard, pool, and redis may be nil.
func NewServer(cfg *config.Config, h *hub.Hub, publisher hub.Publisher, leaderboard LeaderboardSource, pool *pgxpool.Pool, redis *goredis.Client, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:        e,
		config:      cfg,
		hub:         h,
		publisher:   publisher,
		leaderboard: leaderboard,
		clock:       clock,
	}
	if pool != nil {
		srv.db = pool
	}
	if redis != nil {
		srv.redis = redis
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
