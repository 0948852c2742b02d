package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jamesaja2/tradesim-live/internal/config"
	"github.com/jamesaja2/tradesim-live/internal/hub"
	"github.com/jamesaja2/tradesim-live/internal/logging"
	"github.com/jamesaja2/tradesim-live/internal/relay"
	"github.com/jamesaja2/tradesim-live/internal/server"
	"github.com/jamesaja2/tradesim-live/internal/store"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	return pool
}

func setupRedis(cfg *config.Config) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := relay.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, h *hub.Hub, rel *relay.Relay) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		if rel != nil {
			rel.Close()
		}
		h.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	h := hub.NewHub(hub.Options{
		Clock:             clock,
		HeartbeatInterval: cfg.HeartbeatInterval,
		MaxClients:        cfg.MaxClients,
		SendBufferSize:    cfg.SendBufferSize,
		SnapshotOnConnect: cfg.SnapshotOnConnect,
	})

	// Events reach local viewers through the hub directly; with Redis
	// configured, the relay additionally bridges them across instances.
	var publisher hub.Publisher = h
	var rel *relay.Relay
	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient = setupRedis(cfg)
		defer func() { _ = redisClient.Close() }()
		rel = relay.New(context.Background(), redisClient, h)
		publisher = rel
	}

	// The leaderboard store is optional; without it the refresh endpoint
	// only accepts standings in the request body.
	var pool *pgxpool.Pool
	var leaderboard server.LeaderboardSource
	if cfg.DatabaseURL != "" {
		pool = setupDB(cfg)
		defer pool.Close()
		leaderboard = store.NewLeaderboardRepo(pool)
	}

	srv := server.NewServer(cfg, h, publisher, leaderboard, pool, redisClient, clock)

	done := runGracefulShutdown(srv, h, rel)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
