package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime settings, loaded from the environment.
type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	// Optional collaborators. The live layer runs fine without either:
	// no DatabaseURL disables the leaderboard store, no RedisURL disables
	// the cross-instance relay.
	DatabaseURL string
	RedisURL    string

	// AdminToken gates the bell/trade/leaderboard producer endpoints when
	// set. Empty leaves them open, matching the original dashboard.
	AdminToken string

	HeartbeatInterval time.Duration
	MaxClients        int
	SendBufferSize    int

	// SnapshotOnConnect delivers the retained bell and leaderboard events
	// to a freshly registered connection before live fan-out begins.
	SnapshotOnConnect bool

	BellRatePerSecond float64
	BellBurst         int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),
	}

	var err error
	if cfg.HeartbeatInterval, err = getDuration("HEARTBEAT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}

	if cfg.MaxClients, err = getInt("MAX_CLIENTS", 200); err != nil {
		return nil, err
	}
	if cfg.MaxClients <= 0 {
		return nil, fmt.Errorf("MAX_CLIENTS must be positive")
	}

	if cfg.SendBufferSize, err = getInt("SEND_BUFFER_SIZE", 16); err != nil {
		return nil, err
	}
	if cfg.SendBufferSize <= 0 {
		return nil, fmt.Errorf("SEND_BUFFER_SIZE must be positive")
	}

	if cfg.SnapshotOnConnect, err = getBool("SNAPSHOT_ON_CONNECT", false); err != nil {
		return nil, err
	}

	if cfg.BellRatePerSecond, err = getFloat("BELL_RATE_PER_SECOND", 1); err != nil {
		return nil, err
	}
	if cfg.BellBurst, err = getInt("BELL_BURST", 5); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false: %w", key, err)
	}
	return b, nil
}
