// Package main is the entry point for the book favorites server.
//
// main only reads configuration from the environment, builds a logger and
// hands both to internal/server. All actual logic lives in internal/.
//
// ENVIRONMENT:
//
//	PORT          listen port (8080)
//	STORE_DRIVER  json | sqlite (json)
//	DATA_DIR      directory holding users.json and books.json (data)
//	DB_PATH       sqlite database file (data/favorites.db)
//	JWT_SECRET    HMAC key for access tokens, at least 16 characters (required)
//	TOKEN_TTL     access token lifetime, e.g. 12h (24h)
//	RATE_LIMIT    requests per window per client address (100)
//	RATE_WINDOW   rate limit window, e.g. 15m (15m)
//	LOG_LEVEL     debug | info | warn | error (info)
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/book-favorites/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}))

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadConfig overlays environment variables on server.DefaultConfig.
func loadConfig() (server.Config, error) {
	cfg := server.DefaultConfig()

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.StoreDriver = strings.ToLower(v)
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required (try: openssl rand -hex 32)")
	}

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("TOKEN_TTL: %w", err)
		}
		cfg.TokenTTL = d
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("RATE_LIMIT: want a positive integer, got %q", v)
		}
		cfg.RateLimit = n
	}
	if v := os.Getenv("RATE_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("RATE_WINDOW: want a positive duration, got %q", v)
		}
		cfg.RateWindow = d
	}

	return cfg, nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
