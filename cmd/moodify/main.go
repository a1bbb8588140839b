// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/moodify-go/internal/cache"
	"github.com/olegiv/moodify-go/internal/config"
	"github.com/olegiv/moodify-go/internal/handler/api"
	"github.com/olegiv/moodify-go/internal/logging"
	"github.com/olegiv/moodify-go/internal/metrics"
	"github.com/olegiv/moodify-go/internal/middleware"
	"github.com/olegiv/moodify-go/internal/store"
	"github.com/olegiv/moodify-go/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "moodify - mood music analytics ingestion server\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_DB_PATH            SQLite database path (default: ./data/moodify.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_SERVER_HOST        Listen host (default: localhost)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_SERVER_PORT        Listen port (default: 3001)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_ENV                Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_LOG_LEVEL          debug|info|warn|error (default: info)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_LOG_FORMAT         text|json (default: text)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_REDIS_URL          Redis URL for a shared stats cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_STATS_CACHE_TTL    Stats cache TTL, 0 disables (default: 0s)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_RATE_LIMIT_RPS     Ingestion requests per second per client (default: 20)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_RATE_LIMIT_BURST   Ingestion burst per client (default: 40)\n")
	}

	flag.Parse()

	// Handle -h/-help flag
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	// Handle -v/-version flag
	if *showVersion {
		_, _ = fmt.Printf("moodify %s\n", versionInfo)
		os.Exit(0)
	}

	if err := run(versionInfo); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(versionInfo version.Info) error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// Ensure data directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	m := metrics.New(nil)

	opts := api.Options{Metrics: m, Version: versionInfo}
	if cfg.StatsCacheEnabled() {
		statsCache, err := cache.New(context.Background(), cache.Config{
			RedisURL:   cfg.RedisURL,
			Prefix:     cfg.CachePrefix,
			DefaultTTL: cfg.StatsCacheTTL,
			MaxSize:    cfg.CacheMaxSize,
		})
		if err != nil {
			return fmt.Errorf("initializing stats cache: %w", err)
		}
		defer func() { _ = statsCache.Close() }()

		backend := "memory"
		if cfg.UseRedisCache() {
			backend = "redis"
		}
		slog.Info("stats cache initialized", "backend", backend, "ttl", cfg.StatsCacheTTL)
		opts.Cache = statsCache
		opts.CacheTTL = cfg.StatsCacheTTL
	}

	h := api.NewHandler(db, logger, opts)
	router := api.NewRouter(h, api.RouterOptions{
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger),
		AccessLog:   cfg.IsDevelopment(),
		TrustProxy:  cfg.TrustProxy,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", versionInfo.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
