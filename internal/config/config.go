// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads server and tracker configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the ingestion server configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"MOODIFY_DB_PATH" envDefault:"./data/moodify.db"`
	ServerHost string `env:"MOODIFY_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"MOODIFY_SERVER_PORT" envDefault:"3001"`
	Env        string `env:"MOODIFY_ENV" envDefault:"development"`
	LogLevel   string `env:"MOODIFY_LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"MOODIFY_LOG_FORMAT" envDefault:"text"`

	// Stats cache configuration
	RedisURL      string        `env:"MOODIFY_REDIS_URL"`                              // Optional Redis URL for shared caching
	CachePrefix   string        `env:"MOODIFY_CACHE_PREFIX" envDefault:"moodify:"`     // Redis key prefix
	StatsCacheTTL time.Duration `env:"MOODIFY_STATS_CACHE_TTL" envDefault:"0s"`        // 0 disables caching
	CacheMaxSize  int           `env:"MOODIFY_CACHE_MAX_SIZE" envDefault:"10000"`      // Max memory cache entries

	// Ingestion rate limiting, per client IP
	RateLimitRPS   float64 `env:"MOODIFY_RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"MOODIFY_RATE_LIMIT_BURST" envDefault:"40"`
	TrustProxy     bool    `env:"MOODIFY_TRUST_PROXY" envDefault:"false"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// StatsCacheEnabled returns true if aggregation responses should be cached.
func (c Config) StatsCacheEnabled() bool {
	return c.StatsCacheTTL > 0
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("MOODIFY_SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		return nil, errors.New("MOODIFY_RATE_LIMIT_RPS and MOODIFY_RATE_LIMIT_BURST must be positive")
	}
	if cfg.StatsCacheTTL < 0 {
		return nil, errors.New("MOODIFY_STATS_CACHE_TTL must not be negative")
	}

	return cfg, nil
}

// TrackerConfig holds the client-side tracker configuration.
type TrackerConfig struct {
	APIBase       string        `env:"MOODIFY_API_BASE" envDefault:"http://localhost:3001/api"`
	BufferDir     string        `env:"MOODIFY_BUFFER_DIR" envDefault:"./data/tracker"`
	RetryInterval time.Duration `env:"MOODIFY_RETRY_INTERVAL" envDefault:"60s"`
	RetryBackoff  time.Duration `env:"MOODIFY_RETRY_BACKOFF" envDefault:"0s"` // 0 retries every cycle
	HealthURL     string        `env:"MOODIFY_HEALTH_URL"`                     // empty disables probing
	ProbeInterval time.Duration `env:"MOODIFY_PROBE_INTERVAL" envDefault:"15s"`
	HTTPTimeout   time.Duration `env:"MOODIFY_HTTP_TIMEOUT" envDefault:"10s"`
	UserAgent     string        `env:"MOODIFY_USER_AGENT" envDefault:"moodify-track/1.0"`
	PageURL       string        `env:"MOODIFY_PAGE_URL"`
	LogLevel      string        `env:"MOODIFY_LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"MOODIFY_LOG_FORMAT" envDefault:"text"`
}

// LoadTracker parses environment variables into a TrackerConfig.
func LoadTracker() (*TrackerConfig, error) {
	cfg := &TrackerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing tracker config: %w", err)
	}

	u, err := url.Parse(cfg.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("MOODIFY_API_BASE must be an absolute http(s) URL, got %q", cfg.APIBase)
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")

	if cfg.RetryInterval < time.Second {
		return nil, fmt.Errorf("MOODIFY_RETRY_INTERVAL must be at least 1s, got %s", cfg.RetryInterval)
	}
	if cfg.HealthURL != "" && cfg.ProbeInterval < time.Second {
		return nil, fmt.Errorf("MOODIFY_PROBE_INTERVAL must be at least 1s, got %s", cfg.ProbeInterval)
	}

	return cfg, nil
}
