// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the response cache used by the analytics read routes.
package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// Cache stores serialized stats responses. Implementations are safe for
// concurrent use.
type Cache interface {
	// Get returns ErrCacheMiss if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero TTL uses the default TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys. Absent keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	Stats() Stats

	Close() error
}

// Stats is a snapshot of cache activity, reported by /health.
type Stats struct {
	Backend     string  `json:"backend"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Sets        int64   `json:"sets"`
	Invalidated int64   `json:"invalidated"`
	Items       int     `json:"items,omitempty"`
	HitRate     float64 `json:"hit_rate"`
}

// counters is embedded by each backend.
type counters struct {
	hits        atomic.Int64
	misses      atomic.Int64
	sets        atomic.Int64
	invalidated atomic.Int64
}

func (c *counters) snapshot(backend string, items int) Stats {
	s := Stats{
		Backend:     backend,
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Invalidated: c.invalidated.Load(),
		Items:       items,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total) * 100
	}
	return s
}

// Error represents an error type for cache operations.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrCacheMiss indicates the key was not found in cache or has expired.
	ErrCacheMiss Error = "cache miss"

	// ErrCacheClosed indicates the cache has been closed.
	ErrCacheClosed Error = "cache closed"
)
