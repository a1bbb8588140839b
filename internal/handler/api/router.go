// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/moodify-go/internal/middleware"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// RateLimiter guards the ingestion routes when set.
	RateLimiter *middleware.RateLimiter
	// AccessLog enables chi's request logger.
	AccessLog bool
	// RequestTimeout bounds each request; zero means 30s.
	RequestTimeout time.Duration
	// TrustProxy applies X-Forwarded-For and X-Real-IP to RemoteAddr.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

// NewRouter mounts the API under /api, plus /health and /metrics.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	if opts.AccessLog {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	r.Get("/health", h.Health)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	r.Route("/api/analytics", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if opts.RateLimiter != nil {
				r.Use(opts.RateLimiter.Middleware())
			}
			r.Post("/track", h.Track)
			r.Post("/batch", h.Batch)
		})

		r.Get("/stats/{userId}", h.Stats)
		r.Get("/mood-trends/{userId}", h.MoodTrends)
		r.Get("/global-stats", h.GlobalStats)
		r.Get("/preferences/{userId}", h.Preferences)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "Not found")
	})

	return r
}
