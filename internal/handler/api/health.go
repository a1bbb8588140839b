// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/olegiv/moodify-go/internal/cache"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status  string       `json:"status"`
	Version string       `json:"version"`
	Uptime  string       `json:"uptime"`
	Cache   *CacheHealth `json:"cache,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// CacheHealth reports the stats cache. A failing cache does not fail the
// health check since reads fall through to the database.
type CacheHealth struct {
	cache.Stats
	Error string `json:"error,omitempty"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the database is reachable. The tracker's
// connectivity probe polls this route.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:  "ok",
		Version: h.version.String(),
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
	}

	if h.cache != nil {
		status.Cache = &CacheHealth{Stats: h.cache.Stats()}
		if p, ok := h.cache.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				h.logger.Warn("stats cache unreachable", "error", err)
				status.Cache.Error = "cache unreachable"
			}
		}
	}

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		status.Status = "unavailable"
		status.Error = "database unreachable"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}
