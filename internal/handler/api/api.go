// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST handlers for the analytics ingestion and
// reporting API.
package api

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/olegiv/moodify-go/internal/analytics"
	"github.com/olegiv/moodify-go/internal/cache"
	"github.com/olegiv/moodify-go/internal/metrics"
	"github.com/olegiv/moodify-go/internal/version"
)

// maxBodyBytes caps ingestion request bodies.
const maxBodyBytes = 1 << 20

// Options configures a Handler. Cache and Metrics are optional.
type Options struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
	Version  version.Info
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	db        *sql.DB
	ingestor  *analytics.Ingestor
	stats     *analytics.Stats
	logger    *slog.Logger
	metrics   *metrics.Metrics
	version   version.Info
	startTime time.Time

	cache       cache.Cache
	userStats   *cache.Typed[analytics.UserStats]
	moodTrends  *cache.Typed[analytics.MoodTrends]
	globalStats *cache.Typed[analytics.GlobalStats]
}

// NewHandler creates a new API handler over db.
func NewHandler(db *sql.DB, logger *slog.Logger, opts Options) *Handler {
	h := &Handler{
		db:        db,
		ingestor:  analytics.NewIngestor(db, logger, opts.Metrics),
		stats:     analytics.NewStats(db),
		logger:    logger,
		metrics:   opts.Metrics,
		version:   opts.Version,
		startTime: time.Now(),
	}

	if opts.Cache != nil && opts.CacheTTL > 0 {
		h.cache = opts.Cache
		h.userStats = cache.NewTyped[analytics.UserStats](opts.Cache, opts.CacheTTL)
		h.moodTrends = cache.NewTyped[analytics.MoodTrends](opts.Cache, opts.CacheTTL)
		h.globalStats = cache.NewTyped[analytics.GlobalStats](opts.Cache, opts.CacheTTL)
	}

	return h
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes a {success:false,error} response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

// decodeBody decodes a size-limited JSON body into dst.
// Returns false if an error response was written.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return false
	}
	return true
}
