// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/moodify-go/internal/analytics"
	"github.com/olegiv/moodify-go/internal/cache"
	"github.com/olegiv/moodify-go/internal/model"
)

// TrackResponse acknowledges an ingested event or batch.
type TrackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// BatchRequest is the body of POST /analytics/batch.
type BatchRequest struct {
	Events []model.Event `json:"events"`
	UserID string        `json:"userId"`
}

// Track handles POST /analytics/track.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	var e model.Event
	if !decodeBody(w, r, &e) {
		return
	}

	if err := h.ingestor.TrackSingle(r.Context(), e); err != nil {
		h.logger.Error("failed to track event", "event_type", e.EventType, "user_id", e.UserID, "error", err)
		WriteInternalError(w, "Failed to track event")
		return
	}
	h.invalidate(r.Context(), []model.Event{e})

	WriteJSON(w, http.StatusOK, TrackResponse{Success: true, Message: "Event tracked successfully"})
}

// Batch handles POST /analytics/batch.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Events == nil {
		WriteBadRequest(w, "events must be an array")
		return
	}

	n, err := h.ingestor.TrackBatch(r.Context(), req.Events)
	if err != nil {
		h.logger.Error("failed to batch track events", "events", len(req.Events), "user_id", req.UserID, "error", err)
		WriteInternalError(w, "Failed to batch track events")
		return
	}
	h.invalidate(r.Context(), req.Events)

	h.logger.Info("batch analytics tracked", "events", n, "user_id", req.UserID)
	WriteJSON(w, http.StatusOK, TrackResponse{
		Success: true,
		Message: fmt.Sprintf("%d events tracked successfully", n),
		Count:   n,
	})
}

// StatsResponse is the body of GET /analytics/stats/{userId}.
type StatsResponse struct {
	Success bool                 `json:"success"`
	Stats   *analytics.UserStats `json:"stats"`
}

// Stats handles GET /analytics/stats/{userId}.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	tf := timeframeParam(r, analytics.DefaultUserTimeframe)

	st, err := cached(r.Context(), h, h.userStats, "stats", userStatsKey(userID, tf), func() (*analytics.UserStats, error) {
		return h.stats.UserStats(r.Context(), userID, tf)
	})
	if err != nil {
		h.logger.Error("failed to fetch listening stats", "user_id", userID, "error", err)
		WriteInternalError(w, "Failed to fetch statistics")
		return
	}
	st.Timeframe = tf.Name

	WriteJSON(w, http.StatusOK, StatsResponse{Success: true, Stats: st})
}

// MoodTrendsResponse is the body of GET /analytics/mood-trends/{userId}.
type MoodTrendsResponse struct {
	Success   bool                 `json:"success"`
	Trends    analytics.MoodTrends `json:"trends"`
	Timeframe string               `json:"timeframe"`
}

// MoodTrends handles GET /analytics/mood-trends/{userId}.
func (h *Handler) MoodTrends(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	tf := timeframeParam(r, analytics.DefaultUserTimeframe)

	trends, err := cached(r.Context(), h, h.moodTrends, "mood_trends", moodTrendsKey(userID, tf), func() (*analytics.MoodTrends, error) {
		t, err := h.stats.MoodTrends(r.Context(), userID, tf)
		return &t, err
	})
	if err != nil {
		h.logger.Error("failed to fetch mood trends", "user_id", userID, "error", err)
		WriteInternalError(w, "Failed to fetch mood trends")
		return
	}

	WriteJSON(w, http.StatusOK, MoodTrendsResponse{Success: true, Trends: *trends, Timeframe: tf.Name})
}

// GlobalStatsResponse is the body of GET /analytics/global-stats.
type GlobalStatsResponse struct {
	Success bool `json:"success"`
	*analytics.GlobalStats
}

// GlobalStats handles GET /analytics/global-stats.
func (h *Handler) GlobalStats(w http.ResponseWriter, r *http.Request) {
	tf := timeframeParam(r, analytics.DefaultGlobalTimeframe)

	gs, err := cached(r.Context(), h, h.globalStats, "global_stats", globalStatsKey(tf), func() (*analytics.GlobalStats, error) {
		return h.stats.GlobalStats(r.Context(), tf)
	})
	if err != nil {
		h.logger.Error("failed to fetch global stats", "error", err)
		WriteInternalError(w, "Failed to fetch global statistics")
		return
	}
	gs.Timeframe = tf.Name

	WriteJSON(w, http.StatusOK, GlobalStatsResponse{Success: true, GlobalStats: gs})
}

// Preference is one play counter in GET /analytics/preferences/{userId}.
type Preference struct {
	Mood       string `json:"mood"`
	Language   string `json:"language"`
	Goal       string `json:"goal"`
	PlayCount  int64  `json:"playCount"`
	LastPlayed string `json:"lastPlayed"`
}

// PreferencesResponse is the body of GET /analytics/preferences/{userId}.
type PreferencesResponse struct {
	Success     bool         `json:"success"`
	Preferences []Preference `json:"preferences"`
}

// Preferences handles GET /analytics/preferences/{userId}.
func (h *Handler) Preferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	prefs, err := h.stats.Preferences(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to fetch preferences", "user_id", userID, "error", err)
		WriteInternalError(w, "Failed to fetch preferences")
		return
	}

	out := make([]Preference, 0, len(prefs))
	for _, p := range prefs {
		out = append(out, Preference{
			Mood:       p.Mood,
			Language:   p.Language,
			Goal:       p.Goal,
			PlayCount:  p.PlayCount,
			LastPlayed: p.LastPlayed,
		})
	}
	WriteJSON(w, http.StatusOK, PreferencesResponse{Success: true, Preferences: out})
}

func timeframeParam(r *http.Request, def string) analytics.Timeframe {
	tf := r.URL.Query().Get("timeframe")
	if tf == "" {
		tf = def
	}
	return analytics.ParseTimeframe(tf)
}

// cached serves fn through c when caching is enabled.
func cached[T any](ctx context.Context, h *Handler, c *cache.Typed[T], query, key string, fn func() (*T, error)) (*T, error) {
	if c == nil {
		return fn()
	}

	v, hit, err := c.GetOrSet(ctx, key, fn)
	if err != nil {
		return nil, err
	}
	if h.metrics != nil {
		if hit {
			h.metrics.StatsCacheHits.WithLabelValues(query).Inc()
		} else {
			h.metrics.StatsCacheMisses.WithLabelValues(query).Inc()
		}
	}
	return v, nil
}
