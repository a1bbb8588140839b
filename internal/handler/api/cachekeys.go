// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"

	"github.com/olegiv/moodify-go/internal/analytics"
	"github.com/olegiv/moodify-go/internal/model"
)

func userStatsKey(userID string, tf analytics.Timeframe) string {
	return "stats:" + userID + ":" + tf.CacheName()
}

func moodTrendsKey(userID string, tf analytics.Timeframe) string {
	return "mood-trends:" + userID + ":" + tf.CacheName()
}

func globalStatsKey(tf analytics.Timeframe) string {
	return "global-stats:" + tf.CacheName()
}

// staleKeys lists every cached response a write of events can change: the
// global stats plus the per-user stats of each identified user.
func staleKeys(events []model.Event) []string {
	names := analytics.CacheNames()
	keys := make([]string, 0, len(names))
	for _, name := range names {
		keys = append(keys, globalStatsKey(analytics.ParseTimeframe(name)))
	}

	seen := make(map[string]bool)
	for _, e := range events {
		if e.UserID == "" || seen[e.UserID] {
			continue
		}
		seen[e.UserID] = true
		for _, name := range names {
			tf := analytics.ParseTimeframe(name)
			keys = append(keys, userStatsKey(e.UserID, tf), moodTrendsKey(e.UserID, tf))
		}
	}
	return keys
}

// invalidate drops cached responses made stale by events. Failures are
// logged; entries then age out with their TTL.
func (h *Handler) invalidate(ctx context.Context, events []model.Event) {
	if h.cache == nil || len(events) == 0 {
		return
	}
	if err := h.cache.Delete(ctx, staleKeys(events)...); err != nil {
		h.logger.Warn("failed to invalidate stats cache", "events", len(events), "error", err)
	}
}
