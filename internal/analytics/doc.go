// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package analytics implements the server side of the listening-event pipeline.
//
// # Ingestion
//
// The Ingestor persists events posted by the tracker. Single events run
// through a dispatch table of per-event-type side effects:
//
//	song_play      upserts the (user, mood, language, goal) play counter
//	playlist_open  records a playlist engagement row
//
// Batched events are insert-only and never trigger side effects. A batch is
// written in one transaction, so a failed batch leaves nothing behind and can
// be retried as a whole.
//
// # Aggregation
//
// The Stats queries are read-only grouped counts over analytics_events,
// filtered by user and a relative timeframe:
//
//	stats, err := analytics.NewStats(db).UserStats(ctx, "user_ab12", analytics.ParseTimeframe("7d"))
//	fmt.Println(stats.SongPlays, stats.SkipRate)
package analytics
