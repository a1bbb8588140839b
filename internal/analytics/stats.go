// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/moodify-go/internal/store"
)

// Result limits.
const (
	TopMoodsLimit     = 5
	PopularMoodsLimit = 10
)

// MoodCount is a play count for one mood.
type MoodCount struct {
	Mood  string `json:"mood"`
	Count int64  `json:"count"`
}

// LanguageCount is a play count for one language.
type LanguageCount struct {
	Language string `json:"language"`
	Count    int64  `json:"count"`
}

// HourCount is a play count for one hour of the day ("00" to "23", UTC).
type HourCount struct {
	Hour  string `json:"hour"`
	Count int64  `json:"count"`
}

// UserStats summarizes one user's listening within a timeframe.
type UserStats struct {
	TotalListeningTime int64       `json:"totalListeningTime"`
	SongPlays          int64       `json:"songPlays"`
	CompletedSongs     int64       `json:"completedSongs"`
	SkippedSongs       int64       `json:"skippedSongs"`
	SkipRate           Rate        `json:"skipRate"`
	CompletionRate     Rate        `json:"completionRate"`
	TopMoods           []MoodCount `json:"topMoods"`
	HourlyPattern      []HourCount `json:"hourlyPattern"`
	Timeframe          string      `json:"timeframe"`
}

// MoodTrends maps a calendar date (YYYY-MM-DD, UTC) to its mood counts,
// highest count first.
type MoodTrends map[string][]MoodCount

// EventTypeStat is the volume of one event type.
type EventTypeStat struct {
	EventType   string `json:"event_type"`
	Count       int64  `json:"count"`
	UniqueUsers int64  `json:"unique_users"`
}

// GlobalStats summarizes all users within a timeframe.
type GlobalStats struct {
	EventTypes       []EventTypeStat `json:"globalStats"`
	PopularMoods     []MoodCount     `json:"popularMoods"`
	PopularLanguages []LanguageCount `json:"popularLanguages"`
	Timeframe        string          `json:"timeframe"`
}

// Stats runs the read-only aggregation queries.
type Stats struct {
	db  store.DBTX
	now func() time.Time
}

// NewStats creates a Stats reading from db.
func NewStats(db store.DBTX) *Stats {
	return &Stats{db: db, now: time.Now}
}

const countsQuery = `
SELECT
	COALESCE(SUM(CASE WHEN event_type = 'song_play' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN event_type = 'song_complete' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN event_type = 'song_skip' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN event_type IN ('song_pause', 'song_complete', 'song_skip')
		THEN CAST(json_extract(event_data, '$.listenDuration') AS INTEGER) ELSE 0 END), 0)
FROM analytics_events
WHERE user_id = ?`

const topMoodsQuery = `
SELECT json_extract(event_data, '$.mood') AS mood, COUNT(*) AS count
FROM analytics_events
WHERE user_id = ?
	AND event_type = 'song_play'
	AND json_extract(event_data, '$.mood') IS NOT NULL`

const hourlyPatternQuery = `
SELECT strftime('%H', timestamp) AS hour, COUNT(*) AS count
FROM analytics_events
WHERE user_id = ?
	AND event_type = 'song_play'`

// UserStats returns the listening summary for userID.
func (s *Stats) UserStats(ctx context.Context, userID string, tf Timeframe) (*UserStats, error) {
	cond, condArgs := tf.condition(s.now())
	args := append([]any{userID}, condArgs...)

	st := &UserStats{Timeframe: tf.Name}
	err := s.db.QueryRowContext(ctx, countsQuery+cond, args...).
		Scan(&st.SongPlays, &st.CompletedSongs, &st.SkippedSongs, &st.TotalListeningTime)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	st.SkipRate = NewRate(st.SkippedSongs, st.SongPlays)
	st.CompletionRate = NewRate(st.CompletedSongs, st.SongPlays)

	query := topMoodsQuery + cond + fmt.Sprintf(" GROUP BY mood ORDER BY count DESC, mood ASC LIMIT %d", TopMoodsLimit)
	if st.TopMoods, err = s.moodCounts(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("querying top moods: %w", err)
	}

	if st.HourlyPattern, err = s.hourlyPattern(ctx, hourlyPatternQuery+cond+" GROUP BY hour ORDER BY hour", args...); err != nil {
		return nil, fmt.Errorf("querying hourly pattern: %w", err)
	}

	return st, nil
}

const moodTrendsQuery = `
SELECT date(timestamp) AS date, json_extract(event_data, '$.mood') AS mood, COUNT(*) AS count
FROM analytics_events
WHERE user_id = ?
	AND event_type = 'song_play'
	AND json_extract(event_data, '$.mood') IS NOT NULL`

// MoodTrends returns per-day mood counts for userID.
func (s *Stats) MoodTrends(ctx context.Context, userID string, tf Timeframe) (MoodTrends, error) {
	cond, condArgs := tf.condition(s.now())
	args := append([]any{userID}, condArgs...)

	rows, err := s.db.QueryContext(ctx,
		moodTrendsQuery+cond+" GROUP BY date, mood ORDER BY date DESC, count DESC, mood ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("querying mood trends: %w", err)
	}
	defer func() { _ = rows.Close() }()

	trends := MoodTrends{}
	for rows.Next() {
		var date string
		var mc MoodCount
		if err := rows.Scan(&date, &mc.Mood, &mc.Count); err != nil {
			return nil, fmt.Errorf("scanning mood trend: %w", err)
		}
		trends[date] = append(trends[date], mc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mood trends: %w", err)
	}
	return trends, nil
}

const eventTypesQuery = `
SELECT COALESCE(event_type, ''), COUNT(*) AS count, COUNT(DISTINCT user_id)
FROM analytics_events
WHERE 1 = 1`

const popularMoodsQuery = `
SELECT json_extract(event_data, '$.mood') AS mood, COUNT(*) AS count
FROM analytics_events
WHERE event_type = 'song_play'
	AND json_extract(event_data, '$.mood') IS NOT NULL`

const popularLanguagesQuery = `
SELECT json_extract(event_data, '$.language') AS language, COUNT(*) AS count
FROM analytics_events
WHERE event_type = 'song_play'
	AND json_extract(event_data, '$.language') IS NOT NULL`

// GlobalStats returns volumes across all users.
func (s *Stats) GlobalStats(ctx context.Context, tf Timeframe) (*GlobalStats, error) {
	cond, args := tf.condition(s.now())
	gs := &GlobalStats{Timeframe: tf.Name, EventTypes: []EventTypeStat{}}

	rows, err := s.db.QueryContext(ctx,
		eventTypesQuery+cond+" GROUP BY event_type ORDER BY count DESC, event_type ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("querying event types: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var et EventTypeStat
		if err := rows.Scan(&et.EventType, &et.Count, &et.UniqueUsers); err != nil {
			return nil, fmt.Errorf("scanning event type: %w", err)
		}
		gs.EventTypes = append(gs.EventTypes, et)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event types: %w", err)
	}

	query := popularMoodsQuery + cond + fmt.Sprintf(" GROUP BY mood ORDER BY count DESC, mood ASC LIMIT %d", PopularMoodsLimit)
	if gs.PopularMoods, err = s.moodCounts(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("querying popular moods: %w", err)
	}

	if gs.PopularLanguages, err = s.languageCounts(ctx,
		popularLanguagesQuery+cond+" GROUP BY language ORDER BY count DESC, language ASC", args...); err != nil {
		return nil, fmt.Errorf("querying popular languages: %w", err)
	}

	return gs, nil
}

// Preferences returns the play counters recorded by song_play side effects.
func (s *Stats) Preferences(ctx context.Context, userID string) ([]store.UserPreference, error) {
	prefs, err := store.New(s.db).ListUserPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}
	if prefs == nil {
		prefs = []store.UserPreference{}
	}
	return prefs, nil
}

func (s *Stats) moodCounts(ctx context.Context, query string, args ...any) ([]MoodCount, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []MoodCount{}
	for rows.Next() {
		var mc MoodCount
		if err := rows.Scan(&mc.Mood, &mc.Count); err != nil {
			return nil, err
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

func (s *Stats) languageCounts(ctx context.Context, query string, args ...any) ([]LanguageCount, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []LanguageCount{}
	for rows.Next() {
		var lc LanguageCount
		if err := rows.Scan(&lc.Language, &lc.Count); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

func (s *Stats) hourlyPattern(ctx context.Context, query string, args ...any) ([]HourCount, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []HourCount{}
	for rows.Next() {
		var hc HourCount
		if err := rows.Scan(&hc.Hour, &hc.Count); err != nil {
			return nil, err
		}
		out = append(out, hc)
	}
	return out, rows.Err()
}
