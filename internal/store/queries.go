// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

// TimeLayout is the text form used for every stored instant. It sorts
// lexically and is understood by SQLite's date and strftime functions.
const TimeLayout = "2006-01-02 15:04:05"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries runs the write-side statements against a DBTX.
type Queries struct {
	db DBTX
}

// New creates a Queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries that runs inside tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// InsertEventParams holds one analytics_events row.
type InsertEventParams struct {
	UserID    sql.NullString
	SessionID sql.NullString
	EventType sql.NullString
	EventData string
	Timestamp time.Time
}

const insertEvent = `
INSERT INTO analytics_events (user_id, session_id, event_type, event_data, timestamp)
VALUES (?, ?, ?, ?, ?)
`

// InsertEvent inserts an event row and returns its auto-assigned id.
func (q *Queries) InsertEvent(ctx context.Context, arg InsertEventParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertEvent,
		arg.UserID, arg.SessionID, arg.EventType, arg.EventData, FormatTime(arg.Timestamp))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpsertUserPreferenceParams identifies one preference counter.
type UpsertUserPreferenceParams struct {
	UserID     string
	Mood       string
	Language   string
	Goal       string
	LastPlayed time.Time
}

const upsertUserPreference = `
INSERT INTO user_preferences (user_id, mood, language, goal, play_count, last_played)
VALUES (?, ?, ?, ?, 1, ?)
ON CONFLICT(user_id, mood, language, goal)
DO UPDATE SET
	play_count = play_count + 1,
	last_played = excluded.last_played
`

// UpsertUserPreference increments the play counter for (user, mood, language, goal).
func (q *Queries) UpsertUserPreference(ctx context.Context, arg UpsertUserPreferenceParams) error {
	_, err := q.db.ExecContext(ctx, upsertUserPreference,
		arg.UserID, arg.Mood, arg.Language, arg.Goal, FormatTime(arg.LastPlayed))
	return err
}

// UserPreference is a per-user play counter row.
type UserPreference struct {
	UserID     string
	Mood       string
	Language   string
	Goal       string
	PlayCount  int64
	LastPlayed string
}

const listUserPreferences = `
SELECT user_id, mood, language, goal, play_count, last_played
FROM user_preferences
WHERE user_id = ?
ORDER BY play_count DESC, mood, language, goal
`

// ListUserPreferences returns a user's preference counters, most played first.
func (q *Queries) ListUserPreferences(ctx context.Context, userID string) ([]UserPreference, error) {
	rows, err := q.db.QueryContext(ctx, listUserPreferences, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var prefs []UserPreference
	for rows.Next() {
		var p UserPreference
		if err := rows.Scan(&p.UserID, &p.Mood, &p.Language, &p.Goal, &p.PlayCount, &p.LastPlayed); err != nil {
			return nil, err
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// InsertPlaylistEngagementParams holds one playlist_engagement row.
type InsertPlaylistEngagementParams struct {
	UserID       string
	PlaylistID   string
	PlaylistName string
	Mood         string
	Goal         string
	Language     string
	OpenedAt     time.Time
}

const insertPlaylistEngagement = `
INSERT INTO playlist_engagement (user_id, playlist_id, playlist_name, mood, goal, language, opened_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

// InsertPlaylistEngagement records that a user opened a playlist.
func (q *Queries) InsertPlaylistEngagement(ctx context.Context, arg InsertPlaylistEngagementParams) error {
	_, err := q.db.ExecContext(ctx, insertPlaylistEngagement,
		arg.UserID, arg.PlaylistID, arg.PlaylistName, arg.Mood, arg.Goal, arg.Language, FormatTime(arg.OpenedAt))
	return err
}
