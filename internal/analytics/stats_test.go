// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/moodify-go/internal/model"
	"github.com/olegiv/moodify-go/internal/testutil"
)

func seed(t *testing.T, db *sql.DB, events ...model.Event) {
	t.Helper()
	ing := NewIngestor(db, testutil.TestLoggerSilent(), nil)
	for _, e := range events {
		if err := ing.TrackSingle(context.Background(), e); err != nil {
			t.Fatalf("TrackSingle(%s): %v", e.EventType, err)
		}
	}
}

func TestUserStatsScenario(t *testing.T) {
	db := testutil.TestDB(t)
	now := time.Now()
	seed(t, db, songPlay("u1", "happy", "english", "match", now))

	st, err := NewStats(db).UserStats(context.Background(), "u1", ParseTimeframe("7d"))
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if st.SongPlays != 1 {
		t.Errorf("SongPlays = %d, want 1", st.SongPlays)
	}
	if len(st.TopMoods) != 1 || st.TopMoods[0].Mood != "happy" || st.TopMoods[0].Count < 1 {
		t.Errorf("TopMoods = %+v, want happy", st.TopMoods)
	}
	if st.Timeframe != "7d" {
		t.Errorf("Timeframe = %q, want 7d", st.Timeframe)
	}
}

func TestUserStatsSkipRate(t *testing.T) {
	db := testutil.TestDB(t)
	now := time.Now()
	skip := model.Event{
		EventType: model.EventSongSkip,
		UserID:    "u1",
		Timestamp: now,
		Data: map[string]any{
			"songId":                 "s1",
			"currentTime":            100000,
			"duration":               200000,
			"completion":             50.0,
			model.DataListenDuration: 100000,
		},
	}
	seed(t, db, songPlay("u1", "happy", "english", "match", now), skip)

	st, err := NewStats(db).UserStats(context.Background(), "u1", ParseTimeframe("7d"))
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if st.SkippedSongs != 1 {
		t.Errorf("SkippedSongs = %d, want 1", st.SkippedSongs)
	}
	if got := st.SkipRate.String(); got != "100.0" {
		t.Errorf("SkipRate = %q, want 100.0", got)
	}
	if got := st.CompletionRate.String(); got != "0.0" {
		t.Errorf("CompletionRate = %q, want 0.0", got)
	}
	if st.TotalListeningTime != 100000 {
		t.Errorf("TotalListeningTime = %d, want 100000", st.TotalListeningTime)
	}

	b, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), `"skipRate":"100.0"`) {
		t.Errorf("skipRate not rendered as one-decimal string: %s", b)
	}
}

func TestUserStatsNoPlays(t *testing.T) {
	db := testutil.TestDB(t)
	seed(t, db, model.Event{EventType: model.EventSongSkip, UserID: "u1", Timestamp: time.Now()})

	st, err := NewStats(db).UserStats(context.Background(), "u1", ParseTimeframe("7d"))
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if st.SongPlays != 0 {
		t.Fatalf("SongPlays = %d, want 0", st.SongPlays)
	}
	b, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"skipRate":0`, `"completionRate":0`, `"topMoods":[]`, `"hourlyPattern":[]`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("missing %s in %s", want, b)
		}
	}
}

func TestUserStatsUnknownUser(t *testing.T) {
	st, err := NewStats(testutil.TestDB(t)).UserStats(context.Background(), "nobody", ParseTimeframe("7d"))
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if st.SongPlays != 0 || st.TotalListeningTime != 0 || st.SkipRate.Value() != 0 {
		t.Errorf("unexpected stats for unknown user: %+v", st)
	}
}

func TestTopMoodsDeterministic(t *testing.T) {
	db := testutil.TestDB(t)
	now := time.Now()
	var events []model.Event
	for _, mood := range []string{"sad", "happy", "calm", "sad", "happy", "angry", "chill", "focus", "party"} {
		events = append(events, songPlay("u1", mood, "english", "match", now))
	}
	seed(t, db, events...)

	s := NewStats(db)
	first, err := s.UserStats(context.Background(), "u1", ParseTimeframe("7d"))
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	second, err := s.UserStats(context.Background(), "u1", ParseTimeframe("7d"))
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if !reflect.DeepEqual(first.TopMoods, second.TopMoods) {
		t.Errorf("top moods differ between runs: %+v vs %+v", first.TopMoods, second.TopMoods)
	}

	want := []MoodCount{
		{Mood: "happy", Count: 2},
		{Mood: "sad", Count: 2},
		{Mood: "angry", Count: 1},
		{Mood: "calm", Count: 1},
		{Mood: "chill", Count: 1},
	}
	if !reflect.DeepEqual(first.TopMoods, want) {
		t.Errorf("TopMoods = %+v, want %+v", first.TopMoods, want)
	}
}

func TestUserStatsTimeframe(t *testing.T) {
	db := testutil.TestDB(t)
	now := time.Now()
	seed(t, db,
		songPlay("u1", "happy", "english", "match", now.Add(-time.Hour)),
		songPlay("u1", "sad", "english", "match", now.AddDate(0, 0, -10)),
		songPlay("u1", "calm", "english", "match", now.AddDate(0, 0, -200)),
	)

	tests := []struct {
		timeframe string
		want      int64
	}{
		{"1d", 1},
		{"7d", 1},
		{"30d", 2},
		{"90d", 2},
		{"all", 3},
		{"", 3},
	}

	s := NewStats(db)
	for _, tt := range tests {
		t.Run(tt.timeframe, func(t *testing.T) {
			st, err := s.UserStats(context.Background(), "u1", ParseTimeframe(tt.timeframe))
			if err != nil {
				t.Fatalf("UserStats: %v", err)
			}
			if st.SongPlays != tt.want {
				t.Errorf("SongPlays = %d, want %d", st.SongPlays, tt.want)
			}
		})
	}
}

func TestHourlyPattern(t *testing.T) {
	db := testutil.TestDB(t)
	ts := time.Now().UTC().Add(-2 * time.Hour)
	seed(t, db,
		songPlay("u1", "happy", "english", "match", ts),
		songPlay("u1", "sad", "english", "match", ts),
	)

	st, err := NewStats(db).UserStats(context.Background(), "u1", ParseTimeframe("1d"))
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	want := []HourCount{{Hour: fmt.Sprintf("%02d", ts.Hour()), Count: 2}}
	if !reflect.DeepEqual(st.HourlyPattern, want) {
		t.Errorf("HourlyPattern = %+v, want %+v", st.HourlyPattern, want)
	}
}

func TestMoodTrendsGroupsByDate(t *testing.T) {
	db := testutil.TestDB(t)
	day := time.Now().UTC().AddDate(0, 0, -2)
	day = time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC)
	earlier := day.AddDate(0, 0, -1)
	seed(t, db,
		songPlay("u1", "sad", "english", "match", day),
		songPlay("u1", "happy", "english", "match", day.Add(time.Hour)),
		songPlay("u1", "calm", "english", "match", earlier),
		songPlay("u2", "angry", "english", "match", day),
	)

	trends, err := NewStats(db).MoodTrends(context.Background(), "u1", ParseTimeframe("7d"))
	if err != nil {
		t.Fatalf("MoodTrends: %v", err)
	}

	date := day.Format("2006-01-02")
	want := []MoodCount{{Mood: "happy", Count: 1}, {Mood: "sad", Count: 1}}
	if !reflect.DeepEqual(trends[date], want) {
		t.Errorf("trends[%s] = %+v, want %+v", date, trends[date], want)
	}
	if got := trends[earlier.Format("2006-01-02")]; len(got) != 1 || got[0].Mood != "calm" {
		t.Errorf("trends for earlier day = %+v, want calm", got)
	}
	if len(trends) != 2 {
		t.Errorf("len(trends) = %d, want 2", len(trends))
	}
}

func TestGlobalStats(t *testing.T) {
	db := testutil.TestDB(t)
	now := time.Now()
	seed(t, db,
		songPlay("u1", "happy", "english", "match", now),
		songPlay("u2", "happy", "spanish", "match", now),
		songPlay("u2", "sad", "spanish", "match", now),
		model.Event{EventType: model.EventSongSkip, UserID: "u1", Timestamp: now},
	)

	gs, err := NewStats(db).GlobalStats(context.Background(), ParseTimeframe(DefaultGlobalTimeframe))
	if err != nil {
		t.Fatalf("GlobalStats: %v", err)
	}

	wantTypes := []EventTypeStat{
		{EventType: model.EventSongPlay, Count: 3, UniqueUsers: 2},
		{EventType: model.EventSongSkip, Count: 1, UniqueUsers: 1},
	}
	if !reflect.DeepEqual(gs.EventTypes, wantTypes) {
		t.Errorf("EventTypes = %+v, want %+v", gs.EventTypes, wantTypes)
	}
	wantMoods := []MoodCount{{Mood: "happy", Count: 2}, {Mood: "sad", Count: 1}}
	if !reflect.DeepEqual(gs.PopularMoods, wantMoods) {
		t.Errorf("PopularMoods = %+v, want %+v", gs.PopularMoods, wantMoods)
	}
	wantLangs := []LanguageCount{{Language: "spanish", Count: 2}, {Language: "english", Count: 1}}
	if !reflect.DeepEqual(gs.PopularLanguages, wantLangs) {
		t.Errorf("PopularLanguages = %+v, want %+v", gs.PopularLanguages, wantLangs)
	}
	if gs.Timeframe != "30d" {
		t.Errorf("Timeframe = %q, want 30d", gs.Timeframe)
	}
}

func TestPreferences(t *testing.T) {
	db := testutil.TestDB(t)
	now := time.Now()
	seed(t, db,
		songPlay("u1", "happy", "english", "match", now),
		songPlay("u1", "happy", "english", "match", now),
		songPlay("u1", "sad", "english", "change", now),
	)

	prefs, err := NewStats(db).Preferences(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Preferences: %v", err)
	}
	if len(prefs) != 2 || prefs[0].Mood != "happy" || prefs[0].PlayCount != 2 {
		t.Errorf("Preferences = %+v", prefs)
	}

	empty, err := NewStats(db).Preferences(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Preferences: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Preferences(nobody) = %#v, want empty slice", empty)
	}
}

func TestUserStatsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("database is locked"))

	_, err = NewStats(db).UserStats(context.Background(), "u1", ParseTimeframe("7d"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "counting events")
	require.NoError(t, mock.ExpectationsWereMet())
}
