// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracker

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/olegiv/moodify-go/internal/model"
)

// Song describes the track being played.
type Song struct {
	ID           string
	Name         string
	Artist       string
	Album        string
	DurationMs   int64
	Popularity   int
	Explicit     bool
	PlaylistID   string
	PlaylistName string
	Mood         string
	Goal         string
	Language     string
}

// Playlist describes an opened playlist.
type Playlist struct {
	ID         string
	Name       string
	URL        string
	Mood       string
	Goal       string
	Language   string
	TrackCount int
}

// Player turns playback transitions into events. Listening time is measured
// from the last play or resume.
type Player struct {
	emitter *Emitter

	mu        sync.Mutex
	current   *Song
	startedAt time.Time
}

// NewPlayer creates a Player emitting through e.
func NewPlayer(e *Emitter) *Player {
	return &Player{emitter: e}
}

// Current returns the song being played, if any.
func (p *Player) Current() (Song, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Song{}, false
	}
	return *p.current, true
}

// Play starts s and emits song_play.
func (p *Player) Play(ctx context.Context, s Song) Result {
	p.mu.Lock()
	song := s
	p.current = &song
	p.startedAt = p.emitter.now()
	p.mu.Unlock()

	return p.emitter.Emit(ctx, model.EventSongPlay, map[string]any{
		"songId":               s.ID,
		"title":                s.Name,
		"artist":               orDefault(s.Artist, "Unknown Artist"),
		"album":                orDefault(s.Album, "Unknown Album"),
		"duration":             s.DurationMs,
		"popularity":           s.Popularity,
		"explicit":             s.Explicit,
		model.DataPlaylistID:   s.PlaylistID,
		model.DataPlaylistName: s.PlaylistName,
		model.DataMood:         s.Mood,
		model.DataGoal:         s.Goal,
		model.DataLanguage:     s.Language,
		"source":               "playlist_recommendation",
	})
}

// Pause emits song_pause and adds the listened span to the session total.
// It is a no-op when nothing is playing.
func (p *Player) Pause(ctx context.Context, currentTime time.Duration) (Result, bool) {
	song, listened, ok := p.listened(false)
	if !ok {
		return Result{}, false
	}
	p.emitter.AddListeningTime(listened)

	return p.emitter.Emit(ctx, model.EventSongPause, map[string]any{
		"songId":                 song.ID,
		"title":                  song.Name,
		model.DataListenDuration: listened.Milliseconds(),
		"currentTime":            currentTime.Milliseconds(),
		"pauseReason":            "user_action",
	}), true
}

// Resume restarts the listening clock and emits song_resume.
func (p *Player) Resume(ctx context.Context, currentTime time.Duration) (Result, bool) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return Result{}, false
	}
	song := *p.current
	p.startedAt = p.emitter.now()
	p.mu.Unlock()

	return p.emitter.Emit(ctx, model.EventSongResume, map[string]any{
		"songId":      song.ID,
		"title":       song.Name,
		"currentTime": currentTime.Milliseconds(),
		"resumeFrom":  currentTime.Milliseconds(),
	}), true
}

// Skip emits song_skip with the percentage of the song reached.
func (p *Player) Skip(ctx context.Context, currentTime time.Duration, reason string) (Result, bool) {
	song, listened, ok := p.listened(false)
	if !ok {
		return Result{}, false
	}

	return p.emitter.Emit(ctx, model.EventSongSkip, map[string]any{
		"songId":                 song.ID,
		"title":                  song.Name,
		model.DataListenDuration: listened.Milliseconds(),
		"currentTime":            currentTime.Milliseconds(),
		"completion":             Completion(currentTime, song.DurationMs),
		"skipReason":             orDefault(reason, "user_skip"),
	}), true
}

// Complete emits song_complete, adds the listened span to the session total
// and clears the current song.
func (p *Player) Complete(ctx context.Context) (Result, bool) {
	song, listened, ok := p.listened(true)
	if !ok {
		return Result{}, false
	}
	p.emitter.AddListeningTime(listened)

	return p.emitter.Emit(ctx, model.EventSongComplete, map[string]any{
		"songId":                 song.ID,
		"title":                  song.Name,
		model.DataListenDuration: listened.Milliseconds(),
		"completion":             100,
		"fullListen":             true,
	}), true
}

// Like emits song_like for the current song.
func (p *Player) Like(ctx context.Context) (Result, bool) {
	song, ok := p.Current()
	if !ok {
		return Result{}, false
	}
	return p.emitter.Emit(ctx, model.EventSongLike, map[string]any{
		"songId":       song.ID,
		"title":        song.Name,
		"artist":       song.Artist,
		model.DataMood: song.Mood,
	}), true
}

// OpenPlaylist emits playlist_open.
func (p *Player) OpenPlaylist(ctx context.Context, pl Playlist) Result {
	return p.emitter.Emit(ctx, model.EventPlaylistOpen, map[string]any{
		model.DataPlaylistID:   pl.ID,
		model.DataPlaylistName: pl.Name,
		"playlistUrl":          pl.URL,
		model.DataMood:         pl.Mood,
		model.DataGoal:         pl.Goal,
		model.DataLanguage:     pl.Language,
		"source":               "mood_recommendation",
		"trackCount":           pl.TrackCount,
	})
}

// Search emits search_query.
func (p *Player) Search(ctx context.Context, query string, resultCount int) Result {
	return p.emitter.Emit(ctx, model.EventSearchQuery, map[string]any{
		"query":       query,
		"resultCount": resultCount,
		"hasResults":  resultCount > 0,
		"searchType":  "mood_based",
	})
}

// Interaction emits user_interaction. meta keys are merged into the payload.
func (p *Player) Interaction(ctx context.Context, action, target string, meta map[string]any) Result {
	data := make(map[string]any, len(meta)+2)
	maps.Copy(data, meta)
	data["action"] = action
	data["target"] = target
	return p.emitter.Emit(ctx, model.EventUserInteraction, data)
}

// Error emits an error event. Severity defaults to "medium" unless the
// context carries one.
func (p *Player) Error(ctx context.Context, kind, message string, errCtx map[string]any) Result {
	if errCtx == nil {
		errCtx = map[string]any{}
	}
	severity, _ := errCtx["severity"].(string)
	return p.emitter.Emit(ctx, model.EventError, map[string]any{
		"errorType":    kind,
		"errorMessage": message,
		"context":      errCtx,
		"severity":     orDefault(severity, "medium"),
	})
}

// Completion returns how far into a song currentTime is, as a percentage.
// Unknown durations report 0.
func Completion(currentTime time.Duration, durationMs int64) float64 {
	if durationMs <= 0 {
		return 0
	}
	return float64(currentTime.Milliseconds()) / float64(durationMs) * 100
}

func (p *Player) listened(clear bool) (Song, time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.startedAt.IsZero() {
		return Song{}, 0, false
	}
	song := *p.current
	listened := p.emitter.now().Sub(p.startedAt)
	if clear {
		p.current = nil
		p.startedAt = time.Time{}
	}
	return song, listened, true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
