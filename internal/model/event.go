// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the analytics event shapes shared by the tracker and the ingestion server.
package model

import (
	"encoding/json"
	"time"
)

// AnonymousUserID is stored when an event arrives without a user identity.
const AnonymousUserID = "anonymous"

// MaxRetries is the number of redelivery attempts a buffered event gets.
const MaxRetries = 3

// Event types produced by the client. The vocabulary is open; any non-empty
// string is a valid event type.
const (
	EventSongPlay        = "song_play"
	EventSongPause       = "song_pause"
	EventSongResume      = "song_resume"
	EventSongSkip        = "song_skip"
	EventSongComplete    = "song_complete"
	EventSongLike        = "song_like"
	EventSongShare       = "song_share"
	EventPlaylistOpen    = "playlist_open"
	EventSearchQuery     = "search_query"
	EventUserInteraction = "user_interaction"
	EventError           = "error"
	EventVolumeChange    = "volume_change"
	EventSeek            = "seek"
	EventRepeatMode      = "repeat_mode"
	EventShuffleMode     = "shuffle_mode"
	EventSessionEnd      = "session_end"
)

// Keys of fields the tracker adds to every event payload.
const (
	DataDeviceType      = "deviceType"
	DataNetworkType     = "networkType"
	DataURL             = "url"
	DataPlatform        = "platform"
	DataSessionDuration = "sessionDuration"
	DataUserAgent       = "userAgent"
)

// Payload keys read by the server.
const (
	DataMood           = "mood"
	DataGoal           = "goal"
	DataLanguage       = "language"
	DataPlaylistID     = "playlistId"
	DataPlaylistName   = "playlistName"
	DataListenDuration = "listenDuration"
)

var knownEvents = map[string]bool{
	EventSongPlay:        true,
	EventSongPause:       true,
	EventSongResume:      true,
	EventSongSkip:        true,
	EventSongComplete:    true,
	EventSongLike:        true,
	EventSongShare:       true,
	EventPlaylistOpen:    true,
	EventSearchQuery:     true,
	EventUserInteraction: true,
	EventError:           true,
	EventVolumeChange:    true,
	EventSeek:            true,
	EventRepeatMode:      true,
	EventShuffleMode:     true,
	EventSessionEnd:      true,
}

// IsKnown reports whether eventType is one the client is known to emit.
func IsKnown(eventType string) bool {
	return knownEvents[eventType]
}

var criticalEvents = map[string]bool{
	EventSongPlay:     true,
	EventSongComplete: true,
	EventPlaylistOpen: true,
	EventSongLike:     true,
	EventSearchQuery:  true,
}

// IsCritical reports whether events of this type are always written to the
// local backup store.
func IsCritical(eventType string) bool {
	return criticalEvents[eventType]
}

// Event is a single recorded interaction.
type Event struct {
	EventType string         `json:"eventType"`
	UserID    string         `json:"userId"`
	SessionID string         `json:"sessionId"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Normalize fills the user identity sentinel and guarantees a non-nil payload.
func (e *Event) Normalize() {
	if e.UserID == "" {
		e.UserID = AnonymousUserID
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
}

// String returns a payload field as a string, or "" when absent or not a string.
func (e Event) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// wireEvent keeps the timestamp as text so the ISO-8601 form is exact on the wire.
type wireEvent struct {
	EventType string         `json:"eventType"`
	UserID    string         `json:"userId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Data      map[string]any `json:"data"`
}

// TimestampLayout is the ISO-8601 layout used on the wire (UTC, millisecond precision).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		EventType: e.EventType,
		UserID:    e.UserID,
		SessionID: e.SessionID,
		Data:      e.Data,
	}
	if !e.Timestamp.IsZero() {
		w.Timestamp = e.Timestamp.UTC().Format(TimestampLayout)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. An unparseable timestamp is left zero
// so the receiver can substitute its own clock instead of rejecting the event.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	e.EventType = w.EventType
	e.UserID = w.UserID
	e.SessionID = w.SessionID
	e.Data = w.Data
	e.Timestamp = time.Time{}
	if w.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, w.Timestamp); err == nil {
			e.Timestamp = ts
		}
	}
	return nil
}

// BufferedEvent is an undelivered event waiting in the retry queue.
type BufferedEvent struct {
	ID          string     `json:"id"`
	Event       Event      `json:"event"`
	RetryCount  int        `json:"retryCount"`
	LastRetryAt *time.Time `json:"lastRetryAt,omitempty"`
	Error       string     `json:"error,omitempty"`
	QueuedAt    time.Time  `json:"queuedAt"`
}

// Retryable reports whether the entry is still under the retry ceiling.
func (b BufferedEvent) Retryable() bool {
	return b.RetryCount < MaxRetries
}
