// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/moodify-go/internal/metrics"
	"github.com/olegiv/moodify-go/internal/model"
	"github.com/olegiv/moodify-go/internal/store"
)

// SideEffect runs after a single event row has been written.
type SideEffect func(ctx context.Context, q *store.Queries, e model.Event, now time.Time) error

// Ingestor persists incoming events.
type Ingestor struct {
	db      *sql.DB
	queries *store.Queries
	effects map[string]SideEffect
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewIngestor creates an Ingestor with the default side effects registered.
// m may be nil.
func NewIngestor(db *sql.DB, logger *slog.Logger, m *metrics.Metrics) *Ingestor {
	i := &Ingestor{
		db:      db,
		queries: store.New(db),
		effects: make(map[string]SideEffect),
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
	i.Register(model.EventSongPlay, recordPreference)
	i.Register(model.EventPlaylistOpen, recordPlaylistEngagement)
	return i
}

// Register sets the side effect for an event type, replacing any previous one.
// Register is not safe to call concurrently with TrackSingle.
func (i *Ingestor) Register(eventType string, fn SideEffect) {
	i.effects[eventType] = fn
}

// TrackSingle inserts one event and runs its side effect, if any.
// Only the insert can fail the call; side-effect errors are logged.
func (i *Ingestor) TrackSingle(ctx context.Context, e model.Event) error {
	now := i.now()

	if _, err := i.queries.InsertEvent(ctx, insertParams(e, now)); err != nil {
		i.countFailure(metrics.RouteSingle)
		return fmt.Errorf("inserting event: %w", err)
	}
	i.countIngested(metrics.RouteSingle, e.EventType)

	if fn, ok := i.effects[e.EventType]; ok {
		if err := fn(ctx, i.queries, e, now); err != nil {
			i.logger.Warn("analytics side effect failed",
				"event_type", e.EventType, "user_id", e.UserID, "error", err)
			if i.metrics != nil {
				i.metrics.SideEffectFailures.WithLabelValues(metricsEventType(e.EventType)).Inc()
			}
		}
	}

	i.logger.Debug("analytics event tracked", "event_type", e.EventType, "user_id", e.UserID)
	return nil
}

// TrackBatch inserts all events in one transaction and returns how many were
// written. Side effects are not run for batched events.
func (i *Ingestor) TrackBatch(ctx context.Context, events []model.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	now := i.now()

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		i.countFailure(metrics.RouteBatch)
		return 0, fmt.Errorf("beginning batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := i.queries.WithTx(tx)
	for n, e := range events {
		if _, err := q.InsertEvent(ctx, insertParams(e, now)); err != nil {
			i.countFailure(metrics.RouteBatch)
			return 0, fmt.Errorf("inserting event %d of %d: %w", n+1, len(events), err)
		}
	}

	if err := tx.Commit(); err != nil {
		i.countFailure(metrics.RouteBatch)
		return 0, fmt.Errorf("committing batch: %w", err)
	}

	if i.metrics != nil {
		i.metrics.BatchSize.Observe(float64(len(events)))
	}
	for _, e := range events {
		i.countIngested(metrics.RouteBatch, e.EventType)
	}
	return len(events), nil
}

func (i *Ingestor) countIngested(route, eventType string) {
	if i.metrics != nil {
		i.metrics.EventsIngested.WithLabelValues(route, metricsEventType(eventType)).Inc()
	}
}

// otherEventType labels client event types outside the known vocabulary.
const otherEventType = "other"

// metricsEventType bounds the event_type label to the known vocabulary.
func metricsEventType(eventType string) string {
	if model.IsKnown(eventType) {
		return eventType
	}
	return otherEventType
}

func (i *Ingestor) countFailure(route string) {
	if i.metrics != nil {
		i.metrics.IngestFailures.WithLabelValues(route).Inc()
	}
}

// insertParams maps an event to a row. Missing identity fields are stored as
// NULL and a missing timestamp is replaced with the receive time.
func insertParams(e model.Event, now time.Time) store.InsertEventParams {
	data := []byte("{}")
	if e.Data != nil {
		if b, err := json.Marshal(e.Data); err == nil {
			data = b
		}
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = now
	}

	return store.InsertEventParams{
		UserID:    nullString(e.UserID),
		SessionID: nullString(e.SessionID),
		EventType: nullString(e.EventType),
		EventData: string(data),
		Timestamp: ts,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func sideEffectUser(e model.Event) string {
	if e.UserID == "" {
		return model.AnonymousUserID
	}
	return e.UserID
}

func recordPreference(ctx context.Context, q *store.Queries, e model.Event, now time.Time) error {
	return q.UpsertUserPreference(ctx, store.UpsertUserPreferenceParams{
		UserID:     sideEffectUser(e),
		Mood:       e.String(model.DataMood),
		Language:   e.String(model.DataLanguage),
		Goal:       e.String(model.DataGoal),
		LastPlayed: now,
	})
}

func recordPlaylistEngagement(ctx context.Context, q *store.Queries, e model.Event, now time.Time) error {
	return q.InsertPlaylistEngagement(ctx, store.InsertPlaylistEngagementParams{
		UserID:       sideEffectUser(e),
		PlaylistID:   e.String(model.DataPlaylistID),
		PlaylistName: e.String(model.DataPlaylistName),
		Mood:         e.String(model.DataMood),
		Goal:         e.String(model.DataGoal),
		Language:     e.String(model.DataLanguage),
		OpenedAt:     now,
	})
}
