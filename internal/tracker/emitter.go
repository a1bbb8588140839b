// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/olegiv/moodify-go/internal/model"
)

// Options configures an Emitter. Transport and KV are required.
type Options struct {
	Transport Transport
	KV        KV
	// CloseKV makes Shutdown close the KV.
	CloseKV bool
	Logger  *slog.Logger

	UserAgent   string
	PageURL     func() string
	NetworkType func() string
	Clock       func() time.Time

	// Retry scheduling. A zero RetryInterval disables background passes;
	// RetryOnce still works.
	RetryInterval time.Duration
	RetryBackoff  time.Duration

	// Connectivity probing. Probe is polled every ProbeInterval when both are set.
	Probe         func(ctx context.Context) error
	ProbeInterval time.Duration
}

// Result reports what Emit did. Emit never fails; Err carries the swallowed
// delivery or buffer error for diagnostics.
type Result struct {
	Event     model.Event
	Delivered bool
	Queued    bool
	BackedUp  bool
	Err       error
}

// Emitter builds, enriches and delivers events for one session.
type Emitter struct {
	transport Transport
	buffer    *Buffer
	kv        KV
	closeKV   bool
	logger    *slog.Logger
	client    Client
	pageURL   func() string
	network   func() string
	now       func() time.Time
	scheduler *RetryScheduler
	schedule  bool

	userID    string
	sessionID string
	startedAt time.Time

	online    atomic.Bool
	listening atomic.Int64 // milliseconds
	started   atomic.Bool

	initOnce     sync.Once
	shutdownOnce sync.Once
	flushMu      sync.Mutex
}

// New creates an Emitter. The user id is loaded from, or created in, the KV.
func New(opts Options) (*Emitter, error) {
	if opts.Transport == nil || opts.KV == nil {
		return nil, errors.New("tracker: transport and KV are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	userID, err := LoadOrCreateUserID(opts.KV)
	if err != nil {
		opts.Logger.Warn("user identity unavailable, using anonymous", "error", err)
		userID = model.AnonymousUserID
	}

	buffer := NewBuffer(opts.KV, opts.Logger)
	buffer.now = opts.Clock
	now := opts.Clock()

	e := &Emitter{
		transport: opts.Transport,
		buffer:    buffer,
		kv:        opts.KV,
		closeKV:   opts.CloseKV,
		logger:    opts.Logger,
		client:    ParseClient(opts.UserAgent),
		pageURL:   opts.PageURL,
		network:   opts.NetworkType,
		now:       opts.Clock,
		userID:    userID,
		sessionID: newSessionID(buffer.ids, now),
		startedAt: now,
	}
	e.online.Store(true)

	e.schedule = opts.RetryInterval > 0
	e.scheduler = NewRetryScheduler(buffer, opts.Transport, opts.Logger, RetryOptions{
		Interval:      opts.RetryInterval,
		Backoff:       opts.RetryBackoff,
		Probe:         opts.Probe,
		ProbeInterval: opts.ProbeInterval,
		OnProbe:       e.SetOnline,
		Clock:         opts.Clock,
	})

	return e, nil
}

// Initialize starts background retry and probing. It is safe to call more than once.
func (e *Emitter) Initialize(_ context.Context) error {
	var err error
	e.initOnce.Do(func() {
		if e.schedule {
			if err = e.scheduler.Start(); err != nil {
				return
			}
			e.started.Store(true)
		}
		e.logger.Info("tracker initialized", "user_id", e.userID, "session_id", e.sessionID)
	})
	return err
}

// RetryOnce runs a single retry pass over the queue.
func (e *Emitter) RetryOnce(ctx context.Context) (PassResult, error) {
	return e.scheduler.RunOnce(ctx)
}

// UserID returns the persisted user identity.
func (e *Emitter) UserID() string { return e.userID }

// SessionID returns this emitter's session id.
func (e *Emitter) SessionID() string { return e.sessionID }

// Buffer returns the local buffer for diagnostics.
func (e *Emitter) Buffer() *Buffer { return e.buffer }

// Online reports the current connectivity state.
func (e *Emitter) Online() bool { return e.online.Load() }

// AddListeningTime accumulates listening time reported in session_end.
func (e *Emitter) AddListeningTime(d time.Duration) {
	e.listening.Add(d.Milliseconds())
}

// ListeningTime returns the accumulated listening time.
func (e *Emitter) ListeningTime() time.Duration {
	return time.Duration(e.listening.Load()) * time.Millisecond
}

// Emit records an event. Offline events go straight to the retry queue;
// online events get one delivery attempt and are queued on failure.
// Critical event types are also appended to the backup store.
func (e *Emitter) Emit(ctx context.Context, eventType string, data map[string]any) Result {
	ev := e.build(eventType, data)
	res := Result{Event: ev}

	e.logger.Info("analytics event", "event_type", ev.EventType, "user_id", ev.UserID,
		"session_id", ev.SessionID, "data", ev.Data)

	if e.online.Load() {
		if err := e.transport.Send(ctx, ev); err != nil {
			e.logger.Warn("failed to send analytics event, queuing for later", "event_type", eventType, "error", err)
			res.Err = err
			res.Queued = e.enqueue(ev, err, &res)
		} else {
			res.Delivered = true
		}
	} else {
		res.Queued = e.enqueue(ev, nil, &res)
	}

	if model.IsCritical(eventType) {
		if err := e.buffer.AppendBackup(ev); err != nil {
			e.logger.Warn("failed to store event locally", "event_type", eventType, "error", err)
			res.Err = errors.Join(res.Err, err)
		} else {
			res.BackedUp = true
		}
	}

	return res
}

func (e *Emitter) enqueue(ev model.Event, cause error, res *Result) bool {
	if _, err := e.buffer.Enqueue(ev, cause); err != nil {
		e.logger.Warn("failed to queue analytics event", "event_type", ev.EventType, "error", err)
		res.Err = errors.Join(res.Err, err)
		return false
	}
	return true
}

func (e *Emitter) build(eventType string, data map[string]any) model.Event {
	now := e.now()

	payload := make(map[string]any, len(data)+6)
	maps.Copy(payload, data)
	payload[model.DataUserAgent] = e.client.UserAgent
	payload[model.DataPlatform] = e.client.Platform
	payload[model.DataDeviceType] = e.client.DeviceType
	payload[model.DataNetworkType] = "unknown"
	if e.network != nil {
		if nt := e.network(); nt != "" {
			payload[model.DataNetworkType] = nt
		}
	}
	if e.pageURL != nil {
		payload[model.DataURL] = e.pageURL()
	}
	payload[model.DataSessionDuration] = now.Sub(e.startedAt).Milliseconds()

	ev := model.Event{
		EventType: eventType,
		UserID:    e.userID,
		SessionID: e.sessionID,
		Timestamp: now,
		Data:      payload,
	}
	ev.Normalize()
	return ev
}

// SetOnline updates connectivity. Going from offline to online flushes the queue.
func (e *Emitter) SetOnline(ctx context.Context, online bool) {
	was := e.online.Swap(online)
	if online && !was {
		e.logger.Info("connectivity restored, flushing queue")
		if err := e.FlushQueue(ctx); err != nil {
			e.logger.Warn("failed to flush event queue", "error", err)
		}
	} else if !online && was {
		e.logger.Info("connectivity lost, buffering events")
	}
}

// FlushQueue delivers every queued event in one batch and removes exactly
// those entries on success. Entries queued during the flush are kept.
func (e *Emitter) FlushQueue(ctx context.Context) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	queue, err := e.buffer.Queue()
	if err != nil {
		return err
	}
	if len(queue) == 0 {
		return nil
	}

	events := make([]model.Event, len(queue))
	ids := make([]string, len(queue))
	for i, entry := range queue {
		events[i] = entry.Event
		ids[i] = entry.ID
	}

	if err := e.transport.SendBatch(ctx, events); err != nil {
		return fmt.Errorf("flushing %d events: %w", len(events), err)
	}
	if err := e.buffer.Remove(ids...); err != nil {
		return fmt.Errorf("removing flushed events: %w", err)
	}

	e.logger.Info("flushed event queue", "events", len(events))
	return nil
}

// Shutdown stops background work, flushes the queue, emits session_end and
// releases owned resources. Only the first call has any effect.
func (e *Emitter) Shutdown(ctx context.Context) error {
	var err error
	e.shutdownOnce.Do(func() {
		if e.started.Load() {
			e.scheduler.Stop()
		}

		if e.online.Load() {
			if ferr := e.FlushQueue(ctx); ferr != nil {
				e.logger.Warn("failed to flush event queue on shutdown", "error", ferr)
			}
		}

		res := e.Emit(ctx, model.EventSessionEnd, map[string]any{
			model.DataSessionDuration: e.now().Sub(e.startedAt).Milliseconds(),
			"totalListeningTime":      e.ListeningTime().Milliseconds(),
		})
		if res.Err != nil {
			e.logger.Warn("session_end not delivered", "error", res.Err)
		}

		if e.closeKV {
			err = e.kv.Close()
		}
		e.logger.Info("tracker shut down", "session_id", e.sessionID)
	})
	return err
}
