// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/olegiv/moodify-go/internal/model"
	"github.com/olegiv/moodify-go/internal/testutil"
)

var errOffline = errors.New("connection refused")

// fakeTransport records deliveries and fails while fail is set.
type fakeTransport struct {
	mu      sync.Mutex
	fail    error
	sent    []model.Event
	batches [][]model.Event
	calls   int
}

func (f *fakeTransport) Send(_ context.Context, e model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, e)
	return nil
}

func (f *fakeTransport) SendBatch(_ context.Context, events []model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	f.batches = append(f.batches, append([]model.Event(nil), events...))
	return nil
}

func (f *fakeTransport) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memKV is an in-process KV for tests that need to inject failures.
type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Close() error { return nil }

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestKV(t *testing.T) *BadgerKV {
	t.Helper()
	kv, err := OpenKV("")
	if err != nil {
		t.Fatalf("OpenKV: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func newTestEmitter(t *testing.T, tr Transport, kv KV, clock *fakeClock) *Emitter {
	t.Helper()
	e, err := New(Options{
		Transport:   tr,
		KV:          kv,
		Logger:      testutil.TestLoggerSilent(),
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		PageURL:     func() string { return "http://localhost:5173/player" },
		NetworkType: func() string { return "4g" },
		Clock:       clock.Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func testEvent(eventType string, n int) model.Event {
	return model.Event{
		EventType: eventType,
		UserID:    "u1",
		SessionID: "session_test",
		Timestamp: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Data:      map[string]any{"n": n},
	}
}
