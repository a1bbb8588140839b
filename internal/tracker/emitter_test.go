// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/olegiv/moodify-go/internal/logging"
	"github.com/olegiv/moodify-go/internal/model"
)

func TestNewRequiresTransportAndKV(t *testing.T) {
	if _, err := New(Options{KV: newMemKV()}); err == nil {
		t.Error("New without transport should fail")
	}
	if _, err := New(Options{Transport: &fakeTransport{}}); err == nil {
		t.Error("New without KV should fail")
	}
}

func TestNewFallsBackToAnonymous(t *testing.T) {
	kv := newMemKV()
	kv.setErr = errors.New("read-only")

	e := newTestEmitter(t, &fakeTransport{}, kv, newFakeClock())
	if e.UserID() != model.AnonymousUserID {
		t.Errorf("UserID() = %q, want %q", e.UserID(), model.AnonymousUserID)
	}
}

func TestEmitTracesAtDefaultLevel(t *testing.T) {
	var buf bytes.Buffer
	e, err := New(Options{
		Transport: &fakeTransport{},
		KV:        newTestKV(t),
		Logger:    logging.New(&buf, "info", "text"),
		Clock:     newFakeClock().Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e.Emit(context.Background(), model.EventSongPlay, map[string]any{"songId": "s1"})

	out := buf.String()
	if !strings.Contains(out, "analytics event") || !strings.Contains(out, "event_type=song_play") {
		t.Errorf("trace line missing from log output: %q", out)
	}
	if !strings.Contains(out, "user_id="+e.UserID()) {
		t.Errorf("trace line missing user id: %q", out)
	}
}

func TestEmitEnrichesAndDelivers(t *testing.T) {
	tr := &fakeTransport{}
	clock := newFakeClock()
	e := newTestEmitter(t, tr, newTestKV(t), clock)

	clock.Advance(1500 * time.Millisecond)
	res := e.Emit(context.Background(), model.EventSongPause, map[string]any{"songId": "s1"})

	if !res.Delivered || res.Queued || res.BackedUp || res.Err != nil {
		t.Fatalf("Result = %+v, want delivered only", res)
	}
	if len(tr.sent) != 1 {
		t.Fatalf("sent %d events, want 1", len(tr.sent))
	}

	ev := tr.sent[0]
	if ev.UserID != e.UserID() || ev.SessionID != e.SessionID() {
		t.Errorf("identity = %q/%q, want %q/%q", ev.UserID, ev.SessionID, e.UserID(), e.SessionID())
	}
	if !ev.Timestamp.Equal(clock.Now()) {
		t.Errorf("Timestamp = %v, want %v", ev.Timestamp, clock.Now())
	}

	want := map[string]any{
		"songId":                  "s1",
		model.DataDeviceType:      "desktop",
		model.DataPlatform:        "Windows",
		model.DataNetworkType:     "4g",
		model.DataURL:             "http://localhost:5173/player",
		model.DataSessionDuration: int64(1500),
	}
	for k, v := range want {
		if ev.Data[k] != v {
			t.Errorf("Data[%q] = %v (%T), want %v (%T)", k, ev.Data[k], ev.Data[k], v, v)
		}
	}
	if ev.String(model.DataUserAgent) == "" {
		t.Error("userAgent should be set")
	}
}

func TestEmitNetworkTypeDefaultsToUnknown(t *testing.T) {
	tr := &fakeTransport{}
	e, err := New(Options{Transport: tr, KV: newMemKV(), Clock: newFakeClock().Now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res := e.Emit(context.Background(), model.EventSeek, nil)
	if got := res.Event.String(model.DataNetworkType); got != "unknown" {
		t.Errorf("networkType = %q, want unknown", got)
	}
}

func TestEmitDoesNotMutateCallerData(t *testing.T) {
	e := newTestEmitter(t, &fakeTransport{}, newMemKV(), newFakeClock())

	data := map[string]any{"mood": "happy"}
	e.Emit(context.Background(), model.EventSongPlay, data)
	if len(data) != 1 {
		t.Errorf("caller map was modified: %v", data)
	}
}

func TestEmitOfflineNeverCallsTransport(t *testing.T) {
	tr := &fakeTransport{}
	e := newTestEmitter(t, tr, newTestKV(t), newFakeClock())
	e.SetOnline(context.Background(), false)

	res := e.Emit(context.Background(), model.EventSongPlay, map[string]any{
		"mood":     "happy",
		"goal":     "match",
		"language": "english",
	})

	if tr.callCount() != 0 {
		t.Errorf("transport called %d times while offline", tr.callCount())
	}
	if res.Delivered || !res.Queued {
		t.Errorf("Result = %+v, want queued", res)
	}

	queue, err := e.Buffer().Queue()
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(queue) != 1 || queue[0].Event.EventType != model.EventSongPlay {
		t.Fatalf("queue = %+v, want the song_play event", queue)
	}
	if queue[0].RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", queue[0].RetryCount)
	}
}

func TestEmitDeliveryFailureQueues(t *testing.T) {
	tr := &fakeTransport{fail: errOffline}
	e := newTestEmitter(t, tr, newTestKV(t), newFakeClock())

	res := e.Emit(context.Background(), model.EventSongSkip, nil)
	if res.Delivered || !res.Queued {
		t.Errorf("Result = %+v, want queued", res)
	}
	if !errors.Is(res.Err, errOffline) {
		t.Errorf("Result.Err = %v, want %v", res.Err, errOffline)
	}

	queue, err := e.Buffer().Queue()
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(queue) != 1 || queue[0].Error != errOffline.Error() {
		t.Errorf("queue = %+v", queue)
	}
}

func TestEmitCriticalEventsBackedUp(t *testing.T) {
	e := newTestEmitter(t, &fakeTransport{}, newTestKV(t), newFakeClock())

	if res := e.Emit(context.Background(), model.EventSongLike, nil); !res.BackedUp {
		t.Errorf("song_like Result = %+v, want backed up", res)
	}
	if res := e.Emit(context.Background(), model.EventVolumeChange, nil); res.BackedUp {
		t.Errorf("volume_change Result = %+v, want not backed up", res)
	}

	backup, err := e.Buffer().Backup()
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if len(backup) != 1 || backup[0].EventType != model.EventSongLike {
		t.Errorf("backup = %+v, want only song_like", backup)
	}
}

func TestSetOnlineFlushesQueue(t *testing.T) {
	tr := &fakeTransport{}
	e := newTestEmitter(t, tr, newTestKV(t), newFakeClock())
	ctx := context.Background()

	e.SetOnline(ctx, false)
	e.Emit(ctx, model.EventSongPlay, nil)
	e.Emit(ctx, model.EventSongPause, nil)

	e.SetOnline(ctx, true)
	if !e.Online() {
		t.Fatal("Online() = false after SetOnline(true)")
	}
	if len(tr.batches) != 1 || len(tr.batches[0]) != 2 {
		t.Fatalf("batches = %d, want one batch of 2", len(tr.batches))
	}
	if tr.batches[0][0].EventType != model.EventSongPlay {
		t.Errorf("batch order: first = %q, want song_play", tr.batches[0][0].EventType)
	}

	queue, err := e.Buffer().Queue()
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(queue) != 0 {
		t.Errorf("queue has %d entries after flush, want 0", len(queue))
	}

	// Already online: no second flush.
	e.SetOnline(ctx, true)
	if len(tr.batches) != 1 {
		t.Errorf("batches = %d after redundant SetOnline, want 1", len(tr.batches))
	}
}

func TestFlushQueueFailureKeepsEntries(t *testing.T) {
	tr := &fakeTransport{fail: errOffline}
	e := newTestEmitter(t, tr, newTestKV(t), newFakeClock())
	ctx := context.Background()

	e.Emit(ctx, model.EventSongPlay, nil)
	if err := e.FlushQueue(ctx); !errors.Is(err, errOffline) {
		t.Fatalf("FlushQueue error = %v, want %v", err, errOffline)
	}

	queue, err := e.Buffer().Queue()
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(queue) != 1 {
		t.Errorf("queue has %d entries, want 1", len(queue))
	}
}

func TestFlushQueueEmpty(t *testing.T) {
	tr := &fakeTransport{}
	e := newTestEmitter(t, tr, newTestKV(t), newFakeClock())

	if err := e.FlushQueue(context.Background()); err != nil {
		t.Fatalf("FlushQueue: %v", err)
	}
	if tr.callCount() != 0 {
		t.Errorf("transport called %d times for an empty queue", tr.callCount())
	}
}

func TestShutdownEmitsSessionEnd(t *testing.T) {
	tr := &fakeTransport{}
	clock := newFakeClock()
	e := newTestEmitter(t, tr, newTestKV(t), clock)
	ctx := context.Background()

	e.AddListeningTime(90 * time.Second)
	clock.Advance(2 * time.Minute)

	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	// Second call is a no-op.
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}

	if len(tr.sent) != 1 {
		t.Fatalf("sent %d events, want exactly one session_end", len(tr.sent))
	}
	ev := tr.sent[0]
	if ev.EventType != model.EventSessionEnd {
		t.Fatalf("EventType = %q, want session_end", ev.EventType)
	}
	if ev.Data["totalListeningTime"] != int64(90000) {
		t.Errorf("totalListeningTime = %v, want 90000", ev.Data["totalListeningTime"])
	}
	if ev.Data[model.DataSessionDuration] != int64(120000) {
		t.Errorf("sessionDuration = %v, want 120000", ev.Data[model.DataSessionDuration])
	}
}

func TestShutdownClosesOwnedKV(t *testing.T) {
	kv, err := OpenKV("")
	if err != nil {
		t.Fatalf("OpenKV: %v", err)
	}
	e, err := New(Options{Transport: &fakeTransport{}, KV: kv, CloseKV: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := kv.Get(UserIDKey); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Shutdown error = %v, want ErrClosed", err)
	}
}

func TestInitializeStartsScheduler(t *testing.T) {
	tr := &fakeTransport{}
	e, err := New(Options{
		Transport:     tr,
		KV:            newTestKV(t),
		RetryInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
