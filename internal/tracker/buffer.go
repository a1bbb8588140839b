// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/olegiv/moodify-go/internal/model"
)

// Buffer keys and bounds.
const (
	BackupKey   = "musicAnalytics"
	QueueKey    = "failedAnalyticsEvents"
	BackupLimit = 100
	QueueLimit  = 20
)

// Buffer holds the two bounded event lists: the backup store of critical
// events and the retry queue of undelivered events. Both are JSON arrays in
// the KV and are trimmed oldest-first on append.
type Buffer struct {
	kv     KV
	mu     sync.Mutex
	ids    *ulidSource
	logger *slog.Logger
	now    func() time.Time
}

// NewBuffer creates a Buffer over kv.
func NewBuffer(kv KV, logger *slog.Logger) *Buffer {
	return &Buffer{
		kv:     kv,
		ids:    newULIDSource(),
		logger: logger,
		now:    time.Now,
	}
}

// AppendBackup adds e to the backup store.
func (b *Buffer) AppendBackup(e model.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, err := loadList[model.Event](b, BackupKey)
	if err != nil {
		return err
	}
	list = trim(append(list, e), BackupLimit)
	return storeList(b.kv, BackupKey, list)
}

// Backup returns the backup store, oldest first.
func (b *Buffer) Backup() ([]model.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return readList[model.Event](b.kv, BackupKey)
}

// Enqueue adds e to the retry queue with RetryCount 0.
func (b *Buffer) Enqueue(e model.Event, cause error) (model.BufferedEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	entry := model.BufferedEvent{
		ID:       b.ids.New(now).String(),
		Event:    e,
		QueuedAt: now.UTC(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	list, err := loadList[model.BufferedEvent](b, QueueKey)
	if err != nil {
		return entry, err
	}
	list = trim(append(list, entry), QueueLimit)
	if err := storeList(b.kv, QueueKey, list); err != nil {
		return entry, err
	}
	return entry, nil
}

// Queue returns the retry queue, oldest first.
func (b *Buffer) Queue() ([]model.BufferedEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return readList[model.BufferedEvent](b.kv, QueueKey)
}

// Update replaces the retry queue with fn applied to its current contents.
// fn runs under the buffer lock and must not call back into the Buffer.
func (b *Buffer) Update(fn func([]model.BufferedEvent) []model.BufferedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, err := loadList[model.BufferedEvent](b, QueueKey)
	if err != nil {
		return err
	}
	return storeList(b.kv, QueueKey, trim(fn(list), QueueLimit))
}

// Remove deletes the queue entries with the given IDs.
func (b *Buffer) Remove(ids ...string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	return b.Update(func(list []model.BufferedEvent) []model.BufferedEvent {
		kept := list[:0]
		for _, entry := range list {
			if !drop[entry.ID] {
				kept = append(kept, entry)
			}
		}
		return kept
	})
}

var errCorrupt = errors.New("corrupt buffer list")

// readList returns the stored list; a missing key is an empty list.
func readList[T any](kv KV, key string) ([]T, error) {
	raw, err := kv.Get(key)
	if errors.Is(err, ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	var list []T
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errCorrupt, key, err)
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

// loadList is readList for writers: unreadable contents are logged and
// replaced with an empty list so a corrupt entry cannot wedge the buffer.
func loadList[T any](b *Buffer, key string) ([]T, error) {
	list, err := readList[T](b.kv, key)
	if errors.Is(err, errCorrupt) {
		b.logger.Warn("resetting unreadable buffer list", "key", key, "error", err)
		return []T{}, nil
	}
	return list, err
}

func storeList[T any](kv KV, key string, list []T) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := kv.Set(key, raw); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// trim drops the oldest entries so at most limit remain.
func trim[T any](list []T, limit int) []T {
	if len(list) > limit {
		return list[len(list)-limit:]
	}
	return list
}
