// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Sentinel errors returned by the tracker.
var (
	ErrNotFound = errors.New("tracker: key not found")
	ErrClosed   = errors.New("tracker: store closed")
	ErrDelivery = errors.New("tracker: delivery failed")
)

// KV is the durable key-value surface the buffer and identity store use.
type KV interface {
	// Get returns ErrNotFound for a missing key.
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Close() error
}

// BadgerKV is a KV backed by BadgerDB.
type BadgerKV struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// OpenKV opens a Badger store in dir. An empty dir opens an in-memory store.
func OpenKV(dir string) (*BadgerKV, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable BadgerDB's default logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening buffer store: %w", err)
	}
	return &BadgerKV{db: db}, nil
}

// Get retrieves a copy of the value stored under key.
func (kv *BadgerKV) Get(key string) ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	if kv.closed {
		return nil, ErrClosed
	}

	var out []byte
	err := kv.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}

// Set stores value under key.
func (kv *BadgerKV) Set(key string, value []byte) error {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	if kv.closed {
		return ErrClosed
	}

	return kv.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Close closes the store. Later calls return ErrClosed.
func (kv *BadgerKV) Close() error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.closed {
		return ErrClosed
	}
	kv.closed = true
	return kv.db.Close()
}
