// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// defaultMaxSize bounds the memory cache when MaxSize is not set.
const defaultMaxSize = 10000

// MemoryCache is a process-local LRU cache with per-entry expiry.
type MemoryCache struct {
	mu     sync.Mutex
	lru    *simplelru.LRU[string, lruEntry]
	ttl    time.Duration
	closed bool
	done   chan struct{}
	now    func() time.Time

	counters
}

type lruEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCacheOptions configures the memory cache.
type MemoryCacheOptions struct {
	DefaultTTL      time.Duration
	MaxSize         int           // entries kept before the least recently used is dropped; 0 means 10000
	CleanupInterval time.Duration // 0 disables the background sweep
}

// NewMemoryCache creates a memory cache. Close stops the background sweep.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	size := opts.MaxSize
	if size <= 0 {
		size = defaultMaxSize
	}
	// NewLRU only fails for a non-positive size.
	l, _ := simplelru.NewLRU[string, lruEntry](size, nil)

	c := &MemoryCache{
		lru:  l,
		ttl:  opts.DefaultTTL,
		done: make(chan struct{}),
		now:  time.Now,
	}
	if opts.CleanupInterval > 0 {
		go c.sweepEvery(opts.CleanupInterval)
	}
	return c
}

// Get returns a copy of the value under key and marks it recently used.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCacheClosed
	}

	e, ok := c.lru.Get(key)
	if ok && c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		ok = false
	}
	if !ok {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}

	c.hits.Add(1)
	return bytes.Clone(e.value), nil
}

// Set stores a copy of value. The least recently used entry is dropped when
// the cache is full.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}

	c.lru.Add(key, lruEntry{value: bytes.Clone(value), expiresAt: c.now().Add(ttl)})
	c.sets.Add(1)
	return nil
}

// Delete removes keys.
func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}

	for _, key := range keys {
		if c.lru.Remove(key) {
			c.invalidated.Add(1)
		}
	}
	return nil
}

// Close stops the background sweep. Later calls return ErrCacheClosed.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// Stats reports counters and the current entry count.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	n := c.lru.Len()
	c.mu.Unlock()
	return c.snapshot("memory", n)
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && now.After(e.expiresAt) {
			c.lru.Remove(key)
		}
	}
}

func (c *MemoryCache) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
