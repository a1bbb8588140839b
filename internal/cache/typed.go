// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Typed stores values of T as JSON in an underlying Cache.
type Typed[T any] struct {
	cache Cache
	ttl   time.Duration
}

// NewTyped wraps c. A zero ttl defers to the cache's default TTL.
func NewTyped[T any](c Cache, ttl time.Duration) *Typed[T] {
	return &Typed[T]{cache: c, ttl: ttl}
}

// Get returns ErrCacheMiss when the key is absent or holds undecodable data.
func (t *Typed[T]) Get(ctx context.Context, key string) (*T, error) {
	data, err := t.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, ErrCacheMiss
	}
	return &value, nil
}

// Set stores value under key.
func (t *Typed[T]) Set(ctx context.Context, key string, value *T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return t.cache.Set(ctx, key, data, t.ttl)
}

// GetOrSet returns the cached value, or computes and stores it on a miss.
// The hit result reports whether the value came from the cache. Any cache
// failure falls through to fn.
func (t *Typed[T]) GetOrSet(ctx context.Context, key string, fn func() (*T, error)) (value *T, hit bool, err error) {
	if v, err := t.Get(ctx, key); err == nil {
		return v, true, nil
	}

	value, err = fn()
	if err != nil {
		return nil, false, err
	}

	_ = t.Set(ctx, key, value)
	return value, false, nil
}
