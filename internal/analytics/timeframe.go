// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

import (
	"time"

	"github.com/olegiv/moodify-go/internal/store"
)

// Default timeframes per query.
const (
	DefaultUserTimeframe   = "7d"
	DefaultGlobalTimeframe = "30d"
)

var timeframeDays = map[string]int{
	"1d":  1,
	"7d":  7,
	"30d": 30,
	"90d": 90,
}

// unboundedName identifies every unbounded window in cache keys.
const unboundedName = "all"

var cacheNames = []string{"1d", "7d", "30d", "90d", unboundedName}

// Timeframe is a relative window ending now. Days == 0 means unbounded.
type Timeframe struct {
	Name string
	Days int
}

// ParseTimeframe maps a query value to a window. Unknown values are kept as
// the name and produce an unbounded window.
func ParseTimeframe(s string) Timeframe {
	return Timeframe{Name: s, Days: timeframeDays[s]}
}

// Bounded reports whether the window has a lower bound.
func (tf Timeframe) Bounded() bool {
	return tf.Days > 0
}

// CacheName returns the name for known windows and "all" for every
// unbounded one, so arbitrary query values map onto a fixed set.
func (tf Timeframe) CacheName() string {
	if !tf.Bounded() {
		return unboundedName
	}
	return tf.Name
}

// CacheNames lists every value CacheName can return.
func CacheNames() []string {
	return append([]string(nil), cacheNames...)
}

// Cutoff returns the lower bound in stored time format.
func (tf Timeframe) Cutoff(now time.Time) string {
	return store.FormatTime(now.AddDate(0, 0, -tf.Days))
}

// condition returns the SQL fragment and argument restricting timestamp to
// the window, or nothing when unbounded.
func (tf Timeframe) condition(now time.Time) (string, []any) {
	if !tf.Bounded() {
		return "", nil
	}
	return " AND timestamp >= ?", []any{tf.Cutoff(now)}
}
