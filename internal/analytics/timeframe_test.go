// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in      string
		days    int
		bounded bool
	}{
		{"1d", 1, true},
		{"7d", 7, true},
		{"30d", 30, true},
		{"90d", 90, true},
		{"all", 0, false},
		{"365d", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			tf := ParseTimeframe(tt.in)
			if tf.Days != tt.days || tf.Bounded() != tt.bounded {
				t.Errorf("ParseTimeframe(%q) = %+v, bounded %v", tt.in, tf, tf.Bounded())
			}
			if tf.Name != tt.in {
				t.Errorf("Name = %q, want %q", tf.Name, tt.in)
			}
		})
	}
}

func TestTimeframeCacheName(t *testing.T) {
	names := map[string]bool{}
	for _, n := range CacheNames() {
		names[n] = true
	}

	for _, in := range []string{"1d", "7d", "30d", "90d", "all", "365d", "", "x' OR 1=1"} {
		got := ParseTimeframe(in).CacheName()
		if !names[got] {
			t.Errorf("CacheName(%q) = %q, not in CacheNames()", in, got)
		}
	}
	if got := ParseTimeframe("365d").CacheName(); got != "all" {
		t.Errorf("CacheName(365d) = %q, want all", got)
	}
	if got := ParseTimeframe("30d").CacheName(); got != "30d" {
		t.Errorf("CacheName(30d) = %q, want 30d", got)
	}
}

func TestTimeframeCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.FixedZone("EST", -5*3600))
	if got := ParseTimeframe("7d").Cutoff(now); got != "2026-03-03 06:00:00" {
		t.Errorf("Cutoff = %q, want 2026-03-03 06:00:00", got)
	}

	cond, args := ParseTimeframe("all").condition(now)
	if cond != "" || args != nil {
		t.Errorf("unbounded condition = %q %v, want empty", cond, args)
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		part, whole int64
		want        string
		json        string
	}{
		{1, 1, "100.0", `"100.0"`},
		{1, 3, "33.3", `"33.3"`},
		{2, 3, "66.7", `"66.7"`},
		{0, 4, "0.0", `"0.0"`},
		{0, 0, "0", `0`},
		{5, 0, "0", `0`},
	}

	for _, tt := range tests {
		r := NewRate(tt.part, tt.whole)
		if r.String() != tt.want {
			t.Errorf("NewRate(%d, %d) = %q, want %q", tt.part, tt.whole, r.String(), tt.want)
		}
		b, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if string(b) != tt.json {
			t.Errorf("json(NewRate(%d, %d)) = %s, want %s", tt.part, tt.whole, b, tt.json)
		}
	}
}

func TestRateUnmarshal(t *testing.T) {
	var r Rate
	if err := json.Unmarshal([]byte(`"42.5"`), &r); err != nil {
		t.Fatalf("Unmarshal string: %v", err)
	}
	if r.Value() != 42.5 || r.String() != "42.5" {
		t.Errorf("Rate = %v (%s), want 42.5", r.Value(), r)
	}

	if err := json.Unmarshal([]byte(`0`), &r); err != nil {
		t.Fatalf("Unmarshal number: %v", err)
	}
	if r.String() != "0" {
		t.Errorf("Rate = %s, want 0", r)
	}

	if err := json.Unmarshal([]byte(`"abc"`), &r); err == nil {
		t.Error("expected error for non-numeric string")
	}
}
