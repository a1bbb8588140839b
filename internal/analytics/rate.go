// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Rate is a percentage rendered with one decimal place. When the denominator
// is zero it is rendered as the number 0.
type Rate struct {
	value float64
	valid bool
}

// NewRate computes part/whole*100.
func NewRate(part, whole int64) Rate {
	if whole <= 0 {
		return Rate{}
	}
	return Rate{value: float64(part) / float64(whole) * 100, valid: true}
}

// Value returns the percentage, or 0 when undefined.
func (r Rate) Value() float64 {
	return r.value
}

// String implements fmt.Stringer.
func (r Rate) String() string {
	if !r.valid {
		return "0"
	}
	return strconv.FormatFloat(r.value, 'f', 1, 64)
}

// MarshalJSON implements json.Marshaler.
func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.valid {
		return []byte("0"), nil
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts either a quoted decimal or a bare number.
func (r *Rate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parsing rate %q: %w", s, err)
		}
		*r = Rate{value: v, valid: true}
		return nil
	}

	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("parsing rate: %w", err)
	}
	*r = Rate{value: v, valid: v != 0}
	return nil
}
