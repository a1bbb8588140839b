// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserIDKey is the KV key holding the persisted user identity.
const UserIDKey = "userId"

// LoadOrCreateUserID returns the stored user id, creating and persisting a
// new one on first use.
func LoadOrCreateUserID(kv KV) (string, error) {
	v, err := kv.Get(UserIDKey)
	if err == nil && len(v) > 0 {
		return string(v), nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("reading user id: %w", err)
	}

	id := newUserID()
	if err := kv.Set(UserIDKey, []byte(id)); err != nil {
		return "", fmt.Errorf("storing user id: %w", err)
	}
	return id, nil
}

func newUserID() string {
	return "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func newSessionID(ids *ulidSource, now time.Time) string {
	return "session_" + ids.New(now).String()
}
