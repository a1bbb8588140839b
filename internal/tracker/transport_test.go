// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/moodify-go/internal/model"
)

type capturedRequest struct {
	method    string
	path      string
	userAgent string
	body      []byte
}

func captureServer(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{r.Method, r.URL.Path, r.UserAgent(), body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), reqs...)
	}
}

func TestHTTPTransportSend(t *testing.T) {
	srv, requests := captureServer(t, http.StatusOK)
	tr := NewHTTPTransport(srv.URL+"/api", 5*time.Second, "moodify-track/test")

	require.NoError(t, tr.Send(context.Background(), testEvent(model.EventSongPlay, 1)))

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].method)
	assert.Equal(t, "/api/analytics/track", reqs[0].path)
	assert.Equal(t, "moodify-track/test", reqs[0].userAgent)

	var got model.Event
	require.NoError(t, json.Unmarshal(reqs[0].body, &got))
	assert.Equal(t, model.EventSongPlay, got.EventType)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "session_test", got.SessionID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestHTTPTransportSendBatch(t *testing.T) {
	srv, requests := captureServer(t, http.StatusOK)
	tr := NewHTTPTransport(srv.URL+"/api", 5*time.Second, "")

	events := []model.Event{testEvent(model.EventSongPlay, 1), testEvent(model.EventSongSkip, 2)}
	require.NoError(t, tr.SendBatch(context.Background(), events))

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/analytics/batch", reqs[0].path)

	var body struct {
		Events []model.Event `json:"events"`
		UserID string        `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(reqs[0].body, &body))
	assert.Len(t, body.Events, 2)
	assert.Equal(t, "u1", body.UserID)
}

func TestHTTPTransportErrors(t *testing.T) {
	srv, _ := captureServer(t, http.StatusInternalServerError)
	tr := NewHTTPTransport(srv.URL+"/api", 5*time.Second, "")

	err := tr.Send(context.Background(), testEvent(model.EventSongPlay, 1))
	assert.ErrorIs(t, err, ErrDelivery)

	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()
	tr = NewHTTPTransport(down.URL+"/api", time.Second, "")
	err = tr.SendBatch(context.Background(), []model.Event{testEvent(model.EventSongPlay, 1)})
	assert.ErrorIs(t, err, ErrDelivery)
}

func TestHTTPTransportProbe(t *testing.T) {
	up, _ := captureServer(t, http.StatusOK)
	unhealthy, _ := captureServer(t, http.StatusServiceUnavailable)
	tr := NewHTTPTransport("", time.Second, "")

	assert.NoError(t, tr.Probe(context.Background(), up.URL+"/health"))
	assert.ErrorIs(t, tr.Probe(context.Background(), unhealthy.URL+"/health"), ErrDelivery)
}
