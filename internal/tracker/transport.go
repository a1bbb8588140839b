// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/olegiv/moodify-go/internal/model"
)

// Transport delivers events to the ingestion endpoint.
type Transport interface {
	Send(ctx context.Context, e model.Event) error
	SendBatch(ctx context.Context, events []model.Event) error
}

// HTTPTransport posts events as JSON to the ingestion API.
type HTTPTransport struct {
	client    *http.Client
	base      string
	userAgent string
}

// NewHTTPTransport creates a transport for the API rooted at base
// (e.g. http://localhost:3001/api).
func NewHTTPTransport(base string, timeout time.Duration, userAgent string) *HTTPTransport {
	return &HTTPTransport{
		client:    &http.Client{Timeout: timeout},
		base:      base,
		userAgent: userAgent,
	}
}

type batchBody struct {
	Events []model.Event `json:"events"`
	UserID string        `json:"userId,omitempty"`
}

// Send posts one event to /analytics/track.
func (t *HTTPTransport) Send(ctx context.Context, e model.Event) error {
	return t.post(ctx, "/analytics/track", e)
}

// SendBatch posts events to /analytics/batch.
func (t *HTTPTransport) SendBatch(ctx context.Context, events []model.Event) error {
	body := batchBody{Events: events}
	if len(events) > 0 {
		body.UserID = events[0].UserID
	}
	return t.post(ctx, "/analytics/batch", body)
}

// Probe reports whether url answers with a 2xx status.
func (t *HTTPTransport) Probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}
	return t.do(req)
}

func (t *HTTPTransport) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req)
}

func (t *HTTPTransport) do(req *http.Request) error {
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d", ErrDelivery, req.Method, req.URL.Path, resp.StatusCode)
	}
	return nil
}
