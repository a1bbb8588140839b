// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/moodify-go/internal/model"
)

// RetryOptions configures a RetryScheduler.
type RetryOptions struct {
	Interval time.Duration
	// Backoff is the minimum time between attempts on one entry. Zero retries
	// every entry on every pass.
	Backoff time.Duration

	Probe         func(ctx context.Context) error
	ProbeInterval time.Duration
	OnProbe       func(ctx context.Context, online bool)

	Clock func() time.Time
}

// PassResult summarizes one retry pass.
type PassResult struct {
	Attempted int
	Delivered int
	Failed    int
	Exhausted int
}

// RetryScheduler periodically redelivers queued events.
type RetryScheduler struct {
	buffer    *Buffer
	transport Transport
	cron      *cron.Cron
	logger    *slog.Logger
	opts      RetryOptions
}

// NewRetryScheduler creates a scheduler. Call Start to begin running passes.
func NewRetryScheduler(buffer *Buffer, transport Transport, logger *slog.Logger, opts RetryOptions) *RetryScheduler {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &RetryScheduler{
		buffer:    buffer,
		transport: transport,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:    logger,
		opts:      opts,
	}
}

// Start registers the retry job, and the probe job when configured, and starts the cron.
func (s *RetryScheduler) Start() error {
	_, err := s.cron.AddFunc(every(s.opts.Interval), func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.Error("retry pass failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling retry job: %w", err)
	}

	if s.opts.Probe != nil && s.opts.ProbeInterval > 0 && s.opts.OnProbe != nil {
		_, err = s.cron.AddFunc(every(s.opts.ProbeInterval), func() {
			ctx := context.Background()
			s.opts.OnProbe(ctx, s.opts.Probe(ctx) == nil)
		})
		if err != nil {
			return fmt.Errorf("scheduling probe job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("retry scheduler started", "jobs", len(s.cron.Entries()), "interval", s.opts.Interval)
	return nil
}

// Stop waits for a running pass to finish and stops the scheduler.
func (s *RetryScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("retry scheduler stopped")
}

// RunOnce performs a single pass. Every retryable entry whose backoff has
// elapsed is sent once; delivered entries are removed and failed ones have
// their retry count bumped. Entries at the retry ceiling stay in the queue
// untouched. The transport is called outside the buffer lock, so entries
// queued during the pass are preserved.
func (s *RetryScheduler) RunOnce(ctx context.Context) (PassResult, error) {
	var res PassResult

	queue, err := s.buffer.Queue()
	if err != nil {
		return res, err
	}

	now := s.opts.Clock()
	var due []model.BufferedEvent
	for _, entry := range queue {
		if !entry.Retryable() {
			res.Exhausted++
			continue
		}
		if s.opts.Backoff > 0 && entry.LastRetryAt != nil && now.Sub(*entry.LastRetryAt) < s.opts.Backoff {
			continue
		}
		due = append(due, entry)
	}
	if len(due) == 0 {
		return res, nil
	}

	delivered := make(map[string]bool, len(due))
	failed := make(map[string]string, len(due))
	for _, entry := range due {
		if err := ctx.Err(); err != nil {
			break
		}
		res.Attempted++
		if err := s.transport.Send(ctx, entry.Event); err != nil {
			failed[entry.ID] = err.Error()
			res.Failed++
			continue
		}
		delivered[entry.ID] = true
		res.Delivered++
	}

	attemptedAt := s.opts.Clock().UTC()
	err = s.buffer.Update(func(list []model.BufferedEvent) []model.BufferedEvent {
		kept := list[:0]
		for _, entry := range list {
			if delivered[entry.ID] {
				continue
			}
			if msg, ok := failed[entry.ID]; ok {
				entry.RetryCount++
				entry.LastRetryAt = &attemptedAt
				entry.Error = msg
			}
			kept = append(kept, entry)
		}
		return kept
	})
	if err != nil {
		return res, fmt.Errorf("updating retry queue: %w", err)
	}

	if res.Attempted > 0 {
		s.logger.Info("retried queued events",
			"attempted", res.Attempted,
			"delivered", res.Delivered,
			"failed", res.Failed,
		)
	}
	return res, nil
}

func every(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	return "@every " + d.String()
}
