// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus counters for the ingestion pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestion route labels.
const (
	RouteSingle = "track"
	RouteBatch  = "batch"
)

// Metrics holds all ingestion metrics.
type Metrics struct {
	EventsIngested     *prometheus.CounterVec
	IngestFailures     *prometheus.CounterVec
	SideEffectFailures *prometheus.CounterVec
	BatchSize          prometheus.Histogram
	StatsCacheHits     *prometheus.CounterVec
	StatsCacheMisses   *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates all metrics and registers them on registry.
// A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		EventsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodify_events_ingested_total",
				Help: "Events persisted, by ingestion route and event type",
			},
			[]string{"route", "event_type"},
		),
		IngestFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodify_ingest_failures_total",
				Help: "Ingestion requests that failed to persist",
			},
			[]string{"route"},
		),
		SideEffectFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodify_side_effect_failures_total",
				Help: "Per-event-type side effects that failed after the event row was written",
			},
			[]string{"event_type"},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "moodify_batch_size",
				Help:    "Number of events per batch request",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
			},
		),
		StatsCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodify_stats_cache_hits_total",
				Help: "Aggregation responses served from cache",
			},
			[]string{"query"},
		),
		StatsCacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodify_stats_cache_misses_total",
				Help: "Aggregation responses computed from the store",
			},
			[]string{"query"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.EventsIngested,
		m.IngestFailures,
		m.SideEffectFailures,
		m.BatchSize,
		m.StatsCacheHits,
		m.StatsCacheMisses,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
