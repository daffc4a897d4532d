// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the relay.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all MetaMorph metrics.
const metricsNamespace = "metamorph"

// Subsystem for relay metrics.
const relaySubsystem = "relay"

// RelayMetrics holds the Prometheus metrics for relay dispatch operations.
//
// # Fields
//
//   - RequestsTotal: counter of dispatches by destination and outcome
//   - DispatchDurationSeconds: histogram of outbound call duration
//   - InflightDispatches: gauge of currently in-flight outbound calls
//
// # Thread Safety
//
// All operations are thread-safe.
type RelayMetrics struct {
	// RequestsTotal counts dispatch attempts.
	// Labels: destination (vercel, github, explicit), outcome (kind tag)
	RequestsTotal *prometheus.CounterVec

	// DispatchDurationSeconds measures outbound call duration.
	// Labels: destination
	DispatchDurationSeconds *prometheus.HistogramVec

	// InflightDispatches tracks outbound calls currently awaiting a
	// response or timeout.
	InflightDispatches prometheus.Gauge
}

// NewRelayMetrics creates and registers relay metrics on the given
// registerer. Tests pass a fresh prometheus.NewRegistry() for isolation.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	factory := promauto.With(reg)
	return &RelayMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "requests_total",
				Help:      "Total relay dispatches by destination and outcome",
			},
			[]string{"destination", "outcome"},
		),

		DispatchDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "dispatch_duration_seconds",
				Help:      "Outbound dispatch duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"destination"},
		),

		InflightDispatches: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "inflight_dispatches",
				Help:      "Outbound dispatches currently in flight",
			},
		),
	}
}

// DefaultMetrics is the singleton registered on the default registry.
// Initialized by InitMetrics().
var DefaultMetrics *RelayMetrics

var initOnce sync.Once

// InitMetrics initializes DefaultMetrics on the default Prometheus registry.
// Safe to call more than once; only the first call registers.
func InitMetrics() *RelayMetrics {
	initOnce.Do(func() {
		DefaultMetrics = NewRelayMetrics(prometheus.DefaultRegisterer)
	})
	return DefaultMetrics
}
