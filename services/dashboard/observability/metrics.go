// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the dashboard.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "metamorph"

const dashboardSubsystem = "dashboard"

// DashboardMetrics holds the Prometheus metrics for the dashboard API.
//
// # Thread Safety
//
// All operations are thread-safe.
type DashboardMetrics struct {
	// EventsAppendedTotal counts event-log appends.
	// Labels: type (info, warning, error, success)
	EventsAppendedTotal *prometheus.CounterVec

	// HealingRunsTotal counts completed healing runs.
	// Labels: outcome (no_changes, changes_submitted, failed)
	HealingRunsTotal *prometheus.CounterVec

	// HealingDurationSeconds measures end-to-end healing run duration,
	// agent call included.
	HealingDurationSeconds prometheus.Histogram

	// GithubRequestsTotal counts calls to the GitHub API surface.
	// Labels: operation (repos, prs), outcome (kind tag)
	GithubRequestsTotal *prometheus.CounterVec
}

// NewDashboardMetrics creates and registers dashboard metrics on the given
// registerer. Tests pass a fresh prometheus.NewRegistry() for isolation.
func NewDashboardMetrics(reg prometheus.Registerer) *DashboardMetrics {
	factory := promauto.With(reg)
	return &DashboardMetrics{
		EventsAppendedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: dashboardSubsystem,
				Name:      "events_appended_total",
				Help:      "Event-log appends by event type",
			},
			[]string{"type"},
		),

		HealingRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: dashboardSubsystem,
				Name:      "healing_runs_total",
				Help:      "Completed healing runs by outcome",
			},
			[]string{"outcome"},
		),

		HealingDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: dashboardSubsystem,
				Name:      "healing_duration_seconds",
				Help:      "End-to-end healing run duration in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
			},
		),

		GithubRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: dashboardSubsystem,
				Name:      "github_requests_total",
				Help:      "GitHub API calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
	}
}

// DefaultMetrics is the singleton registered on the default registry.
// Initialized by InitMetrics().
var DefaultMetrics *DashboardMetrics

var initOnce sync.Once

// InitMetrics initializes DefaultMetrics on the default Prometheus registry.
// Safe to call more than once; only the first call registers.
func InitMetrics() *DashboardMetrics {
	initOnce.Do(func() {
		DefaultMetrics = NewDashboardMetrics(prometheus.DefaultRegisterer)
	})
	return DefaultMetrics
}
