// verdict/pkg/metrics/metrics.go

// Package metrics exposes the engine's Prometheus collectors. Collectors
// register on the default registry, so the HTTP surface only needs to
// mount promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts completed decisions by event type and signal.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verdict",
		Name:      "decisions_total",
		Help:      "Completed decisions by event type and resulting signal.",
	}, []string{"event_type", "signal"})

	// DecisionErrors counts failed evaluation requests.
	DecisionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verdict",
		Name:      "decision_errors_total",
		Help:      "Evaluation requests that ended in an error.",
	}, []string{"event_type", "retryable"})

	// DecisionDuration observes end-to-end evaluation latency.
	DecisionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "verdict",
		Name:      "decision_duration_seconds",
		Help:      "End-to-end decision latency.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"event_type"})

	// ListLookups counts managed-list membership checks.
	ListLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verdict",
		Name:      "list_lookups_total",
		Help:      "Managed list membership checks by list and outcome.",
	}, []string{"list", "outcome"})

	// Reloads counts registry reload attempts.
	Reloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verdict",
		Name:      "registry_reloads_total",
		Help:      "Registry reload attempts by outcome.",
	}, []string{"outcome"})
)
