// Package observability holds the Prometheus collectors the admin API
// exposes at /metrics: rewrite throughput and latency, per-endpoint
// dispatch outcomes, transaction FSM transitions, and the ruleset
// store's watch-driven reload counters.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RewriteDuration tracks how long Engine.Rewrite takes per table.
	RewriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewrite_duration_seconds",
			Help:    "Duration of SQL rewrite operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"table"},
	)

	RewriteTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewrites_total",
			Help: "Total number of statements rewritten",
		},
		[]string{"table", "status"},
	)

	RewriteTargetsPerStatement = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewrite_targets_per_statement",
			Help:    "Number of targets a rewritten statement fans out to",
			Buckets: []float64{1, 2, 4, 8, 16, 32},
		},
		[]string{"table"},
	)

	// Dispatch metrics, one per backend endpoint the executor talks to.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_duration_seconds",
			Help:    "Duration of a single shard dispatch in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"endpoint"},
	)

	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatches_total",
			Help: "Total number of shard dispatches",
		},
		[]string{"endpoint", "status"},
	)

	ConnectionPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "endpoint_connection_pool_size",
			Help: "Configured maximum open connections per endpoint pool",
		},
		[]string{"endpoint"},
	)

	// Transaction FSM metrics.
	TxnTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txn_fsm_transitions_total",
			Help: "Total transaction FSM transitions by resulting state",
		},
		[]string{"state"},
	)

	TxnRejectedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txn_fsm_rejected_events_total",
			Help: "Events the FSM refused because they are invalid in the current state",
		},
		[]string{"event", "state"},
	)

	// Endpoint health metrics, published by pkg/health's Controller.
	EndpointUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "endpoint_up",
			Help: "1 if the endpoint answered its last health check, 0 otherwise",
		},
		[]string{"endpoint"},
	)

	EndpointLatency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "endpoint_latency_ms",
			Help: "Latency of the last health check in milliseconds",
		},
		[]string{"endpoint"},
	)

	// Ruleset store metrics.
	RulesetVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruleset_version",
			Help: "Current ruleset snapshot version (etcd revision)",
		},
	)

	RulesetReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruleset_reloads_total",
			Help: "Total ruleset reloads, by trigger",
		},
		[]string{"trigger"},
	)
)
