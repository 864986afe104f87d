// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts create_session outcomes: created, existing, failed.
	SessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_quiz_sessions_created_total",
			Help: "Session creation requests by outcome",
		},
		[]string{"outcome"},
	)

	// CodeAllocations counts allocation results: random, fallback, exhausted, error.
	CodeAllocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_quiz_code_allocations_total",
			Help: "Session code allocations by path",
		},
		[]string{"path"},
	)

	// InsertRetries counts session inserts retried after a code collision.
	InsertRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_quiz_session_insert_retries_total",
			Help: "Session inserts retried after a uniqueness violation",
		},
	)

	// StoreRetries counts storage calls retried after a transient failure.
	StoreRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_quiz_store_retries_total",
			Help: "Storage calls retried after a transient failure",
		},
	)

	// Transitions counts state machine transitions by target status.
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_quiz_session_transitions_total",
			Help: "Session state transitions",
		},
		[]string{"to"},
	)

	// Answers counts accepted answers by correctness.
	Answers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_quiz_answers_total",
			Help: "Accepted answers",
		},
		[]string{"correct"},
	)

	// CleanupDeleted counts records purged by the retention sweep.
	CleanupDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_quiz_cleanup_deleted_total",
			Help: "Records deleted by retention cleanup",
		},
		[]string{"kind"},
	)

	// Connections tracks open websocket connections.
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_quiz_ws_connections",
			Help: "Open websocket connections",
		},
	)
)
