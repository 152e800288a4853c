package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutorsStarted tracks executor runs started per trigger source
	ExecutorsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_executors_started_total",
			Help: "Total number of transaction executor runs started",
		},
		[]string{"trigger"},
	)

	// ExecutorsCompleted tracks executor runs finished per outcome
	ExecutorsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_executors_completed_total",
			Help: "Total number of transaction executor runs completed",
		},
		[]string{"outcome"},
	)

	// SubmissionsTotal tracks transaction broadcasts
	SubmissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_submissions_total",
			Help: "Total number of transaction submissions",
		},
	)

	// EscalationsTotal tracks ambiguous or exhausted runs surfaced to operators
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_escalations_total",
			Help: "Total number of runs escalated to operators",
		},
		[]string{"reason"},
	)

	// CascadesTotal tracks dependant executor starts from the cascade step
	CascadesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_cascades_total",
			Help: "Total number of dependant executors started by cascading",
		},
	)

	// DedupHitsTotal tracks suppressed duplicate executor starts
	DedupHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_dedup_hits_total",
			Help: "Total number of duplicate executor starts suppressed",
		},
	)

	// HeartbeatsTotal tracks liveness signals emitted during confirmation waits
	HeartbeatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_heartbeats_total",
			Help: "Total number of liveness heartbeats emitted",
		},
	)

	// ConfirmationWait tracks how long transactions waited for confirmation
	ConfirmationWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orchestrator_confirmation_wait_seconds",
			Help:    "Time spent waiting for on-chain confirmation",
			Buckets: prometheus.ExponentialBuckets(30, 2, 8),
		},
	)

	// ActivityRollups tracks activity roll-up results
	ActivityRollups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_activity_rollups_total",
			Help: "Total number of activity roll-ups persisted",
		},
		[]string{"status"},
	)

	// ChainCallsTotal tracks chain gateway calls
	ChainCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_chain_calls_total",
			Help: "Total number of chain gateway calls",
		},
		[]string{"gateway", "method"},
	)

	// ChainErrorsTotal tracks chain gateway errors
	ChainErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_chain_errors_total",
			Help: "Total number of chain gateway errors",
		},
		[]string{"gateway", "method"},
	)

	// ChainCallLatency tracks chain gateway call latency
	ChainCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_chain_call_latency_seconds",
			Help:    "Chain gateway call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gateway", "method"},
	)

	// DBConnectionPoolUsage tracks database connection pool saturation
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)

	// PendingTransactions tracks the dispatcher's observed backlog
	PendingTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_pending_transactions",
			Help: "Number of pending transactions seen by the last dispatch pass",
		},
	)
)
