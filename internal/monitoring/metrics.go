package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AssignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_assignments_total",
			Help: "Order assignment attempts by outcome",
		},
		[]string{"outcome"},
	)

	AssignmentRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_assignment_retries_total",
			Help: "Candidates dropped because another request took the agent first",
		},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_order_transitions_total",
			Help: "Order status transitions by target state and outcome",
		},
		[]string{"to", "outcome"},
	)

	LedgerTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_ledger_transactions_total",
			Help: "Ledger entries written by type and status",
		},
		[]string{"type", "status"},
	)

	PayoutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_payout_duration_seconds",
			Help:    "Latency of external payout calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

// Outcome labels shared by the counters.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)
