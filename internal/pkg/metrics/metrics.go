// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts transfer outcomes by terminal status.
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundflow",
		Name:      "transfers_total",
		Help:      "Transfer executions by terminal status.",
	}, []string{"status"})

	// SagaCompensationsTotal counts compensation runs.
	SagaCompensationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fundflow",
		Name:      "saga_compensations_total",
		Help:      "Transfer sagas that required compensation.",
	})

	// CompensationFailuresTotal counts compensations that themselves failed.
	// Non-zero values need manual reconciliation.
	CompensationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fundflow",
		Name:      "saga_compensation_failures_total",
		Help:      "Compensation steps that failed and were skipped.",
	})

	// CacheInconsistenciesTotal counts balance cache entries that disagreed
	// with the authoritative store while still inside the freshness window.
	CacheInconsistenciesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fundflow",
		Name:      "balance_cache_inconsistencies_total",
		Help:      "Fresh balance cache entries that mismatched the store.",
	})

	// IdempotentReplaysTotal counts requests answered from the idempotency gate
	// without executing a new transfer.
	IdempotentReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fundflow",
		Name:      "idempotent_replays_total",
		Help:      "Transfer requests served from a prior result.",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundflow",
		Name:      "http_requests_total",
		Help:      "HTTP requests processed.",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fundflow",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)
