// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Lifecycle metrics
	PoolsCreated          prometheus.Counter
	InvestmentsAccepted   prometheus.Counter
	InvestmentsRejected   *prometheus.CounterVec
	SharesSold            prometheus.Counter
	StatusTransitions     *prometheus.CounterVec
	VendorPaymentsUSD     prometheus.Counter
	DistributionsProposed prometheus.Counter
	Graduations           prometheus.Counter
	Finalizations         *prometheus.CounterVec

	// Governance metrics
	ProposalsCreated   *prometheus.CounterVec
	VotesCast          *prometheus.CounterVec
	ProposalsExecuted  *prometheus.CounterVec
	ProposalsExpired   prometheus.Counter
	ProposalsCancelled prometheus.Counter

	// Concurrency metrics
	VersionConflicts *prometheus.CounterVec

	// External call metrics
	ExternalCallLatency *prometheus.HistogramVec
	ExternalCallErrors  *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "fracpool"
	}

	return &Metrics{
		PoolsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "pools_created_total",
			Help:      "Total number of pools created",
		}),
		InvestmentsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "investments_accepted_total",
			Help:      "Total number of accepted investments",
		}),
		InvestmentsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "investments_rejected_total",
			Help:      "Total number of rejected investments by reason",
		}, []string{"reason"}),
		SharesSold: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "shares_sold_total",
			Help:      "Total number of shares sold across all pools",
		}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "status_transitions_total",
			Help:      "Total number of pool status transitions by target status",
		}, []string{"to"}),
		VendorPaymentsUSD: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "vendor_payments_usd_total",
			Help:      "Total USD submitted as vendor payments",
		}),
		DistributionsProposed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "distributions_proposed_total",
			Help:      "Total number of distributions proposed to the vault",
		}),
		Graduations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "graduations_total",
			Help:      "Total number of pool graduations",
		}),
		Finalizations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "finalizations_total",
			Help:      "Total number of finalization attempts by outcome",
		}, []string{"outcome"}),

		ProposalsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "proposals_created_total",
			Help:      "Total number of proposals created by type",
		}, []string{"type"}),
		VotesCast: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "votes_cast_total",
			Help:      "Total number of votes cast by side and power source",
		}, []string{"side", "power_source"}),
		ProposalsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "proposals_executed_total",
			Help:      "Total number of proposal executions by result",
		}, []string{"result"}),
		ProposalsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "proposals_expired_total",
			Help:      "Total number of proposals expired by the sweeper",
		}),
		ProposalsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "proposals_cancelled_total",
			Help:      "Total number of cancelled proposals",
		}),

		VersionConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "version_conflicts_total",
			Help:      "Total number of optimistic version conflicts by operation",
		}, []string{"operation"}),

		ExternalCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_duration_seconds",
			Help:      "External service call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method"}),
		ExternalCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_errors_total",
			Help:      "Total number of external service call errors",
		}, []string{"service", "method"}),
	}
}

// ObserveExternalCall records the latency of one outbound service call and
// counts it as an error when err is non-nil. Safe on a nil receiver so
// callers without metrics wired need no guard.
func (m *Metrics) ObserveExternalCall(service, method string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ExternalCallLatency.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
	if err != nil {
		m.ExternalCallErrors.WithLabelValues(service, method).Inc()
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
