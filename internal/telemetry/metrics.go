package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SolverQueuePending tracks calls submitted to the solver queue and not yet completed.
	SolverQueuePending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "schedule_bridge",
		Subsystem: "solver",
		Name:      "queue_pending",
		Help:      "Solver calls submitted but not yet completed.",
	})

	// SolverCallsTotal counts finished solver calls by outcome.
	SolverCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schedule_bridge",
		Subsystem: "solver",
		Name:      "calls_total",
		Help:      "Solver calls by outcome.",
	}, []string{"outcome"})

	// SolverExchangeDuration observes the wire exchange only, not the queue wait.
	SolverExchangeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "schedule_bridge",
		Subsystem: "solver",
		Name:      "exchange_duration_seconds",
		Help:      "Duration of a single TCP exchange with the solver.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// APIRequestsTotal counts HTTP requests by method, route and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schedule_bridge",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "HTTP requests handled.",
	}, []string{"method", "route", "status"})

	// APIRequestDuration observes HTTP handling latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "schedule_bridge",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Solver call outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeTimeout    = "timeout"
	OutcomeConnection = "connection_error"
	OutcomeProtocol   = "protocol_error"
	OutcomeAbandoned  = "abandoned"
	OutcomeClosed     = "closed"
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
