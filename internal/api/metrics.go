package api

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starinfinity/star-infinity-api/internal/auth"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "star_infinity_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "star_infinity_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	authContextTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "star_infinity_auth_context_total",
			Help: "Auth contexts built, by outcome and resolved role.",
		},
		[]string{"outcome", "role"},
	)
	gateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "star_infinity_gate_decisions_total",
			Help: "Authorization gate decisions, by GraphQL field and result.",
		},
		[]string{"field", "decision"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, authContextTotal, gateDecisionsTotal)
}

// ObserveAuthOutcome counts a built auth context. Pass it to
// auth.WithOutcomeObserver.
func ObserveAuthOutcome(outcome auth.Outcome, role auth.Role) {
	authContextTotal.WithLabelValues(string(outcome), string(role)).Inc()
}

// ObserveGateDecision counts an authorization decision. Pass it to
// graph.WithGateObserver.
func ObserveGateDecision(field string, err error) {
	decision := "allowed"
	var ge *auth.GateError
	if errors.As(err, &ge) {
		decision = ge.Code
	} else if err != nil {
		decision = "error"
	}
	gateDecisionsTotal.WithLabelValues(field, decision).Inc()
}

// RegisterStoreStatsGauges registers gauges reporting database pool usage.
func RegisterStoreStatsGauges(open, inUse func() float64) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "star_infinity_db_open_connections",
			Help: "Open database connections.",
		}, open),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "star_infinity_db_in_use_connections",
			Help: "Database connections currently in use.",
		}, inUse),
	)
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
