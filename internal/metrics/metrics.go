// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EntriesLogged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kcal_entries_logged_total",
		Help: "Food entries appended to the ledger, by source.",
	}, []string{"source"})

	EntriesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kcal_entries_deleted_total",
		Help: "Food entries removed from the ledger.",
	})

	EstimationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kcal_estimation_requests_total",
		Help: "Calls to estimation collaborators, by operation and outcome.",
	}, []string{"op", "outcome"})

	EstimationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kcal_estimation_duration_seconds",
		Help:    "Latency of estimation collaborator calls.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"op"})

	StaleResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kcal_estimation_stale_results_total",
		Help: "Estimation results discarded because their dialog was dismissed.",
	})

	SharedResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kcal_estimation_shared_results_total",
		Help: "Duplicate submissions answered by an in-flight estimation.",
	})

	SyncMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kcal_sync_messages_total",
		Help: "Day-sync messages by direction and outcome.",
	}, []string{"direction", "outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kcal_http_requests_total",
		Help: "HTTP requests by method and status class.",
	}, []string{"method", "status"})

	SuspiciousRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kcal_http_suspicious_requests_total",
		Help: "Requests matching a probing pattern.",
	})
)

// ObserveEstimation records one collaborator call.
func ObserveEstimation(op string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	EstimationRequests.WithLabelValues(op, outcome).Inc()
	EstimationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// StatusClass maps an HTTP status to "2xx", "4xx" and so on.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
