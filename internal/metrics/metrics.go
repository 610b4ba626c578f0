// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "splennet"

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "path"},
	)

	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "gate_decisions_total",
			Help:      "Usage gate decisions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-user rate limiter.",
		},
		[]string{"operation"},
	)

	generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "essays",
			Name:      "generations_total",
			Help:      "Calls to the text generation provider by operation and status.",
		},
		[]string{"operation", "status"},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "essays",
			Name:      "generation_duration_seconds",
			Help:      "Duration of text generation calls.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
		},
		[]string{"operation"},
	)

	secondaryWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "secondary_write_failures_total",
			Help:      "Best-effort writes that failed after the primary action succeeded.",
		},
		[]string{"write"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Notifications handed to the delivery channel by type and status.",
		},
		[]string{"type", "status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		gateDecisions,
		rateLimited,
		generations,
		generationDuration,
		secondaryWriteFailures,
		notifications,
	)
}

// Handler returns the /metrics handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one handled request.
func ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGateDecision records whether the usage gate allowed an action.
func RecordGateDecision(action string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	gateDecisions.WithLabelValues(action, outcome).Inc()
}

// RecordRateLimited records a request rejected by the rate limiter.
func RecordRateLimited(operation string) {
	rateLimited.WithLabelValues(operation).Inc()
}

// RecordGeneration records one provider call.
func RecordGeneration(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	generations.WithLabelValues(operation, status).Inc()
	generationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSecondaryWriteFailure records a failed best-effort write.
func RecordSecondaryWriteFailure(write string) {
	secondaryWriteFailures.WithLabelValues(write).Inc()
}

// RecordNotification records a notification delivery attempt.
func RecordNotification(notificationType string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	notifications.WithLabelValues(notificationType, status).Inc()
}
