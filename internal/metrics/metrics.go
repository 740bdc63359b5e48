// Package metrics holds the Prometheus collectors shared by the services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payreq"

var (
	// RequestTransitions counts payment-request state changes by target status.
	RequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "request_transitions_total",
		Help:      "Payment request state transitions by resulting status.",
	}, []string{"status"})

	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_calls_total",
		Help:      "Calls to the identity/attribution provider by operation and outcome.",
	}, []string{"operation", "outcome"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_call_duration_seconds",
		Help:      "Latency of identity/attribution provider calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_deliveries_total",
		Help:      "Outbound request-notification webhook deliveries by outcome.",
	}, []string{"outcome"})

	RewardPoints = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reward_points_awarded_total",
		Help:      "Sum of locally computed reward points appended to profiles.",
	})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route pattern and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
