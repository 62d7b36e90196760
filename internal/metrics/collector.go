// Package metrics provides Prometheus exposition for the gateway plus
// the per-instance rolling response-time window and durable snapshot
// described in spec §4.7/§6.3. It is internal and should not be
// imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records the Prometheus vectors the gateway
// exposes at GET /metrics: HTTP surface traffic and per-dispatch LLM
// outcomes (requests, latency, tokens, credits spent).
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec
	llmCreditsSpent    *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector builds a Collector registered under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served by the gateway",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of dispatched completion attempts",
		},
		[]string{"model", "provider_instance", "status"},
	)

	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Upstream call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model", "provider_instance"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Total number of tokens accounted for",
		},
		[]string{"model", "provider_instance", "type"}, // type: prompt, completion
	)

	c.llmCreditsSpent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_credits_spent_total",
			Help:      "Total credits charged against rate budgets",
		},
		[]string{"model", "provider_instance"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordHTTPRequest records one completed HTTP request on the gateway's
// public surface.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAttempt records one Provider Instance attempt outcome.
func (c *Collector) RecordAttempt(model, instance, status string, duration time.Duration, promptTokens, completionTokens int, credits float64) {
	c.llmRequestsTotal.WithLabelValues(model, instance, status).Inc()
	c.llmRequestDuration.WithLabelValues(model, instance).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(model, instance, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(model, instance, "completion").Add(float64(completionTokens))
	c.llmCreditsSpent.WithLabelValues(model, instance).Add(credits)
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
