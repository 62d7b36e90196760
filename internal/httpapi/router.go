package httpapi

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/config"
	"github.com/cortexhub/llmgateway/internal/metrics"
)

// NewRouter assembles the gateway's HTTP surface: the OpenAI-compatible
// endpoints, the gateway-specific stats/health endpoints, and a
// /metrics endpoint backed by the Collector's registered Prometheus
// vectors, wrapped in the Recovery/RequestLogger/Metrics/RateLimiter
// middleware chain.
func NewRouter(ctx context.Context, h *Handlers, cfg config.ServerConfig, collector *metrics.Collector, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", h.HandleChatCompletion)
	mux.HandleFunc("/v1/models", h.HandleListModels)
	mux.HandleFunc("/v1/providers/stats", h.HandleProviderStats)
	mux.HandleFunc("/health", h.HandleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 200
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 400
	}

	return Chain(mux,
		Recovery(logger),
		RequestLogger(logger),
		MetricsMiddleware(collector),
		RateLimiter(ctx, rps, burst, logger),
	)
}
