package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/chatapi"
	"github.com/cortexhub/llmgateway/internal/config"
	"github.com/cortexhub/llmgateway/internal/gwerrors"
	"github.com/cortexhub/llmgateway/internal/registry"
)

// Dispatcher is the subset of *dispatcher.Dispatcher the chat handler
// needs, kept as an interface so tests can supply a stub.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *chatapi.Request) (*chatapi.Response, error)
}

// Handlers holds the gateway's HTTP surface dependencies.
type Handlers struct {
	dispatcher Dispatcher
	registry   *registry.Registry
	models     map[string]config.ModelConfig
	logger     *zap.Logger
}

// NewHandlers builds Handlers. reg is used for /v1/models and
// /v1/providers/stats; models carries the config's per-model
// created/owned_by metadata that the registry itself doesn't track.
func NewHandlers(dispatcher Dispatcher, reg *registry.Registry, models map[string]config.ModelConfig, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{dispatcher: dispatcher, registry: reg, models: models, logger: logger}
}

// errorBody is the JSON shape written for every non-2xx response, an
// OpenAI-style {"error": {...}} envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Message: message, Type: kind}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusForKind maps the gwerrors taxonomy to the HTTP status spec §6.1
// and §7 assign it. Kinds that should never escape the dispatcher
// (UpstreamFailure, TranslationError, BudgetExceeded, ConfigError,
// SnapshotIO) fall through to 500 as a defensive default.
func statusForKind(kind gwerrors.Kind) int {
	switch kind {
	case gwerrors.KindUnknownModel:
		return http.StatusNotFound
	case gwerrors.KindNoCapacity:
		return http.StatusServiceUnavailable
	case gwerrors.KindMalformedRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
