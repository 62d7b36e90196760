package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/chatapi"
	"github.com/cortexhub/llmgateway/internal/clock"
	"github.com/cortexhub/llmgateway/internal/config"
	"github.com/cortexhub/llmgateway/internal/gwerrors"
	"github.com/cortexhub/llmgateway/internal/keypool"
	"github.com/cortexhub/llmgateway/internal/provider"
	"github.com/cortexhub/llmgateway/internal/ratebudget"
	"github.com/cortexhub/llmgateway/internal/registry"
	"github.com/cortexhub/llmgateway/internal/translator"
)

type stubDispatcher struct {
	resp *chatapi.Response
	err  error
}

func (s *stubDispatcher) Dispatch(ctx context.Context, req *chatapi.Request) (*chatapi.Response, error) {
	return s.resp, s.err
}

type stubTranslator struct{}

func (stubTranslator) TranslateRequest(req *chatapi.Request, params translator.Params) (*translator.Translated, error) {
	return &translator.Translated{}, nil
}
func (stubTranslator) Execute(ctx context.Context, t *translator.Translated, apiKey string, params translator.Params) ([]byte, error) {
	return nil, nil
}
func (stubTranslator) Normalize(raw []byte, publicModel, providerName string) (*chatapi.Response, error) {
	return &chatapi.Response{Model: publicModel, Provider: providerName}, nil
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	fc := clock.NewFake(time.Now())
	budget := config.EffectiveBudget{
		Limits: []config.LimitSpec{{Metric: config.MetricRequests, Window: config.WindowMinute, Limit: 1000}},
	}
	key := &keypool.Key{Credential: "k", Index: 0, Tracker: ratebudget.New(budget, fc, zap.NewNop())}
	inst := provider.New(provider.Config{
		Name: "test-instance", PublicModel: "gpt-test", Timeout: time.Second, MaxRetries: 1,
		Translator: stubTranslator{}, Keys: []*keypool.Key{key},
	}, fc, nil, zap.NewNop())
	return registry.New(map[string][]*provider.Instance{"gpt-test": {inst}})
}

func TestHandleChatCompletion_Success(t *testing.T) {
	d := &stubDispatcher{resp: &chatapi.Response{Model: "gpt-test", Provider: "test-instance"}}
	h := NewHandlers(d, newTestRegistry(t), nil, zap.NewNop())

	body, _ := json.Marshal(chatapi.Request{Model: "gpt-test", Messages: []chatapi.Message{{Role: chatapi.RoleUser, Content: "hi"}}})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleChatCompletion(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp chatapi.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "test-instance", resp.Provider)
}

func TestHandleChatCompletion_MissingModelIs400(t *testing.T) {
	d := &stubDispatcher{}
	h := NewHandlers(d, newTestRegistry(t), nil, zap.NewNop())

	body, _ := json.Marshal(chatapi.Request{Messages: []chatapi.Message{{Role: chatapi.RoleUser, Content: "hi"}}})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleChatCompletion(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChatCompletion_UnknownModelIs404(t *testing.T) {
	d := &stubDispatcher{err: gwerrors.New(gwerrors.KindUnknownModel, "no such model")}
	h := NewHandlers(d, newTestRegistry(t), nil, zap.NewNop())

	body, _ := json.Marshal(chatapi.Request{Model: "nope", Messages: []chatapi.Message{{Role: chatapi.RoleUser, Content: "hi"}}})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleChatCompletion(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleChatCompletion_NoCapacityIs503(t *testing.T) {
	d := &stubDispatcher{err: gwerrors.New(gwerrors.KindNoCapacity, "every instance unavailable")}
	h := NewHandlers(d, newTestRegistry(t), nil, zap.NewNop())

	body, _ := json.Marshal(chatapi.Request{Model: "gpt-test", Messages: []chatapi.Message{{Role: chatapi.RoleUser, Content: "hi"}}})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleChatCompletion(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleChatCompletion_UnclassifiedErrorIs500(t *testing.T) {
	d := &stubDispatcher{err: errors.New("boom")}
	h := NewHandlers(d, newTestRegistry(t), nil, zap.NewNop())

	body, _ := json.Marshal(chatapi.Request{Model: "gpt-test", Messages: []chatapi.Message{{Role: chatapi.RoleUser, Content: "hi"}}})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleChatCompletion(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleListModels(t *testing.T) {
	models := map[string]config.ModelConfig{"gpt-test": {Created: 123, OwnedBy: "acme"}}
	h := NewHandlers(&stubDispatcher{}, newTestRegistry(t), models, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	h.HandleListModels(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp modelListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "gpt-test", resp.Data[0].ID)
	assert.Equal(t, "acme", resp.Data[0].OwnedBy)
	assert.EqualValues(t, 123, resp.Data[0].Created)
}

func TestHandleProviderStats(t *testing.T) {
	h := NewHandlers(&stubDispatcher{}, newTestRegistry(t), nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/providers/stats", nil)
	w := httptest.NewRecorder()
	h.HandleProviderStats(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp statsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Contains(t, resp.Models, "gpt-test")
	require.Len(t, resp.Models["gpt-test"], 1)
	row := resp.Models["gpt-test"][0]
	assert.Equal(t, "test-instance", row.Name)
	assert.Equal(t, "closed", row.CircuitState)
	require.Len(t, row.Keys, 1)
}

func TestHandleHealth(t *testing.T) {
	h := NewHandlers(&stubDispatcher{}, newTestRegistry(t), nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.HandleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
