package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/chatapi"
	"github.com/cortexhub/llmgateway/internal/clock"
	"github.com/cortexhub/llmgateway/internal/config"
	"github.com/cortexhub/llmgateway/internal/keypool"
	"github.com/cortexhub/llmgateway/internal/provider"
	"github.com/cortexhub/llmgateway/internal/ratebudget"
	"github.com/cortexhub/llmgateway/internal/translator"
)

type stubTranslator struct{ fail bool }

func (s *stubTranslator) TranslateRequest(req *chatapi.Request, params translator.Params) (*translator.Translated, error) {
	return &translator.Translated{}, nil
}

func (s *stubTranslator) Execute(ctx context.Context, t *translator.Translated, apiKey string, params translator.Params) ([]byte, error) {
	if s.fail {
		return nil, errors.New("upstream down")
	}
	return nil, nil
}

func (s *stubTranslator) Normalize(raw []byte, publicModel, providerName string) (*chatapi.Response, error) {
	return &chatapi.Response{Model: publicModel, Provider: providerName}, nil
}

func newInstance(t *testing.T, name string, fail bool, clk clock.Clock) *provider.Instance {
	t.Helper()
	budget := config.EffectiveBudget{
		Limits: []config.LimitSpec{{Metric: config.MetricRequests, Window: config.WindowMinute, Limit: 1000}},
	}
	key := &keypool.Key{Credential: "k", Index: 0, Tracker: ratebudget.New(budget, clk, zap.NewNop())}
	cfg := provider.Config{
		Name:        name,
		PublicModel: "gpt-test",
		Timeout:     time.Second,
		MaxRetries:  3,
		Translator:  &stubTranslator{fail: fail},
		Keys:        []*keypool.Key{key},
	}
	return provider.New(cfg, clk, nil, zap.NewNop())
}

func TestRegistry_LookupRanksByHealthScore(t *testing.T) {
	fc := clock.NewFake(time.Now())
	healthy := newInstance(t, "healthy", false, fc)
	degraded := newInstance(t, "degraded", true, fc)

	for i := 0; i < 5; i++ {
		degraded.Attempt(context.Background(), &chatapi.Request{Model: "gpt-test"})
	}

	reg := New(map[string][]*provider.Instance{"gpt-test": {degraded, healthy}})
	ranked := reg.Lookup("gpt-test")

	assert.Equal(t, "healthy", ranked[0].Name())
	assert.Equal(t, "degraded", ranked[1].Name())
}

func TestRegistry_LookupUnknownModelIsEmpty(t *testing.T) {
	reg := New(map[string][]*provider.Instance{})
	assert.Empty(t, reg.Lookup("nope"))
}

func TestRegistry_ModelsAndInstances(t *testing.T) {
	fc := clock.NewFake(time.Now())
	inst := newInstance(t, "only", false, fc)
	reg := New(map[string][]*provider.Instance{"gpt-test": {inst}})

	assert.Equal(t, []string{"gpt-test"}, reg.Models())
	assert.Len(t, reg.Instances(), 1)
}
