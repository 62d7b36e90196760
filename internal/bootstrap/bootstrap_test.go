package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/clock"
	"github.com/cortexhub/llmgateway/internal/config"
	"github.com/cortexhub/llmgateway/internal/metrics"
	"github.com/cortexhub/llmgateway/internal/translator/anthropic"
)

func minimalConfig() *config.Config {
	return &config.Config{
		Metrics: config.MetricsConfig{ResponseWindowN: 50},
		Providers: map[string]config.ProviderConfig{
			"openai-main": {Type: "openai", BaseURL: "https://api.openai.com", APIKey: "sk-a", TimeoutSec: 30},
			"claude-main": {Type: "anthropic", BaseURL: "https://api.anthropic.com", APIKeys: []string{"sk-b1", "sk-b2"}},
			"local-vllm":  {Type: "openaicompat", BaseURL: "http://localhost:8000", APIKey: "sk-c"},
		},
		Models: map[string]config.ModelConfig{
			"gpt-4o": {
				Providers: map[string]config.BindingConfig{
					"openai-main": {ModelIDs: []string{"gpt-4o"}, Priority: 0},
				},
			},
			"claude-sonnet": {
				Providers: map[string]config.BindingConfig{
					"claude-main": {ModelIDs: []string{"claude-3-5-sonnet"}, Priority: 0, MaxRetries: 2},
					"local-vllm":  {ModelIDs: []string{"llama-3-70b"}, Priority: 1, APIKey: "sk-override"},
				},
			},
		},
	}
}

func TestBuild_OneInstancePerModelProviderBinding(t *testing.T) {
	fc := clock.NewFake(time.Now())
	collector := metrics.NewCollector("test", zap.NewNop())

	reg, err := Build(minimalConfig(), fc, collector, zap.NewNop())
	require.NoError(t, err)

	gptInstances := reg.Lookup("gpt-4o")
	require.Len(t, gptInstances, 1)
	assert.Equal(t, "openai-main", gptInstances[0].Name())

	claudeInstances := reg.Lookup("claude-sonnet")
	require.Len(t, claudeInstances, 2)
	names := []string{claudeInstances[0].Name(), claudeInstances[1].Name()}
	assert.ElementsMatch(t, []string{"claude-main", "local-vllm"}, names)
}

func TestBuild_DispatchesTranslatorByProviderType(t *testing.T) {
	cfg := minimalConfig()

	// "openai" and "openaicompat" both resolve to an *openaicompat.Provider
	// (the openai adapter only swaps header construction), so only
	// "anthropic" is distinguishable by concrete type from this package.
	for name, p := range cfg.Providers {
		tr, err := buildTranslator(p, zap.NewNop())
		require.NoError(t, err, "provider %s", name)
		if name == "claude-main" {
			_, ok := tr.(*anthropic.Provider)
			assert.True(t, ok, "expected *anthropic.Provider for claude-main")
		}
	}
}

func TestBuild_BindingKeyOverrideWinsOverProviderKeys(t *testing.T) {
	fc := clock.NewFake(time.Now())
	collector := metrics.NewCollector("test", zap.NewNop())
	cfg := minimalConfig()

	reg, err := Build(cfg, fc, collector, zap.NewNop())
	require.NoError(t, err)

	var vllmKeys []string
	for _, inst := range reg.Lookup("claude-sonnet") {
		if inst.Name() == "local-vllm" {
			for _, k := range inst.Rotator().Keys() {
				vllmKeys = append(vllmKeys, k.Credential)
			}
		}
	}
	assert.Equal(t, []string{"sk-override"}, vllmKeys)
}

func TestBuild_UnknownProviderTypeIsConfigError(t *testing.T) {
	fc := clock.NewFake(time.Now())
	collector := metrics.NewCollector("test", zap.NewNop())
	cfg := minimalConfig()
	cfg.Providers["broken"] = config.ProviderConfig{Type: "carrier-pigeon", APIKey: "x"}

	_, err := Build(cfg, fc, collector, zap.NewNop())
	require.Error(t, err)
}

func TestBuild_NoCredentialsIsConfigError(t *testing.T) {
	fc := clock.NewFake(time.Now())
	collector := metrics.NewCollector("test", zap.NewNop())
	cfg := minimalConfig()
	cfg.Providers["openai-main"] = config.ProviderConfig{Type: "openai", BaseURL: "https://api.openai.com"}

	_, err := Build(cfg, fc, collector, zap.NewNop())
	require.Error(t, err)
}
