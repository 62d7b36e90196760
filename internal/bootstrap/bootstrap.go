// Package bootstrap builds the gateway's runtime object graph — every
// Translator, Provider Instance, and the Model Registry — from a loaded
// *config.Config. It runs once at process startup; nothing here is
// mutated afterward.
package bootstrap

import (
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/clock"
	"github.com/cortexhub/llmgateway/internal/config"
	"github.com/cortexhub/llmgateway/internal/gwerrors"
	"github.com/cortexhub/llmgateway/internal/keypool"
	"github.com/cortexhub/llmgateway/internal/metrics"
	"github.com/cortexhub/llmgateway/internal/provider"
	"github.com/cortexhub/llmgateway/internal/ratebudget"
	"github.com/cortexhub/llmgateway/internal/registry"
	"github.com/cortexhub/llmgateway/internal/translator"
	"github.com/cortexhub/llmgateway/internal/translator/anthropic"
	"github.com/cortexhub/llmgateway/internal/translator/openai"
	"github.com/cortexhub/llmgateway/internal/translator/openaicompat"
)

// Build assembles a *registry.Registry from cfg: one Translator per
// configured provider (shared across every model-provider binding that
// references it), and one Provider Instance per (model, binding).
func Build(cfg *config.Config, clk clock.Clock, collector *metrics.Collector, logger *zap.Logger) (*registry.Registry, error) {
	translators := make(map[string]translator.Translator, len(cfg.Providers))
	for name, p := range cfg.Providers {
		t, err := buildTranslator(p, logger)
		if err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindConfigError, "provider "+name, err)
		}
		translators[name] = t
	}

	byModel := make(map[string][]*provider.Instance, len(cfg.Models))
	for modelID, model := range cfg.Models {
		bindingNames := make([]string, 0, len(model.Providers))
		for name := range model.Providers {
			bindingNames = append(bindingNames, name)
		}
		sort.Strings(bindingNames) // deterministic instance order for a given config

		for _, bindingName := range bindingNames {
			binding := model.Providers[bindingName]
			providerCfg, ok := cfg.Providers[bindingName]
			if !ok {
				return nil, gwerrors.New(gwerrors.KindConfigError, fmt.Sprintf("models.%s.providers.%s: no such provider", modelID, bindingName))
			}

			keys, err := buildKeys(providerCfg, binding, clk, logger)
			if err != nil {
				return nil, gwerrors.Wrap(gwerrors.KindConfigError, fmt.Sprintf("models.%s.providers.%s", modelID, bindingName), err)
			}

			inst := provider.New(provider.Config{
				Name:           bindingName,
				PublicModel:    modelID,
				UpstreamModels: binding.ModelIDs,
				Priority:       binding.Priority,
				Timeout:        providerCfg.Timeout(),
				MaxRetries:     binding.EffectiveMaxRetries(),
				Translator:     translators[bindingName],
				Keys:           keys,
				ResponseWindow: cfg.Metrics.ResponseWindowN,
			}, clk, collector, logger.With(zap.String("model", modelID), zap.String("provider", bindingName)))

			byModel[modelID] = append(byModel[modelID], inst)
		}
	}

	return registry.New(byModel), nil
}

func buildTranslator(p config.ProviderConfig, logger *zap.Logger) (translator.Translator, error) {
	client := &http.Client{Timeout: p.Timeout()}

	switch p.Type {
	case "openai":
		return openai.New(openai.Config{BaseURL: p.BaseURL}, client, logger), nil
	case "anthropic":
		return anthropic.New(anthropic.Config{BaseURL: p.BaseURL}, client, logger), nil
	case "openaicompat", "":
		return openaicompat.New(openaicompat.Config{BaseURL: p.BaseURL}, client, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", p.Type)
	}
}

func buildKeys(p config.ProviderConfig, b config.BindingConfig, clk clock.Clock, logger *zap.Logger) ([]*keypool.Key, error) {
	creds := b.KeyOverrides()
	if len(creds) == 0 {
		creds = p.Keys()
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("no credentials configured")
	}

	budget := config.DeriveEffectiveBudget(p, b)
	keys := make([]*keypool.Key, len(creds))
	for i, cred := range creds {
		keys[i] = &keypool.Key{
			Credential: cred,
			Index:      i,
			Tracker:    ratebudget.New(budget, clk, logger),
		}
	}
	return keys, nil
}
