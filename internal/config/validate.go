package config

import (
	"fmt"
	"strings"

	"github.com/cortexhub/llmgateway/internal/gwerrors"
)

// Validate checks the loaded tree for the minimal shape the registry
// needs: every binding's provider must exist, every provider must carry
// at least one credential, and the HTTP port must be in 1..65535. Returns a
// *gwerrors.Error of KindConfigError on the first batch of problems.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		problems = append(problems, "server.http_port must be in 1..65535")
	}

	if len(cfg.Providers) == 0 {
		problems = append(problems, "providers: at least one provider is required")
	}
	for name, p := range cfg.Providers {
		if p.Type == "" {
			problems = append(problems, fmt.Sprintf("providers.%s: type is required", name))
		}
		if p.BaseURL == "" {
			problems = append(problems, fmt.Sprintf("providers.%s: base_url is required", name))
		}
		if len(p.Keys()) == 0 {
			problems = append(problems, fmt.Sprintf("providers.%s: at least one api key is required", name))
		}
	}

	if len(cfg.Models) == 0 {
		problems = append(problems, "models: at least one model is required")
	}
	for modelID, m := range cfg.Models {
		if len(m.Providers) == 0 {
			problems = append(problems, fmt.Sprintf("models.%s: at least one provider binding is required", modelID))
		}
		for providerName, b := range m.Providers {
			if _, ok := cfg.Providers[providerName]; !ok {
				problems = append(problems, fmt.Sprintf("models.%s.providers.%s: no such provider", modelID, providerName))
			}
			if len(b.ModelIDs) == 0 {
				problems = append(problems, fmt.Sprintf("models.%s.providers.%s: model_id is required", modelID, providerName))
			}
		}
	}

	if len(problems) > 0 {
		return gwerrors.New(gwerrors.KindConfigError, strings.Join(problems, "; "))
	}
	return nil
}
