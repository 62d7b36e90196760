// Package openai specializes the openaicompat Translator for OpenAI
// itself, the same way the teacher's OpenAIProvider embeds its
// openaicompat.Provider base and only swaps header construction.
package openai

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/translator/openaicompat"
)

// Config configures the OpenAI adapter.
type Config struct {
	BaseURL      string
	Organization string
}

// New builds a Translator for OpenAI's chat-completions endpoint.
func New(cfg Config, client *http.Client, logger *zap.Logger) *openaicompat.Provider {
	return openaicompat.New(openaicompat.Config{
		BaseURL: cfg.BaseURL,
		BuildHeaders: func(req *http.Request, apiKey string) {
			req.Header.Set("Authorization", "Bearer "+apiKey)
			if cfg.Organization != "" {
				req.Header.Set("OpenAI-Organization", cfg.Organization)
			}
			req.Header.Set("Content-Type", "application/json")
		},
	}, client, logger)
}
