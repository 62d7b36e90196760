// Package openaicompat implements the Translator capability for any
// vendor that serves an OpenAI-compatible /v1/chat/completions endpoint.
// The openai adapter is built on it and only swaps header construction.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/chatapi"
	"github.com/cortexhub/llmgateway/internal/gwerrors"
	"github.com/cortexhub/llmgateway/internal/translator"
)

// Config configures one instance of the adapter.
type Config struct {
	// BaseURL is the provider's API root, e.g. "https://api.openai.com".
	BaseURL string
	// EndpointPath defaults to "/v1/chat/completions".
	EndpointPath string
	// BuildHeaders sets request headers; defaults to Bearer auth.
	BuildHeaders func(req *http.Request, apiKey string)
}

// Provider is the generic OpenAI-compatible Translator.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds a Provider with the given HTTP client (the Provider
// Instance owns the client's timeout, derived from the provider's
// configured timeout).
func New(cfg Config, client *http.Client, logger *zap.Logger) *Provider {
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, client: client, logger: logger}
}

// wireRequest mirrors the OpenAI chat-completions request body.
type wireRequest struct {
	Model       string           `json:"model"`
	Messages    []wireMessage    `json:"messages"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float32          `json:"temperature,omitempty"`
	TopP        float32          `json:"top_p,omitempty"`
	Stop        []string         `json:"stop,omitempty"`
	Tools       []wireTool       `json:"tools,omitempty"`
	ToolChoice  any              `json:"tool_choice,omitempty"`
}

type wireMessage struct {
	Role       string             `json:"role"`
	Content    string             `json:"content,omitempty"`
	Name       string             `json:"name,omitempty"`
	ToolCalls  []wireToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function wireToolCallFn  `json:"function"`
}

type wireToolCallFn struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireToolSpec `json:"function"`
}

type wireToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// TranslateRequest formats the canonical request into the OpenAI wire
// shape.
func (p *Provider) TranslateRequest(req *chatapi.Request, params translator.Params) (*translator.Translated, error) {
	body := wireRequest{
		Model:       params.UpstreamModel,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}
	if req.ToolChoice != "" {
		body.ToolChoice = req.ToolChoice
	}
	for _, m := range req.Messages {
		wm := wireMessage{Role: string(m.Role), Content: m.Content, Name: m.Name, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID: tc.ID, Type: "function",
				Function: wireToolCallFn{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		body.Messages = append(body.Messages, wm)
	}
	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, wireTool{
			Type: "function",
			Function: wireToolSpec{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindTranslationError, "marshal request", err)
	}
	return &translator.Translated{Body: payload}, nil
}

// Execute POSTs the formatted payload with the given credential.
func (p *Provider) Execute(ctx context.Context, t *translator.Translated, apiKey string, params translator.Params) ([]byte, error) {
	endpoint := fmt.Sprintf("%s%s", strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.EndpointPath)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(t.Body))
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindUpstreamFailure, "build request", err)
	}
	p.buildHeaders(httpReq, apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindUpstreamFailure, "http call", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindUpstreamFailure, "read response body", err)
	}

	if resp.StatusCode >= 400 {
		return nil, gwerrors.New(gwerrors.KindUpstreamFailure,
			fmt.Sprintf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	return raw, nil
}

func (p *Provider) buildHeaders(req *http.Request, apiKey string) {
	if p.cfg.BuildHeaders != nil {
		p.cfg.BuildHeaders(req, apiKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
}

type wireResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		FinishReason string      `json:"finish_reason"`
		Message      wireMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Normalize converts the OpenAI wire response into the canonical shape.
func (p *Provider) Normalize(raw []byte, publicModel, providerName string) (*chatapi.Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindTranslationError, "unmarshal response", err)
	}

	out := &chatapi.Response{
		ID:       wire.ID,
		Provider: providerName,
		Model:    publicModel,
	}
	for _, c := range wire.Choices {
		msg := chatapi.Message{Role: chatapi.Role(c.Message.Role), Content: c.Message.Content}
		for _, tc := range c.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, chatapi.ToolCall{
				ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments,
			})
		}
		out.Choices = append(out.Choices, chatapi.Choice{
			Index: c.Index, FinishReason: c.FinishReason, Message: msg,
		})
	}

	if wire.Usage != nil {
		out.Usage = chatapi.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		}
	} else if promptTokens, completionTokens, ok := translator.ExtractUsage(raw); ok {
		out.Usage = chatapi.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		}
	}

	return out, nil
}
