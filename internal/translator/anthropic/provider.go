// Package anthropic implements the Translator capability against the
// Anthropic Messages API (/v1/messages), whose wire format differs from
// OpenAI's in several ways this adapter must bridge: authentication uses
// an x-api-key header instead of Bearer, the system prompt is a
// top-level field rather than a message with role "system", and usage
// fields are named input_tokens/output_tokens instead of
// prompt_tokens/completion_tokens.
package anthropic

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

const anthropicVersion = "2023-06-01"

// Config configures one instance of the adapter.
type Config struct {
	BaseURL string
}

// Provider implements translator.Translator against /v1/messages.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds an anthropic Provider.
func New(cfg Config, client *http.Client, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, client: client, logger: logger}
}

type wireRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []wireMessage   `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float32         `json:"temperature,omitempty"`
	TopP        float32         `json:"top_p,omitempty"`
	StopSeqs    []string        `json:"stop_sequences,omitempty"`
	Tools       []wireTool      `json:"tools,omitempty"`
}

type wireMessage struct {
	Role    string        `json:"role"`
	Content []wireContent `json:"content"`
}

type wireContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// TranslateRequest formats the canonical request into the Anthropic wire
// shape, lifting any system message out of Messages per the API's
// separate `system` field.
func (p *Provider) TranslateRequest(req *chatapi.Request, params translator.Params) (*translator.Translated, error) {
	body := wireRequest{
		Model:       params.UpstreamModel,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		StopSeqs:    req.Stop,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = 4096
	}

	for _, m := range req.Messages {
		if m.Role == chatapi.RoleSystem {
			if body.System != "" {
				body.System += "\n" + m.Content
			} else {
				body.System = m.Content
			}
			continue
		}

		wm := wireMessage{Role: anthropicRole(m.Role)}
		if m.Role == chatapi.RoleTool {
			wm.Content = []wireContent{{Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content}}
		} else {
			if m.Content != "" {
				wm.Content = append(wm.Content, wireContent{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				wm.Content = append(wm.Content, wireContent{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Arguments})
			}
		}
		body.Messages = append(body.Messages, wm)
	}

	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, wireTool{
			Name: tool.Name, Description: tool.Description, InputSchema: tool.Parameters,
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindTranslationError, "marshal request", err)
	}
	return &translator.Translated{Body: payload}, nil
}

func anthropicRole(r chatapi.Role) string {
	if r == chatapi.RoleTool {
		return "user"
	}
	return string(r)
}

// Execute POSTs the formatted payload using x-api-key authentication.
func (p *Provider) Execute(ctx context.Context, t *translator.Translated, apiKey string, params translator.Params) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v1/messages", strings.TrimRight(p.cfg.BaseURL, "/"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(t.Body))
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindUpstreamFailure, "build request", err)
	}
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

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

type wireResponse struct {
	ID         string        `json:"id"`
	Model      string        `json:"model"`
	StopReason string        `json:"stop_reason"`
	Content    []wireContent `json:"content"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

// Normalize converts the Anthropic wire response into the canonical
// shape, folding text and tool_use content blocks into a single message.
func (p *Provider) Normalize(raw []byte, publicModel, providerName string) (*chatapi.Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindTranslationError, "unmarshal response", err)
	}

	msg := chatapi.Message{Role: chatapi.RoleAssistant}
	for _, block := range wire.Content {
		switch block.Type {
		case "text":
			msg.Content += block.Text
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, chatapi.ToolCall{ID: block.ID, Name: block.Name, Arguments: block.Input})
		}
	}

	out := &chatapi.Response{
		ID:       wire.ID,
		Provider: providerName,
		Model:    publicModel,
		Choices: []chatapi.Choice{{
			Index:        0,
			FinishReason: wire.StopReason,
			Message:      msg,
		}},
	}

	if wire.Usage != nil {
		out.Usage = chatapi.Usage{
			PromptTokens:     wire.Usage.InputTokens,
			CompletionTokens: wire.Usage.OutputTokens,
			TotalTokens:      wire.Usage.InputTokens + wire.Usage.OutputTokens,
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
