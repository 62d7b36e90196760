package translator

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tidwall/gjson"
)

// fallbackEncoding is used for every adapter's estimate: it is close
// enough across vendors for a floor estimate and avoids a per-model
// encoding table the gateway has no authoritative source for.
const fallbackEncoding = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func sharedEncoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(fallbackEncoding)
	})
	return enc, encErr
}

// EstimateTokens counts text tokens with tiktoken. The bundled adapters'
// Normalize does not call it: a response without usage yields zero
// token counts (spec §4.5 step 6: "absent → 0").
func EstimateTokens(text string) int {
	e, err := sharedEncoding()
	if err != nil || text == "" {
		return 0
	}
	return len(e.Encode(text, nil, nil))
}

// ExtractUsage defensively pulls prompt/completion token counts out of a
// raw JSON response body using gjson paths, trying the OpenAI-style
// field names first and falling back to Anthropic-style ones — vendors
// disagree on exact field names and a single strict struct can't absorb
// that across adapters.
func ExtractUsage(raw []byte) (promptTokens, completionTokens int, ok bool) {
	result := gjson.ParseBytes(raw)

	if v := result.Get("usage.prompt_tokens"); v.Exists() {
		promptTokens = int(v.Int())
		completionTokens = int(result.Get("usage.completion_tokens").Int())
		return promptTokens, completionTokens, true
	}
	if v := result.Get("usage.input_tokens"); v.Exists() {
		promptTokens = int(v.Int())
		completionTokens = int(result.Get("usage.output_tokens").Int())
		return promptTokens, completionTokens, true
	}
	return 0, 0, false
}
