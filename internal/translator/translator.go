// Package translator defines the Translator capability of spec §9: a
// closed set of per-vendor adapters supplied by the host program at
// startup and registered in a name-keyed map. Each adapter formats a
// canonical request, performs an authenticated HTTP call with a given
// credential, and normalizes the response back to the canonical shape.
package translator

import (
	"context"
	"time"

	"github.com/cortexhub/llmgateway/internal/chatapi"
)

// Params carries the per-binding parameters a translator needs beyond
// the canonical request body: which upstream model id to address and
// how long to allow the call to run.
type Params struct {
	UpstreamModel string
	Timeout       time.Duration
}

// Translated is an adapter-opaque formatted request, ready for Execute.
type Translated struct {
	// Body is the adapter's own marshaled request payload.
	Body []byte
}

// Translator is the capability every vendor adapter implements.
type Translator interface {
	// TranslateRequest formats the canonical request into this vendor's
	// wire shape.
	TranslateRequest(req *chatapi.Request, params Params) (*Translated, error)

	// Execute performs the authenticated HTTP call and returns the raw
	// response body.
	Execute(ctx context.Context, t *Translated, apiKey string, params Params) ([]byte, error)

	// Normalize converts a raw response body into the canonical shape,
	// preserving usage, choices, and finish_reason, and injecting
	// providerName as the `provider` field.
	Normalize(raw []byte, publicModel, providerName string) (*chatapi.Response, error)
}

// Registry is a name-keyed map of concrete Translator variants.
type Registry struct {
	byName map[string]Translator
}

// NewRegistry builds a Registry from a set of named adapters.
func NewRegistry(adapters map[string]Translator) *Registry {
	byName := make(map[string]Translator, len(adapters))
	for name, t := range adapters {
		byName[name] = t
	}
	return &Registry{byName: byName}
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Translator, bool) {
	t, ok := r.byName[name]
	return t, ok
}
