// Package registry implements the Model Registry of spec §4.6: a
// model_id-keyed map of Provider Instances, built once from
// configuration, with ranking by health score computed fresh on every
// lookup so metric updates never block a lookup in progress.
package registry

import (
	"sort"
	"sync"

	"github.com/cortexhub/llmgateway/internal/provider"
)

// Registry is the read-mostly model_id -> []*provider.Instance map.
// Built once at load and never mutated afterward; lookups take only a
// read lock, and the health scores read during ranking are each
// guarded independently by the instance they belong to.
type Registry struct {
	byModel map[string][]*provider.Instance
	mu      sync.RWMutex
}

// New builds a Registry from a model_id -> instances map assembled at
// startup from validated configuration.
func New(byModel map[string][]*provider.Instance) *Registry {
	copied := make(map[string][]*provider.Instance, len(byModel))
	for model, instances := range byModel {
		dup := make([]*provider.Instance, len(instances))
		copy(dup, instances)
		copied[model] = dup
	}
	return &Registry{byModel: copied}
}

// Lookup returns the instances bound to modelID, ordered by descending
// health score as of this call. A snapshot of scores is taken per
// lookup (spec §4.6: "a snapshot of scores per lookup is acceptable"),
// so two concurrent lookups may legitimately observe different orders
// as metrics change between them.
func (r *Registry) Lookup(modelID string) []*provider.Instance {
	r.mu.RLock()
	instances := r.byModel[modelID]
	r.mu.RUnlock()
	if len(instances) == 0 {
		return nil
	}

	ranked := make([]*provider.Instance, len(instances))
	copy(ranked, instances)
	scores := make(map[*provider.Instance]float64, len(ranked))
	for _, inst := range ranked {
		scores[inst] = inst.HealthScore()
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]] > scores[ranked[j]]
	})
	return ranked
}

// Models returns every registered public model id, for the
// GET /v1/models endpoint.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byModel))
	for model := range r.byModel {
		out = append(out, model)
	}
	sort.Strings(out)
	return out
}

// Instances returns every Provider Instance across every model, for
// the stats endpoint and the metrics snapshot writer.
func (r *Registry) Instances() []*provider.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[*provider.Instance]bool)
	out := make([]*provider.Instance, 0)
	for _, instances := range r.byModel {
		for _, inst := range instances {
			if !seen[inst] {
				seen[inst] = true
				out = append(out, inst)
			}
		}
	}
	return out
}
