package httpapi

import (
	"net/http"

	"github.com/cortexhub/llmgateway/internal/keypool"
)

// statsResponse is the per-model, per-instance snapshot spec §6.1
// requires for GET /v1/providers/stats.
type statsResponse struct {
	Models map[string][]instanceStats `json:"models"`
}

type instanceStats struct {
	Name               string      `json:"name"`
	Enabled            bool        `json:"enabled"`
	Priority           int         `json:"priority"`
	CircuitState       string      `json:"circuit_state"`
	HealthScore        float64     `json:"health_score"`
	AvgResponseSeconds float64     `json:"avg_response_seconds"`
	P95ResponseSeconds float64     `json:"p95_response_seconds"`
	Keys               []keyStats  `json:"keys"`
}

type keyStats struct {
	Index               int          `json:"index"`
	Enabled             bool         `json:"enabled"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	RateLimited         bool         `json:"rate_limited"`
	Limits              []limitStats `json:"limits"`
}

type limitStats struct {
	Metric string  `json:"metric"`
	Window string  `json:"window"`
	Used   float64 `json:"used"`
	Limit  float64 `json:"limit"`
}

// HandleProviderStats implements GET /v1/providers/stats.
func (h *Handlers) HandleProviderStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}

	out := statsResponse{Models: make(map[string][]instanceStats)}
	for _, modelID := range h.registry.Models() {
		instances := h.registry.Lookup(modelID)
		rows := make([]instanceStats, 0, len(instances))
		for _, inst := range instances {
			snap := inst.Breaker().Snapshot()
			rows = append(rows, instanceStats{
				Name:               inst.Name(),
				Enabled:            inst.Enabled(),
				Priority:           inst.Priority(),
				CircuitState:       snap.State.String(),
				HealthScore:        inst.HealthScore(),
				AvgResponseSeconds: inst.Window().Avg(),
				P95ResponseSeconds: inst.Window().P95(),
				Keys:               keyStatsOf(inst.Rotator().States()),
			})
		}
		out.Models[modelID] = rows
	}

	writeJSON(w, http.StatusOK, out)
}

func keyStatsOf(states []keypool.State) []keyStats {
	out := make([]keyStats, len(states))
	for i, s := range states {
		limits := make([]limitStats, len(s.Usage))
		for j, u := range s.Usage {
			limits[j] = limitStats{Metric: string(u.Metric), Window: string(u.Window), Used: u.Used, Limit: u.Limit}
		}
		out[i] = keyStats{
			Index:               s.Index,
			Enabled:             s.Enabled,
			ConsecutiveFailures: s.ConsecutiveFailures,
			RateLimited:         s.RateLimited,
			Limits:              limits,
		}
	}
	return out
}
