package config

// LimitSpec is one resolved (metric, window) -> limit entry, post
// multiplier division.
type LimitSpec struct {
	Metric Metric
	Window Window
	Limit  float64
}

// EffectiveBudget is the fully derived budget for one model-provider
// binding: sliding-window limits plus calendar credit windows plus the
// per-unit credit pricing used for charge computation (§4.1.3).
type EffectiveBudget struct {
	Limits          []LimitSpec
	CreditWindows   []CalendarWindowSpec
	CreditsPerIn    float64
	CreditsPerOut   float64
	CreditsPerMTok  float64
	CreditsPerReq   float64
}

// DeriveEffectiveBudget implements the three-step inheritance rule of
// spec §3 and §9: start from the provider's default rate limits, replace
// any keys the binding overrides, then divide every limit by the
// binding's effective multiplier for that limit's metric class. Credit
// windows are taken from the provider (bindings do not override them)
// and are not divided by a multiplier — they are consumed directly by
// the credit charge formula, which already applies token multipliers to
// its own operands.
func DeriveEffectiveBudget(provider ProviderConfig, binding BindingConfig) EffectiveBudget {
	merged := provider.RateLimits.entries()
	for k, v := range binding.RateLimits.entries() {
		merged[k] = v
	}

	reqMul := effectiveMultiplier(binding.RequestMultiplier, binding.Multiplier)
	tokMul := effectiveMultiplier(binding.TokenMultiplier, binding.Multiplier)

	limits := make([]LimitSpec, 0, len(merged))
	for k, limit := range merged {
		mul := tokMul
		if k.Metric == MetricRequests {
			mul = reqMul
		}
		limits = append(limits, LimitSpec{Metric: k.Metric, Window: k.Window, Limit: limit / mul})
	}

	// §6.2 exposes a single credits_per_token knob, not separate
	// in/out fields; it prices both operands of the §4.1.3 formula.
	return EffectiveBudget{
		Limits:         limits,
		CreditWindows:  provider.Credits.Windows(),
		CreditsPerIn:   binding.CreditsPerToken * tokMul,
		CreditsPerOut:  binding.CreditsPerToken * tokMul,
		CreditsPerMTok: binding.CreditsPerMillionTokens * tokMul,
		CreditsPerReq:  binding.CreditsPerRequest,
	}
}

// effectiveMultiplier resolves the (specific, fallback) multiplier pair
// to a positive divisor; 0 (unset) means identity, per spec §3
// "Multipliers of 1.0 are identity".
func effectiveMultiplier(specific, fallback float64) float64 {
	if specific > 0 {
		return specific
	}
	if fallback > 0 {
		return fallback
	}
	return 1.0
}
