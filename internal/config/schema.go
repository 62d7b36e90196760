// Package config loads and validates the gateway's YAML configuration
// tree and derives the effective per-binding budget spec. A *Config is
// immutable once Load returns; the registry it builds is never rebuilt
// in place.
package config

import "time"

// Metric is one of the accounting dimensions a budget limit applies to.
type Metric string

const (
	MetricRequests         Metric = "requests"
	MetricTokens           Metric = "tokens"
	MetricPromptTokens     Metric = "prompt_tokens"
	MetricCompletionTokens Metric = "completion_tokens"
	MetricCredits          Metric = "credits"
)

// Window is one of the sliding or calendar periods a limit is scoped to.
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
	WindowDay    Window = "day"
	WindowMonth  Window = "month"
)

// Seconds returns the sliding-window width in seconds for w.
func (w Window) Seconds() int64 {
	switch w {
	case WindowMinute:
		return 60
	case WindowHour:
		return 3600
	case WindowDay:
		return 86400
	case WindowMonth:
		return 2592000
	default:
		return 0
	}
}

// RateLimits is a sparse (metric, window) -> limit table as it appears
// in YAML, e.g. `requests_per_minute`, `tokens_per_day`.
type RateLimits struct {
	RequestsPerMinute *float64 `yaml:"requests_per_minute,omitempty"`
	RequestsPerHour   *float64 `yaml:"requests_per_hour,omitempty"`
	RequestsPerDay    *float64 `yaml:"requests_per_day,omitempty"`
	RequestsPerMonth  *float64 `yaml:"requests_per_month,omitempty"`

	TokensPerMinute *float64 `yaml:"tokens_per_minute,omitempty"`
	TokensPerHour   *float64 `yaml:"tokens_per_hour,omitempty"`
	TokensPerDay    *float64 `yaml:"tokens_per_day,omitempty"`
	TokensPerMonth  *float64 `yaml:"tokens_per_month,omitempty"`

	PromptTokensPerMinute *float64 `yaml:"prompt_tokens_per_minute,omitempty"`
	PromptTokensPerHour   *float64 `yaml:"prompt_tokens_per_hour,omitempty"`
	PromptTokensPerDay    *float64 `yaml:"prompt_tokens_per_day,omitempty"`
	PromptTokensPerMonth  *float64 `yaml:"prompt_tokens_per_month,omitempty"`

	CompletionTokensPerMinute *float64 `yaml:"completion_tokens_per_minute,omitempty"`
	CompletionTokensPerHour   *float64 `yaml:"completion_tokens_per_hour,omitempty"`
	CompletionTokensPerDay    *float64 `yaml:"completion_tokens_per_day,omitempty"`
	CompletionTokensPerMonth  *float64 `yaml:"completion_tokens_per_month,omitempty"`
}

// entries flattens the sparse table into (metric, window, limit) rows.
func (r RateLimits) entries() map[limitKey]float64 {
	out := make(map[limitKey]float64)
	add := func(m Metric, w Window, v *float64) {
		if v != nil {
			out[limitKey{m, w}] = *v
		}
	}
	add(MetricRequests, WindowMinute, r.RequestsPerMinute)
	add(MetricRequests, WindowHour, r.RequestsPerHour)
	add(MetricRequests, WindowDay, r.RequestsPerDay)
	add(MetricRequests, WindowMonth, r.RequestsPerMonth)
	add(MetricTokens, WindowMinute, r.TokensPerMinute)
	add(MetricTokens, WindowHour, r.TokensPerHour)
	add(MetricTokens, WindowDay, r.TokensPerDay)
	add(MetricTokens, WindowMonth, r.TokensPerMonth)
	add(MetricPromptTokens, WindowMinute, r.PromptTokensPerMinute)
	add(MetricPromptTokens, WindowHour, r.PromptTokensPerHour)
	add(MetricPromptTokens, WindowDay, r.PromptTokensPerDay)
	add(MetricPromptTokens, WindowMonth, r.PromptTokensPerMonth)
	add(MetricCompletionTokens, WindowMinute, r.CompletionTokensPerMinute)
	add(MetricCompletionTokens, WindowHour, r.CompletionTokensPerHour)
	add(MetricCompletionTokens, WindowDay, r.CompletionTokensPerDay)
	add(MetricCompletionTokens, WindowMonth, r.CompletionTokensPerMonth)
	return out
}

type limitKey struct {
	Metric Metric
	Window Window
}

// CreditSpec describes a credit calendar window's refill parameters.
// GainPer* and MaxPer* are optional fields, one pair per window.
type CreditSpec struct {
	GainPerMinute *float64 `yaml:"credits_gain_per_minute,omitempty"`
	GainPerHour   *float64 `yaml:"credits_gain_per_hour,omitempty"`
	GainPerDay    *float64 `yaml:"credits_gain_per_day,omitempty"`
	GainPerMonth  *float64 `yaml:"credits_gain_per_month,omitempty"`

	MaxPerMinute *float64 `yaml:"credits_max_per_minute,omitempty"`
	MaxPerHour   *float64 `yaml:"credits_max_per_hour,omitempty"`
	MaxPerDay    *float64 `yaml:"credits_max_per_day,omitempty"`
	MaxPerMonth  *float64 `yaml:"credits_max_per_month,omitempty"`
}

// CalendarWindowSpec is one resolved (gain, max) pair for a single window.
type CalendarWindowSpec struct {
	Window Window
	Gain   float64
	Max    float64
}

// Windows resolves the sparse gain/max pairs into a list, defaulting Max
// to Gain when a max isn't configured (a plain per-period allowance).
func (c CreditSpec) Windows() []CalendarWindowSpec {
	var out []CalendarWindowSpec
	add := func(w Window, gain, max *float64) {
		if gain == nil {
			return
		}
		m := *gain
		if max != nil {
			m = *max
		}
		out = append(out, CalendarWindowSpec{Window: w, Gain: *gain, Max: m})
	}
	add(WindowMinute, c.GainPerMinute, c.MaxPerMinute)
	add(WindowHour, c.GainPerHour, c.MaxPerHour)
	add(WindowDay, c.GainPerDay, c.MaxPerDay)
	add(WindowMonth, c.GainPerMonth, c.MaxPerMonth)
	return out
}

// ProviderConfig is one upstream endpoint entry under the root `providers`
// key.
type ProviderConfig struct {
	Type       string        `yaml:"type"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key,omitempty"`
	APIKeys    []string      `yaml:"api_keys,omitempty"`
	TimeoutSec float64       `yaml:"timeout,omitempty"`
	RateLimits RateLimits    `yaml:"rate_limits,omitempty"`
	Credits    CreditSpec    `yaml:",inline"`
}

// Timeout returns the provider's request timeout, defaulting to 60s.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.TimeoutSec * float64(time.Second))
}

// Keys returns the configured credential list regardless of whether the
// YAML used the singular `api_key` or the plural `api_keys` form.
func (p ProviderConfig) Keys() []string {
	if len(p.APIKeys) > 0 {
		return p.APIKeys
	}
	if p.APIKey != "" {
		return []string{p.APIKey}
	}
	return nil
}

// BindingConfig is one provider entry inside a model's `providers` map —
// a model-provider binding in spec terms.
type BindingConfig struct {
	ModelIDs          []string   `yaml:"-"`
	ModelIDRaw        any        `yaml:"model_id"`
	Priority          int        `yaml:"priority,omitempty"`
	APIKey            string     `yaml:"api_key,omitempty"`
	APIKeys           []string   `yaml:"api_keys,omitempty"`
	RateLimits        RateLimits `yaml:"rate_limits,omitempty"`
	Multiplier        float64    `yaml:"multiplier,omitempty"`
	TokenMultiplier   float64    `yaml:"token_multiplier,omitempty"`
	RequestMultiplier float64    `yaml:"request_multiplier,omitempty"`

	CreditsPerToken         float64 `yaml:"credits_per_token,omitempty"`
	CreditsPerMillionTokens float64 `yaml:"credits_per_million_tokens,omitempty"`
	CreditsPerRequest       float64 `yaml:"credits_per_request,omitempty"`

	MaxRetries int `yaml:"max_retries,omitempty"`
}

// KeyOverrides returns the binding's credential override list, if any.
func (b BindingConfig) KeyOverrides() []string {
	if len(b.APIKeys) > 0 {
		return b.APIKeys
	}
	if b.APIKey != "" {
		return []string{b.APIKey}
	}
	return nil
}

// EffectiveMaxRetries returns the binding's retry budget, defaulting to 3.
func (b BindingConfig) EffectiveMaxRetries() int {
	if b.MaxRetries <= 0 {
		return 3
	}
	return b.MaxRetries
}

// ModelConfig is one entry under the root `models` key.
type ModelConfig struct {
	Created   int64                    `yaml:"created,omitempty"`
	OwnedBy   string                   `yaml:"owned_by,omitempty"`
	Providers map[string]BindingConfig `yaml:"providers"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// LogConfig configures the zap logger built at startup.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// TelemetryConfig configures the OTLP exporter.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig configures the durable snapshot and Prometheus exposition.
type MetricsConfig struct {
	SnapshotPath     string        `yaml:"snapshot_path" env:"SNAPSHOT_PATH"`
	FlushInterval    time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
	ResponseWindowN  int           `yaml:"response_window" env:"RESPONSE_WINDOW"`
}

// Config is the complete, immutable-after-load configuration tree.
type Config struct {
	Server    ServerConfig           `yaml:"server" env:"SERVER"`
	Log       LogConfig              `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig        `yaml:"telemetry" env:"TELEMETRY"`
	Metrics   MetricsConfig          `yaml:"metrics" env:"METRICS"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Models    map[string]ModelConfig    `yaml:"models"`
}
