package config

import "time"

// DefaultConfig returns the configuration used when no YAML file is
// supplied and no env override applies. Providers/Models are empty
// maps, so it does not pass Validate on its own: Load returns an error
// unless a YAML file supplies at least one provider and model.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
		Providers: make(map[string]ProviderConfig),
		Models:    make(map[string]ModelConfig),
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    200,
		RateLimitBurst:  400,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "llmgateway",
		SampleRate:   0.1,
	}
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SnapshotPath:    "metrics/provider_metrics.json",
		FlushInterval:   30 * time.Second,
		ResponseWindowN: 100,
	}
}
