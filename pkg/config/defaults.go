package config

import (
	"strings"

	"github.com/marmos91/oncrpc/internal/bytesize"
	"github.com/marmos91/oncrpc/pkg/rpc"
	"github.com/marmos91/oncrpc/pkg/rpc/client"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyClientDefaults(&cfg.Client)
	applyAuthDefaults(&cfg.Auth)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	// stdout carries command results
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "inuse_space", "goroutines"}
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Listen == "" {
		cfg.Listen = ":9090"
	}
}

// applyClientDefaults sets connection defaults.
func applyClientDefaults(cfg *ClientConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = client.DefaultTimeout
	}
	if cfg.PortPolicy == "" {
		cfg.PortPolicy = client.PortPrivileged.String()
	}
	cfg.PortPolicy = strings.ToLower(cfg.PortPolicy)

	if cfg.BindAttempts == 0 {
		cfg.BindAttempts = client.DefaultBindAttempts
	}
	if cfg.PortLow == 0 && cfg.PortHigh == 0 {
		cfg.PortLow = client.DefaultPortLow
		cfg.PortHigh = client.DefaultPortHigh
	}
	if cfg.MaxRecordSize == 0 {
		cfg.MaxRecordSize = bytesize.ByteSize(rpc.DefaultMaxRecordSize)
	}
	if cfg.Network == "" {
		cfg.Network = "tcp"
	}
}

// applyAuthDefaults sets credential defaults.
func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Flavor == "" {
		cfg.Flavor = "none"
	}
	cfg.Flavor = strings.ToLower(cfg.Flavor)
	// MachineName defaults to the hostname when the credential is built
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
