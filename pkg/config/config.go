// Package config loads rpcping configuration from file, environment and
// defaults, and converts it into client options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/oncrpc/internal/bytesize"
	"github.com/marmos91/oncrpc/pkg/metrics"
	"github.com/marmos91/oncrpc/pkg/rpc"
	"github.com/marmos91/oncrpc/pkg/rpc/client"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the rpcping configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (ONCRPC_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Client configures connections to RPC servers
	Client ClientConfig `mapstructure:"client" yaml:"client"`

	// Auth selects the credential sent with every call
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, one span per RPC call is exported to an OTLP-compatible
// collector (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	// Only the long running probe command starts the profiler.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Default: ["cpu", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server of the probe
// command. When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the address of the metrics endpoint
	// Default: ":9090"
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port" yaml:"listen"`
}

// ClientConfig configures connections to RPC servers.
type ClientConfig struct {
	// Timeout bounds connection setup and every call
	// Default: 10s
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0" yaml:"timeout"`

	// PortPolicy selects the local source port
	// Valid values: privileged (bind in [port_low, port_high]), any
	// Default: privileged
	PortPolicy string `mapstructure:"port_policy" validate:"required,oneof=privileged any" yaml:"port_policy"`

	// BindAttempts caps the random privileged ports tried before giving up
	// Default: 16
	BindAttempts int `mapstructure:"bind_attempts" validate:"min=1,max=1024" yaml:"bind_attempts"`

	// PortLow and PortHigh bound the privileged port range (inclusive)
	// Default: 500-1023
	PortLow  int `mapstructure:"port_low" validate:"min=1,max=65535" yaml:"port_low"`
	PortHigh int `mapstructure:"port_high" validate:"min=1,max=65535,gtefield=PortLow" yaml:"port_high"`

	// MaxRecordSize bounds a reassembled reply. Accepts sizes like "4Mi".
	// Default: 4Mi
	MaxRecordSize bytesize.ByteSize `mapstructure:"max_record_size" validate:"min=64,max=1073741824" yaml:"max_record_size"`

	// Network is the dial network
	// Valid values: tcp, tcp4, tcp6
	Network string `mapstructure:"network" validate:"required,oneof=tcp tcp4 tcp6" yaml:"network"`
}

// AuthConfig selects the credential sent with every call.
type AuthConfig struct {
	// Flavor is the credential flavor
	// Valid values: none, unix
	// Default: none
	Flavor string `mapstructure:"flavor" validate:"required,oneof=none unix" yaml:"flavor"`

	// MachineName is sent in AUTH_UNIX credentials
	// Default: the local hostname
	MachineName string `mapstructure:"machine_name" validate:"max=255" yaml:"machine_name,omitempty"`

	// UID and GID are the AUTH_UNIX caller identity
	UID uint32 `mapstructure:"uid" yaml:"uid"`
	GID uint32 `mapstructure:"gid" yaml:"gid"`

	// AuxGIDs lists supplementary groups (at most 16)
	AuxGIDs []uint32 `mapstructure:"aux_gids" validate:"max=16" yaml:"aux_gids,omitempty"`
}

// Credential builds the configured credential. An empty machine name is
// replaced by the local hostname.
func (c *Config) Credential() (rpc.Credential, error) {
	flavor, err := rpc.ParseAuthFlavor(c.Auth.Flavor)
	if err != nil {
		return nil, err
	}

	name := c.Auth.MachineName
	if name == "" && flavor == rpc.AuthUnix {
		if name, err = os.Hostname(); err != nil {
			return nil, fmt.Errorf("failed to determine machine name: %w", err)
		}
	}

	return rpc.NewCredential(flavor, name, c.Auth.UID, c.Auth.GID, c.Auth.AuxGIDs)
}

// ClientOptions converts the client and auth sections into client.Options.
// m may be nil to disable metrics.
func (c *Config) ClientOptions(m metrics.RPCMetrics) (client.Options, error) {
	policy, err := client.ParsePortPolicy(c.Client.PortPolicy)
	if err != nil {
		return client.Options{}, err
	}

	cred, err := c.Credential()
	if err != nil {
		return client.Options{}, err
	}

	return client.Options{
		Timeout:       c.Client.Timeout,
		PortPolicy:    policy,
		BindAttempts:  c.Client.BindAttempts,
		PortLow:       c.Client.PortLow,
		PortHigh:      c.Client.PortHigh,
		MaxRecordSize: c.Client.MaxRecordSize.Int(),
		Network:       c.Client.Network,
		Credential:    cred,
		Metrics:       m,
	}, nil
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (ONCRPC_*)
//  2. Configuration file
//  3. Default values
//
// A missing configuration file is not an error: environment variables and
// defaults still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)
	setViperDefaults(v)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: ONCRPC_CLIENT_TIMEOUT=5s
	v.SetEnvPrefix("ONCRPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/oncrpc/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// setViperDefaults registers every key so AutomaticEnv can resolve it even
// when no configuration file exists.
func setViperDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)
	v.SetDefault("telemetry.profiling.enabled", d.Telemetry.Profiling.Enabled)
	v.SetDefault("telemetry.profiling.endpoint", d.Telemetry.Profiling.Endpoint)
	v.SetDefault("telemetry.profiling.profile_types", d.Telemetry.Profiling.ProfileTypes)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen", d.Metrics.Listen)

	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.port_policy", d.Client.PortPolicy)
	v.SetDefault("client.bind_attempts", d.Client.BindAttempts)
	v.SetDefault("client.port_low", d.Client.PortLow)
	v.SetDefault("client.port_high", d.Client.PortHigh)
	v.SetDefault("client.max_record_size", d.Client.MaxRecordSize)
	v.SetDefault("client.network", d.Client.Network)

	v.SetDefault("auth.flavor", d.Auth.Flavor)
	v.SetDefault("auth.machine_name", d.Auth.MachineName)
	v.SetDefault("auth.uid", d.Auth.UID)
	v.SetDefault("auth.gid", d.Auth.GID)
	v.SetDefault("auth.aux_gids", d.Auth.AuxGIDs)
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// An explicit config file that does not exist
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		byteSizeDecodeHook(),
		// ONCRPC_AUTH_AUX_GIDS="4,24,27"
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "500ms", "5s", "1m".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// byteSizeDecodeHook converts strings like "4Mi" to bytesize.ByteSize.
// Numbers pass through unchanged.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		if s, ok := data.(string); ok {
			return bytesize.Parse(s)
		}
		return data, nil
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "oncrpc")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "oncrpc")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
