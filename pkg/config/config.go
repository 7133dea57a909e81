// Package config loads and validates the process-wide configuration for the
// amphora orchestration worker. Configuration is read once from a YAML file,
// overlaid with environment variables, validated, and threaded into
// components as an immutable snapshot; the watcher in this package reloads
// the file on change for the settings that support it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration snapshot.
type Config struct {
	// AmphoraDriver is the name of the driver plugin to resolve.
	AmphoraDriver string `yaml:"amphora_driver" env:"AMPHION_AMPHORA_DRIVER" validate:"required"`

	// DriverOptions is driver-specific configuration passed to the factory.
	DriverOptions map[string]string `yaml:"driver_options" validate:"-"`

	// ConnectionMaxRetries bounds connection attempts to a booting amphora.
	ConnectionMaxRetries int `yaml:"connection_max_retries" env:"AMPHION_CONNECTION_MAX_RETRIES" validate:"min=0"`

	// ConnectionRetryInterval is the wait between bootstrap connection
	// attempts.
	ConnectionRetryInterval time.Duration `yaml:"connection_retry_interval" env:"AMPHION_CONNECTION_RETRY_INTERVAL" validate:"min=0"`

	// ActiveConnectionMaxRetries bounds connection attempts to an amphora
	// that is already serving traffic.
	ActiveConnectionMaxRetries int `yaml:"active_connection_max_retries" env:"AMPHION_ACTIVE_CONNECTION_MAX_RETRIES" validate:"min=0"`

	// ActiveConnectionRetryInterval is the wait between steady-state
	// connection attempts.
	ActiveConnectionRetryInterval time.Duration `yaml:"active_connection_retry_interval" env:"AMPHION_ACTIVE_CONNECTION_RETRY_INTERVAL" validate:"min=0"`

	// LoadBalancerTopology is the default topology when no flavor override
	// is supplied.
	LoadBalancerTopology string `yaml:"loadbalancer_topology" env:"AMPHION_LOADBALANCER_TOPOLOGY" validate:"oneof=SINGLE ACTIVE_STANDBY"`

	// CertKeyPassphrase is the base64 key material for decrypting at-rest
	// certificate blobs.
	CertKeyPassphrase string `yaml:"cert_key_passphrase" env:"AMPHION_CERT_KEY_PASSPHRASE" validate:"required,base64"`

	// Agent holds the settings rendered into amphora agent configurations.
	Agent AgentConfig `yaml:"agent"`

	// Database holds entity store settings.
	Database DatabaseConfig `yaml:"database"`

	// Log holds logging settings.
	Log LogConfig `yaml:"log"`

	// Metrics holds metrics endpoint settings.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing holds trace exporter settings.
	Tracing TracingConfig `yaml:"tracing"`
}

// AgentConfig configures the agent configuration builder.
type AgentConfig struct {
	// Debug enables debug logging on the appliance agent.
	Debug bool `yaml:"debug" env:"AMPHION_AGENT_DEBUG"`

	// HeartbeatInterval is the agent heartbeat interval in seconds.
	HeartbeatInterval int `yaml:"heartbeat_interval" env:"AMPHION_AGENT_HEARTBEAT_INTERVAL" validate:"min=0"`

	// HealthEndpoints is the comma-separated health manager endpoint list.
	HealthEndpoints string `yaml:"health_endpoints" env:"AMPHION_AGENT_HEALTH_ENDPOINTS"`
}

// DatabaseConfig configures the entity store.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" env:"AMPHION_DATABASE_PATH" validate:"required"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string `yaml:"level" env:"AMPHION_LOG_LEVEL" validate:"oneof=trace debug info warn error fatal"`

	// Format specifies the log format (console, json).
	Format string `yaml:"format" env:"AMPHION_LOG_FORMAT" validate:"oneof=console json"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	Enabled bool `yaml:"enabled" env:"AMPHION_METRICS_ENABLED"`

	// ListenAddress is the address for the metrics HTTP endpoint.
	ListenAddress string `yaml:"listen_address" env:"AMPHION_METRICS_LISTEN_ADDRESS"`
}

// TracingConfig configures trace export.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	Enabled bool `yaml:"enabled" env:"AMPHION_TRACING_ENABLED"`

	// Exporter specifies the trace exporter (otlp, stdout, none).
	Exporter string `yaml:"exporter" env:"AMPHION_TRACING_EXPORTER" validate:"omitempty,oneof=otlp stdout none"`

	// Endpoint is the OTLP exporter endpoint.
	Endpoint string `yaml:"endpoint" env:"AMPHION_TRACING_ENDPOINT"`

	// Insecure disables TLS for the exporter connection.
	Insecure bool `yaml:"insecure" env:"AMPHION_TRACING_INSECURE"`
}

// Default returns the built-in defaults applied before file and environment
// overrides.
func Default() *Config {
	return &Config{
		AmphoraDriver:                 "noop",
		ConnectionMaxRetries:          300,
		ConnectionRetryInterval:       5 * time.Second,
		ActiveConnectionMaxRetries:    15,
		ActiveConnectionRetryInterval: 2 * time.Second,
		LoadBalancerTopology:          "SINGLE",
		Agent: AgentConfig{
			HeartbeatInterval: 10,
		},
		Database: DatabaseConfig{
			Path: "amphion.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9102",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
	}
}

// Load reads configuration from path (optional), overlays environment
// variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
