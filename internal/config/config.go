// Package config provides configuration management for the SOAR console
// daemon.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/logware/soar/pkg/duration"
)

// Duration is an alias for the shared duration.Duration type.
type Duration = duration.Duration

// Storage backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config represents the complete daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Retention RetentionConfig `yaml:"retention"`
	Relay     RelayConfig     `yaml:"relay"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address        string   `yaml:"address"`
	ReadTimeout    Duration `yaml:"read_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig selects and configures the record store.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data_dir"`
}

// RetentionConfig controls the background pruning of terminal execution
// records.
type RetentionConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
	MaxAge   Duration `yaml:"max_age"`
}

// RelayConfig contains abort relay settings.
type RelayConfig struct {
	DefaultCallbackURL string   `yaml:"default_callback_url"`
	Timeout            Duration `yaml:"timeout"`
	MaxAttempts        int      `yaml:"max_attempts"`
	InitialBackoff     Duration `yaml:"initial_backoff"`
	MaxBackoff         Duration `yaml:"max_backoff"`
	Multiplier         float64  `yaml:"multiplier"`
	MaxConcurrent      int      `yaml:"max_concurrent"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AuthConfig contains API key authentication settings.
type AuthConfig struct {
	Enabled bool     `yaml:"enabled"`
	Keys    []APIKey `yaml:"keys"`
}

// APIKey is one accepted credential. Hash is a bcrypt hash of the raw
// key; the raw key never appears in configuration.
type APIKey struct {
	Name      string `yaml:"name"`
	Hash      string `yaml:"hash"`
	ActorID   string `yaml:"actor_id"`
	ActorName string `yaml:"actor_name"`
}

// RateLimitConfig contains request rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      "0.0.0.0:8080",
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			DataDir: "./data",
		},
		Retention: RetentionConfig{
			Enabled:  true,
			Interval: Duration(1 * time.Hour),
			MaxAge:   Duration(30 * 24 * time.Hour),
		},
		Relay: RelayConfig{
			Timeout:        Duration(10 * time.Second),
			MaxAttempts:    3,
			InitialBackoff: Duration(500 * time.Millisecond),
			MaxBackoff:     Duration(10 * time.Second),
			Multiplier:     2.0,
			MaxConcurrent:  32,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "soard",
			SampleRatio: 1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 300,
			Burst:             50,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SOAR_HTTP_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("SOAR_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("SOAR_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("SOAR_CALLBACK_URL"); v != "" {
		c.Relay.DefaultCallbackURL = v
	}
	if v := os.Getenv("SOAR_OTLP_ENDPOINT"); v != "" {
		c.Tracing.Endpoint = v
	}
	if v := os.Getenv("SOAR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendBadger:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is required for the badger backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q",
			BackendMemory, BackendBadger, c.Storage.Backend)
	}
	if c.Retention.Enabled {
		if c.Retention.Interval.Std() <= 0 {
			return fmt.Errorf("retention.interval must be positive")
		}
		if c.Retention.MaxAge.Std() <= 0 {
			return fmt.Errorf("retention.max_age must be positive")
		}
	}
	if c.Relay.Multiplier < 1 {
		return fmt.Errorf("relay.multiplier must be >= 1")
	}
	if c.Auth.Enabled && len(c.Auth.Keys) == 0 {
		return fmt.Errorf("auth.keys must not be empty when auth is enabled")
	}
	for i, k := range c.Auth.Keys {
		if k.Name == "" {
			return fmt.Errorf("auth.keys[%d].name is required", i)
		}
		if !strings.HasPrefix(k.Hash, "$2") {
			return fmt.Errorf("auth.keys[%d].hash must be a bcrypt hash", i)
		}
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be positive")
	}
	return nil
}
