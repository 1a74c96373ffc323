// Package config provides the merged configuration consumed by the telemetry client.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend selects which transport adapter the client constructs.
type Backend string

const (
	// BackendOTLP sends hierarchical OTLP/JSON payloads to a collector.
	BackendOTLP Backend = "otlp"
	// BackendClickHouse inserts row-oriented payloads directly into ClickHouse.
	BackendClickHouse Backend = "clickhouse"
)

// Default values applied by New for fields left at their zero value.
const (
	DefaultEndpoint             = "https://telemetry.namastex.ai"
	DefaultOrganization         = "namastex"
	DefaultTimeout              = 5 * time.Second
	DefaultBatchSize            = 100
	DefaultFlushInterval        = 5 * time.Second
	DefaultCompressionThreshold = 1024
	DefaultMaxRetries           = 3
	DefaultRetryBackoffBase     = 1 * time.Second

	DefaultClickHouseEndpoint = "http://localhost:8123"
	DefaultClickHouseDatabase = "telemetry"
	DefaultClickHouseTable    = "events"
	DefaultClickHouseUsername = "default"
)

// Config is the merged configuration for a telemetry client. It is built by
// the embedding application (or loaded from a file by the CLI); the client
// itself never reads environment variables.
type Config struct {
	ProjectName  string `yaml:"project_name"`
	Version      string `yaml:"version"`
	Organization string `yaml:"organization"`

	Backend  Backend       `yaml:"backend"`
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`

	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`

	CompressionEnabled   bool `yaml:"compression_enabled"`
	CompressionThreshold int  `yaml:"compression_threshold"`

	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base"`

	// Enabled controls whether the client transmits anything at all.
	// Telemetry is opt-in: the zero value means disabled.
	Enabled bool `yaml:"enabled"`

	// Verbose turns on debug-level diagnostics describing dropped events
	// and retry attempts. It never alters control flow.
	Verbose bool `yaml:"verbose"`

	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// ClickHouseConfig holds the column-store adapter settings.
type ClickHouseConfig struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// New returns a copy of cfg with defaults applied and validation performed.
// It is the single fail-fast point of the SDK: an invalid configuration is
// the only error ever surfaced to the host application.
func New(cfg Config) (Config, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendOTLP
	}
	if cfg.Organization == "" {
		cfg.Organization = DefaultOrganization
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.CompressionThreshold == 0 {
		cfg.CompressionThreshold = DefaultCompressionThreshold
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBackoffBase == 0 {
		cfg.RetryBackoffBase = DefaultRetryBackoffBase
	}
	if cfg.ClickHouse.Endpoint == "" {
		cfg.ClickHouse.Endpoint = DefaultClickHouseEndpoint
	}
	if cfg.ClickHouse.Database == "" {
		cfg.ClickHouse.Database = DefaultClickHouseDatabase
	}
	if cfg.ClickHouse.Table == "" {
		cfg.ClickHouse.Table = DefaultClickHouseTable
	}
	if cfg.ClickHouse.Username == "" {
		cfg.ClickHouse.Username = DefaultClickHouseUsername
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration invariants and returns a descriptive error
// for the first violation found.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ProjectName) == "" {
		return fmt.Errorf("config: project_name is required and cannot be empty")
	}
	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("config: version is required and cannot be empty")
	}
	if strings.TrimSpace(c.Organization) == "" {
		return fmt.Errorf("config: organization cannot be empty")
	}

	switch c.Backend {
	case BackendOTLP, BackendClickHouse:
	default:
		return fmt.Errorf("config: unsupported backend %q (want %q or %q)", c.Backend, BackendOTLP, BackendClickHouse)
	}

	if err := validateEndpoint(c.Endpoint); err != nil {
		return err
	}
	if c.Backend == BackendClickHouse {
		if err := validateEndpoint(c.ClickHouse.Endpoint); err != nil {
			return err
		}
		if strings.TrimSpace(c.ClickHouse.Database) == "" {
			return fmt.Errorf("config: clickhouse database cannot be empty")
		}
		if strings.TrimSpace(c.ClickHouse.Table) == "" {
			return fmt.Errorf("config: clickhouse table cannot be empty")
		}
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive (got %s)", c.Timeout)
	}
	if c.Timeout > 60*time.Second {
		return fmt.Errorf("config: timeout should not exceed 60s (got %s)", c.Timeout)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch_size must be at least 1 (got %d)", c.BatchSize)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("config: flush_interval must be positive (got %s)", c.FlushInterval)
	}
	if c.CompressionThreshold < 0 {
		return fmt.Errorf("config: compression_threshold cannot be negative (got %d)", c.CompressionThreshold)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries cannot be negative (got %d)", c.MaxRetries)
	}
	if c.RetryBackoffBase <= 0 {
		return fmt.Errorf("config: retry_backoff_base must be positive (got %s)", c.RetryBackoffBase)
	}
	return nil
}

func validateEndpoint(endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("config: endpoint must be a valid URL (got %q): %w", endpoint, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("config: endpoint must use http or https (got %q)", endpoint)
	}
	if parsed.Host == "" {
		return fmt.Errorf("config: endpoint must be a valid URL (got %q)", endpoint)
	}
	return nil
}

// Load reads a Config from a YAML file and applies defaults and validation.
// It exists for the CLI and example programs; embedding applications usually
// construct the Config directly.
func Load(path string) (Config, error) {
	//nolint:gosec // Config file path is controlled by the operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return New(cfg)
}
