// Package config provides configuration management for cluster sessions
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the configuration of one session with the cluster
type Config struct {
	// Connection Configuration
	URL       string        `json:"url" yaml:"url"`               // Base URL of the cluster's REST API
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`       // Per-request HTTP timeout
	UserAgent string        `json:"user_agent" yaml:"user_agent"` // Overrides the default User-Agent header

	// Lifecycle Configuration
	Counting  bool   `json:"counting" yaml:"counting"`     // Delete remote frames when their last handle is released
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"` // Prefix of client-generated temporary keys

	// Job Polling Configuration
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"` // Delay between job status requests
	JobTimeout   time.Duration `json:"job_timeout" yaml:"job_timeout"`     // Give up on a job after this long (0 = never)

	// Debugging Configuration
	VerboseLogging    bool `json:"verbose_logging" yaml:"verbose_logging"`       // Enable verbose logging
	MetricsCollection bool `json:"metrics_collection" yaml:"metrics_collection"` // Enable metrics collection
}

// Default configuration values
const (
	DefaultURL          = "http://localhost:54321"
	DefaultTimeout      = 60 * time.Second
	DefaultKeyPrefix    = "rapids_"
	DefaultPollInterval = 200 * time.Millisecond
)

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		URL:     DefaultURL,
		Timeout: DefaultTimeout,

		Counting:  true,
		KeyPrefix: DefaultKeyPrefix,

		PollInterval: DefaultPollInterval,
		JobTimeout:   0, // Wait forever

		VerboseLogging:    false,
		MetricsCollection: false,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("URL must not be empty")
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("URL %q is invalid: %w", c.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("Timeout must be non-negative, got %s", c.Timeout)
	}

	if c.KeyPrefix == "" {
		return fmt.Errorf("KeyPrefix must not be empty")
	}

	if strings.ContainsAny(c.KeyPrefix, " ()\"[]") {
		return fmt.Errorf("KeyPrefix %q contains characters reserved by the expression grammar", c.KeyPrefix)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("PollInterval must be positive, got %s", c.PollInterval)
	}

	if c.JobTimeout < 0 {
		return fmt.Errorf("JobTimeout must be non-negative, got %s", c.JobTimeout)
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.URL == "" {
		c.URL = defaults.URL
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaults.KeyPrefix
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaults.PollInterval
	}

	// Note: Boolean fields are intentionally not set to defaults here
	// This allows distinguishing between explicitly set false and unset values
	// Use NewConfig() directly if you need boolean defaults

	return c
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	config := NewConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromYAML loads configuration from YAML data
func LoadFromYAML(data []byte) (Config, error) {
	config := NewConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing YAML configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a file (supports JSON, YAML)
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		return LoadFromJSON(data)
	case ".yaml", ".yml":
		return LoadFromYAML(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() Config {
	return ApplyEnv(NewConfig())
}

// ApplyEnv overrides fields of config with RAPIDS_* environment variables.
// Unparseable values are ignored.
func ApplyEnv(config Config) Config {
	if val := os.Getenv("RAPIDS_URL"); val != "" {
		config.URL = val
	}

	if val := os.Getenv("RAPIDS_TIMEOUT"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.Timeout = parsed
		}
	}

	if val := os.Getenv("RAPIDS_USER_AGENT"); val != "" {
		config.UserAgent = val
	}

	if val := os.Getenv("RAPIDS_COUNTING"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.Counting = parsed
		}
	}

	if val := os.Getenv("RAPIDS_KEY_PREFIX"); val != "" {
		config.KeyPrefix = val
	}

	if val := os.Getenv("RAPIDS_POLL_INTERVAL"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.PollInterval = parsed
		}
	}

	if val := os.Getenv("RAPIDS_JOB_TIMEOUT"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.JobTimeout = parsed
		}
	}

	if val := os.Getenv("RAPIDS_VERBOSE_LOGGING"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.VerboseLogging = parsed
		}
	}

	if val := os.Getenv("RAPIDS_METRICS_COLLECTION"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.MetricsCollection = parsed
		}
	}

	return config
}
