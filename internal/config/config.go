// Package config provides configuration loading and structs for recall.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Isolation modes for execution units.
const (
	IsolationProcess   = "process"
	IsolationGoroutine = "goroutine"
)

// EnvPrefix is the prefix of environment overrides, e.g. RECALL_STORE_PATH.
const EnvPrefix = "RECALL"

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Store   StoreConfig   `yaml:"store"`
	Search  SearchConfig  `yaml:"search"`
	Worker  WorkerConfig  `yaml:"worker"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StoreConfig locates the index store directory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultK        int `yaml:"default_k"`
	MaxK            int `yaml:"max_k"`
	DefaultEfSearch int `yaml:"default_ef_search"`
}

// WorkerConfig controls execution units.
type WorkerConfig struct {
	// Isolation is "process" (one child process per query) or "goroutine".
	Isolation     string        `yaml:"isolation"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	// Command overrides the worker executable; empty means the running binary.
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	// TextfilePath, when set, receives a Prometheus text dump after each command.
	TextfilePath string `yaml:"textfile_path"`
}

// envOverrides are read from the environment. Unset variables leave the file value alone.
type envOverrides struct {
	Debug           *bool          `envconfig:"DEBUG"`
	StorePath       *string        `envconfig:"STORE_PATH"`
	WorkerTimeout   *time.Duration `envconfig:"WORKER_TIMEOUT"`
	WorkerIsolation *string        `envconfig:"WORKER_ISOLATION"`
	MaxConcurrent   *int           `envconfig:"WORKER_MAX_CONCURRENT"`
	MetricsTextfile *string        `envconfig:"METRICS_TEXTFILE"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Store.Path = expandPath(cfg.Store.Path, configDir)
	if cfg.Metrics.TextfilePath != "" {
		cfg.Metrics.TextfilePath = expandPath(cfg.Metrics.TextfilePath, configDir)
	}

	return &cfg, nil
}

// ApplyEnv overrides cfg with RECALL_* environment variables.
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if env.Debug != nil {
		cfg.Debug = *env.Debug
	}
	if env.StorePath != nil {
		cfg.Store.Path = *env.StorePath
	}
	if env.WorkerTimeout != nil {
		cfg.Worker.Timeout = *env.WorkerTimeout
	}
	if env.WorkerIsolation != nil {
		cfg.Worker.Isolation = *env.WorkerIsolation
	}
	if env.MaxConcurrent != nil {
		cfg.Worker.MaxConcurrent = *env.MaxConcurrent
	}
	if env.MetricsTextfile != nil {
		cfg.Metrics.TextfilePath = *env.MetricsTextfile
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path cannot be empty")
	}
	switch c.Worker.Isolation {
	case IsolationProcess, IsolationGoroutine:
	default:
		return fmt.Errorf("worker.isolation must be %q or %q, got %q", IsolationProcess, IsolationGoroutine, c.Worker.Isolation)
	}
	if c.Worker.Timeout <= 0 {
		return fmt.Errorf("worker.timeout must be positive")
	}
	if c.Worker.MaxConcurrent <= 0 {
		return fmt.Errorf("worker.max_concurrent must be positive")
	}
	if c.Search.DefaultK <= 0 {
		return fmt.Errorf("search.default_k must be positive")
	}
	if c.Search.MaxK < c.Search.DefaultK {
		return fmt.Errorf("search.max_k (%d) is below search.default_k (%d)", c.Search.MaxK, c.Search.DefaultK)
	}
	if c.Search.DefaultEfSearch <= 0 {
		return fmt.Errorf("search.default_ef_search must be positive")
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
