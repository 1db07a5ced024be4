package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of a streaming run.
type Config struct {
	Service ServiceConfig `yaml:"service"`

	// Datasets lists the ColabFit dataset ids to stream. Order does not
	// matter; they are sorted before use.
	Datasets []string `yaml:"datasets"`

	// ListInMemory keeps resolved record ids in memory. It is the only
	// supported mode; false makes catalog construction fail.
	ListInMemory bool `yaml:"list_in_memory"`

	Loader  LoaderConfig  `yaml:"loader"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServiceConfig locates the streaming service.
type ServiceConfig struct {
	BaseURL     string `yaml:"base_url"`
	ResolvePath string `yaml:"resolve_path"`
	FetchPath   string `yaml:"fetch_path"`

	// Timeout bounds every HTTP request. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// LoaderConfig controls batching.
type LoaderConfig struct {
	BatchSize int  `yaml:"batch_size"`
	Workers   int  `yaml:"workers"`
	Shuffle   bool `yaml:"shuffle"`
	// Seed for shuffling. Zero uses the current time.
	Seed     int64 `yaml:"seed"`
	DropLast bool  `yaml:"drop_last"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the default configuration. It streams the dataset used by
// the service's own examples.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:     "https://cf.hsrn.nyu.edu",
			ResolvePath: "/po",
			FetchPath:   "/dataloader",
		},
		Datasets:     []string{"DS_q4h7q8q0fnve_0"},
		ListInMemory: true,
		Loader: LoaderConfig{
			BatchSize: 64,
			Workers:   2,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of the defaults. A missing file is not an
// error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Loader.BatchSize <= 0 {
		return fmt.Errorf("loader.batch_size must be positive, got %d", c.Loader.BatchSize)
	}
	if c.Loader.Workers <= 0 {
		return fmt.Errorf("loader.workers must be positive, got %d", c.Loader.Workers)
	}
	if c.Service.Timeout < 0 {
		return fmt.Errorf("service.timeout must be >= 0, got %s", c.Service.Timeout)
	}
	if c.Service.BaseURL == "" {
		return errors.New("service.base_url is required")
	}
	return nil
}
