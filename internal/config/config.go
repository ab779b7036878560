// Package config handles loading and parsing of gcstore CLI configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the gcstore CLI.
type Config struct {
	// Endpoint is the service base URL. Leave empty for the public GCS
	// endpoint; point it at an emulator for local work.
	Endpoint string `yaml:"endpoint"`
	// Project is the project ID used by bucket creation and listing.
	Project string `yaml:"project"`
	// DefaultBucket is used by commands invoked without an explicit bucket.
	DefaultBucket string `yaml:"default_bucket"`

	Upload  UploadConfig  `yaml:"upload"`
	Logging LoggingConfig `yaml:"logging"`
	// Metrics controls whether Prometheus collectors are registered.
	Metrics bool `yaml:"metrics"`
}

// UploadConfig holds upload tuning settings.
type UploadConfig struct {
	// ChunkSize is the resumable upload chunk size in bytes. Must be a
	// multiple of 262144 (256 KiB).
	ChunkSize int64 `yaml:"chunk_size"`
	// ResumableThreshold is the content size in bytes above which uploads
	// switch from single-request to resumable.
	ResumableThreshold int64 `yaml:"resumable_threshold"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log format: text, json.
	Format string `yaml:"format"`
}

// Load reads a YAML configuration file from the given path and returns a
// parsed Config with defaults applied. A missing file is not an error; the
// defaults are returned so the CLI works without any configuration.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Upload: UploadConfig{
			ChunkSize:          8 * 1024 * 1024,
			ResumableThreshold: 16 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyDefaults fills fields that YAML left empty or zero.
func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Upload.ChunkSize == 0 {
		cfg.Upload.ChunkSize = def.Upload.ChunkSize
	}
	if cfg.Upload.ResumableThreshold == 0 {
		cfg.Upload.ResumableThreshold = def.Upload.ResumableThreshold
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}
