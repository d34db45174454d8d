// Package config loads feed-client configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lguimbarda/riskstream/ingest"
)

// Config mirrors the YAML configuration file of the feed client.
type Config struct {
	// Endpoint is the URL of the NDJSON streaming endpoint. Required.
	Endpoint string `yaml:"endpoint"`

	// RiskLevel restricts the feed to one risk level. Optional; one of
	// "low", "medium", "high".
	RiskLevel string `yaml:"risk_level"`

	// Location restricts the feed to one location (zip code). Optional.
	Location string `yaml:"location"`

	// BatchSize asks the feed for batches of this size. Optional.
	BatchSize int `yaml:"batch_size"`

	// IncludeSuggestions asks the feed to attach AI suggestions.
	IncludeSuggestions bool `yaml:"include_suggestions"`

	// IncludeNotifications asks the feed to attach notifications.
	IncludeNotifications bool `yaml:"include_notifications"`

	// ChunkSize overrides the byte-stream read size. Optional.
	ChunkSize int `yaml:"chunk_size"`

	// Database is a SQLite path for persisting the feed. Optional;
	// empty disables persistence.
	Database string `yaml:"database"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration data.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("config: endpoint is required")
	}
	switch c.RiskLevel {
	case "", "low", "medium", "high":
	default:
		return fmt.Errorf("config: invalid risk_level %q", c.RiskLevel)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("config: batch_size must not be negative")
	}
	return nil
}

// Options converts the configuration into session options.
func (c Config) Options() ingest.Options {
	return ingest.Options{
		Endpoint:             c.Endpoint,
		RiskLevel:            c.RiskLevel,
		Location:             c.Location,
		BatchSize:            c.BatchSize,
		IncludeSuggestions:   c.IncludeSuggestions,
		IncludeNotifications: c.IncludeNotifications,
		ChunkSize:            c.ChunkSize,
	}
}
