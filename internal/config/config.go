// Package config loads the application configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the local API.
	Listen string `yaml:"listen" validate:"required"`

	// BackendURL is the base URL of the portal backend.
	BackendURL string `yaml:"backend_url" validate:"required,url"`

	// AuthToken authenticates requests to the backend. Optional.
	AuthToken string `yaml:"auth_token"`

	// StorageDir holds local state (cache database, logs).
	StorageDir string `yaml:"storage_dir" validate:"required"`

	// PersistCache enables warming cached views from disk across restarts.
	PersistCache bool `yaml:"persist_cache"`

	// RangeAwarePatches restricts create patches to views whose query
	// window contains the event. Default off.
	RangeAwarePatches bool `yaml:"range_aware_patches"`

	// StrictIntervals makes schedule saves reject malformed intervals.
	StrictIntervals bool `yaml:"strict_intervals"`

	// AllowedOrigins lists portal origins permitted by CORS.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MutationsPerMinute caps mutation requests per client IP.
	MutationsPerMinute int `yaml:"mutations_per_minute" validate:"gte=0"`

	// FeedHorizonDays is how far ahead the ICS feed reaches.
	FeedHorizonDays int `yaml:"feed_horizon_days" validate:"gte=0"`
}

// Defaults applied when the file omits a field.
const (
	DefaultListen             = "127.0.0.1:8642"
	DefaultMutationsPerMinute = 60
	DefaultFeedHorizonDays    = 90
)

// Load reads and validates the configuration at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults, and validates raw YAML configuration.
func Parse(data []byte) (Config, error) {
	cfg := Config{
		Listen:             DefaultListen,
		MutationsPerMinute: DefaultMutationsPerMinute,
		FeedHorizonDays:    DefaultFeedHorizonDays,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// FeedHorizon returns the ICS feed horizon as a duration.
func (c Config) FeedHorizon() time.Duration {
	return time.Duration(c.FeedHorizonDays) * 24 * time.Hour
}
