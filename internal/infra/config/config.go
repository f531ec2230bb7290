// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig            `yaml:"server"`
	Auth    AuthConfig              `yaml:"auth"`
	Player  PlayerConfig            `yaml:"player"`
	Radio   RadioConfig             `yaml:"radio"`
	Filters map[string]FilterConfig `yaml:"filters"`
	Library LibraryConfig           `yaml:"library"`
	Spotify SpotifyConfig           `yaml:"spotify"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

// AuthConfig represents RPC authentication configuration.
type AuthConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// PlayerConfig represents playback configuration.
type PlayerConfig struct {
	RepeatMode            string `yaml:"repeat_mode" default:"off" validate:"oneof=off one all"`
	GapMs                 int    `yaml:"gap_ms" default:"100" validate:"gte=0,lte=5000"`
	DepletionThresholdSec int    `yaml:"depletion_threshold_sec" default:"30" validate:"gte=0"`
	EventBuffer           int    `yaml:"event_buffer" default:"64" validate:"gte=1"`
	PersistQueue          bool   `yaml:"persist_queue"`
}

// RadioConfig represents radio (continuation) configuration.
type RadioConfig struct {
	BatchSize         int            `yaml:"batch_size" default:"10" validate:"gte=1,lte=50"`
	Threshold         int            `yaml:"threshold" default:"3" validate:"gte=0"`
	FetchTimeoutSec   int            `yaml:"fetch_timeout_sec" default:"15" validate:"gte=1"`
	SeedCount         int            `yaml:"seed_count" default:"3" validate:"gte=1"`
	RecentArtistCount int            `yaml:"recent_artist_count" default:"3" validate:"gte=0"`
	Sources           []SourceConfig `yaml:"sources" validate:"required,min=1,dive"`
}

// SourceConfig represents a single radio source configuration.
type SourceConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=recommendations lastfm playlist"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// LibraryConfig represents local library configuration.
type LibraryConfig struct {
	DBPath             string `yaml:"db_path" default:"quaver.db" validate:"required"`
	SearchHistoryLimit int    `yaml:"search_history_limit" default:"100" validate:"gte=0"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
	RefreshToken string `yaml:"refresh_token" validate:"required"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, applying env overrides,
// defaults and validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		for i := range c.Radio.Sources {
			if c.Radio.Sources[i].Type == "lastfm" {
				if c.Radio.Sources[i].Settings == nil {
					c.Radio.Sources[i].Settings = make(map[string]any)
				}
				c.Radio.Sources[i].Settings["api_key"] = v
			}
		}
	}
	if v := os.Getenv("QUAVER_TOKEN"); v != "" {
		c.Auth.Token = v
	}
	if v := os.Getenv("QUAVER_DB_PATH"); v != "" {
		c.Library.DBPath = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	seen := make(map[string]bool)
	for i, s := range c.Radio.Sources {
		if seen[s.DisplayName] {
			return errors.Newf("duplicate radio source display_name %q (source index %d)", s.DisplayName, i)
		}
		seen[s.DisplayName] = true
	}

	return nil
}

// GapCorrection returns the player gap as a duration.
func (c *Config) GapCorrection() time.Duration {
	return time.Duration(c.Player.GapMs) * time.Millisecond
}

// DepletionThreshold returns the time-based depletion threshold.
func (c *Config) DepletionThreshold() time.Duration {
	return time.Duration(c.Player.DepletionThresholdSec) * time.Second
}

// FetchTimeout returns the radio fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Radio.FetchTimeoutSec) * time.Second
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// GetFilterSettings returns the settings for a filter.
func (c *Config) GetFilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}
