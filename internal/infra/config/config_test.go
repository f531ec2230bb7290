package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Auth:   AuthConfig{Token: "test-token"},
		Player: PlayerConfig{
			RepeatMode:  "off",
			GapMs:       100,
			EventBuffer: 64,
		},
		Radio: RadioConfig{
			BatchSize:       10,
			Threshold:       3,
			FetchTimeoutSec: 15,
			SeedCount:       3,
			Sources: []SourceConfig{
				{
					Type:        "lastfm",
					DisplayName: "Last.fm",
					Settings:    map[string]any{"api_key": "test-api-key"},
				},
			},
		},
		Library: LibraryConfig{DBPath: "quaver.db", SearchHistoryLimit: 100},
		Spotify: SpotifyConfig{
			ClientID:     "test-client-id",
			ClientSecret: "test-client-secret",
			RefreshToken: "test-refresh-token",
			Market:       "JP",
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing spotify client id",
			modify:  func(c *Config) { c.Spotify.ClientID = "" },
			wantErr: true,
			errMsg:  "ClientID",
		},
		{
			name:    "missing auth token",
			modify:  func(c *Config) { c.Auth.Token = "" },
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name:    "invalid market length",
			modify:  func(c *Config) { c.Spotify.Market = "JAPAN" },
			wantErr: true,
			errMsg:  "Market",
		},
		{
			name:    "unknown repeat mode",
			modify:  func(c *Config) { c.Player.RepeatMode = "shuffle" },
			wantErr: true,
			errMsg:  "RepeatMode",
		},
		{
			name:    "batch size too large",
			modify:  func(c *Config) { c.Radio.BatchSize = 500 },
			wantErr: true,
			errMsg:  "BatchSize",
		},
		{
			name:    "no radio sources",
			modify:  func(c *Config) { c.Radio.Sources = nil },
			wantErr: true,
			errMsg:  "Sources",
		},
		{
			name: "unknown source type",
			modify: func(c *Config) {
				c.Radio.Sources[0].Type = "soundcloud"
			},
			wantErr: true,
			errMsg:  "Type",
		},
		{
			name: "duplicate source display name",
			modify: func(c *Config) {
				c.Radio.Sources = append(c.Radio.Sources, SourceConfig{Type: "recommendations", DisplayName: "Last.fm"})
			},
			wantErr: true,
			errMsg:  "duplicate radio source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err, "expected validation to fail")
				assert.Contains(t, err.Error(), tt.errMsg,
					"error message should mention the problematic field")
			} else {
				assert.NoError(t, err, "expected validation to pass")
			}
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	yamlData := `
auth:
  token: secret
radio:
  sources:
    - type: recommendations
      display_name: Spotify
spotify:
  client_id: id
  client_secret: secret
  refresh_token: refresh
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "off", cfg.Player.RepeatMode)
	assert.Equal(t, 100*time.Millisecond, cfg.GapCorrection())
	assert.Equal(t, 30*time.Second, cfg.DepletionThreshold())
	assert.Equal(t, 10, cfg.Radio.BatchSize)
	assert.Equal(t, 3, cfg.Radio.Threshold)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 3, cfg.Radio.RecentArtistCount)
	assert.Equal(t, "quaver.db", cfg.Library.DBPath)
	assert.Equal(t, 100, cfg.Library.SearchHistoryLimit)
	assert.Equal(t, "JP", cfg.Spotify.Market)
	assert.False(t, cfg.Player.PersistQueue)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("QUAVER_TOKEN", "env-token")
	t.Setenv("LASTFM_API_KEY", "env-lastfm")
	t.Setenv("SPOTIFY_CLIENT_ID", "env-client")

	yamlData := `
radio:
  sources:
    - type: lastfm
      display_name: Last.fm
spotify:
  client_secret: secret
  refresh_token: refresh
`
	cfg, err := Parse([]byte(yamlData))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Auth.Token)
	assert.Equal(t, "env-client", cfg.Spotify.ClientID)
	assert.Equal(t, "env-lastfm", cfg.Radio.Sources[0].Settings["api_key"])
}

func TestConfig_Filters(t *testing.T) {
	cfg := validConfig()
	cfg.Filters = map[string]FilterConfig{
		"duration_limit_filter": {
			Enabled:  true,
			Settings: map[string]any{"max_minutes": 10},
		},
		"explicit_filter": {Enabled: false},
	}

	assert.True(t, cfg.IsFilterEnabled("duration_limit_filter"))
	assert.False(t, cfg.IsFilterEnabled("explicit_filter"))
	assert.False(t, cfg.IsFilterEnabled("unknown"))
	assert.Equal(t, 10, cfg.GetFilterSettings("duration_limit_filter")["max_minutes"])
	assert.Nil(t, cfg.GetFilterSettings("unknown"))
}
