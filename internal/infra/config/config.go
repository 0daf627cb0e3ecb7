// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/osa030/soundqueue/internal/app/playback"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Admin     AdminConfig     `yaml:"admin"`
	Player    PlayerConfig    `yaml:"player"`
	Audio     AudioConfig     `yaml:"audio"`
	Transport TransportConfig `yaml:"transport"`
	Playlist  PlaylistConfig  `yaml:"playlist"`
	Spotify   SpotifyConfig   `yaml:"spotify"`
	State     StateConfig     `yaml:"state"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// PlayerConfig mirrors playback.Config in YAML form.
type PlayerConfig struct {
	Volume             *int   `yaml:"volume" default:"80" validate:"gte=0,lte=100"`
	LoopQueue          bool   `yaml:"loop_queue"`
	LoopSong           bool   `yaml:"loop_song"`
	SoundsBaseURL      string `yaml:"sounds_base_url" validate:"omitempty,url"`
	ProgressIntervalMs int    `yaml:"progress_interval_ms" default:"1000" validate:"gte=10,lte=60000"`
	PlayNextOnEnded    *bool  `yaml:"play_next_on_ended" default:"true"`
	StopOnReset        *bool  `yaml:"stop_on_reset" default:"true"`
	VisibilityAutoMute bool   `yaml:"visibility_auto_mute"`
	PersistVolume      bool   `yaml:"persist_volume"`
	ProgressEvents     bool   `yaml:"progress_events"`
}

// AudioConfig represents the audio engine configuration.
type AudioConfig struct {
	Output          string `yaml:"output" default:"speaker" validate:"oneof=speaker headless"`
	SampleRate      int    `yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs        int    `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	ResampleQuality int    `yaml:"resample_quality" default:"4" validate:"gte=1,lte=64"`
}

// TransportConfig represents the HTTP transport configuration.
type TransportConfig struct {
	TimeoutSec int    `yaml:"timeout_sec" default:"30" validate:"gte=1"`
	MaxBytes   int64  `yaml:"max_bytes" default:"104857600" validate:"gte=1"`
	UserAgent  string `yaml:"user_agent" default:"soundqueue/1.0"`
}

// PlaylistConfig represents the startup playlist configuration.
type PlaylistConfig struct {
	Path     string `yaml:"path"`
	Autoplay bool   `yaml:"autoplay"`
}

// SpotifyConfig represents Spotify API configuration.
// Spotify entries in playlists are skipped when credentials are empty.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required_with=ClientSecret"`
	ClientSecret string `yaml:"client_secret" validate:"required_with=ClientID"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// StateConfig represents local state persistence.
type StateConfig struct {
	Path string `yaml:"path" default:"soundqueue-state.yaml"`
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

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

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
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("SOUNDS_BASE_URL"); v != "" {
		c.Player.SoundsBaseURL = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// SpotifyEnabled reports whether Spotify credentials are configured.
func (c *Config) SpotifyEnabled() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// PlaybackConfig converts the player section into a playback.Config.
func (c *Config) PlaybackConfig() playback.Config {
	return playback.Config{
		Volume:             c.Player.Volume,
		LoopQueue:          c.Player.LoopQueue,
		LoopSong:           c.Player.LoopSong,
		SoundsBaseURL:      c.Player.SoundsBaseURL,
		ProgressInterval:   time.Duration(c.Player.ProgressIntervalMs) * time.Millisecond,
		PlayNextOnEnded:    c.Player.PlayNextOnEnded,
		StopOnReset:        c.Player.StopOnReset,
		VisibilityAutoMute: c.Player.VisibilityAutoMute,
		PersistVolume:      c.Player.PersistVolume,
	}
}

// TransportTimeout returns the per-fetch timeout.
func (c *Config) TransportTimeout() time.Duration {
	return time.Duration(c.Transport.TimeoutSec) * time.Second
}

// AudioBuffer returns the output buffer length.
func (c *Config) AudioBuffer() time.Duration {
	return time.Duration(c.Audio.BufferMs) * time.Millisecond
}
