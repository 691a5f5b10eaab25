package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when SHIFTDRAW_CONFIG is not set.
const DefaultPath = "config.yaml"

// Config holds all settings of the shift draw server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Draw      DrawConfig      `yaml:"draw"`
	Sessions  SessionConfig   `yaml:"sessions"`
	ImageEdit ImageEditConfig `yaml:"image_edit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	GinMode string `yaml:"gin_mode"` // debug, release, test
}

// LoggingConfig configures google/logger.
type LoggingConfig struct {
	Verbose bool   `yaml:"verbose"`
	File    string `yaml:"file"` // empty logs to stderr only
}

// DrawConfig tunes the draw.
type DrawConfig struct {
	RevealDelay string `yaml:"reveal_delay"`
}

// SessionConfig controls the idle session janitor.
type SessionConfig struct {
	TTL             string `yaml:"ttl"`
	JanitorInterval string `yaml:"janitor_interval"`
}

// ImageEditConfig configures the external image edit service.
type ImageEditConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:    ":8080",
			GinMode: "release",
		},
		Draw: DrawConfig{
			RevealDelay: "1200ms",
		},
		Sessions: SessionConfig{
			TTL:             "1h",
			JanitorInterval: "10m",
		},
		ImageEdit: ImageEditConfig{
			Model:   "gemini-2.5-flash-image",
			Timeout: "60s",
		},
	}
}

// Load reads the config file at path on top of the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the config path from SHIFTDRAW_CONFIG or DefaultPath.
func Path() string {
	if p := os.Getenv("SHIFTDRAW_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SHIFTDRAW_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SHIFTDRAW_GIN_MODE"); v != "" {
		c.Server.GinMode = v
	}
	if v := os.Getenv("SHIFTDRAW_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("SHIFTDRAW_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.Verbose = b
		}
	}
	if v := os.Getenv("SHIFTDRAW_REVEAL_DELAY"); v != "" {
		c.Draw.RevealDelay = v
	}
	if v := os.Getenv("SHIFTDRAW_SESSION_TTL"); v != "" {
		c.Sessions.TTL = v
	}
	if v := os.Getenv("SHIFTDRAW_JANITOR_INTERVAL"); v != "" {
		c.Sessions.JanitorInterval = v
	}

	// GEMINI_API_KEY wins over the generic API_KEY.
	if v := os.Getenv("API_KEY"); v != "" {
		c.ImageEdit.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.ImageEdit.APIKey = v
	}
}

// Validate checks that every duration parses.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"draw.reveal_delay":         c.Draw.RevealDelay,
		"sessions.ttl":              c.Sessions.TTL,
		"sessions.janitor_interval": c.Sessions.JanitorInterval,
		"image_edit.timeout":        c.ImageEdit.Timeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	return nil
}

func parseDuration(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// RevealDelayDuration is how long drawn cards stay face down.
func (d DrawConfig) RevealDelayDuration() time.Duration {
	return parseDuration(d.RevealDelay, 1200*time.Millisecond)
}

// TTLDuration is how long an idle session is kept.
func (s SessionConfig) TTLDuration() time.Duration {
	return parseDuration(s.TTL, time.Hour)
}

// JanitorIntervalDuration is how often idle sessions are swept.
func (s SessionConfig) JanitorIntervalDuration() time.Duration {
	d := parseDuration(s.JanitorInterval, 10*time.Minute)
	if d == 0 {
		return 10 * time.Minute
	}
	return d
}

// TimeoutDuration bounds one image edit request.
func (i ImageEditConfig) TimeoutDuration() time.Duration {
	return parseDuration(i.Timeout, time.Minute)
}
