// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all dualotp configuration.
type Config struct {
	API     API     `yaml:"api"`
	UI      UI      `yaml:"ui"`
	Session Session `yaml:"session"`
}

// API holds settings for the OTP service.
type API struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"` // 0 leaves the transport default
	UserAgent string        `yaml:"user_agent"`
}

// UI holds presentation settings.
type UI struct {
	DeliveryHint string `yaml:"delivery_hint"` // Appended to the "OTPs sent." message
	Plain        bool   `yaml:"plain"`         // Never start the TUI
}

// Session holds client-side session settings.
type Session struct {
	Dir string `yaml:"dir"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: API{
			BaseURL:   "http://127.0.0.1:8000",
			UserAgent: "dualotp",
		},
		UI: UI{
			DeliveryHint: "Check backend console (simulated).",
		},
		Session: Session{
			Dir: ".dualotp",
		},
	}
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	return LoadLayered(path)
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url cannot be empty")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("config: api.base_url %q: %w", c.API.BaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("config: api.timeout must be non-negative, got %v", c.API.Timeout)
	}
	if c.Session.Dir == "" {
		return errors.New("config: session.dir cannot be empty")
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: DUALOTP_BASE_URL, DUALOTP_TIMEOUT, DUALOTP_PLAIN.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("DUALOTP_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("DUALOTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid DUALOTP_TIMEOUT %q: %w", v, err)
		}
		c.API.Timeout = d
	}
	if v := os.Getenv("DUALOTP_PLAIN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid DUALOTP_PLAIN %q: %w", v, err)
		}
		c.UI.Plain = b
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	API     *rawAPI     `yaml:"api"`
	UI      *rawUI      `yaml:"ui"`
	Session *rawSession `yaml:"session"`
}

type rawAPI struct {
	BaseURL   *string        `yaml:"base_url"`
	Timeout   *time.Duration `yaml:"timeout"`
	UserAgent *string        `yaml:"user_agent"`
}

type rawUI struct {
	DeliveryHint *string `yaml:"delivery_hint"`
	Plain        *bool   `yaml:"plain"`
}

type rawSession struct {
	Dir *string `yaml:"dir"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if layer.API != nil {
		if layer.API.BaseURL != nil {
			c.API.BaseURL = *layer.API.BaseURL
		}
		if layer.API.Timeout != nil {
			c.API.Timeout = *layer.API.Timeout
		}
		if layer.API.UserAgent != nil {
			c.API.UserAgent = *layer.API.UserAgent
		}
	}
	if layer.UI != nil {
		if layer.UI.DeliveryHint != nil {
			c.UI.DeliveryHint = *layer.UI.DeliveryHint
		}
		if layer.UI.Plain != nil {
			c.UI.Plain = *layer.UI.Plain
		}
	}
	if layer.Session != nil {
		if layer.Session.Dir != nil {
			c.Session.Dir = *layer.Session.Dir
		}
	}
}
