package config

import (
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config carries the tunable timing windows and limits of the editor
// core. Zero values are never valid; start from Default.
type Config struct {
	// AutosaveInterval is the gap between persists while the user
	// keeps typing. The first save in a burst runs immediately.
	AutosaveInterval time.Duration `yaml:"autosave_interval"`

	// TypingInactivity is how long after the last change the user is
	// still considered typing.
	TypingInactivity time.Duration `yaml:"typing_inactivity"`

	// VersionRotation is the checkpoint interval: while typing
	// continues, a new working version is created this often.
	VersionRotation time.Duration `yaml:"version_rotation"`

	// VersionValidity is how long historical versions are kept before
	// garbage collection.
	VersionValidity time.Duration `yaml:"version_validity"`

	// ResetGrace is how long the reset guard stays raised so in-flight
	// completions can observe it.
	ResetGrace time.Duration `yaml:"reset_grace"`

	PreviewLength     int    `yaml:"preview_length"`
	DefaultFontFamily string `yaml:"default_font_family"`
	DefaultTitle      string `yaml:"default_title"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		AutosaveInterval:  time.Second,
		TypingInactivity:  2 * time.Second,
		VersionRotation:   5 * time.Minute,
		VersionValidity:   90 * 24 * time.Hour,
		ResetGrace:        100 * time.Millisecond,
		PreviewLength:     100,
		DefaultFontFamily: "Arial, sans-serif",
		DefaultTitle:      "Untitled Document",
	}
}

// Load builds the configuration from defaults, an optional YAML file
// named by SCRAPSHEET_CONFIG, and individual environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("SCRAPSHEET_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	overrides := []struct {
		key string
		dst *time.Duration
	}{
		{"SCRAPSHEET_AUTOSAVE_INTERVAL", &cfg.AutosaveInterval},
		{"SCRAPSHEET_TYPING_INACTIVITY", &cfg.TypingInactivity},
		{"SCRAPSHEET_VERSION_ROTATION", &cfg.VersionRotation},
		{"SCRAPSHEET_VERSION_VALIDITY", &cfg.VersionValidity},
		{"SCRAPSHEET_RESET_GRACE", &cfg.ResetGrace},
	}
	for _, o := range overrides {
		if raw := os.Getenv(o.key); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", o.key, err)
			}
			*o.dst = d
		}
	}

	if font := os.Getenv("SCRAPSHEET_DEFAULT_FONT"); font != "" {
		cfg.DefaultFontFamily = font
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects non-positive windows and degenerate limits.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AutosaveInterval, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.TypingInactivity, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.VersionRotation, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.VersionValidity, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.ResetGrace, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.PreviewLength, validation.Required, validation.Min(1)),
		validation.Field(&c.DefaultFontFamily, validation.Required),
		validation.Field(&c.DefaultTitle, validation.Required),
	)
}
