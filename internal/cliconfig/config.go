// Package cliconfig holds the CLI configuration for pulsesync with the usual
// precedence: flags override environment variables, which override the
// config file.
package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Config holds CLI configuration shared by both roles.
type Config struct {
	// Capture server (primary role).
	ServerURL   string
	ServerToken string
	Lines       int

	// Companion link.
	LinkURL   string
	RelayURL  string
	LinkToken string

	// Scheduling.
	PollInterval   time.Duration
	IdleCap        time.Duration
	ErrorCap       time.Duration
	IdleThreshold  int
	FetchTimeout   time.Duration
	BackgroundWake time.Duration
	LowPower       bool

	// Replication.
	StoreForwardMinGap time.Duration
	SettingsDebounce   time.Duration
	DrainInterval      time.Duration

	// Display projection bounds.
	MaxWidth int
	MaxLines int

	// Paths.
	StateDir     string
	SettingsPath string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ServerURL:          "http://127.0.0.1:8787",
		Lines:              80,
		PollInterval:       2 * time.Second,
		IdleCap:            30 * time.Second,
		ErrorCap:           60 * time.Second,
		IdleThreshold:      6,
		FetchTimeout:       10 * time.Second,
		BackgroundWake:     5 * time.Minute,
		StoreForwardMinGap: 15 * time.Second,
		SettingsDebounce:   400 * time.Millisecond,
		DrainInterval:      30 * time.Second,
		MaxWidth:           60,
		MaxLines:           40,
		StateDir:           defaultStateDir(),
		ServerToken:        os.Getenv("PULSESYNC_SERVER_TOKEN"),
		LinkToken:          os.Getenv("PULSESYNC_LINK_TOKEN"),
	}
}

func defaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".pulsesync")
	}
	return ""
}

// Validate checks the fields shared by both roles and sets derived defaults.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("state-dir is required")
	}

	// Ensure no trailing slash on URLs joined with endpoint paths.
	c.ServerURL = trimSlash(c.ServerURL)
	c.RelayURL = trimSlash(c.RelayURL)

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Lines <= 0 {
		return fmt.Errorf("lines must be positive")
	}
	return nil
}

// ValidatePrimary checks the fields only the primary role needs.
func (c *Config) ValidatePrimary() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ServerURL == "" {
		return fmt.Errorf("server-url is required")
	}
	if c.ServerToken == "" {
		return fmt.Errorf("server-token is required (or PULSESYNC_SERVER_TOKEN)")
	}
	if c.LinkURL == "" {
		return fmt.Errorf("link-url is required")
	}
	return nil
}

// ValidateCompanion checks the fields only the companion role needs.
func (c *Config) ValidateCompanion() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.LinkURL == "" {
		return fmt.Errorf("link-url is required")
	}
	return nil
}

func trimSlash(s string) string {
	if len(s) > 0 && s[len(s)-1] == '/' {
		return s[:len(s)-1]
	}
	return s
}

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// Logger returns the CLI-level zerolog logger.
func Logger() zerolog.Logger {
	return logger
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
