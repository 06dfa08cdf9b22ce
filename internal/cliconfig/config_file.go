package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	ServerURL   string `toml:"server_url"`
	ServerToken string `toml:"server_token"`
	Lines       int    `toml:"lines"`

	LinkURL   string `toml:"link_url"`
	RelayURL  string `toml:"relay_url"`
	LinkToken string `toml:"link_token"`

	PollInterval   string `toml:"poll_interval"`
	IdleCap        string `toml:"idle_cap"`
	ErrorCap       string `toml:"error_cap"`
	IdleThreshold  int    `toml:"idle_threshold"`
	FetchTimeout   string `toml:"fetch_timeout"`
	BackgroundWake string `toml:"background_wake"`
	LowPower       *bool  `toml:"low_power"`

	StoreForwardMinGap string `toml:"store_forward_min_gap"`
	SettingsDebounce   string `toml:"settings_debounce"`
	DrainInterval      string `toml:"drain_interval"`

	MaxWidth int `toml:"max_width"`
	MaxLines int `toml:"max_lines"`

	StateDir     string `toml:"state_dir"`
	SettingsPath string `toml:"settings_path"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.pulsesync/config.toml if the user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".pulsesync", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("server-url", fc.ServerURL, &cfg.ServerURL)
	s.setString("server-token", fc.ServerToken, &cfg.ServerToken)
	s.setString("link-url", fc.LinkURL, &cfg.LinkURL)
	s.setString("relay-url", fc.RelayURL, &cfg.RelayURL)
	s.setString("link-token", fc.LinkToken, &cfg.LinkToken)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("settings-path", fc.SettingsPath, &cfg.SettingsPath)

	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("idle-cap", fc.IdleCap, &cfg.IdleCap); err != nil {
		return err
	}
	if err := s.setDuration("error-cap", fc.ErrorCap, &cfg.ErrorCap); err != nil {
		return err
	}
	if err := s.setDuration("fetch-timeout", fc.FetchTimeout, &cfg.FetchTimeout); err != nil {
		return err
	}
	if err := s.setDuration("background-wake", fc.BackgroundWake, &cfg.BackgroundWake); err != nil {
		return err
	}
	if err := s.setDuration("store-forward-min-gap", fc.StoreForwardMinGap, &cfg.StoreForwardMinGap); err != nil {
		return err
	}
	if err := s.setDuration("settings-debounce", fc.SettingsDebounce, &cfg.SettingsDebounce); err != nil {
		return err
	}
	if err := s.setDuration("drain-interval", fc.DrainInterval, &cfg.DrainInterval); err != nil {
		return err
	}

	s.setInt("lines", fc.Lines, &cfg.Lines)
	s.setInt("idle-threshold", fc.IdleThreshold, &cfg.IdleThreshold)
	s.setInt("max-width", fc.MaxWidth, &cfg.MaxWidth)
	s.setInt("max-lines", fc.MaxLines, &cfg.MaxLines)

	s.setBool("low-power", fc.LowPower, &cfg.LowPower)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
