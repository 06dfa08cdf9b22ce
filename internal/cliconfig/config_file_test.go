package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeConfigFile(t, `
server_url = "http://capture:9999"
server_token = "file-token"
lines = 120
link_url = "ws://relay/link"
poll_interval = "5s"
idle_threshold = 10
low_power = true
max_width = 80
settings_path = "/etc/pulsesync/settings.toml"
`)

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if fc.ServerURL != "http://capture:9999" || fc.Lines != 120 {
		t.Errorf("fc = %+v", fc)
	}
	if fc.PollInterval != "5s" {
		t.Errorf("PollInterval = %q, want raw string 5s", fc.PollInterval)
	}
	if fc.LowPower == nil || !*fc.LowPower {
		t.Error("LowPower not parsed")
	}
}

func TestLoadFileConfig_Missing(t *testing.T) {
	_, err := LoadFileConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Error("LoadFileConfig() on missing file succeeded")
	}
}

func TestLoadFileConfig_BadTOML(t *testing.T) {
	path := writeConfigFile(t, "server_url = [broken")
	if _, err := LoadFileConfig(path); err == nil {
		t.Error("LoadFileConfig() accepted broken TOML")
	}
}

func TestApplyFileConfig(t *testing.T) {
	cfg := DefaultConfig()
	fc := FileConfig{
		ServerURL:     "http://from-file:1",
		PollInterval:  "7s",
		IdleThreshold: 9,
		MaxWidth:      100,
	}

	if err := ApplyFileConfig(&cfg, fc, nil); err != nil {
		t.Fatalf("ApplyFileConfig() error = %v", err)
	}
	if cfg.ServerURL != "http://from-file:1" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.PollInterval != 7*time.Second {
		t.Errorf("PollInterval = %v, want 7s", cfg.PollInterval)
	}
	if cfg.IdleThreshold != 9 || cfg.MaxWidth != 100 {
		t.Errorf("IdleThreshold = %d, MaxWidth = %d", cfg.IdleThreshold, cfg.MaxWidth)
	}
	// Unset file fields leave defaults alone.
	if cfg.Lines != 80 {
		t.Errorf("Lines = %d, default clobbered", cfg.Lines)
	}
}

func TestApplyFileConfig_FlagWins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollInterval = 1 * time.Second // explicitly set via flag

	fc := FileConfig{PollInterval: "30s"}
	changed := map[string]bool{"poll": true}

	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		t.Fatalf("ApplyFileConfig() error = %v", err)
	}
	if cfg.PollInterval != 1*time.Second {
		t.Errorf("PollInterval = %v, flag value lost", cfg.PollInterval)
	}
}

func TestApplyFileConfig_BadDuration(t *testing.T) {
	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, FileConfig{PollInterval: "soon"}, nil); err == nil {
		t.Error("ApplyFileConfig() accepted an unparseable duration")
	}
}

func TestFileExists(t *testing.T) {
	path := writeConfigFile(t, "")
	if !FileExists(path) {
		t.Error("FileExists() = false for an existing file")
	}
	if FileExists(filepath.Join(t.TempDir(), "absent")) {
		t.Error("FileExists() = true for a missing file")
	}
}
