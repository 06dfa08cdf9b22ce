package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("PULSESYNC_SERVER_URL", "http://from-env:2")
	t.Setenv("PULSESYNC_POLL_INTERVAL", "4s")
	t.Setenv("PULSESYNC_LINES", "200")
	t.Setenv("PULSESYNC_LOW_POWER", "1")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err != nil {
		t.Fatalf("ApplyEnvConfig() error = %v", err)
	}

	if cfg.ServerURL != "http://from-env:2" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.PollInterval != 4*time.Second {
		t.Errorf("PollInterval = %v, want 4s", cfg.PollInterval)
	}
	if cfg.Lines != 200 {
		t.Errorf("Lines = %d, want 200", cfg.Lines)
	}
	if !cfg.LowPower {
		t.Error("LowPower not applied from env")
	}
}

func TestApplyEnvConfig_FlagWins(t *testing.T) {
	t.Setenv("PULSESYNC_SERVER_URL", "http://from-env:2")

	cfg := DefaultConfig()
	cfg.ServerURL = "http://from-flag:3"
	changed := map[string]bool{"server-url": true}

	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig() error = %v", err)
	}
	if cfg.ServerURL != "http://from-flag:3" {
		t.Errorf("ServerURL = %q, flag value lost", cfg.ServerURL)
	}
}

func TestApplyEnvConfig_BadValue(t *testing.T) {
	t.Setenv("PULSESYNC_FETCH_TIMEOUT", "whenever")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err == nil {
		t.Error("ApplyEnvConfig() accepted an unparseable duration")
	}
}

func TestApplyEnvConfig_UnsetLeavesDefaults(t *testing.T) {
	// No PULSESYNC_IDLE_CAP in the environment.
	t.Setenv("PULSESYNC_IDLE_CAP", "")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err != nil {
		t.Fatalf("ApplyEnvConfig() error = %v", err)
	}
	if cfg.IdleCap != 30*time.Second {
		t.Errorf("IdleCap = %v, default clobbered", cfg.IdleCap)
	}
}
