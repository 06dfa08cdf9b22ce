package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (PULSESYNC_*). It respects flags that have been explicitly set (changed
// map). Returns an error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("server-url", os.Getenv("PULSESYNC_SERVER_URL"), &cfg.ServerURL)
	s.setString("server-token", os.Getenv("PULSESYNC_SERVER_TOKEN"), &cfg.ServerToken)
	s.setString("link-url", os.Getenv("PULSESYNC_LINK_URL"), &cfg.LinkURL)
	s.setString("relay-url", os.Getenv("PULSESYNC_RELAY_URL"), &cfg.RelayURL)
	s.setString("link-token", os.Getenv("PULSESYNC_LINK_TOKEN"), &cfg.LinkToken)
	s.setString("state-dir", os.Getenv("PULSESYNC_STATE_DIR"), &cfg.StateDir)
	s.setString("settings-path", os.Getenv("PULSESYNC_SETTINGS_PATH"), &cfg.SettingsPath)

	if err := s.setDuration("poll", os.Getenv("PULSESYNC_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("idle-cap", os.Getenv("PULSESYNC_IDLE_CAP"), &cfg.IdleCap); err != nil {
		return err
	}
	if err := s.setDuration("error-cap", os.Getenv("PULSESYNC_ERROR_CAP"), &cfg.ErrorCap); err != nil {
		return err
	}
	if err := s.setDuration("fetch-timeout", os.Getenv("PULSESYNC_FETCH_TIMEOUT"), &cfg.FetchTimeout); err != nil {
		return err
	}
	if err := s.setDuration("store-forward-min-gap", os.Getenv("PULSESYNC_STORE_FORWARD_MIN_GAP"), &cfg.StoreForwardMinGap); err != nil {
		return err
	}
	if err := s.setDuration("drain-interval", os.Getenv("PULSESYNC_DRAIN_INTERVAL"), &cfg.DrainInterval); err != nil {
		return err
	}

	if err := s.setIntFromString("lines", os.Getenv("PULSESYNC_LINES"), &cfg.Lines); err != nil {
		return err
	}
	if err := s.setIntFromString("idle-threshold", os.Getenv("PULSESYNC_IDLE_THRESHOLD"), &cfg.IdleThreshold); err != nil {
		return err
	}
	if err := s.setIntFromString("max-width", os.Getenv("PULSESYNC_MAX_WIDTH"), &cfg.MaxWidth); err != nil {
		return err
	}
	if err := s.setIntFromString("max-lines", os.Getenv("PULSESYNC_MAX_LINES"), &cfg.MaxLines); err != nil {
		return err
	}

	s.setBoolFromString("low-power", os.Getenv("PULSESYNC_LOW_POWER"), &cfg.LowPower)

	return nil
}
