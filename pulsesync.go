// Package pulsesync mirrors a tmux pane to a companion display over an
// intermittent link.
//
// Example usage:
//
//	cfg := pulsesync.DefaultConfig()
//	cfg.ServerURL = "http://127.0.0.1:8787"
//	cfg.ServerToken = "your-api-key"
//	cfg.LinkURL = "ws://relay.local/link"
//	if err := pulsesync.RunPrimary(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// For finer control over lifecycle and wiring, use the pkg/pulsesync
// package directly.
package pulsesync

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/terminalpulse/pulsesync/internal/cliconfig"
	roles "github.com/terminalpulse/pulsesync/pkg/pulsesync"
)

// Config holds the configuration shared by both roles.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = roles.Config

// Option configures optional collaborators of a role instance.
type Option = roles.Option

// Re-exported option constructors.
var (
	WithLogger           = roles.WithLogger
	WithTransport        = roles.WithTransport
	WithCaptureSource    = roles.WithCaptureSource
	WithNavigationSource = roles.WithNavigationSource
	WithDisplay          = roles.WithDisplay
	WithStore            = roles.WithStore
)

// DefaultConfig returns a Config with sensible default values.
// At minimum, set ServerURL, ServerToken, and LinkURL before RunPrimary.
func DefaultConfig() Config {
	return roles.DefaultConfig()
}

// RunPrimary polls the capture server and replicates frames until the
// context is cancelled.
func RunPrimary(ctx context.Context, cfg Config, opts ...Option) error {
	p, err := roles.NewPrimary(cfg, opts...)
	if err != nil {
		return err
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return p.Stop()
}

// RunCompanion receives and renders replicated frames until the context is
// cancelled. Pass WithDisplay to see the frames somewhere.
func RunCompanion(ctx context.Context, cfg Config, opts ...Option) error {
	c, err := roles.NewCompanion(cfg, opts...)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return c.Stop()
}

// Logger returns the package-level console zerolog logger.
func Logger() zerolog.Logger {
	return cliconfig.Logger()
}
