// Package pulsesync provides the embeddable primary and companion roles.
//
// The primary role polls a TerminalPulse capture server with adaptive
// backoff and replicates changed frames to a companion over a two-tier
// transport: a live websocket link and a best-effort store-and-forward
// relay. The companion role receives, gates, renders, and requests a
// refresh when its view goes stale.
//
// # Basic Usage
//
// To embed the primary role in your application:
//
//	cfg := pulsesync.DefaultConfig()
//	cfg.ServerURL = "http://127.0.0.1:8787"
//	cfg.ServerToken = "your-api-key"
//	cfg.LinkURL = "ws://relay.local/link"
//
//	p, err := pulsesync.NewPrimary(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	if err := p.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := p.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Options
//
// Collaborators can be swapped with functional options: [WithLogger]
// plugs in structured logging, [WithDisplay] gives the companion a
// render target, and [WithTransport], [WithCaptureSource], and
// [WithStore] replace the built-in adapters for testing or embedding
// over an app-specific link.
package pulsesync
