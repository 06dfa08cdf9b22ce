package pulsesync

import (
	"github.com/terminalpulse/pulsesync/internal/app"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

// Logger is the structured logging interface both roles accept.
type Logger = ports.Logger

// Transport moves envelopes between the primary and a companion.
type Transport = ports.Transport

// CaptureSource fetches frames from a capture server.
type CaptureSource = ports.CaptureSource

// DisplaySink consumes rendered frames on the companion.
type DisplaySink = app.DisplaySink

// KVStore is the durable key-value storage both roles persist into.
type KVStore = ports.KVStore

// Option configures optional behavior of a role instance.
type Option func(*options)

// options holds the optional collaborators; nil fields fall back to the
// built-in adapters wired from Config.
type options struct {
	logger    ports.Logger
	transport ports.Transport
	capture   ports.CaptureSource
	nav       ports.NavigationSource
	display   app.DisplaySink
	store     ports.KVStore
}

// WithLogger sets a custom logger. If not provided, logging is discarded.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTransport replaces the built-in websocket/relay transport, e.g. for
// embedding over an app-specific link.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithCaptureSource replaces the built-in HTTP capture client.
func WithCaptureSource(s CaptureSource) Option {
	return func(o *options) {
		o.capture = s
	}
}

// WithNavigationSource replaces the navigation side of the capture client.
// Without it, a custom capture source that also implements
// ports.NavigationSource is used for navigation too.
func WithNavigationSource(s ports.NavigationSource) Option {
	return func(o *options) {
		o.nav = s
	}
}

// WithDisplay sets the companion's display sink. Without one, accepted
// frames are gated and cached but not rendered.
func WithDisplay(d DisplaySink) Option {
	return func(o *options) {
		o.display = d
	}
}

// WithStore replaces the built-in file-backed store.
func WithStore(s KVStore) Option {
	return func(o *options) {
		o.store = s
	}
}
