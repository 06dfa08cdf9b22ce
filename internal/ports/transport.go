package ports

import (
	"context"

	"github.com/terminalpulse/pulsesync/internal/domain"
)

// EventKind enumerates the transport event variants.
type EventKind int

const (
	// ReachabilityChanged fires when the live link to the peer comes up or
	// goes down. Reachable carries the new state.
	ReachabilityChanged EventKind = iota

	// ImmediateDelivered fires when an envelope arrives over the live link.
	ImmediateDelivered

	// StoreAndForwardDelivered fires when a queued envelope is picked up
	// from the relay.
	StoreAndForwardDelivered
)

// Event is a single transport notification dispatched to the owning handler.
type Event struct {
	Kind      EventKind
	Reachable bool
	Envelope  *domain.Envelope
}

// EventHandler receives transport events. Handlers are invoked from the
// transport's own goroutine; implementations must not block.
type EventHandler interface {
	HandleTransportEvent(ev Event)
}

// Transport moves envelopes between the primary and a companion over two
// tiers: an immediate low-latency channel requiring current reachability, and
// a best-effort store-and-forward relay the peer drains on its own schedule.
type Transport interface {
	// Reachable reports whether the peer is currently live-reachable.
	// Changes are also pushed as ReachabilityChanged events.
	Reachable() bool

	// SendImmediate delivers over the live channel. Fails when the peer is
	// not reachable or the write fails; the caller decides whether to fall
	// back one tier.
	SendImmediate(ctx context.Context, env domain.Envelope) error

	// SendStoreAndForward queues the envelope on the relay, fire-and-forget.
	// Rate limiting against platform quotas is the caller's responsibility.
	SendStoreAndForward(ctx context.Context, env domain.Envelope) error

	// SetHandler registers the single event handler. Must be called before
	// the transport starts delivering.
	SetHandler(h EventHandler)
}
