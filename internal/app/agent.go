package app

import (
	"context"

	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

// PrimaryConfig composes the configuration for the primary device role.
type PrimaryConfig struct {
	Poller  PollerConfig
	Channel ChannelConfig

	// SettingsPath is the display settings file replicated to the
	// companion. Empty disables the watcher.
	SettingsPath string
}

// Primary is the data-fetching role: it polls the capture source, detects
// change, and replicates frames to the companion. It is also the single
// owner of the primary-side transport events.
type Primary struct {
	cfg       PrimaryConfig
	poller    *Poller
	channel   *Channel
	navigator *Navigator
	watcher   *SettingsWatcher
	transport ports.Transport
	lifecycle *Lifecycle
	logger    ports.Logger
}

// NewPrimary wires the primary role from its collaborators.
func NewPrimary(
	cfg PrimaryConfig,
	capture ports.CaptureSource,
	nav ports.NavigationSource,
	transport ports.Transport,
	renderer ports.Renderer,
	store ports.KVStore,
	logger ports.Logger,
) *Primary {
	channel := NewChannel(cfg.Channel, transport, renderer, logger)
	poller := NewPoller(cfg.Poller, capture, channel, logger)
	p := &Primary{
		cfg:       cfg,
		poller:    poller,
		channel:   channel,
		navigator: NewNavigator(nav, poller, store, logger),
		watcher:   NewSettingsWatcher(cfg.SettingsPath, channel, logger),
		transport: transport,
		lifecycle: NewLifecycle(logger),
		logger:    logger,
	}
	transport.SetHandler(p)
	return p
}

// Start launches the polling loop and the settings watcher.
// Returns domain.ErrAlreadyRunning when called on a running instance.
func (p *Primary) Start(ctx context.Context) error {
	if err := p.lifecycle.TransitionTo(StateStarting, "start requested"); err != nil {
		return domain.ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.lifecycle.SetCancel(cancel)

	p.lifecycle.AddWorker()
	go func() {
		defer p.lifecycle.WorkerDone()
		if err := p.poller.Run(runCtx); err != nil && runCtx.Err() == nil {
			p.logger.Error("poller exited", ports.Err(err))
			_ = p.lifecycle.TransitionTo(StateCrashed, "poller exited")
		}
	}()

	p.lifecycle.AddWorker()
	go func() {
		defer p.lifecycle.WorkerDone()
		p.watcher.Run(runCtx)
	}()

	return p.lifecycle.TransitionTo(StateRunning, "started")
}

// Stop cancels the workers and waits for them within the shutdown timeout.
func (p *Primary) Stop() error {
	if err := p.lifecycle.TransitionTo(StateStopping, "stop requested"); err != nil {
		return domain.ErrNotRunning
	}
	p.lifecycle.Cancel()
	err := p.lifecycle.WaitWithTimeout(ShutdownTimeout)
	if terr := p.lifecycle.TransitionTo(StateStopped, "stopped"); terr != nil {
		return terr
	}
	return err
}

// Status returns the lifecycle state.
func (p *Primary) Status() State {
	return p.lifecycle.State()
}

// Poller exposes the fetch scheduler, e.g. for refresh surfaces.
func (p *Primary) Poller() *Poller {
	return p.poller
}

// Navigator exposes the navigation controller.
func (p *Primary) Navigator() *Navigator {
	return p.navigator
}

// HandleTransportEvent dispatches the transport's events to their single
// owners: acks and reachability to the channel, refresh requests to the
// poller.
func (p *Primary) HandleTransportEvent(ev ports.Event) {
	switch ev.Kind {
	case ports.ReachabilityChanged:
		p.channel.NoteReachability(ev.Reachable)
		if ev.Reachable {
			// Re-offer current state now that the companion can hear it.
			p.poller.NeedResync()
		}
	case ports.StoreAndForwardDelivered:
		p.channel.NoteStoreForwardDelivered()
	case ports.ImmediateDelivered:
		if ev.Envelope == nil {
			return
		}
		// Display state rides on companion-to-primary envelopes and picks
		// the outstanding store-and-forward cap.
		if ev.Envelope.DisplayActive != nil {
			p.channel.SetCompanionActive(*ev.Envelope.DisplayActive)
		}
		if ev.Envelope.Kind == domain.EnvelopeRefreshRequest {
			p.channel.Invalidate()
			p.poller.NeedResync()
		}
	}
}
