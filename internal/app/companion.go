package app

import (
	"context"

	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

// Companion is the receiving role: it accepts inbound frames and settings,
// renders them (or defers while dimmed), and nags the primary when state goes
// stale.
type Companion struct {
	receiver  *Receiver
	transport ports.Transport
	lifecycle *Lifecycle
	logger    ports.Logger
}

// NewCompanion wires the companion role from its collaborators.
func NewCompanion(
	cfg ReceiverConfig,
	transport ports.Transport,
	renderer ports.Renderer,
	display DisplaySink,
	store ports.KVStore,
	logger ports.Logger,
) *Companion {
	receiver := NewReceiver(cfg, transport, renderer, display, store, logger)
	c := &Companion{
		receiver:  receiver,
		transport: transport,
		lifecycle: NewLifecycle(logger),
		logger:    logger,
	}
	transport.SetHandler(receiver)
	return c
}

// Start restores the cached frame and launches the staleness pulse.
func (c *Companion) Start(ctx context.Context) error {
	if err := c.lifecycle.TransitionTo(StateStarting, "start requested"); err != nil {
		return domain.ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.lifecycle.SetCancel(cancel)

	c.receiver.RestoreCached(runCtx)

	c.lifecycle.AddWorker()
	go func() {
		defer c.lifecycle.WorkerDone()
		_ = c.receiver.Run(runCtx)
	}()

	return c.lifecycle.TransitionTo(StateRunning, "started")
}

// Stop cancels the workers and waits for them within the shutdown timeout.
func (c *Companion) Stop() error {
	if err := c.lifecycle.TransitionTo(StateStopping, "stop requested"); err != nil {
		return domain.ErrNotRunning
	}
	c.lifecycle.Cancel()
	err := c.lifecycle.WaitWithTimeout(ShutdownTimeout)
	if terr := c.lifecycle.TransitionTo(StateStopped, "stopped"); terr != nil {
		return terr
	}
	return err
}

// Status returns the lifecycle state.
func (c *Companion) Status() State {
	return c.lifecycle.State()
}

// Receiver exposes the inbound pipeline, e.g. for display state changes.
func (c *Companion) Receiver() *Receiver {
	return c.receiver
}
