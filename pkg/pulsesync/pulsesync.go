package pulsesync

import (
	"context"
	"sync"
	"time"

	"github.com/terminalpulse/pulsesync/internal/adapters/fs"
	captureadapter "github.com/terminalpulse/pulsesync/internal/adapters/http"
	logadapter "github.com/terminalpulse/pulsesync/internal/adapters/log"
	"github.com/terminalpulse/pulsesync/internal/adapters/ws"
	"github.com/terminalpulse/pulsesync/internal/app"
	"github.com/terminalpulse/pulsesync/internal/cliconfig"
	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
	"github.com/terminalpulse/pulsesync/internal/render"
)

// Config holds the configuration shared by both roles.
type Config = cliconfig.Config

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// State is the lifecycle state of a role instance.
type State = app.State

// Lifecycle states.
const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

// Sentinel errors returned by role lifecycle methods.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
)

// runner is implemented by transports that need a background loop.
type runner interface {
	Run(ctx context.Context) error
}

// Primary polls a capture server and replicates changed frames to the
// companion. It is created in StateStopped; call Start to begin.
type Primary struct {
	cfg     Config
	inner   *app.Primary
	trans   ports.Transport
	capture ports.CaptureSource
	logger  ports.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPrimary builds the primary role. Fields not overridden by options are
// wired from cfg: the HTTP capture client, the websocket/relay transport, and
// a file-backed store under cfg.StateDir.
func NewPrimary(cfg Config, opts ...Option) (*Primary, error) {
	if err := cfg.ValidatePrimary(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	logger := o.logger

	capture := o.capture
	nav := o.nav
	if capture == nil {
		client := captureadapter.NewClient(captureadapter.ClientConfig{
			BaseURL:   cfg.ServerURL,
			AuthToken: cfg.ServerToken,
			Lines:     cfg.Lines,
			Timeout:   cfg.FetchTimeout,
		}, logger)
		capture = client
		if nav == nil {
			nav = client
		}
	}
	if nav == nil {
		// A custom capture source may serve navigation too.
		if n, ok := capture.(ports.NavigationSource); ok {
			nav = n
		} else {
			return nil, domain.ErrInvalidConfig
		}
	}

	transport := o.transport
	if transport == nil {
		transport = newLinkTransport(cfg, logger, 0)
	}

	store := o.store
	if store == nil {
		store = fs.NewKVStore(cfg.StateDir)
	}

	pollerCfg := app.DefaultPollerConfig()
	pollerCfg.Scheduler.Base = cfg.PollInterval
	pollerCfg.Scheduler.IdleCap = cfg.IdleCap
	pollerCfg.Scheduler.ErrorCap = cfg.ErrorCap
	pollerCfg.Scheduler.IdleThreshold = cfg.IdleThreshold
	pollerCfg.FetchTimeout = cfg.FetchTimeout
	pollerCfg.BackgroundWake = cfg.BackgroundWake

	channelCfg := app.DefaultChannelConfig()
	channelCfg.StoreForwardMinGap = cfg.StoreForwardMinGap
	channelCfg.SettingsDebounce = cfg.SettingsDebounce
	channelCfg.Display.MaxWidth = cfg.MaxWidth
	channelCfg.Display.MaxLines = cfg.MaxLines

	inner := app.NewPrimary(app.PrimaryConfig{
		Poller:       pollerCfg,
		Channel:      channelCfg,
		SettingsPath: cfg.SettingsPath,
	}, capture, nav, transport, render.NewProjector(), store, logger)

	if cfg.LowPower {
		inner.Poller().SetLowPower(true)
	}

	return &Primary{cfg: cfg, inner: inner, trans: transport, capture: capture, logger: logger}, nil
}

// Health probes the capture server when the underlying source supports it.
// Returns the server's hostname and whether tmux is running there.
func (p *Primary) Health(ctx context.Context) (host string, tmux bool, err error) {
	hc, ok := p.capture.(interface {
		Health(ctx context.Context) (string, bool, error)
	})
	if !ok {
		return "", false, domain.ErrNotFound
	}
	return hc.Health(ctx)
}

// Start begins polling and replication in the background. The provided
// context bounds the lifetime of the role.
func (p *Primary) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return domain.ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := p.inner.Start(runCtx); err != nil {
		cancel()
		return err
	}
	p.startTransport(runCtx)
	p.cancel = cancel
	return nil
}

// Stop shuts the role down, flushing workers within the shutdown timeout.
func (p *Primary) Stop() error {
	err := p.inner.Stop()

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
	return err
}

// Status returns the current lifecycle state. Safe to call concurrently.
func (p *Primary) Status() State {
	return p.inner.Status()
}

// SetLowPower toggles the reduced-power scheduling floor at runtime.
func (p *Primary) SetLowPower(on bool) {
	p.inner.Poller().SetLowPower(on)
}

// EnterBackground suspends the poll loop, leaving a single coarse wake.
func (p *Primary) EnterBackground() {
	p.inner.Poller().EnterBackground()
}

// EnterForeground resumes steady polling and forces an immediate fetch.
func (p *Primary) EnterForeground() {
	p.inner.Poller().EnterForeground()
}

// SwitchWindow moves the capture target one window in the given direction
// (+1 or -1), probing when the server cannot report the active window.
func (p *Primary) SwitchWindow(ctx context.Context, direction int) error {
	return p.inner.Navigator().SwitchWindow(ctx, direction)
}

// SwitchSession moves the capture target to the adjacent session.
func (p *Primary) SwitchSession(ctx context.Context, direction int) error {
	return p.inner.Navigator().SwitchSession(ctx, direction)
}

func (p *Primary) startTransport(ctx context.Context) {
	r, ok := p.trans.(runner)
	if !ok {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := r.Run(ctx); err != nil && err != context.Canceled {
			p.logger.Error("transport stopped", ports.Err(err))
		}
	}()
}

// Companion receives replicated frames, renders them to a display sink, and
// nags the primary when its view goes stale.
type Companion struct {
	cfg    Config
	inner  *app.Companion
	trans  ports.Transport
	logger ports.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCompanion builds the companion role. Without a WithDisplay option,
// accepted frames are gated and cached but not rendered.
func NewCompanion(cfg Config, opts ...Option) (*Companion, error) {
	if err := cfg.ValidateCompanion(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	logger := o.logger

	transport := o.transport
	if transport == nil {
		transport = newLinkTransport(cfg, logger, cfg.DrainInterval)
	}

	store := o.store
	if store == nil {
		store = fs.NewKVStore(cfg.StateDir)
	}

	inner := app.NewCompanion(
		app.DefaultReceiverConfig(),
		transport,
		render.NewProjector(),
		o.display,
		store,
		logger,
	)

	return &Companion{cfg: cfg, inner: inner, trans: transport, logger: logger}, nil
}

// Start restores the cached frame and begins receiving in the background.
func (c *Companion) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return domain.ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := c.inner.Start(runCtx); err != nil {
		cancel()
		return err
	}
	c.startTransport(runCtx)
	c.cancel = cancel
	return nil
}

// Stop shuts the role down.
func (c *Companion) Stop() error {
	err := c.inner.Stop()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	return err
}

// Status returns the current lifecycle state. Safe to call concurrently.
func (c *Companion) Status() State {
	return c.inner.Status()
}

// SetDimmed tells the receiver the display dimmed or woke. While dimmed,
// frames are deferred (latest only) and the staleness target loosens.
func (c *Companion) SetDimmed(dimmed bool) {
	c.inner.Receiver().SetDimmed(dimmed)
}

// Settings returns the display settings last replicated from the primary.
func (c *Companion) Settings() domain.Settings {
	return c.inner.Receiver().Settings()
}

func (c *Companion) startTransport(ctx context.Context) {
	r, ok := c.trans.(runner)
	if !ok {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := r.Run(ctx); err != nil && err != context.Canceled {
			c.logger.Error("transport stopped", ports.Err(err))
		}
	}()
}

func newLinkTransport(cfg Config, logger ports.Logger, drain time.Duration) *ws.Transport {
	tcfg := ws.DefaultTransportConfig()
	tcfg.LinkURL = cfg.LinkURL
	tcfg.RelayURL = cfg.RelayURL
	tcfg.AuthToken = cfg.LinkToken
	tcfg.DrainInterval = drain
	return ws.NewTransport(tcfg, logger)
}

func applyOptions(opts []Option) options {
	o := options{logger: logadapter.NewNoopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logadapter.NewNoopLogger()
	}
	return o
}
