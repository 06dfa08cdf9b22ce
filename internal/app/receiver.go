package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

const lastFrameKey = "frame/last"

// DisplaySink consumes rendered frames on the companion.
type DisplaySink interface {
	Apply(frame domain.Frame, lines []ports.VisualLine)
}

// ReceiverConfig parameterizes the companion receiver.
type ReceiverConfig struct {
	// Scheduler shapes the staleness target the same way the primary shapes
	// its poll interval: consecutive-unchanged feeds the idle tier and a
	// dimmed display maps onto the low power floor.
	Scheduler SchedulerConfig

	// RefreshMinGap is the minimum gap between outbound refresh requests.
	RefreshMinGap time.Duration

	// RefreshCap caps outstanding unanswered refresh requests.
	RefreshCap int

	// SendTimeout bounds an outbound refresh request send.
	SendTimeout time.Duration
}

// DefaultReceiverConfig returns the receiver defaults.
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		Scheduler:     DefaultSchedulerConfig(),
		RefreshMinGap: 10 * time.Second,
		RefreshCap:    2,
		SendTimeout:   10 * time.Second,
	}
}

// Receiver is the companion half of replication. It gates every inbound
// payload through the sequence stamp rule, applies settings unconditionally
// once a payload is accepted, defers frame rendering while the display is
// dimmed (keeping only the latest frame), and runs a staleness pulse that
// asks the primary for a fetch when nothing has arrived for too long.
type Receiver struct {
	cfg       ReceiverConfig
	transport ports.Transport
	renderer  ports.Renderer
	display   DisplaySink
	store     ports.KVStore
	logger    ports.Logger

	mu            sync.Mutex
	gate          domain.StampGate
	settings      domain.Settings
	displayCfg    ports.DisplayConfig
	lastHash      string
	dimmed        bool
	deferred      *domain.Frame
	lastPayloadAt time.Time
	unchangedRuns int

	epoch       string
	seq         uint64
	outstanding int
	lastRefresh time.Time

	now func() time.Time
}

// NewReceiver creates a companion receiver. The store holds the last applied
// frame so a restart can render immediately while waiting for fresh state.
func NewReceiver(cfg ReceiverConfig, transport ports.Transport, renderer ports.Renderer, display DisplaySink, store ports.KVStore, logger ports.Logger) *Receiver {
	return &Receiver{
		cfg:        cfg,
		transport:  transport,
		renderer:   renderer,
		display:    display,
		store:      store,
		logger:     logger,
		displayCfg: ports.DisplayConfig{MaxWidth: 60, MaxLines: 40},
		epoch:      uuid.NewString(),
		now:        time.Now,
	}
}

// HandleTransportEvent dispatches transport events; the receiver is the
// single owner registered on the companion's transport.
func (r *Receiver) HandleTransportEvent(ev ports.Event) {
	switch ev.Kind {
	case ports.ReachabilityChanged:
		r.logger.Info("primary reachability changed", ports.Bool("reachable", ev.Reachable))
		if ev.Reachable {
			r.requestRefresh()
		}
	case ports.ImmediateDelivered, ports.StoreAndForwardDelivered:
		if ev.Envelope != nil {
			r.apply(*ev.Envelope)
		}
	}
}

// apply runs the acceptance pipeline for one inbound envelope.
func (r *Receiver) apply(env domain.Envelope) {
	r.mu.Lock()

	if !r.gate.Accept(env.Stamp) {
		r.mu.Unlock()
		r.logger.Debug("stale payload rejected",
			ports.String("epoch", env.Stamp.Epoch), ports.Uint64("seq", env.Stamp.Seq))
		return
	}

	r.lastPayloadAt = r.now()
	r.outstanding = 0

	// Settings are idempotent: always safe to apply from any accepted
	// payload, even a slightly stale one.
	settingsChanged := false
	if env.Settings != nil && *env.Settings != r.settings {
		r.settings = *env.Settings
		settingsChanged = true
		if env.Settings.MaxWidth > 0 {
			r.displayCfg.MaxWidth = env.Settings.MaxWidth
		}
		if env.Settings.MaxLines > 0 {
			r.displayCfg.MaxLines = env.Settings.MaxLines
		}
	}

	if env.Kind != domain.EnvelopeFrame || env.Frame == nil {
		r.mu.Unlock()
		return
	}

	frame := *env.Frame
	if !HasChanged(frame.ContentHash, r.lastHash) && !settingsChanged {
		r.unchangedRuns++
		r.mu.Unlock()
		return
	}
	r.unchangedRuns = 0

	if r.dimmed {
		// Only the latest deferred frame is kept; a fresher one always
		// replaces an older deferred one.
		r.deferred = &frame
		r.mu.Unlock()
		return
	}

	r.lastHash = frame.ContentHash
	cfg := r.displayCfg
	r.mu.Unlock()

	r.render(frame, cfg)
	r.cacheFrame(frame)
}

// SetDimmed switches the reduced-update display state. Resuming normal
// display flushes the most recent deferred frame, and only that one.
func (r *Receiver) SetDimmed(dimmed bool) {
	r.mu.Lock()
	r.dimmed = dimmed
	var flush *domain.Frame
	if !dimmed && r.deferred != nil {
		flush = r.deferred
		r.deferred = nil
		r.lastHash = flush.ContentHash
	}
	cfg := r.displayCfg
	r.mu.Unlock()

	if flush != nil {
		r.render(*flush, cfg)
		r.cacheFrame(*flush)
	}
}

// Settings returns the current replicated settings.
func (r *Receiver) Settings() domain.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// LastAccepted returns the last accepted sequence stamp.
func (r *Receiver) LastAccepted() domain.SequenceStamp {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gate.Last()
}

// RestoreCached renders the last cached frame, if any, so a restarted
// companion shows something while waiting for fresh state.
func (r *Receiver) RestoreCached(ctx context.Context) {
	raw, err := r.store.Get(ctx, lastFrameKey)
	if err != nil || raw == nil {
		return
	}
	var frame domain.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		r.logger.Warn("cached frame unreadable", ports.Err(err))
		return
	}
	r.mu.Lock()
	r.lastHash = frame.ContentHash
	cfg := r.displayCfg
	r.mu.Unlock()
	r.render(frame, cfg)
}

// Run drives the staleness pulse until the context is canceled: when no
// payload has arrived within the computed staleness target, the receiver
// proactively asks the primary for a fetch.
func (r *Receiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if r.stale() {
				r.requestRefresh()
			}
		}
	}
}

func (r *Receiver) stale() bool {
	r.mu.Lock()
	st := domain.BackoffState{
		ConsecutiveUnchanged: r.unchangedRuns,
		LowPowerMode:         r.dimmed,
	}
	last := r.lastPayloadAt
	r.mu.Unlock()

	if last.IsZero() {
		return true
	}
	target := r.cfg.Scheduler.Next(st)
	return r.now().Sub(last) > target
}

// requestRefresh sends a refresh-request control envelope to the primary,
// subject to its own minimum gap and outstanding cap.
func (r *Receiver) requestRefresh() {
	if !r.transport.Reachable() {
		return
	}

	r.mu.Lock()
	now := r.now()
	if r.outstanding >= r.cfg.RefreshCap ||
		(!r.lastRefresh.IsZero() && now.Sub(r.lastRefresh) < r.cfg.RefreshMinGap) {
		r.mu.Unlock()
		return
	}
	r.outstanding++
	r.lastRefresh = now
	r.seq++
	active := !r.dimmed
	env := domain.Envelope{
		Kind:          domain.EnvelopeRefreshRequest,
		Stamp:         domain.SequenceStamp{Epoch: r.epoch, Seq: r.seq, WallClock: now},
		DisplayActive: &active,
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SendTimeout)
	defer cancel()

	if err := r.transport.SendImmediate(ctx, env); err != nil {
		r.logger.Debug("refresh request failed", ports.Err(err))
		r.mu.Lock()
		if r.outstanding > 0 {
			r.outstanding--
		}
		r.mu.Unlock()
	}
}

func (r *Receiver) render(frame domain.Frame, cfg ports.DisplayConfig) {
	if r.display == nil {
		return
	}
	r.display.Apply(frame, r.renderer.Render(frame, cfg))
}

func (r *Receiver) cacheFrame(frame domain.Frame) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.Set(ctx, lastFrameKey, raw); err != nil {
		r.logger.Warn("cache frame", ports.Err(err))
	}
}
