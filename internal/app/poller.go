package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

// FramePublisher receives frames the poller decides to propagate.
type FramePublisher interface {
	Publish(frame domain.Frame)
}

// PollerConfig parameterizes the fetch loop.
type PollerConfig struct {
	Scheduler SchedulerConfig

	// FetchTimeout bounds a single capture round-trip.
	FetchTimeout time.Duration

	// BackgroundWake is the coarse interval for the single deferred wake
	// armed when entering a constrained execution state.
	BackgroundWake time.Duration
}

// DefaultPollerConfig returns the poller defaults.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Scheduler:      DefaultSchedulerConfig(),
		FetchTimeout:   10 * time.Second,
		BackgroundWake: 5 * time.Minute,
	}
}

type ctlKind int

const (
	ctlBackground ctlKind = iota
	ctlForeground
	ctlLowPower
)

type ctlMsg struct {
	kind     ctlKind
	lowPower bool
}

type fetchResult struct {
	frame domain.Frame
	err   error
}

// Poller owns the scheduling loop. It serializes fetches so at most one is in
// flight with at most one queued follow-up, drives the backoff scheduler, and
// hands changed frames to the publisher.
//
// Concurrent fetch requests from any caller (timer tick, manual refresh,
// navigation, foreground resume) coalesce through a one-slot kick channel:
// the slot is the "pending" flag of the state machine.
type Poller struct {
	cfg    PollerConfig
	source ports.CaptureSource
	sink   FramePublisher
	logger ports.Logger

	kick chan struct{}
	ctl  chan ctlMsg

	mu         sync.Mutex
	st         domain.BackoffState
	lastHash   string
	lastFrame  domain.Frame
	hasFrame   bool
	lastErr    error
	target     string
	needResync bool
	waiters    []chan fetchResult
	waiterSeq  uint64
}

// NewPoller creates a poller fetching from source and publishing to sink.
func NewPoller(cfg PollerConfig, source ports.CaptureSource, sink FramePublisher, logger ports.Logger) *Poller {
	return &Poller{
		cfg:    cfg,
		source: source,
		sink:   sink,
		logger: logger,
		kick:   make(chan struct{}, 1),
		ctl:    make(chan ctlMsg, 4),
	}
}

// RequestFetch asks for a fetch cycle without blocking. Safe from any
// goroutine; requests arriving while a fetch is in flight collapse into a
// single follow-up fetch.
func (p *Poller) RequestFetch() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// FetchAndWait blocks until the next fully-settled fetch cycle completes and
// returns the frame it settled on. Every waiter is released exactly once,
// including waiters that join a cycle already in progress.
func (p *Poller) FetchAndWait(ctx context.Context) (domain.Frame, error) {
	ch := make(chan fetchResult, 1)
	p.mu.Lock()
	p.waiters = append(p.waiters, ch)
	p.waiterSeq++
	p.mu.Unlock()

	p.RequestFetch()

	select {
	case r := <-ch:
		return r.frame, r.err
	case <-ctx.Done():
		return domain.Frame{}, ctx.Err()
	}
}

// SetTarget changes the capture target for subsequent fetches.
// An empty target selects the server's current default pane.
func (p *Poller) SetTarget(target string) {
	p.mu.Lock()
	p.target = target
	p.mu.Unlock()
}

// Target returns the currently selected capture target.
func (p *Poller) Target() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// NeedResync forces the next successful fetch to publish even when the
// content hash is unchanged, for a companion that explicitly asked for state.
func (p *Poller) NeedResync() {
	p.mu.Lock()
	p.needResync = true
	p.mu.Unlock()
	p.RequestFetch()
}

// EnterBackground cancels periodic polling and arms a single deferred wake
// at the coarse background interval.
func (p *Poller) EnterBackground() {
	p.ctl <- ctlMsg{kind: ctlBackground}
}

// EnterForeground resumes normal polling: counters reset to zero and a fetch
// is requested immediately.
func (p *Poller) EnterForeground() {
	p.ctl <- ctlMsg{kind: ctlForeground}
}

// SetLowPower toggles the reduced-power scheduling floor.
func (p *Poller) SetLowPower(on bool) {
	p.ctl <- ctlMsg{kind: ctlLowPower, lowPower: on}
}

// Snapshot returns a copy of the current backoff counters. Never blocks the
// polling loop beyond the state mutex.
func (p *Poller) Snapshot() domain.BackoffState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st
}

// LastFrame returns the last successfully captured frame, if any.
func (p *Poller) LastFrame() (domain.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFrame, p.hasFrame
}

// LastError returns the error from the most recent failed fetch, nil after a
// success.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Run executes the polling loop until the context is canceled.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.cfg.Scheduler.Next(p.Snapshot())
	timer := time.NewTimer(interval)
	defer timer.Stop()

	background := false

	for {
		select {
		case <-ctx.Done():
			p.releaseWaiters(fetchResult{err: ctx.Err()})
			return ctx.Err()

		case msg := <-p.ctl:
			switch msg.kind {
			case ctlBackground:
				background = true
				p.setBackground(true)
				// Single deferred wake, not a periodic timer.
				stopTimer(timer)
				timer.Reset(p.cfg.BackgroundWake)
				p.logger.Info("entering background",
					ports.Duration("wake", p.cfg.BackgroundWake))
				continue
			case ctlForeground:
				background = false
				p.resetCounters()
				p.logger.Info("entering foreground")
				// Fall through to an immediate cycle.
			case ctlLowPower:
				p.setLowPower(msg.lowPower)
				if background {
					continue
				}
				stopTimer(timer)
				interval = p.cfg.Scheduler.Next(p.Snapshot())
				timer.Reset(interval)
				continue
			}

		case <-timer.C:
			// In background this is the one deferred wake; it runs a single
			// cycle and nothing rearms the timer until foreground.

		case <-p.kick:
		}

		p.settleCycle(ctx)

		if background {
			continue
		}
		stopTimer(timer)
		interval = p.reschedule(interval)
		timer.Reset(interval)
	}
}

// settleCycle runs fetches until no pending request or mid-cycle waiter
// remains, then releases all waiters with the settled result.
func (p *Poller) settleCycle(ctx context.Context) {
	for {
		covered := p.joinSeq()
		res := p.fetchOnce(ctx)

		// A request that arrived while the fetch was in flight gets exactly
		// one coalesced follow-up; so does a waiter that joined mid-fetch.
		kicked := false
		select {
		case <-p.kick:
			kicked = true
		default:
		}
		if kicked || p.joinSeq() > covered {
			continue
		}

		p.releaseWaiters(res)
		return
	}
}

func (p *Poller) fetchOnce(ctx context.Context) fetchResult {
	fctx := ctx
	if p.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, p.cfg.FetchTimeout)
		defer cancel()
	}

	frame, err := p.source.Fetch(fctx, p.Target())

	p.mu.Lock()
	if err != nil {
		p.st.ConsecutiveErrors++
		p.lastErr = err
		consecutive := p.st.ConsecutiveErrors
		p.mu.Unlock()

		// Unauthorized is surfaced loudly; polling continues so fixed
		// credentials take effect without a restart, paced by the error
		// backoff rather than a tight retry loop.
		if errors.Is(err, domain.ErrUnauthorized) {
			p.logger.Error("capture unauthorized", ports.Err(err))
		} else if domain.IsTransient(err) {
			p.logger.Warn("capture failed",
				ports.Err(err), ports.Int("consecutive_errors", consecutive))
		} else {
			p.logger.Error("capture failed",
				ports.Err(err), ports.Int("consecutive_errors", consecutive))
		}
		return fetchResult{err: err}
	}

	p.st.ConsecutiveErrors = 0
	p.lastErr = nil

	changed := HasChanged(frame.ContentHash, p.lastHash)
	if changed {
		p.st.ConsecutiveUnchanged = 0
		p.lastHash = frame.ContentHash
	} else {
		p.st.ConsecutiveUnchanged++
	}
	publish := changed || p.needResync
	p.needResync = false
	p.lastFrame = frame
	p.hasFrame = true
	p.mu.Unlock()

	if publish && p.sink != nil {
		p.sink.Publish(frame)
	}
	return fetchResult{frame: frame}
}

// reschedule recomputes the interval, keeping the current one when the delta
// is within the hysteresis margin to avoid timer churn.
func (p *Poller) reschedule(current time.Duration) time.Duration {
	next := p.cfg.Scheduler.Next(p.Snapshot())
	delta := next - current
	if delta < 0 {
		delta = -delta
	}
	if delta <= p.cfg.Scheduler.Hysteresis {
		return current
	}
	return next
}

// joinSeq is a monotone counter of FetchAndWait registrations; comparing it
// across a fetch detects waiters that joined while the fetch was in flight.
func (p *Poller) joinSeq() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiterSeq
}

func (p *Poller) releaseWaiters(res fetchResult) {
	p.mu.Lock()
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, ch := range waiters {
		ch <- res
	}
}

func (p *Poller) resetCounters() {
	p.mu.Lock()
	p.st.ConsecutiveUnchanged = 0
	p.st.ConsecutiveErrors = 0
	p.st.InBackground = false
	p.mu.Unlock()
}

func (p *Poller) setBackground(on bool) {
	p.mu.Lock()
	p.st.InBackground = on
	p.mu.Unlock()
}

func (p *Poller) setLowPower(on bool) {
	p.mu.Lock()
	p.st.LowPowerMode = on
	p.mu.Unlock()
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
