package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

// ChannelConfig parameterizes the companion-facing replication channel.
type ChannelConfig struct {
	// SendTimeout bounds a single transport send.
	SendTimeout time.Duration

	// StoreForwardMinGap is the minimum gap between store-and-forward sends,
	// respecting platform transfer quotas.
	StoreForwardMinGap time.Duration

	// StoreForwardCapActive caps outstanding unacknowledged store-and-forward
	// sends while the companion display is active.
	StoreForwardCapActive int

	// StoreForwardCapInactive is the (tighter) cap while the companion
	// display is inactive or backgrounded.
	StoreForwardCapInactive int

	// SettingsDebounce is the quiet period that collapses rapid settings
	// changes into a single send.
	SettingsDebounce time.Duration

	// Display bounds the projection sent to the companion.
	Display ports.DisplayConfig
}

// DefaultChannelConfig returns the channel defaults.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		SendTimeout:             10 * time.Second,
		StoreForwardMinGap:      15 * time.Second,
		StoreForwardCapActive:   4,
		StoreForwardCapInactive: 1,
		SettingsDebounce:        400 * time.Millisecond,
		Display:                 ports.DisplayConfig{MaxWidth: 60, MaxLines: 40},
	}
}

// Channel is the sender half of replication. It stamps every outbound
// envelope with a monotonic sequence in an epoch fixed at construction,
// prefers the immediate transport while the companion is reachable, and falls
// back one tier to store-and-forward before dropping. A dropped update is
// acceptable: the next successful poll re-sends current state.
type Channel struct {
	cfg       ChannelConfig
	transport ports.Transport
	renderer  ports.Renderer
	logger    ports.Logger

	// sendMu orders stamp allocation and transport hand-off: an envelope
	// stamped seq=N reaches the transport before seq=N+1 is stamped, so the
	// receiver's gate never sees a fresh stamp overtake an older one.
	sendMu sync.Mutex

	mu              sync.Mutex
	epoch           string
	seq             uint64
	lastSentHash    string
	lastStoreFwd    time.Time
	outstanding     int
	companionActive bool
	settings        domain.Settings
	settingsDirty   bool
	debounce        *time.Timer

	now func() time.Time
}

// NewChannel creates a replication channel. The epoch token is minted here
// and lives exactly as long as the process, so a restart resets sequence
// counting on the receiving side.
func NewChannel(cfg ChannelConfig, transport ports.Transport, renderer ports.Renderer, logger ports.Logger) *Channel {
	return &Channel{
		cfg:       cfg,
		transport: transport,
		renderer:  renderer,
		logger:    logger,
		epoch:     uuid.NewString(),
		now:       time.Now,
	}
}

// Publish projects the frame for the companion display and sends it. Called
// by the poller whenever a real change was detected or a re-sync was
// requested; sends with a hash the companion already holds over a live link
// are suppressed.
func (c *Channel) Publish(frame domain.Frame) {
	projected := c.project(frame)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	if projected.ContentHash == c.lastSentHash && !c.settingsDirty && c.transport.Reachable() {
		c.mu.Unlock()
		return
	}
	env := domain.Envelope{
		Kind:  domain.EnvelopeFrame,
		Stamp: c.nextStampLocked(),
		Frame: &projected,
	}
	if c.settingsDirty {
		s := c.settings
		env.Settings = &s
		c.settingsDirty = false
	}
	c.mu.Unlock()

	if c.send(env) {
		c.mu.Lock()
		c.lastSentHash = projected.ContentHash
		c.mu.Unlock()
	}
}

// UpdateSettings records a display settings change and schedules a debounced
// settings-only send: rapid repeated changes collapse into one envelope after
// the quiet period.
func (c *Channel) UpdateSettings(s domain.Settings) {
	c.mu.Lock()
	c.settings = s
	c.settingsDirty = true
	if s.MaxWidth > 0 {
		c.cfg.Display.MaxWidth = s.MaxWidth
	}
	if s.MaxLines > 0 {
		c.cfg.Display.MaxLines = s.MaxLines
	}
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.AfterFunc(c.cfg.SettingsDebounce, c.flushSettings)
	c.mu.Unlock()
}

// Invalidate clears send suppression so the next publish always goes out.
// Called when reachability is regained or a companion asks for a re-sync.
func (c *Channel) Invalidate() {
	c.mu.Lock()
	c.lastSentHash = ""
	c.mu.Unlock()
}

// SetCompanionActive switches the outstanding store-and-forward cap between
// its active and inactive bounds.
func (c *Channel) SetCompanionActive(active bool) {
	c.mu.Lock()
	c.companionActive = active
	c.mu.Unlock()
}

// NoteReachability reacts to a reachability flip. Regaining the link clears
// suppression so current state is re-offered over the immediate tier.
func (c *Channel) NoteReachability(reachable bool) {
	if reachable {
		c.Invalidate()
	}
	c.logger.Info("companion reachability changed", ports.Bool("reachable", reachable))
}

// NoteStoreForwardDelivered acknowledges one outstanding store-and-forward
// send.
func (c *Channel) NoteStoreForwardDelivered() {
	c.mu.Lock()
	if c.outstanding > 0 {
		c.outstanding--
	}
	c.mu.Unlock()
}

// Epoch returns the channel's epoch token.
func (c *Channel) Epoch() string {
	return c.epoch
}

func (c *Channel) flushSettings() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	if !c.settingsDirty {
		c.mu.Unlock()
		return
	}
	s := c.settings
	c.settingsDirty = false
	env := domain.Envelope{
		Kind:     domain.EnvelopeSettings,
		Stamp:    c.nextStampLocked(),
		Settings: &s,
	}
	c.mu.Unlock()

	c.send(env)
}

// send delivers over the immediate tier when reachable, falling back one
// tier to store-and-forward. Reports whether the envelope left the process.
func (c *Channel) send(env domain.Envelope) bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SendTimeout)
	defer cancel()

	if c.transport.Reachable() {
		err := c.transport.SendImmediate(ctx, env)
		if err == nil {
			return true
		}
		c.logger.Warn("immediate send failed, falling back", ports.Err(err))
	}
	return c.sendStoreForward(ctx, env)
}

// sendStoreForward queues on the relay unless the minimum gap or the
// outstanding cap says otherwise; exceeding either simply skips this update
// rather than queuing unboundedly.
func (c *Channel) sendStoreForward(ctx context.Context, env domain.Envelope) bool {
	c.mu.Lock()
	limit := c.cfg.StoreForwardCapInactive
	if c.companionActive {
		limit = c.cfg.StoreForwardCapActive
	}
	now := c.now()
	if c.outstanding >= limit || (!c.lastStoreFwd.IsZero() && now.Sub(c.lastStoreFwd) < c.cfg.StoreForwardMinGap) {
		c.mu.Unlock()
		c.logger.Debug("store-and-forward skipped",
			ports.Int("outstanding", c.outstanding), ports.Uint64("seq", env.Stamp.Seq))
		return false
	}
	c.outstanding++
	c.lastStoreFwd = now
	c.mu.Unlock()

	if err := c.transport.SendStoreAndForward(ctx, env); err != nil {
		c.logger.Warn("store-and-forward send failed", ports.Err(err))
		c.mu.Lock()
		if c.outstanding > 0 {
			c.outstanding--
		}
		c.mu.Unlock()
		return false
	}
	return true
}

func (c *Channel) nextStampLocked() domain.SequenceStamp {
	c.seq++
	return domain.SequenceStamp{Epoch: c.epoch, Seq: c.seq, WallClock: c.now()}
}

// project delegates the width-bounded rendering to the renderer collaborator
// and rebuilds a frame carrying the projected content.
func (c *Channel) project(frame domain.Frame) domain.Frame {
	c.mu.Lock()
	display := c.cfg.Display
	c.mu.Unlock()

	lines := c.renderer.Render(frame, display)
	content := make([]domain.Line, len(lines))
	for i, l := range lines {
		content[i] = domain.Line(l.Runs)
	}
	projected := frame
	projected.Content = content
	return projected
}
