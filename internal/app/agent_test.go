package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

func newTestPrimary(t *testing.T, tr *fakeTransport) *Primary {
	t.Helper()
	src := &scriptedSource{results: []fetchResult{{frame: frameWithHash("h1")}}}
	cfg := PrimaryConfig{
		Poller:  quietPollerConfig(),
		Channel: DefaultChannelConfig(),
	}
	return NewPrimary(cfg, src, &mockNavSource{}, tr, identityRenderer{}, newMemStore(), mockLogger{})
}

func TestPrimary_StartStop(t *testing.T) {
	tr := &fakeTransport{reachable: true}
	p := newTestPrimary(t, tr)

	if p.Status() != StateStopped {
		t.Fatalf("initial status = %v, want Stopped", p.Status())
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if p.Status() != StateRunning {
		t.Errorf("status = %v, want Running", p.Status())
	}

	if err := p.Start(context.Background()); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if p.Status() != StateStopped {
		t.Errorf("status after stop = %v, want Stopped", p.Status())
	}

	if err := p.Stop(); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("second Stop() = %v, want ErrNotRunning", err)
	}
}

func TestPrimary_RefreshRequestForcesPublish(t *testing.T) {
	tr := &fakeTransport{reachable: true}
	p := newTestPrimary(t, tr)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	// First frame publishes on its own.
	if _, err := p.Poller().FetchAndWait(context.Background()); err != nil {
		t.Fatalf("FetchAndWait() error = %v", err)
	}
	waitForEnvelopes(t, tr, 1)

	// An inbound refresh request must republish even though the hash is
	// unchanged.
	p.HandleTransportEvent(ports.Event{
		Kind: ports.ImmediateDelivered,
		Envelope: &domain.Envelope{
			Kind:  domain.EnvelopeRefreshRequest,
			Stamp: domain.SequenceStamp{Epoch: "c", Seq: 1, WallClock: time.Now()},
		},
	})
	waitForEnvelopes(t, tr, 2)
}

func TestPrimary_CompanionDisplayStateDrivesCap(t *testing.T) {
	tr := &fakeTransport{reachable: true}
	p := newTestPrimary(t, tr)

	companionActive := func() bool {
		p.channel.mu.Lock()
		defer p.channel.mu.Unlock()
		return p.channel.companionActive
	}

	active := true
	p.HandleTransportEvent(ports.Event{
		Kind: ports.ImmediateDelivered,
		Envelope: &domain.Envelope{
			Kind:          domain.EnvelopeRefreshRequest,
			Stamp:         domain.SequenceStamp{Epoch: "c", Seq: 1, WallClock: time.Now()},
			DisplayActive: &active,
		},
	})
	if !companionActive() {
		t.Error("companion not marked active after envelope reported an active display")
	}

	// Reachability flips say nothing about the display; the reported state
	// must stick.
	p.HandleTransportEvent(ports.Event{Kind: ports.ReachabilityChanged, Reachable: false})
	p.HandleTransportEvent(ports.Event{Kind: ports.ReachabilityChanged, Reachable: true})
	if !companionActive() {
		t.Error("reachability change overrode the companion's reported display state")
	}

	inactive := false
	p.HandleTransportEvent(ports.Event{
		Kind: ports.ImmediateDelivered,
		Envelope: &domain.Envelope{
			Kind:          domain.EnvelopeRefreshRequest,
			Stamp:         domain.SequenceStamp{Epoch: "c", Seq: 2, WallClock: time.Now()},
			DisplayActive: &inactive,
		},
	})
	if companionActive() {
		t.Error("companion still marked active after envelope reported a dimmed display")
	}
}

func TestPrimary_ReachabilityRegainResyncs(t *testing.T) {
	tr := &fakeTransport{reachable: true}
	p := newTestPrimary(t, tr)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	if _, err := p.Poller().FetchAndWait(context.Background()); err != nil {
		t.Fatalf("FetchAndWait() error = %v", err)
	}
	waitForEnvelopes(t, tr, 1)

	p.HandleTransportEvent(ports.Event{Kind: ports.ReachabilityChanged, Reachable: true})
	waitForEnvelopes(t, tr, 2)
}

func waitForEnvelopes(t *testing.T, tr *fakeTransport, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(tr.immediateSent()) >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d envelopes, got %d", want, len(tr.immediateSent()))
}

func TestCompanion_StartStop(t *testing.T) {
	tr := &fakeTransport{reachable: true}
	c := NewCompanion(DefaultReceiverConfig(), tr, identityRenderer{}, &recordDisplay{}, newMemStore(), mockLogger{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestCompanion_RestoresCachedFrameOnStart(t *testing.T) {
	tr := &fakeTransport{reachable: false}
	store := newMemStore()
	display := &recordDisplay{}

	// Seed the cache through a first companion instance.
	c1 := NewCompanion(DefaultReceiverConfig(), tr, identityRenderer{}, &recordDisplay{}, store, mockLogger{})
	env := domain.Envelope{
		Kind:  domain.EnvelopeFrame,
		Stamp: domain.SequenceStamp{Epoch: "e", Seq: 1, WallClock: time.Now()},
		Frame: &domain.Frame{ContentHash: "cached"},
	}
	c1.Receiver().HandleTransportEvent(ports.Event{Kind: ports.ImmediateDelivered, Envelope: &env})

	c2 := NewCompanion(DefaultReceiverConfig(), tr, identityRenderer{}, display, store, mockLogger{})
	if err := c2.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer c2.Stop()

	applied := display.applied()
	if len(applied) != 1 || applied[0].ContentHash != "cached" {
		t.Errorf("applied = %v, want the cached frame on startup", applied)
	}
}
