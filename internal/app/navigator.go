package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

const baseKeyPrefix = "nav/base/"

// Navigator moves the active capture target by one unit: next/previous
// window within a session, or next/previous session. When the server lacks
// the authoritative switch operation it converges by probing candidate window
// indices, learning which index base (0 or 1) the session uses and persisting
// that per session.
//
// All attempts funnel through the poller's forced fetch-and-wait so the
// caller always observes a just-switched frame, never a cached one.
type Navigator struct {
	source ports.NavigationSource
	poller *Poller
	store  ports.KVStore
	logger ports.Logger

	state domain.NavigationState
}

// NewNavigator creates a navigation controller backed by the given source and
// poller. The store persists the learned index base per session.
func NewNavigator(source ports.NavigationSource, poller *Poller, store ports.KVStore, logger ports.Logger) *Navigator {
	return &Navigator{
		source: source,
		poller: poller,
		store:  store,
		logger: logger,
		state: domain.NavigationState{
			PreferredBase: make(map[string]domain.IndexBase),
		},
	}
}

// SwitchWindow moves the active window by direction (+1 or -1) within the
// active session. Returns domain.ErrWindowUnchanged when probing exhausts
// every candidate without observing a change.
func (n *Navigator) SwitchWindow(ctx context.Context, direction int) error {
	if direction != 1 && direction != -1 {
		return domain.ErrInvalidDirection
	}
	n.syncFromLastFrame()

	pane, err := n.source.SwitchActive(ctx, direction, n.state.ActiveSession)
	switch {
	case err == nil:
		// Authoritative answer: adopt the pane identity directly.
		n.adopt(pane.SessionName, pane.WindowIndex)
		_, ferr := n.poller.FetchAndWait(ctx)
		return ferr
	case errors.Is(err, domain.ErrNotFound):
		// Switch operation unsupported; fall back to probing.
		return n.probeWindow(ctx, direction)
	default:
		return err
	}
}

// SwitchSession moves the active session by direction (+1 or -1), ordering
// sessions by name. Session names are fully known from the server, so no
// probing is involved.
func (n *Navigator) SwitchSession(ctx context.Context, direction int) error {
	if direction != 1 && direction != -1 {
		return domain.ErrInvalidDirection
	}
	n.syncFromLastFrame()

	sessions, err := n.source.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return domain.ErrNotFound
	}

	names := make([]string, 0, len(sessions))
	for _, s := range sessions {
		names = append(names, s.Name)
	}
	sort.Strings(names)

	cur := 0
	for i, name := range names {
		if name == n.state.ActiveSession {
			cur = i
			break
		}
	}
	next := ((cur+direction)%len(names) + len(names)) % len(names)

	n.state.ActiveSession = names[next]
	n.state.HasActiveWindow = false
	n.poller.SetTarget(names[next])

	frame, err := n.poller.FetchAndWait(ctx)
	if err != nil {
		return err
	}
	n.adopt(frame.SessionID, frame.WindowIndex)
	return nil
}

// probeWindow tries candidate window indices in priority order until one
// observably changes the pane's window. The base that produced the first
// success is persisted for the session.
func (n *Navigator) probeWindow(ctx context.Context, direction int) error {
	session := n.state.ActiveSession
	if session == "" {
		return domain.ErrNotFound
	}

	sessions, err := n.source.Sessions(ctx)
	if err != nil {
		return err
	}
	count := 0
	for _, s := range sessions {
		if s.Name == session {
			count = s.Windows
			break
		}
	}
	if count <= 1 {
		return domain.ErrWindowUnchanged
	}

	prev := n.state.ActiveWindowIndex
	prevTarget := n.poller.Target()
	learned, hasLearned := n.loadBase(ctx, session)

	for _, cand := range probeCandidates(prev, direction, count, learned, hasLearned) {
		n.poller.SetTarget(fmt.Sprintf("%s:%d", session, cand.index))

		frame, err := n.poller.FetchAndWait(ctx)
		if err != nil {
			if domain.IsConnectivity(err) {
				// Probing through a down link only wastes attempts;
				// surface the failure instead.
				n.poller.SetTarget(prevTarget)
				return err
			}
			continue
		}
		if frame.WindowIndex != prev {
			n.adopt(frame.SessionID, frame.WindowIndex)
			n.rememberBase(ctx, session, cand.base)
			return nil
		}
	}

	n.poller.SetTarget(prevTarget)
	return domain.ErrWindowUnchanged
}

type candidate struct {
	index int
	base  domain.IndexBase
}

// probeCandidates orders window indices for probing:
//
//  1. the index implied by position+direction under the learned base;
//  2. the same index under the other base;
//  3. the remaining indices offset by direction, nearest first, under both
//     bases.
//
// The current index is never a candidate and no index is tried twice. With
// nothing learned yet, base 1 goes first; that preference is a heuristic (it
// matches the common curated tmux setup), not an inference from the protocol.
func probeCandidates(current, direction, count int, learned domain.IndexBase, hasLearned bool) []candidate {
	primary := domain.BaseOne
	if hasLearned {
		primary = learned
	}
	secondary := primary.Other()

	seen := map[int]bool{current: true}
	out := make([]candidate, 0, count*2)
	add := func(idx int, base domain.IndexBase) {
		if seen[idx] {
			return
		}
		seen[idx] = true
		out = append(out, candidate{index: idx, base: base})
	}

	for step := 1; step < count; step++ {
		add(wrapIndex(current+step*direction, primary, count), primary)
		add(wrapIndex(current+step*direction, secondary, count), secondary)
	}
	return out
}

// wrapIndex maps an offset index into the session's window range under the
// given base convention.
func wrapIndex(idx int, base domain.IndexBase, count int) int {
	lo := int(base)
	return ((idx-lo)%count+count)%count + lo
}

// ActiveTarget returns the current session and window, if known.
func (n *Navigator) ActiveTarget() (session string, windowIndex int, known bool) {
	return n.state.ActiveSession, n.state.ActiveWindowIndex, n.state.HasActiveWindow
}

func (n *Navigator) adopt(session string, windowIndex int) {
	n.state.ActiveSession = session
	n.state.ActiveWindowIndex = windowIndex
	n.state.HasActiveWindow = true
	n.poller.SetTarget(fmt.Sprintf("%s:%d", session, windowIndex))
}

// syncFromLastFrame seeds the navigation state from the poller's last capture
// when nothing has been navigated yet.
func (n *Navigator) syncFromLastFrame() {
	if n.state.HasActiveWindow {
		return
	}
	if frame, ok := n.poller.LastFrame(); ok {
		n.state.ActiveSession = frame.SessionID
		n.state.ActiveWindowIndex = frame.WindowIndex
		n.state.HasActiveWindow = true
	}
}

func (n *Navigator) loadBase(ctx context.Context, session string) (domain.IndexBase, bool) {
	if b, ok := n.state.PreferredBase[session]; ok {
		return b, true
	}
	raw, err := n.store.Get(ctx, baseKeyPrefix+session)
	if err != nil || raw == nil {
		return domain.BaseZero, false
	}
	v, err := strconv.Atoi(string(raw))
	if err != nil || (v != 0 && v != 1) {
		return domain.BaseZero, false
	}
	b := domain.IndexBase(v)
	n.state.PreferredBase[session] = b
	return b, true
}

func (n *Navigator) rememberBase(ctx context.Context, session string, base domain.IndexBase) {
	n.state.PreferredBase[session] = base
	if err := n.store.Set(ctx, baseKeyPrefix+session, []byte(strconv.Itoa(int(base)))); err != nil {
		n.logger.Warn("persist index base", ports.Err(err), ports.String("session", session))
	}
	n.logger.Info("learned window index base",
		ports.String("session", session), ports.Int("base", int(base)))
}
