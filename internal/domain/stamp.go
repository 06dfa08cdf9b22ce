package domain

import "time"

// SequenceStamp orders payloads from a single sender. Seq increases
// monotonically within an Epoch; the Epoch token changes when the sending
// process restarts, which resets Seq to zero. WallClock is the send time.
type SequenceStamp struct {
	Epoch     string    `json:"epoch"`
	Seq       uint64    `json:"seq"`
	WallClock time.Time `json:"wallClock"`
}

// IsZero reports whether the stamp is the zero value (nothing accepted yet).
func (s SequenceStamp) IsZero() bool {
	return s.Epoch == "" && s.Seq == 0 && s.WallClock.IsZero()
}

// StampGate holds the last accepted stamp on the receiving side and applies
// the acceptance rule. It is owned exclusively by the receiver; the sender
// never sees it.
type StampGate struct {
	last SequenceStamp
}

// Accept applies the acceptance rule to an incoming stamp and, when it
// passes, advances the gate. A stamp is accepted when its wall clock is not
// older than the last accepted one AND either the epoch changed (a restarted
// sender restarts counting at zero) or the sequence did not regress.
//
// The wall-clock condition is what keeps a replayed old-epoch payload out:
// epochs are opaque and unordered, so an epoch change alone proves nothing.
func (g *StampGate) Accept(s SequenceStamp) bool {
	if g.last.IsZero() {
		g.last = s
		return true
	}
	if s.WallClock.Before(g.last.WallClock) {
		return false
	}
	if s.Epoch != g.last.Epoch {
		g.last = s
		return true
	}
	if s.Seq < g.last.Seq {
		return false
	}
	g.last = s
	return true
}

// Last returns the last accepted stamp, zero if nothing was accepted yet.
func (g *StampGate) Last() SequenceStamp {
	return g.last
}
