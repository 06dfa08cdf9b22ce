package domain

import (
	"testing"
	"time"
)

func stamp(epoch string, seq uint64, at time.Time) SequenceStamp {
	return SequenceStamp{Epoch: epoch, Seq: seq, WallClock: at}
}

func TestStampGate_FirstPayloadAlwaysAccepted(t *testing.T) {
	var g StampGate

	s := stamp("a", 7, time.Now())
	if !g.Accept(s) {
		t.Fatal("first stamp rejected")
	}
	if g.Last() != s {
		t.Errorf("Last() = %+v, want %+v", g.Last(), s)
	}
}

func TestStampGate_Accept(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last SequenceStamp
		in   SequenceStamp
		want bool
	}{
		{
			name: "same epoch seq advances",
			last: stamp("a", 3, t0),
			in:   stamp("a", 4, t0.Add(time.Second)),
			want: true,
		},
		{
			name: "same epoch seq equal",
			last: stamp("a", 3, t0),
			in:   stamp("a", 3, t0.Add(time.Second)),
			want: true,
		},
		{
			name: "same epoch seq regresses",
			last: stamp("a", 3, t0),
			in:   stamp("a", 2, t0.Add(time.Second)),
			want: false,
		},
		{
			name: "new epoch resets seq",
			last: stamp("a", 100, t0),
			in:   stamp("b", 1, t0.Add(time.Second)),
			want: true,
		},
		{
			name: "old epoch replay with stale clock",
			last: stamp("b", 1, t0),
			in:   stamp("a", 100, t0.Add(-time.Minute)),
			want: false,
		},
		{
			name: "wall clock older than last",
			last: stamp("a", 3, t0),
			in:   stamp("a", 4, t0.Add(-time.Second)),
			want: false,
		},
		{
			name: "wall clock equal is not older",
			last: stamp("a", 3, t0),
			in:   stamp("a", 4, t0),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := StampGate{last: tt.last}
			got := g.Accept(tt.in)
			if got != tt.want {
				t.Errorf("Accept(%+v) = %v, want %v", tt.in, got, tt.want)
			}
			if tt.want && g.Last() != tt.in {
				t.Errorf("gate did not advance: Last() = %+v", g.Last())
			}
			if !tt.want && g.Last() != tt.last {
				t.Errorf("gate advanced on rejection: Last() = %+v", g.Last())
			}
		})
	}
}

func TestStampGate_InterleavedEpochs(t *testing.T) {
	// A restarted sender (new epoch, low seq) is accepted; the old epoch's
	// higher seq can then only come back if its wall clock is not older.
	var g StampGate
	t0 := time.Now()

	if !g.Accept(stamp("a", 50, t0)) {
		t.Fatal("initial stamp rejected")
	}
	if !g.Accept(stamp("b", 1, t0.Add(time.Second))) {
		t.Fatal("restarted sender rejected")
	}
	if g.Accept(stamp("a", 51, t0.Add(500*time.Millisecond))) {
		t.Error("replayed old-epoch payload accepted despite stale clock")
	}
}

func TestSequenceStamp_IsZero(t *testing.T) {
	var zero SequenceStamp
	if !zero.IsZero() {
		t.Error("zero stamp reported non-zero")
	}
	if stamp("a", 0, time.Time{}).IsZero() {
		t.Error("stamp with epoch reported zero")
	}
	if stamp("", 1, time.Time{}).IsZero() {
		t.Error("stamp with seq reported zero")
	}
}
