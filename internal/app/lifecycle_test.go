package app

import (
	"errors"
	"testing"
	"time"

	"github.com/terminalpulse/pulsesync/internal/domain"
)

func TestNewLifecycle(t *testing.T) {
	l := NewLifecycle(mockLogger{})

	if l == nil {
		t.Fatal("NewLifecycle returned nil")
	}
	if l.State() != StateStopped {
		t.Errorf("initial state = %v, want StateStopped", l.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "Stopped"},
		{StateStarting, "Starting"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{StateCrashed, "Crashed"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		got := tt.state.String()
		if got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestLifecycle_TransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		wantErr bool
	}{
		{"stopped to starting", StateStopped, StateStarting, false},
		{"starting to running", StateStarting, StateRunning, false},
		{"starting to crashed", StateStarting, StateCrashed, false},
		{"running to stopping", StateRunning, StateStopping, false},
		{"running to crashed", StateRunning, StateCrashed, false},
		{"stopping to stopped", StateStopping, StateStopped, false},
		{"crashed to starting", StateCrashed, StateStarting, false},
		{"stopped to running", StateStopped, StateRunning, true},
		{"stopped to stopping", StateStopped, StateStopping, true},
		{"running to starting", StateRunning, StateStarting, true},
		{"starting to stopped", StateStarting, StateStopped, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLifecycle(mockLogger{})
			l.state = tt.from

			err := l.TransitionTo(tt.to, "test")
			if (err != nil) != tt.wantErr {
				t.Errorf("TransitionTo(%v -> %v) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
			if !tt.wantErr && l.State() != tt.to {
				t.Errorf("state = %v, want %v", l.State(), tt.to)
			}
			if tt.wantErr && l.State() != tt.from {
				t.Errorf("state changed on invalid transition: %v", l.State())
			}
		})
	}
}

func TestLifecycle_WaitWithTimeout(t *testing.T) {
	l := NewLifecycle(mockLogger{})

	l.AddWorker()
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.WorkerDone()
	}()
	if err := l.WaitWithTimeout(time.Second); err != nil {
		t.Errorf("WaitWithTimeout() error = %v", err)
	}

	// A worker that never finishes trips the timeout.
	l2 := NewLifecycle(mockLogger{})
	l2.AddWorker()
	err := l2.WaitWithTimeout(20 * time.Millisecond)
	if !errors.Is(err, domain.ErrShutdownTimeout) {
		t.Errorf("WaitWithTimeout() = %v, want ErrShutdownTimeout", err)
	}
	l2.WorkerDone()
}

func TestLifecycle_Cancel(t *testing.T) {
	l := NewLifecycle(mockLogger{})

	// A nil cancel is tolerated.
	l.Cancel()

	called := false
	l.SetCancel(func() { called = true })
	l.Cancel()
	if !called {
		t.Error("cancel function not invoked")
	}
}
