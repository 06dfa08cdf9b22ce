package app

import (
	"time"

	"github.com/terminalpulse/pulsesync/internal/domain"
)

// Interval bounds for the configured base. An out-of-range base is clamped
// rather than rejected so a bad config file degrades instead of crashing.
const (
	MinBaseInterval = 1 * time.Second
	MaxBaseInterval = 120 * time.Second
)

// maxErrorShift caps the error backoff exponent at base*2^6.
const maxErrorShift = 6

// SchedulerConfig parameterizes the backoff scheduler.
type SchedulerConfig struct {
	// Base is the steady-state poll interval, clamped to
	// [MinBaseInterval, MaxBaseInterval].
	Base time.Duration

	// ErrorCap bounds the interval under sustained errors.
	ErrorCap time.Duration

	// IdleCap bounds the interval under sustained idleness.
	IdleCap time.Duration

	// IdleThreshold is the consecutive-unchanged count beyond which the idle
	// backoff tier engages.
	IdleThreshold int

	// MaxIdleShift caps the idle backoff exponent.
	MaxIdleShift int

	// PowerFloorActive is the minimum interval in low power mode while the
	// source is still changing.
	PowerFloorActive time.Duration

	// PowerFloorIdle is the (larger) minimum interval in low power mode once
	// the idle tier has engaged.
	PowerFloorIdle time.Duration

	// Hysteresis is the minimum interval delta that justifies rescheduling
	// the poll timer.
	Hysteresis time.Duration
}

// DefaultSchedulerConfig returns the scheduler defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Base:             2 * time.Second,
		ErrorCap:         60 * time.Second,
		IdleCap:          30 * time.Second,
		IdleThreshold:    6,
		MaxIdleShift:     4,
		PowerFloorActive: 5 * time.Second,
		PowerFloorIdle:   20 * time.Second,
		Hysteresis:       500 * time.Millisecond,
	}
}

// clampedBase returns the configured base bounded to the valid range.
// A zero or negative base falls back to the minimum bound.
func (c SchedulerConfig) clampedBase() time.Duration {
	b := c.Base
	if b < MinBaseInterval {
		return MinBaseInterval
	}
	if b > MaxBaseInterval {
		return MaxBaseInterval
	}
	return b
}

// Next computes the poll interval for the given backoff state.
//
// Sustained errors dominate: base*2^min(errors,6) capped at ErrorCap.
// Sustained idleness backs off the same way once ConsecutiveUnchanged passes
// IdleThreshold, capped at IdleCap. Low power mode imposes a floor on top,
// larger when already idle than when active. Counters reset to zero on any
// change or success, so latency stays low right after activity resumes.
func (c SchedulerConfig) Next(st domain.BackoffState) time.Duration {
	base := c.clampedBase()
	interval := base

	switch {
	case st.ConsecutiveErrors > 0:
		shift := st.ConsecutiveErrors
		if shift > maxErrorShift {
			shift = maxErrorShift
		}
		interval = base << uint(shift)
		if interval > c.ErrorCap {
			interval = c.ErrorCap
		}
	case st.ConsecutiveUnchanged > c.IdleThreshold:
		shift := st.ConsecutiveUnchanged - c.IdleThreshold
		if shift > c.MaxIdleShift {
			shift = c.MaxIdleShift
		}
		interval = base << uint(shift)
		if interval > c.IdleCap {
			interval = c.IdleCap
		}
	}

	if st.LowPowerMode {
		floor := c.PowerFloorActive
		if st.ConsecutiveUnchanged > c.IdleThreshold {
			floor = c.PowerFloorIdle
		}
		if interval < floor {
			interval = floor
		}
	}

	return interval
}
