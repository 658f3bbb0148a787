// Package pulse classifies edge events into counted pulses.
//
// Each monitored line owns a Pin record. Edges are fed in through
// Counter.OnEdge from the delivery context of a GPIO backend; the drain loop
// reads consistent copies through Snapshot. The package does no I/O.
package pulse

import (
	"time"

	"gpioisr/pkg/tick"
)

const (
	// InitialIgnoreBudget is the ignore budget of a freshly configured line.
	// The first pulse after startup is unreliable because the preceding edge
	// was never seen.
	InitialIgnoreBudget = 2
	// MaxIgnoreBudget caps the budget so a long noise burst costs a bounded
	// number of clean pulses before the period is trusted again.
	MaxIgnoreBudget = 3

	// MinPulseWidth and MaxPulseWidth bound the default acceptance window.
	MinPulseWidth = 30 * time.Millisecond
	MaxPulseWidth = 120 * time.Millisecond
	// PeriodTolerance is the accepted deviation from an expected pulse width.
	PeriodTolerance = 2 * time.Millisecond
	// MaxExpectedPeriod is the largest configurable expected pulse width in ms.
	MaxExpectedPeriod = 120
)

// Config is the immutable calibration of one line.
type Config struct {
	// Pin is the BCM line number.
	Pin int
	// Inverse inverts the observed level before classification (normal high line).
	Inverse bool
	// ExpectedPeriod is the nominal pulse width in ms; 0 selects the default window.
	ExpectedPeriod uint32
}

// accepts reports whether width falls inside the line's acceptance window.
// Both bounds are inclusive.
func (c Config) accepts(width time.Duration) bool {
	if c.ExpectedPeriod == 0 {
		return width >= MinPulseWidth && width <= MaxPulseWidth
	}
	expected := time.Duration(c.ExpectedPeriod) * time.Millisecond
	return width >= expected-PeriodTolerance && width <= expected+PeriodTolerance
}

// Reason is the classification outcome of a falling edge.
type Reason int

const (
	Accepted Reason = iota
	RejectedNoRise
	RejectedWidth
	// Ignored marks an edge for a line that is not enabled.
	Ignored
)

func (r Reason) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectedNoRise:
		return "no rising edge"
	case RejectedWidth:
		return "pulse width out of range"
	case Ignored:
		return "line not enabled"
	default:
		return "unknown"
	}
}

// Result describes a classified falling edge. It is sent on the diagnostics
// channel, never returned to the delivery context.
type Result struct {
	Pin    int
	Reason Reason
	// Width is the measured pulse width (zero for RejectedNoRise and Ignored).
	Width time.Duration
	// Expected is the configured pulse width in ms, 0 for the default window.
	Expected uint32
	// TotalCount, Period and Budget are the line's values after the edge.
	TotalCount uint64
	Period     uint32
	Budget     uint32
}

// Snapshot is a point-in-time copy of a line's state.
// It is a value type, safe to use after the line lock is released.
type Snapshot struct {
	Config

	TotalCount    uint64
	LastPeriodMs  uint32
	IgnoreBudget  uint32
	LastInterrupt tick.Tick
	LastRise      tick.Tick
	LastLevel     bool

	// diagnostic counters, not persisted
	RisingEdges    uint64
	RejectedNoRise uint64
	RejectedWidth  uint64
}

// Trusted reports whether the line's period measurement is currently trusted.
func (s Snapshot) Trusted() bool {
	return s.IgnoreBudget == 0
}
