package pulse

import (
	"fmt"
	"sort"
	"sync/atomic"

	"gpioisr/pkg/port"
	"gpioisr/pkg/tick"
)

// Counter owns the state of all monitored lines and the process-wide pending
// event counter.
type Counter struct {
	pins    [port.MaxPins]*Pin
	enabled []int

	// pending is bumped once per accepted pulse and taken once per drain pass.
	// It is a coalescing signal, not a queue: volatile persistence is state
	// based, so one pass satisfies any number of pulses.
	pending atomic.Uint32

	diag chan<- Result
}

// Option configures a Counter.
type Option func(*Counter)

// WithDiagnostics sends classification results of falling edges to ch.
// Sends never block; results are dropped while ch is full.
func WithDiagnostics(ch chan<- Result) Option {
	return func(c *Counter) {
		c.diag = ch
	}
}

// New creates a Counter for the given lines. now initialises each line's last
// accepted pulse tick so the first measured period starts at setup time.
func New(lines []Config, now tick.Tick, opts ...Option) (*Counter, error) {
	c := &Counter{}
	for _, o := range opts {
		o(c)
	}

	for _, l := range lines {
		if !port.ValidPin(l.Pin) {
			return nil, fmt.Errorf("pin %d: %w", l.Pin, ErrInvalidPin)
		}
		if l.ExpectedPeriod > MaxExpectedPeriod {
			return nil, fmt.Errorf("pin %d: expected period %dms: %w", l.Pin, l.ExpectedPeriod, ErrInvalidPeriod)
		}
		if c.pins[l.Pin] != nil {
			return nil, fmt.Errorf("pin %d: %w", l.Pin, ErrDuplicatePin)
		}
		c.pins[l.Pin] = newPin(l, now)
		c.enabled = append(c.enabled, l.Pin)
	}

	sort.Ints(c.enabled)
	return c, nil
}

// OnEdge classifies one transition. It satisfies port.Handler and is safe to
// call concurrently from backend goroutines; it never blocks on I/O.
func (c *Counter) OnEdge(pin int, level port.Level, t tick.Tick) {
	if !port.ValidPin(pin) || c.pins[pin] == nil {
		c.report(Result{Pin: pin, Reason: Ignored})
		return
	}

	res, falling, accepted := c.pins[pin].edge(level, t)
	if accepted {
		c.pending.Add(1)
	}
	if falling {
		c.report(res)
	}
}

func (c *Counter) report(res Result) {
	if c.diag == nil {
		return
	}
	select {
	case c.diag <- res:
	default:
	}
}

// Restore sets the total count of a line, used once at startup with the value
// read from durable storage.
func (c *Counter) Restore(pin int, count uint64) error {
	if !port.ValidPin(pin) || c.pins[pin] == nil {
		return fmt.Errorf("pin %d: %w", pin, ErrNotEnabled)
	}
	c.pins[pin].restore(count)
	return nil
}

// Pins returns the enabled line numbers in ascending order.
func (c *Counter) Pins() []int {
	return append([]int(nil), c.enabled...)
}

// Snapshot returns a copy of one line's state.
func (c *Counter) Snapshot(pin int) (Snapshot, bool) {
	if !port.ValidPin(pin) || c.pins[pin] == nil {
		return Snapshot{}, false
	}
	return c.pins[pin].snapshot(), true
}

// Snapshots appends copies of all enabled lines to dst, in pin order.
func (c *Counter) Snapshots(dst []Snapshot) []Snapshot {
	for _, pin := range c.enabled {
		dst = append(dst, c.pins[pin].snapshot())
	}
	return dst
}

// Pending returns the current pending event count.
func (c *Counter) Pending() uint32 {
	return c.pending.Load()
}

// TakePending decrements the pending event count if it is positive and
// reports whether it did.
func (c *Counter) TakePending() bool {
	for {
		n := c.pending.Load()
		if n == 0 {
			return false
		}
		if c.pending.CompareAndSwap(n, n-1) {
			return true
		}
	}
}
