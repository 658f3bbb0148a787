package store

import (
	"fmt"

	"github.com/womat/debug"

	"gpioisr/pkg/port"
	"gpioisr/pkg/pulse"
	"gpioisr/pkg/tick"
)

// Restorer receives counts loaded from durable storage.
type Restorer interface {
	Restore(pin int, count uint64) error
}

// watermark is the last accepted pulse tick written to the volatile tier.
type watermark struct {
	tick  tick.Tick
	valid bool
}

// Engine writes pin snapshots to the durable and volatile tiers.
// It never modifies pin state. Engine is not safe for concurrent use; it is
// driven by the drain loop only.
type Engine struct {
	durable  *Dir
	volatile *Dir
	written  [port.MaxPins]watermark
}

// NewEngine returns an Engine writing to the given tiers.
func NewEngine(durable, volatile *Dir) *Engine {
	return &Engine{durable: durable, volatile: volatile}
}

// Prepare creates both storage roots.
func (e *Engine) Prepare() error {
	debug.InfoLog.Printf("will read/write static counter information to %s", e.durable.Root())
	if err := e.durable.Ensure(); err != nil {
		return err
	}
	debug.InfoLog.Printf("will read/write volatile counter information to %s", e.volatile.Root())
	return e.volatile.Ensure()
}

// Load restores the durable count of every pin. A missing record leaves the
// count at zero.
func (e *Engine) Load(r Restorer, pins []int) error {
	for _, pin := range pins {
		n, found, err := e.durable.Read(pin, CountRecord)
		if err != nil {
			return fmt.Errorf("load GPIO%d: %w", pin, err)
		}
		if !found {
			continue
		}
		if err = r.Restore(pin, n); err != nil {
			return fmt.Errorf("load GPIO%d: %w", pin, err)
		}
		debug.InfoLog.Printf("initialized totalCount for GPIO%d to %d from %s", pin, n, e.durable.Path(pin, CountRecord))
	}
	return nil
}

// DumpDurable writes the total count of every snapshot to the durable tier.
// The first failure is returned; the caller must treat it as fatal, since
// the durable tier would otherwise silently diverge from the counters.
func (e *Engine) DumpDurable(snaps []pulse.Snapshot) error {
	for _, s := range snaps {
		if err := e.durable.Write(s.Pin, CountRecord, s.TotalCount); err != nil {
			return fmt.Errorf("durable dump GPIO%d: %w", s.Pin, err)
		}
		debug.DebugLog.Printf("updated %s for GPIO%d to %d", e.durable.Path(s.Pin, CountRecord), s.Pin, s.TotalCount)
	}
	return nil
}

// DumpVolatile writes every snapshot whose last accepted pulse differs from
// the one last written for that line to the volatile tier. The period is only written
// while the line is trusted. Failures are logged and the line is retried on
// the next call. It returns the number of lines written.
func (e *Engine) DumpVolatile(snaps []pulse.Snapshot) int {
	n := 0
	for _, s := range snaps {
		if !port.ValidPin(s.Pin) {
			continue
		}
		w := &e.written[s.Pin]
		// LastInterrupt only moves on an accepted pulse, so any change is new
		// regardless of how long the line was idle.
		if w.valid && s.LastInterrupt == w.tick {
			continue
		}

		if err := e.volatile.Write(s.Pin, CountRecord, s.TotalCount); err != nil {
			debug.ErrorLog.Printf("volatile dump GPIO%d: %v", s.Pin, err)
			continue
		}
		debug.DebugLog.Printf("updated %s for GPIO%d to %d", e.volatile.Path(s.Pin, CountRecord), s.Pin, s.TotalCount)

		if s.Trusted() {
			if err := e.volatile.Write(s.Pin, PeriodRecord, uint64(s.LastPeriodMs)); err != nil {
				debug.ErrorLog.Printf("volatile dump GPIO%d: %v", s.Pin, err)
				continue
			}
			debug.DebugLog.Printf("updated %s for GPIO%d to %d", e.volatile.Path(s.Pin, PeriodRecord), s.Pin, s.LastPeriodMs)
		}

		*w = watermark{tick: s.LastInterrupt, valid: true}
		n++
	}
	return n
}
