package pulse

import (
	"sync"
	"time"

	"gpioisr/pkg/port"
	"gpioisr/pkg/tick"
)

// Pin is the mutable state of one monitored line.
//
// mu is held only while fields are updated or copied; it is never held
// across I/O, so edges on the same line cannot interleave and the drain loop
// always sees a consistent record.
type Pin struct {
	mu  sync.Mutex
	cfg Config

	totalCount    uint64
	lastPeriodMs  uint32
	ignoreBudget  uint32
	lastInterrupt tick.Tick
	lastRise      tick.Tick
	lastLevel     bool

	risingEdges    uint64
	rejectedNoRise uint64
	rejectedWidth  uint64
}

func newPin(cfg Config, now tick.Tick) *Pin {
	return &Pin{
		cfg:           cfg,
		ignoreBudget:  InitialIgnoreBudget,
		lastInterrupt: now,
	}
}

// edge applies one transition. accepted reports whether a pulse was counted;
// the Result is only meaningful for falling edges (falling == true).
func (p *Pin) edge(raw port.Level, t tick.Tick) (res Result, falling, accepted bool) {
	level := raw
	if p.cfg.Inverse {
		level = raw.Invert()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if level == port.High {
		p.lastRise = t
		p.lastLevel = true
		p.risingEdges++
		return Result{}, false, false
	}

	res = Result{Pin: p.cfg.Pin, Expected: p.cfg.ExpectedPeriod}

	if !p.lastLevel {
		p.rejectedNoRise++
		p.reject()
		res.Reason = RejectedNoRise
		p.fill(&res)
		return res, true, false
	}

	width := tick.Elapsed(t, p.lastRise)
	gap := tick.Elapsed(t, p.lastInterrupt)
	p.lastLevel = false
	res.Width = width

	if !p.cfg.accepts(width) {
		p.rejectedWidth++
		p.reject()
		res.Reason = RejectedWidth
		p.fill(&res)
		return res, true, false
	}

	p.totalCount++
	p.lastPeriodMs = uint32(gap / time.Millisecond)
	p.lastInterrupt = t
	if p.ignoreBudget > 0 {
		p.ignoreBudget--
	}

	res.Reason = Accepted
	p.fill(&res)
	return res, true, true
}

func (p *Pin) reject() {
	if p.ignoreBudget < MaxIgnoreBudget {
		p.ignoreBudget++
	}
}

func (p *Pin) fill(res *Result) {
	res.TotalCount = p.totalCount
	res.Period = p.lastPeriodMs
	res.Budget = p.ignoreBudget
}

func (p *Pin) restore(count uint64) {
	p.mu.Lock()
	p.totalCount = count
	p.mu.Unlock()
}

func (p *Pin) snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Snapshot{
		Config:         p.cfg,
		TotalCount:     p.totalCount,
		LastPeriodMs:   p.lastPeriodMs,
		IgnoreBudget:   p.ignoreBudget,
		LastInterrupt:  p.lastInterrupt,
		LastRise:       p.lastRise,
		LastLevel:      p.lastLevel,
		RisingEdges:    p.risingEdges,
		RejectedNoRise: p.rejectedNoRise,
		RejectedWidth:  p.rejectedWidth,
	}
}
