package app

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/womat/debug"

	"gpioisr/pkg/pulse"
)

// status is a summary of the process health and the line counters.
type status struct {
	Uptime        time.Duration
	NumGoroutines int
	HeapAllocMB   uint64
	SysMemoryMB   uint64
	Pending       uint32
	Lines         []pulse.Snapshot
}

func (app *App) status(snaps []pulse.Snapshot) status {
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return status{
		Uptime:        time.Since(app.started).Truncate(time.Second),
		NumGoroutines: runtime.NumGoroutine(),
		HeapAllocMB:   bToMb(m.Alloc),
		SysMemoryMB:   bToMb(m.Sys),
		Pending:       app.counter.Pending(),
		Lines:         snaps,
	}
}

// String formats the status as a single log line.
func (s status) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "uptime %v, goroutines %d, heap %dMB, sys %dMB, pending %d",
		s.Uptime, s.NumGoroutines, s.HeapAllocMB, s.SysMemoryMB, s.Pending)
	for _, l := range s.Lines {
		fmt.Fprintf(&b, ", GPIO%d %d pulses", l.Pin, l.TotalCount)
		if l.Trusted() {
			fmt.Fprintf(&b, " (%dms)", l.LastPeriodMs)
		}
	}
	return b.String()
}

// logStatus writes the status summary to the info log.
func (app *App) logStatus(snaps []pulse.Snapshot) {
	debug.InfoLog.Printf("%s status: %v", Version(), app.status(snaps))
}
