// Package tick is the fixed width monotonic clock used to timestamp edge events.
//
// A Tick is a 32-bit microsecond counter. It wraps after ~71.58 minutes, so
// ticks must only ever be subtracted from or compared with each other, never
// ordered.
package tick

import "time"

// Tick is a 32-bit microsecond timestamp.
type Tick uint32

const (
	// Resolution is the duration of one tick.
	Resolution = time.Microsecond
)

// Delta returns now - since in ticks, modulo 2^32.
func Delta(now, since Tick) uint32 {
	return uint32(now - since)
}

// Elapsed returns the wraparound-correct duration between since and now.
func Elapsed(now, since Tick) time.Duration {
	return time.Duration(Delta(now, since)) * Resolution
}

// FromDuration truncates a monotonic duration (e.g. a kernel event timestamp)
// to a tick.
func FromDuration(d time.Duration) Tick {
	return Tick(uint64(d / Resolution))
}

// Source yields the current tick.
type Source interface {
	Now() Tick
}

// SourceFunc adapts a function to a Source.
type SourceFunc func() Tick

// Now calls f.
func (f SourceFunc) Now() Tick {
	return f()
}
