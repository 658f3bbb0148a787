//go:build !linux

package tick

import "time"

var start = time.Now()

// System returns a Source based on the Go runtime monotonic clock.
func System() Source {
	return SourceFunc(func() Tick {
		return FromDuration(time.Since(start))
	})
}
