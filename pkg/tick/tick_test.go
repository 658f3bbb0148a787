package tick

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestElapsed(t *testing.T) {
	tests := []struct {
		name       string
		now, since Tick
		want       time.Duration
	}{
		{"plain", 1500, 500, 1000 * time.Microsecond},
		{"zero", 42, 42, 0},
		{"wraparound", 5, 0xFFFFFFF0, 21 * time.Microsecond},
		{"wrap at boundary", 0, 0xFFFFFFFF, time.Microsecond},
		{"almost full range", 0xFFFFFFFE, 0, 0xFFFFFFFE * time.Microsecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Elapsed(tt.now, tt.since))
		})
	}
}

func TestDeltaWraparound(t *testing.T) {
	assert.Equal(t, uint32(0x15), Delta(5, 0xFFFFFFF0))
}

func TestFromDuration(t *testing.T) {
	assert.Equal(t, Tick(1500), FromDuration(1500*time.Microsecond+999))
	// 2^32 µs wraps back to zero
	assert.Equal(t, Tick(7), FromDuration((1<<32+7)*time.Microsecond))
}

func TestSystemIsMonotonic(t *testing.T) {
	src := System()
	a := src.Now()
	time.Sleep(2 * time.Millisecond)
	b := src.Now()
	assert.GreaterOrEqual(t, Elapsed(b, a), 2*time.Millisecond)
}
