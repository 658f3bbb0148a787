package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpioisr/pkg/port"
	"gpioisr/pkg/pulse"
	"gpioisr/pkg/tick"
)

func newEngine(t *testing.T) (*Engine, *Dir, *Dir) {
	t.Helper()
	durable := NewDir(filepath.Join(t.TempDir(), "lib"), true)
	volatile := NewDir(filepath.Join(t.TempDir(), "run"), false)
	e := NewEngine(durable, volatile)
	require.NoError(t, e.Prepare())
	return e, durable, volatile
}

func ms(n int) tick.Tick {
	return tick.Tick(n * 1000)
}

func pulseAt(c *pulse.Counter, pin int, start tick.Tick, width time.Duration) {
	c.OnEdge(pin, port.High, start)
	c.OnEdge(pin, port.Low, start+tick.Tick(width/tick.Resolution))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestLoadRestoresCounts(t *testing.T) {
	e, durable, _ := newEngine(t)
	require.NoError(t, os.WriteFile(durable.Path(17, CountRecord), []byte("42\n"), 0o644))

	c, err := pulse.New([]pulse.Config{{Pin: 17}, {Pin: 27}}, 0)
	require.NoError(t, err)
	require.NoError(t, e.Load(c, c.Pins()))

	s, _ := c.Snapshot(17)
	assert.Equal(t, uint64(42), s.TotalCount)
	s, _ = c.Snapshot(27)
	assert.Equal(t, uint64(0), s.TotalCount, "missing record starts at zero")
}

func TestLoadCorruptRecord(t *testing.T) {
	e, durable, _ := newEngine(t)
	require.NoError(t, os.WriteFile(durable.Path(17, CountRecord), []byte("x\n"), 0o644))

	c, err := pulse.New([]pulse.Config{{Pin: 17}}, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.Load(c, c.Pins()), ErrCorrupt)
}

func TestDumpDurable(t *testing.T) {
	e, durable, _ := newEngine(t)

	c, err := pulse.New([]pulse.Config{{Pin: 4}, {Pin: 5}}, 0)
	require.NoError(t, err)
	require.NoError(t, c.Restore(5, 99))
	pulseAt(c, 4, ms(1000), 50*time.Millisecond)

	require.NoError(t, e.DumpDurable(c.Snapshots(nil)))
	assert.Equal(t, "1\n", readFile(t, durable.Path(4, CountRecord)))
	assert.Equal(t, "99\n", readFile(t, durable.Path(5, CountRecord)))
}

func TestDumpDurableIsIdempotent(t *testing.T) {
	e, durable, _ := newEngine(t)

	c, err := pulse.New([]pulse.Config{{Pin: 4}}, 0)
	require.NoError(t, err)
	pulseAt(c, 4, ms(1000), 50*time.Millisecond)

	require.NoError(t, e.DumpDurable(c.Snapshots(nil)))
	first := readFile(t, durable.Path(4, CountRecord))
	require.NoError(t, e.DumpDurable(c.Snapshots(nil)))
	second := readFile(t, durable.Path(4, CountRecord))

	assert.Equal(t, first, second)
}

func TestDumpDurableFailure(t *testing.T) {
	e, durable, _ := newEngine(t)
	require.NoError(t, os.RemoveAll(durable.Root()))

	c, err := pulse.New([]pulse.Config{{Pin: 4}}, 0)
	require.NoError(t, err)

	err = e.DumpDurable(c.Snapshots(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GPIO4")
}

func TestRestartRecovery(t *testing.T) {
	e, _, _ := newEngine(t)

	c, err := pulse.New([]pulse.Config{{Pin: 4}}, 0)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		pulseAt(c, 4, ms(1000*(i+1)), 50*time.Millisecond)
	}
	require.NoError(t, e.DumpDurable(c.Snapshots(nil)))

	restarted, err := pulse.New([]pulse.Config{{Pin: 4}}, 0)
	require.NoError(t, err)
	require.NoError(t, e.Load(restarted, restarted.Pins()))

	s, _ := restarted.Snapshot(4)
	assert.Equal(t, uint64(5), s.TotalCount)
}

func TestDumpVolatileOnlyNewLines(t *testing.T) {
	e, _, volatile := newEngine(t)

	c, err := pulse.New([]pulse.Config{{Pin: 4}, {Pin: 5}}, 0)
	require.NoError(t, err)

	// first pass publishes every line
	assert.Equal(t, 2, e.DumpVolatile(c.Snapshots(nil)))
	assert.Equal(t, "0\n", readFile(t, volatile.Path(5, CountRecord)))

	// nothing new
	assert.Equal(t, 0, e.DumpVolatile(c.Snapshots(nil)))

	pulseAt(c, 4, ms(1000), 50*time.Millisecond)
	assert.Equal(t, 1, e.DumpVolatile(c.Snapshots(nil)))
	assert.Equal(t, "1\n", readFile(t, volatile.Path(4, CountRecord)))

	// rejected pulses do not make a line new
	pulseAt(c, 5, ms(2000), 5*time.Millisecond)
	assert.Equal(t, 0, e.DumpVolatile(c.Snapshots(nil)))
}

func TestDumpVolatileAcrossWraparound(t *testing.T) {
	e, _, volatile := newEngine(t)

	c, err := pulse.New([]pulse.Config{{Pin: 4}}, 0xFFFFF000)
	require.NoError(t, err)
	e.DumpVolatile(c.Snapshots(nil))

	pulseAt(c, 4, 0xFFFFFF00, 50*time.Millisecond) // falling edge after the wrap
	assert.Equal(t, 1, e.DumpVolatile(c.Snapshots(nil)))
	assert.Equal(t, "1\n", readFile(t, volatile.Path(4, CountRecord)))
}

func TestDumpVolatileAfterLongIdleGap(t *testing.T) {
	e, _, volatile := newEngine(t)

	c, err := pulse.New([]pulse.Config{{Pin: 4}}, 0)
	require.NoError(t, err)

	pulseAt(c, 4, ms(1000), 50*time.Millisecond)
	assert.Equal(t, 1, e.DumpVolatile(c.Snapshots(nil)))

	// more than half the tick range later, as on a slow gas meter at night
	for i, gap := range []time.Duration{40 * time.Minute, 70 * time.Minute} {
		s, _ := c.Snapshot(4)
		start := s.LastInterrupt + tick.FromDuration(gap)
		pulseAt(c, 4, start, 50*time.Millisecond)

		assert.Equal(t, 1, e.DumpVolatile(c.Snapshots(nil)), "gap %v", gap)
		assert.Equal(t, fmt.Sprintf("%d\n", i+2), readFile(t, volatile.Path(4, CountRecord)))
	}
}

func TestDumpVolatileRetriesAfterFailure(t *testing.T) {
	e, _, volatile := newEngine(t)

	c, err := pulse.New([]pulse.Config{{Pin: 4}}, 0)
	require.NoError(t, err)
	e.DumpVolatile(c.Snapshots(nil))
	pulseAt(c, 4, ms(1000), 50*time.Millisecond)

	require.NoError(t, os.RemoveAll(volatile.Root()))
	assert.Equal(t, 0, e.DumpVolatile(c.Snapshots(nil)))

	require.NoError(t, volatile.Ensure())
	assert.Equal(t, 1, e.DumpVolatile(c.Snapshots(nil)))
	assert.Equal(t, "1\n", readFile(t, volatile.Path(4, CountRecord)))
}

func TestVolatilePeriodAfterIgnoreBudgetDecays(t *testing.T) {
	e, _, volatile := newEngine(t)

	c, err := pulse.New([]pulse.Config{{Pin: 4}}, 0)
	require.NoError(t, err)

	// two rejected edges
	c.OnEdge(4, port.Low, ms(100))
	pulseAt(c, 4, ms(200), 5*time.Millisecond)
	e.DumpVolatile(c.Snapshots(nil))

	periodPath := volatile.Path(4, PeriodRecord)
	for i := 1; i <= 3; i++ {
		pulseAt(c, 4, ms(1000*i), 50*time.Millisecond)
		e.DumpVolatile(c.Snapshots(nil))

		_, err := os.Stat(periodPath)
		if i < 3 {
			assert.True(t, os.IsNotExist(err), "period written after accepted edge %d", i)
		} else {
			require.NoError(t, err)
		}
	}
	assert.Equal(t, "1000\n", readFile(t, periodPath))
	assert.Equal(t, "3\n", readFile(t, volatile.Path(4, CountRecord)))
}
