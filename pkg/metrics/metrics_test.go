package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpioisr/pkg/port"
	"gpioisr/pkg/pulse"
	"gpioisr/pkg/tick"
)

func counter(t *testing.T) *pulse.Counter {
	t.Helper()
	c, err := pulse.New([]pulse.Config{{Pin: 4}, {Pin: 17}}, 0)
	require.NoError(t, err)
	require.NoError(t, c.Restore(17, 42))

	width := tick.Tick(50 * time.Millisecond / tick.Resolution)
	c.OnEdge(4, port.High, 1_000_000)
	c.OnEdge(4, port.Low, 1_000_000+width)
	c.OnEdge(4, port.Low, 1_500_000)
	return c
}

func TestCollectorCount(t *testing.T) {
	c := NewCollector(counter(t))

	// 6 series per pin
	assert.Equal(t, 12, testutil.CollectAndCount(c))
	assert.Equal(t, 2, testutil.CollectAndCount(c, "gpioisr_pulses_total"))
	assert.Equal(t, 4, testutil.CollectAndCount(c, "gpioisr_rejected_edges_total"))
}

func TestTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpioisr.prom")
	tf, err := NewTextfile(path, counter(t))
	require.NoError(t, err)
	assert.Equal(t, path, tf.Path())

	require.NoError(t, tf.Write())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)

	assert.Contains(t, out, `gpioisr_pulses_total{pin="4"} 1`)
	assert.Contains(t, out, `gpioisr_pulses_total{pin="17"} 42`)
	assert.Contains(t, out, `gpioisr_last_period_milliseconds{pin="4"} 1050`)
	assert.Contains(t, out, `gpioisr_ignore_budget{pin="4"} 2`)
	assert.Contains(t, out, `gpioisr_rejected_edges_total{pin="4",reason="no_rise"} 1`)
	assert.Contains(t, out, `gpioisr_rising_edges_total{pin="4"} 1`)
}

func TestTextfileWriteError(t *testing.T) {
	tf, err := NewTextfile(filepath.Join(t.TempDir(), "missing", "gpioisr.prom"), counter(t))
	require.NoError(t, err)
	assert.Error(t, tf.Write())
}
