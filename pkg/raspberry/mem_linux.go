//go:build linux

package raspberry

import (
	"fmt"
	"sync"

	"github.com/warthog618/gpio"

	"gpioisr/pkg/port"
	"gpioisr/pkg/tick"
)

// Mem delivers edges through the memory-mapped /dev/gpiomem interface.
// The interface has no event timestamps, so ticks are taken from clock when
// the watcher reports the edge.
type Mem struct {
	mu    sync.Mutex
	clock tick.Source
	pins  map[int]*gpio.Pin
}

// OpenMem maps the GPIO memory range from /dev/gpiomem.
func OpenMem(clock tick.Source) (*Mem, error) {
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}
	return &Mem{clock: clock, pins: map[int]*gpio.Pin{}}, nil
}

// Watch sets pin as input and watches both edges.
func (m *Mem) Watch(pin int, pull port.Pull, h port.Handler) error {
	if err := checkPin(pin); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pins[pin]; ok {
		return fmt.Errorf("%w: %d", ErrPinInUse, pin)
	}

	p := gpio.NewPin(pin)
	p.Input()
	switch pull {
	case port.PullUp:
		p.PullUp()
	case port.PullDown:
		p.PullDown()
	}

	err := p.Watch(gpio.EdgeBoth, func(gp *gpio.Pin) {
		t := m.clock.Now()
		level := port.Low
		if gp.Read() == gpio.High {
			level = port.High
		}
		h(gp.Pin(), level, t)
	})
	if err != nil {
		return fmt.Errorf("watch GPIO%d: %w", pin, err)
	}
	m.pins[pin] = p
	return nil
}

// Close removes the watchers and unmaps GPIO memory.
func (m *Mem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pin, p := range m.pins {
		p.Unwatch()
		delete(m.pins, pin)
	}
	return gpio.Close()
}
