//go:build linux

package raspberry

import (
	"fmt"
	"sync"

	"github.com/warthog618/gpiod"

	"gpioisr/pkg/port"
	"gpioisr/pkg/tick"
)

// Chip delivers edges from the GPIO character device. Event ticks are the
// kernel's CLOCK_MONOTONIC event timestamps.
type Chip struct {
	mu    sync.Mutex
	chip  *gpiod.Chip
	lines map[int]*gpiod.Line
}

// OpenChip opens the named GPIO character device.
func OpenChip(name string) (*Chip, error) {
	c, err := gpiod.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &Chip{chip: c, lines: map[int]*gpiod.Line{}}, nil
}

// Watch requests pin as input watching both edges.
func (c *Chip) Watch(pin int, pull port.Pull, h port.Handler) error {
	if err := checkPin(pin); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.lines[pin]; ok {
		return fmt.Errorf("%w: %d", ErrPinInUse, pin)
	}

	handler := func(evt gpiod.LineEvent) {
		level := port.Low
		if evt.Type == gpiod.LineEventRisingEdge {
			level = port.High
		}
		h(evt.Offset, level, tick.FromDuration(evt.Timestamp))
	}

	opts := []gpiod.LineReqOption{
		gpiod.AsInput,
		gpiod.WithBothEdges,
		gpiod.WithEventHandler(handler),
	}
	switch pull {
	case port.PullUp:
		opts = append(opts, gpiod.WithPullUp)
	case port.PullDown:
		opts = append(opts, gpiod.WithPullDown)
	}

	l, err := c.chip.RequestLine(pin, opts...)
	if err != nil {
		return fmt.Errorf("request GPIO%d: %w", pin, err)
	}
	c.lines[pin] = l
	return nil
}

// Close releases all lines and the chip.
//
// Closing a line waits for its running event handler to return.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for pin, l := range c.lines {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close GPIO%d: %w", pin, err))
		}
		delete(c.lines, pin)
	}
	if err := c.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
