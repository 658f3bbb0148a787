package raspberry

import (
	"fmt"
	"sync"
	"time"

	"gpioisr/pkg/port"
	"gpioisr/pkg/tick"
)

// Emulator is a software GPIO. Edges are injected with EmuEdge or Emit, or
// generated periodically with Generate.
type Emulator struct {
	mu       sync.Mutex
	clock    tick.Source
	handlers map[int]port.Handler
	levels   map[int]port.Level
	closed   bool

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewEmulator returns an Emulator timestamping injected edges with clock.
func NewEmulator(clock tick.Source) *Emulator {
	return &Emulator{
		clock:    clock,
		handlers: map[int]port.Handler{},
		levels:   map[int]port.Level{},
		quit:     make(chan struct{}),
	}
}

// Watch registers h for pin. The idle level follows the requested bias.
func (e *Emulator) Watch(pin int, pull port.Pull, h port.Handler) error {
	if err := checkPin(pin); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("%w: emulator closed", ErrInvalidParam)
	}
	if _, ok := e.handlers[pin]; ok {
		return fmt.Errorf("%w: %d", ErrPinInUse, pin)
	}

	e.handlers[pin] = h
	e.levels[pin] = port.Low
	if pull == port.PullUp {
		e.levels[pin] = port.High
	}
	return nil
}

// Emit delivers ev to the handler of its pin. It reports false if the pin is
// not watched or ev does not change the line level.
func (e *Emulator) Emit(ev port.Event) bool {
	e.mu.Lock()
	h, ok := e.handlers[ev.Pin]
	if !ok || e.closed || e.levels[ev.Pin] == ev.Level {
		e.mu.Unlock()
		return false
	}
	e.levels[ev.Pin] = ev.Level
	e.mu.Unlock()

	h(ev.Pin, ev.Level, ev.Tick)
	return true
}

// EmuEdge drives pin to level now.
func (e *Emulator) EmuEdge(pin int, level port.Level) bool {
	return e.Emit(port.Event{Pin: pin, Level: level, Tick: e.clock.Now()})
}

// level returns the emulated level of pin.
func (e *Emulator) level(pin int) port.Level {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.levels[pin]
}

// Generate emits one pulse of the given width on pin every period until the
// emulator is closed. The pulse is driven against the line's idle level.
func (e *Emulator) Generate(pin int, width, period time.Duration) error {
	if width <= 0 || period <= width {
		return fmt.Errorf("%w: pulse width %v, period %v", ErrInvalidParam, width, period)
	}

	e.mu.Lock()
	_, ok := e.handlers[pin]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: GPIO%d not watched", ErrInvalidParam, pin)
	}
	idle := e.level(pin)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-e.quit:
				return
			case <-ticker.C:
			}

			e.EmuEdge(pin, idle.Invert())
			select {
			case <-e.quit:
				return
			case <-time.After(width):
			}
			e.EmuEdge(pin, idle)
		}
	}()
	return nil
}

// Close stops all generators and drops the handlers.
func (e *Emulator) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.quit)
	e.mu.Unlock()

	e.wg.Wait()

	e.mu.Lock()
	e.handlers = map[int]port.Handler{}
	e.mu.Unlock()
	return nil
}
