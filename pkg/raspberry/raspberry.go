// Package raspberry delivers edge events from the GPIO lines of a Raspberry Pi.
//
// Three backends are available: the GPIO character device (cdev), the
// memory-mapped /dev/gpiomem interface (mem) and a software emulator (emu)
// used for tests and for running without hardware.
package raspberry

import (
	"errors"
	"fmt"

	"gpioisr/pkg/port"
	"gpioisr/pkg/tick"
)

// Backend names.
const (
	BackendCdev = "cdev"
	BackendMem  = "mem"
	BackendEmu  = "emu"
)

// DefaultChip is the GPIO character device of the Raspberry Pi header.
const DefaultChip = "gpiochip0"

var (
	ErrInvalidParam = errors.New("invalid parameters")
	ErrUnsupported  = errors.New("gpio: not supported on this platform (requires Linux)")
	ErrPinInUse     = errors.New("pin already used")
)

// GPIO watches input lines for edges.
type GPIO interface {
	// Watch requests pin as an input with the given bias and calls h on every
	// rising and falling edge. There can only be one watcher on a pin.
	Watch(pin int, pull port.Pull, h port.Handler) error
	// Close releases all requested lines. It must not be called from a handler.
	Close() error
}

// Open returns the named backend. chip is only used by the cdev backend;
// clock timestamps events of backends without kernel timestamps.
func Open(backend, chip string, clock tick.Source) (GPIO, error) {
	switch backend {
	case BackendCdev:
		c, err := OpenChip(chip)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendMem:
		m, err := OpenMem(clock)
		if err != nil {
			return nil, err
		}
		return m, nil
	case BackendEmu:
		return NewEmulator(clock), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidParam, backend)
	}
}

func checkPin(pin int) error {
	if !port.ValidPin(pin) {
		return fmt.Errorf("%w: pin %d", ErrInvalidParam, pin)
	}
	return nil
}
