//go:build !linux

package raspberry

import (
	"gpioisr/pkg/port"
	"gpioisr/pkg/tick"
)

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns ErrUnsupported on non-Linux platforms.
func OpenChip(string) (*Chip, error) {
	return nil, ErrUnsupported
}

// Watch is not implemented on non-Linux platforms.
func (c *Chip) Watch(int, port.Pull, port.Handler) error {
	return ErrUnsupported
}

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}

// Mem is not available on non-Linux platforms.
type Mem struct{}

// OpenMem returns ErrUnsupported on non-Linux platforms.
func OpenMem(tick.Source) (*Mem, error) {
	return nil, ErrUnsupported
}

// Watch is not implemented on non-Linux platforms.
func (m *Mem) Watch(int, port.Pull, port.Handler) error {
	return ErrUnsupported
}

// Close is not implemented on non-Linux platforms.
func (m *Mem) Close() error {
	return nil
}
