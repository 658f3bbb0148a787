// Package port holds the definition of an edge event on a physical port.
package port

import "gpioisr/pkg/tick"

// MaxPins is the number of addressable lines (BCM 0..53).
const MaxPins = 54

// Level is the electrical level observed on a line.
type Level int

const (
	// Low indicates a logical 0.
	Low Level = 0
	// High indicates a logical 1.
	High Level = 1
)

// Invert returns the opposite level.
func (l Level) Invert() Level {
	if l == High {
		return Low
	}
	return High
}

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Pull is the internal bias requested for an input line.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return "none"
	}
}

// Event is a single observed transition.
type Event struct {
	// Pin is the BCM line number.
	Pin int
	// Level is the raw level after the transition.
	Level Level
	// Tick is the time the transition was captured.
	Tick tick.Tick
}

// Handler receives edge events. It is called from the delivery context of a
// backend and must not block.
type Handler func(pin int, level Level, t tick.Tick)

// ValidPin reports whether pin is an addressable line number.
func ValidPin(pin int) bool {
	return pin >= 0 && pin < MaxPins
}
