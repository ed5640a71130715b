// Package gpio provides GPIO line output and tap-button edge input with
// hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Pin drives a single binary output line.
type Pin interface {
	// Set drives the line high (true) or low (false).
	// Write failures are logged by the implementation; callers treat the
	// write as infallible.
	Set(high bool)
}

// Edge is a single qualifying transition on the tap input.
type Edge struct {
	// Timestamp is monotonic time since an arbitrary epoch (kernel
	// CLOCK_MONOTONIC for real lines).
	Timestamp time.Duration
	Rising    bool
}

// EdgeSource delivers button edges to a handler.
// The handler is invoked from a single goroutine owned by the source and is
// never re-entered. It must return quickly.
type EdgeSource interface {
	Watch(handler func(Edge)) error
	Close() error
}

// Default line offsets (BCM numbering).
const (
	DefaultPinTap     = 17
	DefaultPinToggleA = 27
	DefaultPinToggleB = 22
)

// DefaultChip is the GPIO character device used when none is configured.
const DefaultChip = "gpiochip0"
