//go:build !linux

package gpio

import (
	"errors"
	"log/slog"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealPin is not available on non-Linux platforms.
type RealPin struct{}

// NewRealPin returns an error on non-Linux platforms.
func NewRealPin(chip string, offset int, log *slog.Logger) (*RealPin, error) {
	return nil, errUnsupported
}

// Set is a no-op on non-Linux platforms.
func (p *RealPin) Set(high bool) {}

// Close is a no-op on non-Linux platforms.
func (p *RealPin) Close() error {
	return nil
}

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns a button whose Watch always fails.
func NewRealButton(chip string, offset int, bothEdges bool) *RealButton {
	return &RealButton{}
}

// Watch is not implemented on non-Linux platforms.
func (b *RealButton) Watch(handler func(Edge)) error {
	return errUnsupported
}

// Close is a no-op on non-Linux platforms.
func (b *RealButton) Close() error {
	return nil
}
