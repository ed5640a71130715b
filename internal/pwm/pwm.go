// Package pwm provides pulse-width output channels.
// The sysfs implementation drives Linux /sys/class/pwm channels.
// The fake implementation records writes for tests.
package pwm

import (
	"errors"
	"sync/atomic"
)

// ErrChannelBusy is returned by Claim when the channel already has an owner.
var ErrChannelBusy = errors.New("pwm: channel already owned")

// Channel is a single pulse-width output.
// Start, Stop and SetCompare are treated as infallible by callers;
// implementations log write failures.
type Channel interface {
	// Start enables the output.
	Start()
	// Stop disables the output.
	Stop()
	// SetCompare writes the compare (duty) value in counter units.
	SetCompare(v int)
	// Period returns the configured counter period; compare values range
	// over [0, Period].
	Period() int

	// Claim marks the channel as owned. At most one owner at a time.
	Claim() error
	// Unclaim releases ownership.
	Unclaim()
}

// owner is an atomic single-owner flag shared by Channel implementations.
type owner struct {
	taken atomic.Bool
}

func (o *owner) Claim() error {
	if !o.taken.CompareAndSwap(false, true) {
		return ErrChannelBusy
	}
	return nil
}

func (o *owner) Unclaim() {
	o.taken.Store(false)
}
