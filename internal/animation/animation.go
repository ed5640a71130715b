// Package animation contains the light animations run by the scheduler.
//
// Every animation is a small state machine advanced by Tick. Ticks are
// serialized by the scheduler; an animation's state is touched by nothing
// else except where noted.
package animation

import "time"

// Animation is advanced once per scheduler pass.
type Animation interface {
	// Tick advances the animation to now and writes the light.
	Tick(now time.Time)
}
