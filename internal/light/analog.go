package light

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sweeney/tempo-lights/internal/pwm"
)

var _ Output = (*Analog)(nil)

// Lifecycle is the acquire/release pair for a pulse-width channel.
// Either function may be nil.
type Lifecycle struct {
	// Acquire configures the channel. It runs once, before the range is read.
	Acquire func() error
	// Release deconfigures the channel. It runs exactly once: on Close, or
	// when construction fails after the channel was claimed (including a
	// panicking Acquire).
	Release func()
}

// Analog is a dimmable light on a pulse-width channel.
type Analog struct {
	ch      pwm.Channel
	rng     Range
	release func()
	once    sync.Once
	clamped atomic.Uint64
}

// NewAnalog claims ch, runs lc.Acquire and captures the range
// {0, ch.Period()}. The returned Analog owns the channel until Close.
func NewAnalog(ch pwm.Channel, lc Lifecycle) (*Analog, error) {
	if err := ch.Claim(); err != nil {
		return nil, err
	}

	ok := false
	defer func() {
		if !ok {
			if lc.Release != nil {
				lc.Release()
			}
			ch.Unclaim()
		}
	}()

	if lc.Acquire != nil {
		if err := lc.Acquire(); err != nil {
			return nil, fmt.Errorf("acquire pwm channel: %w", err)
		}
	}

	period := ch.Period()
	if period < 0 {
		return nil, fmt.Errorf("pwm period %d is negative", period)
	}

	a := &Analog{
		ch:      ch,
		rng:     Range{Min: 0, Max: period},
		release: lc.Release,
	}
	ok = true
	return a, nil
}

func (a *Analog) On()  { a.ch.Start() }
func (a *Analog) Off() { a.ch.Stop() }

// SetIntensity saturates raw to the range and writes it as the compare
// value. The write is bracketed by Stop and Start so the channel never
// emits a transient duty cycle while the compare register changes.
func (a *Analog) SetIntensity(raw int) {
	v := clamp(raw, a.rng.Min, a.rng.Max)
	if v != raw {
		a.clamped.Add(1)
	}
	a.ch.Stop()
	a.ch.SetCompare(v)
	a.ch.Start()
}

func (a *Analog) SetLevel(v float64) {
	a.SetIntensity(LevelToRaw(a.rng, v))
}

func (a *Analog) Range() Range {
	return a.rng
}

// Clamped returns how many SetIntensity calls were saturated.
func (a *Analog) Clamped() uint64 {
	return a.clamped.Load()
}

// Close runs the release callback and gives up the channel. Only the first
// call has any effect.
func (a *Analog) Close() error {
	a.once.Do(func() {
		if a.release != nil {
			a.release()
		}
		a.ch.Unclaim()
	})
	return nil
}
