package animation

import (
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/sweeney/tempo-lights/internal/light"
	"github.com/sweeney/tempo-lights/internal/tempo"
)

// PeriodSource supplies a tempo period; *tempo.Period satisfies it.
// Seq must change on every publish, even when the value does not.
type PeriodSource interface {
	Load() time.Duration
	Seq() uint64
}

// Breathe fades its light along a triangle wave whose full cycle (dark to
// bright to dark) lasts one period. Phase advances with elapsed wall-clock
// time, so irregular tick spacing does not change the waveform.
//
// The phase is kept as an integer travel in [0, period]: one period of
// elapsed time moves it 2*period. Reflection points are therefore hit
// exactly, whatever the tick cadence.
//
// A new period never takes effect mid-ramp: it is staged and becomes
// active when the phase next reflects off 0 or 1.
type Breathe struct {
	out    light.Output
	log    *slog.Logger
	source PeriodSource

	pos       int64 // phase * period, in ns
	direction int
	last      time.Time
	started   bool
	period    time.Duration
	seenSeq   uint64 // last publish consumed from source

	pending     atomic.Int64 // staged period in ns, 0 if none
	reflections atomic.Uint64
}

// BreatheOption configures a Breathe.
type BreatheOption func(*Breathe)

// WithPeriodSource makes the animation follow src. Each publish observed in
// src is staged as if passed to RequestPeriod.
func WithPeriodSource(src PeriodSource) BreatheOption {
	return func(b *Breathe) {
		b.source = src
	}
}

// NewBreathe creates a Breathe at phase 0 rising. A non-positive period
// falls back to tempo.DefaultPeriod.
func NewBreathe(out light.Output, period time.Duration, log *slog.Logger, opts ...BreatheOption) *Breathe {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if period <= 0 {
		log.Warn("invalid breathe period, using default", "period", period, "default", tempo.DefaultPeriod)
		period = tempo.DefaultPeriod
	}
	b := &Breathe{
		out:       out,
		log:       log,
		direction: 1,
		period:    period,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.source != nil {
		b.seenSeq = b.source.Seq()
	}
	return b
}

// RequestPeriod stages d to become active at the next reflection.
// Safe to call from any goroutine. Non-positive values are ignored.
func (b *Breathe) RequestPeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	b.pending.Store(int64(d))
}

func (b *Breathe) Tick(now time.Time) {
	if b.source != nil {
		if seq := b.source.Seq(); seq != b.seenSeq {
			b.seenSeq = seq
			b.RequestPeriod(b.source.Load())
		}
	}

	var elapsed time.Duration
	if b.started {
		elapsed = now.Sub(b.last)
		if elapsed < 0 {
			elapsed = 0
		}
	}
	b.started = true

	// Whole cycles leave phase and direction unchanged, so only the
	// remainder of the travel is applied.
	travel := 2 * (int64(elapsed) % int64(b.period))
	b.pos += int64(b.direction) * travel
	b.fold()

	rng := b.out.Range()
	b.out.SetIntensity(rng.Min + int(float64(rng.Span())*b.phase()))
	b.out.On()

	b.last = now
}

func (b *Breathe) phase() float64 {
	return float64(b.pos) / float64(b.period)
}

// fold reflects the position back into [0, period]. Reaching the top
// reflects; the bottom reflects only once it is passed.
func (b *Breathe) fold() {
	for {
		top := int64(b.period)
		switch {
		case b.pos > top || b.pos == top && b.direction > 0:
			b.pos = 2*top - b.pos
			b.direction = -1
		case b.pos < 0:
			b.pos = -b.pos
			b.direction = 1
		default:
			return
		}
		b.reflected()
	}
}

func (b *Breathe) reflected() {
	b.reflections.Add(1)
	if p := time.Duration(b.pending.Swap(0)); p > 0 && p != b.period {
		b.log.Info("breathe period applied", "from", b.period, "to", p)
		b.pos = int64(math.Round(float64(b.pos) * float64(p) / float64(b.period)))
		b.period = p
	}
	b.log.Debug("fade direction changed", "direction", b.direction)
}

// BreatheState is a snapshot of a Breathe for status reporting.
type BreatheState struct {
	Phase       float64
	Direction   int
	Period      time.Duration
	Pending     time.Duration // 0 if nothing is staged
	Reflections uint64
}

// State returns the current state. Call it from the ticking goroutine.
func (b *Breathe) State() BreatheState {
	return BreatheState{
		Phase:       b.phase(),
		Direction:   b.direction,
		Period:      b.period,
		Pending:     time.Duration(b.pending.Load()),
		Reflections: b.reflections.Load(),
	}
}

// Reflections returns how many times the phase has reflected. Safe from any
// goroutine.
func (b *Breathe) Reflections() uint64 {
	return b.reflections.Load()
}
