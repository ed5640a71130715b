// Package tempo derives a tempo period from button taps.
//
// The Detector runs in the edge context (the goroutine that delivers GPIO
// events) and publishes into a Period cell that the polled animation context
// reads. This package has NO hardware dependencies; time is always passed in
// as a monotonic timestamp.
package tempo

import (
	"sync/atomic"
	"time"
)

// Defaults matching the tap input's expected use (20..1000 BPM window).
const (
	DefaultDebounce  = 50 * time.Millisecond
	DefaultMinPeriod = 60 * time.Millisecond
	DefaultMaxPeriod = 3000 * time.Millisecond
	DefaultPeriod    = 1000 * time.Millisecond // 60 BPM
)

// Config holds the Detector's fixed thresholds.
type Config struct {
	Debounce  time.Duration
	MinPeriod time.Duration
	MaxPeriod time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		Debounce:  DefaultDebounce,
		MinPeriod: DefaultMinPeriod,
		MaxPeriod: DefaultMaxPeriod,
	}
}

// Result classifies what OnEdge did with an edge.
type Result string

const (
	// ResultDebounced means the edge fell inside the debounce window and
	// was discarded entirely.
	ResultDebounced Result = "DEBOUNCED"
	// ResultFirst means the edge was the first tap; there is no interval yet.
	ResultFirst Result = "FIRST"
	// ResultAccepted means the interval was in range and was published.
	ResultAccepted Result = "ACCEPTED"
	// ResultOutOfRange means the interval was ignored; the period is unchanged.
	ResultOutOfRange Result = "OUT_OF_RANGE"
)

// Period is the cross-context tempo cell.
// Every access is a single 64-bit atomic load or store; there is no
// read-modify-write, so no critical section is needed.
//
// Seq counts stores, so a reader can tell a fresh publish of an unchanged
// value from no publish at all.
type Period struct {
	ns  atomic.Int64
	seq atomic.Uint64
}

// NewPeriod creates a cell holding initial.
func NewPeriod(initial time.Duration) *Period {
	p := &Period{}
	p.Store(initial)
	return p
}

// Load returns the current period.
func (p *Period) Load() time.Duration {
	return time.Duration(p.ns.Load())
}

// Store publishes a new period. The value is visible before the sequence
// moves.
func (p *Period) Store(d time.Duration) {
	p.ns.Store(int64(d))
	p.seq.Add(1)
}

// Seq returns the number of stores so far.
func (p *Period) Seq() uint64 {
	return p.seq.Load()
}

// BPM returns beats per minute for the current period.
func (p *Period) BPM() float64 {
	return BPM(p.Load())
}

// BPM converts a period to beats per minute. Non-positive periods yield 0.
func BPM(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(time.Minute) / float64(d)
}

// Stats counts Detector outcomes. Fields are updated from the edge context
// and may be read from any goroutine.
type Stats struct {
	Edges      atomic.Uint64
	Debounced  atomic.Uint64
	OutOfRange atomic.Uint64
	Accepted   atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Edges      uint64
	Debounced  uint64
	OutOfRange uint64
	Accepted   uint64
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Edges:      s.Edges.Load(),
		Debounced:  s.Debounced.Load(),
		OutOfRange: s.OutOfRange.Load(),
		Accepted:   s.Accepted.Load(),
	}
}
