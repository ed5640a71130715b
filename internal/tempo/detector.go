package tempo

import (
	"log/slog"
	"time"
)

// Detector measures intervals between taps and publishes in-range
// intervals to a Period.
//
// OnEdge must only be called from one goroutine at a time (the edge
// context). All fields other than the Period and Stats are private to that
// goroutine.
type Detector struct {
	cfg    Config
	period *Period
	stats  Stats
	log    *slog.Logger

	lastPress time.Duration
	hasPress  bool
	lastTap   time.Duration
	hasTap    bool
}

// NewDetector creates a Detector publishing into period.
// log may be nil.
func NewDetector(cfg Config, period *Period, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Detector{
		cfg:    cfg,
		period: period,
		log:    log,
	}
}

// OnEdge processes one edge observed at now.
//
// An edge closer than Debounce to the last undiscarded press is dropped
// without touching any state, so contact bounce collapses onto its first
// edge. Otherwise the interval since the previous tap is published when it
// lies within [MinPeriod, MaxPeriod] and ignored when it does not. The
// previous tap always moves to now, so one stray tap costs one interval.
func (d *Detector) OnEdge(now time.Duration) Result {
	d.stats.Edges.Add(1)

	if d.hasPress && now-d.lastPress < d.cfg.Debounce {
		d.stats.Debounced.Add(1)
		return ResultDebounced
	}
	d.lastPress = now
	d.hasPress = true

	result := ResultFirst
	if d.hasTap {
		delta := now - d.lastTap
		if delta >= d.cfg.MinPeriod && delta <= d.cfg.MaxPeriod {
			d.period.Store(delta)
			d.stats.Accepted.Add(1)
			result = ResultAccepted
			d.log.Info("tempo updated", "period", delta, "bpm", BPM(delta))
		} else {
			d.stats.OutOfRange.Add(1)
			result = ResultOutOfRange
			d.log.Debug("tap interval out of range", "interval", delta)
		}
	}

	d.lastTap = now
	d.hasTap = true
	return result
}

// LastTap returns the timestamp of the last accepted (non-debounced) tap.
// Only valid in the edge context or after edges have stopped.
func (d *Detector) LastTap() (time.Duration, bool) {
	return d.lastTap, d.hasTap
}

// Period returns the cell the detector publishes to.
func (d *Detector) Period() *Period {
	return d.period
}

// Stats returns the detector's counters.
func (d *Detector) Stats() *Stats {
	return &d.stats
}
