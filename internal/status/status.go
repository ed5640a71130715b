// Package status provides a thread-safe status tracker for the tempo-lights
// daemon. It is read by HTTP handlers, the websocket push and MQTT
// heartbeats.
package status

import (
	"slices"
	"sync"
	"time"

	"github.com/sweeney/tempo-lights/internal/animation"
	"github.com/sweeney/tempo-lights/internal/tempo"
)

// Config contains daemon configuration for display.
type Config struct {
	DebounceMs  int64
	MinPeriodMs int64
	MaxPeriodMs int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	LogLevel    string
}

// ToggleState is the on/off state of one blinking light.
type ToggleState struct {
	Name string
	On   bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Period        time.Duration
	LastTap       time.Time // zero until the first tap
	Taps          tempo.StatsSnapshot
	Breathe       animation.BreatheState
	Toggles       []ToggleState
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// BPM returns the tempo in beats per minute.
func (s Snapshot) BPM() float64 {
	return tempo.BPM(s.Period)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// UpdateTempo records the current period and detector counters.
func (t *Tracker) UpdateTempo(period time.Duration, taps tempo.StatsSnapshot) {
	t.mu.Lock()
	t.snap.Period = period
	t.snap.Taps = taps
	t.mu.Unlock()
}

// SetLastTap records the wall-clock time of the most recent counted tap.
func (t *Tracker) SetLastTap(at time.Time) {
	t.mu.Lock()
	t.snap.LastTap = at
	t.mu.Unlock()
}

// UpdateLights records animation state. Called from the scheduler
// goroutine, which owns the animations.
func (t *Tracker) UpdateLights(breathe animation.BreatheState, toggles []ToggleState) {
	t.mu.Lock()
	t.snap.Breathe = breathe
	t.snap.Toggles = slices.Clone(toggles)
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetLogLevel updates the displayed log level after a config reload.
func (t *Tracker) SetLogLevel(level string) {
	t.mu.Lock()
	t.snap.Config.LogLevel = level
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Toggles = slices.Clone(t.snap.Toggles)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
