// Package events carries in-process notifications between the tempo
// pipeline and its observers (MQTT, websocket clients).
package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeTempoChanged uint32 = iota + 1
	TypeConfigReloaded
	TypeHeartbeat
)

// Event is the interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// TempoChanged is published when an accepted tap interval changes the
// shared period.
type TempoChanged struct {
	At     time.Time     `json:"timestamp"`
	Period time.Duration `json:"-"`
	BPM    float64       `json:"bpm"`
}

func (e TempoChanged) Type() uint32 { return TypeTempoChanged }

// ConfigReloaded is published after the config file was reloaded and the
// hot-reloadable settings applied.
type ConfigReloaded struct {
	At       time.Time
	LogLevel string
	Period   time.Duration
}

func (e ConfigReloaded) Type() uint32 { return TypeConfigReloaded }

// Heartbeat is published by the scheduler when a periodic status report is
// due. Subscribers do the slow work (MQTT) off the animation goroutine.
type Heartbeat struct {
	At time.Time
}

func (e Heartbeat) Type() uint32 { return TypeHeartbeat }
