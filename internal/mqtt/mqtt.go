// Package mqtt publishes tempo changes and lifecycle events to an MQTT
// broker, with a fake for tests.
package mqtt

import (
	"encoding/json"
	"math"
	"time"
)

// TopicTempo is the MQTT topic for tempo changes.
const TopicTempo = "lights/tempo/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "lights/tempo/system"

// Lifecycle event names published on TopicSystem.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
	EventOffline     = "OFFLINE"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishTempo sends a tempo change. Errors should be logged, never fatal.
	PublishTempo(event TempoEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Backlog reports on messages held while the broker is unreachable.
type Backlog interface {
	Buffered() int
	Dropped() uint64
}

// TempoEvent is an accepted tempo change.
type TempoEvent struct {
	Timestamp time.Time
	Period    time.Duration
}

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // pre-formatted JSON; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// TempoPayload is the JSON body published on TopicTempo.
type TempoPayload struct {
	Tempo TempoPayloadInner `json:"tempo"`
}

// TempoPayloadInner contains the tempo details.
type TempoPayloadInner struct {
	Timestamp string  `json:"timestamp"`
	PeriodMS  int64   `json:"period_ms"`
	BPM       float64 `json:"bpm"`
}

// FormatTempoPayload creates the JSON payload for a tempo change. BPM is
// rounded to one decimal place.
func FormatTempoPayload(event TempoEvent) ([]byte, error) {
	var bpm float64
	if event.Period > 0 {
		bpm = math.Round(float64(time.Minute)/float64(event.Period)*10) / 10
	}
	return json.Marshal(TempoPayload{
		Tempo: TempoPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			PeriodMS:  event.Period.Milliseconds(),
			BPM:       bpm,
		},
	})
}

// SystemPayload is the JSON body for simple system events (LWT,
// RECONNECTED, SHUTDOWN) that don't carry a status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// WillPayload is the retained last-will message the broker publishes on
// TopicSystem if the connection drops without a clean disconnect.
func WillPayload(at time.Time) []byte {
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: at,
		Event:     EventOffline,
		Reason:    "MQTT_DISCONNECT",
	})
	return payload
}
