package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Tempo         TempoJSON  `json:"tempo"`
	Taps          TapsJSON   `json:"taps"`
	Lights        LightsJSON `json:"lights"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Config        ConfigJSON `json:"config"`
}

// TempoJSON reports the current tempo.
type TempoJSON struct {
	PeriodMs int64   `json:"period_ms"`
	BPM      float64 `json:"bpm"`
	LastTap  string  `json:"last_tap,omitempty"`
}

// TapsJSON is the JSON representation of detector counters.
type TapsJSON struct {
	Edges      uint64 `json:"edges"`
	Debounced  uint64 `json:"debounced"`
	OutOfRange uint64 `json:"out_of_range"`
	Accepted   uint64 `json:"accepted"`
}

// LightsJSON reports animation state.
type LightsJSON struct {
	Breathe BreatheJSON  `json:"breathe"`
	Toggles []ToggleJSON `json:"toggles"`
}

// BreatheJSON is the JSON representation of the breathing light.
type BreatheJSON struct {
	Phase           float64 `json:"phase"`
	Rising          bool    `json:"rising"`
	PeriodMs        int64   `json:"period_ms"`
	PendingPeriodMs int64   `json:"pending_period_ms,omitempty"`
	Reflections     uint64  `json:"reflections"`
}

// ToggleJSON is the JSON representation of a blinking light.
type ToggleJSON struct {
	Name string `json:"name"`
	On   bool   `json:"on"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	DebounceMs  int64  `json:"debounce_ms"`
	MinPeriodMs int64  `json:"min_period_ms"`
	MaxPeriodMs int64  `json:"max_period_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	LogLevel    string `json:"log_level"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func buildInner(snap Snapshot) StatusInner {
	toggles := make([]ToggleJSON, len(snap.Toggles))
	for i, tg := range snap.Toggles {
		toggles[i] = ToggleJSON{Name: tg.Name, On: tg.On}
	}

	inner := StatusInner{
		Tempo: TempoJSON{
			PeriodMs: snap.Period.Milliseconds(),
			BPM:      round1(snap.BPM()),
		},
		Taps: TapsJSON{
			Edges:      snap.Taps.Edges,
			Debounced:  snap.Taps.Debounced,
			OutOfRange: snap.Taps.OutOfRange,
			Accepted:   snap.Taps.Accepted,
		},
		Lights: LightsJSON{
			Breathe: BreatheJSON{
				Phase:           math.Round(snap.Breathe.Phase*1000) / 1000,
				Rising:          snap.Breathe.Direction >= 0,
				PeriodMs:        snap.Breathe.Period.Milliseconds(),
				PendingPeriodMs: snap.Breathe.Pending.Milliseconds(),
				Reflections:     snap.Breathe.Reflections,
			},
			Toggles: toggles,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			DebounceMs:  snap.Config.DebounceMs,
			MinPeriodMs: snap.Config.MinPeriodMs,
			MaxPeriodMs: snap.Config.MaxPeriodMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			LogLevel:    snap.Config.LogLevel,
		},
	}
	if !snap.LastTap.IsZero() {
		inner.Tempo.LastTap = snap.LastTap.UTC().Format(time.RFC3339Nano)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
