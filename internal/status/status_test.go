package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/tempo-lights/internal/animation"
	"github.com/sweeney/tempo-lights/internal/tempo"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{DebounceMs: 50, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.DebounceMs != 50 {
		t.Errorf("Config.DebounceMs: got %d, want 50", snap.Config.DebounceMs)
	}
	if snap.Config.HTTPAddr != ":8080" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":8080")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if !snap.LastTap.IsZero() {
		t.Error("expected no last tap initially")
	}
}

func TestUpdateTempo(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.UpdateTempo(500*time.Millisecond, tempo.StatsSnapshot{Edges: 4, Debounced: 1, Accepted: 2})

	snap := tr.Snapshot()
	if snap.Period != 500*time.Millisecond {
		t.Errorf("Period: got %v, want 500ms", snap.Period)
	}
	if snap.BPM() != 120 {
		t.Errorf("BPM: got %v, want 120", snap.BPM())
	}
	if snap.Taps.Accepted != 2 || snap.Taps.Debounced != 1 {
		t.Errorf("Taps: got %+v", snap.Taps)
	}
}

func TestUpdateLights(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	toggles := []ToggleState{{Name: "a", On: true}, {Name: "b"}}
	tr.UpdateLights(animation.BreatheState{Phase: 0.25, Direction: 1, Period: time.Second}, toggles)
	toggles[0].On = false

	snap := tr.Snapshot()
	if snap.Breathe.Phase != 0.25 {
		t.Errorf("Breathe.Phase: got %v", snap.Breathe.Phase)
	}
	if !snap.Toggles[0].On {
		t.Error("tracker should copy the toggle slice")
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetLogLevel(t *testing.T) {
	tr := NewTracker(time.Now(), Config{LogLevel: "info"})
	tr.SetLogLevel("debug")
	if got := tr.Snapshot().Config.LogLevel; got != "debug" {
		t.Errorf("LogLevel: got %q", got)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.UpdateLights(animation.BreatheState{}, []ToggleState{{Name: "a", On: true}})

	snap1 := tr.Snapshot()
	snap1.Toggles[0].On = false

	if !tr.Snapshot().Toggles[0].On {
		t.Error("snapshot should be a copy; toggle was modified")
	}
}

func testSnapshot() Snapshot {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return Snapshot{
		Period:  750 * time.Millisecond,
		LastTap: start.Add(10 * time.Minute),
		Taps:    tempo.StatsSnapshot{Edges: 9, Debounced: 3, OutOfRange: 1, Accepted: 4},
		Breathe: animation.BreatheState{
			Phase:       0.5,
			Direction:   -1,
			Period:      time.Second,
			Pending:     750 * time.Millisecond,
			Reflections: 12,
		},
		Toggles:       []ToggleState{{Name: "toggle-a", On: true}, {Name: "toggle-b"}},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config: Config{
			DebounceMs:  50,
			MinPeriodMs: 60,
			MaxPeriodMs: 3000,
			HeartbeatMs: 900000,
			Broker:      "tcp://localhost:1883",
			HTTPAddr:    ":8080",
			LogLevel:    "info",
		},
	}
}

func TestFormatJSON(t *testing.T) {
	data := FormatJSON(testSnapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status

	if s.Tempo.PeriodMs != 750 || s.Tempo.BPM != 80 {
		t.Errorf("Tempo: got %+v", s.Tempo)
	}
	if s.Tempo.LastTap != "2026-01-01T00:10:00Z" {
		t.Errorf("LastTap: got %q", s.Tempo.LastTap)
	}
	if s.Taps.Edges != 9 || s.Taps.OutOfRange != 1 || s.Taps.Accepted != 4 {
		t.Errorf("Taps: got %+v", s.Taps)
	}
	if s.Lights.Breathe.Rising || s.Lights.Breathe.PendingPeriodMs != 750 || s.Lights.Breathe.Reflections != 12 {
		t.Errorf("Breathe: got %+v", s.Lights.Breathe)
	}
	if len(s.Lights.Toggles) != 2 || !s.Lights.Toggles[0].On {
		t.Errorf("Toggles: got %+v", s.Lights.Toggles)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
	if s.Config.MaxPeriodMs != 3000 {
		t.Errorf("Config.MaxPeriodMs: got %d", s.Config.MaxPeriodMs)
	}
	if s.Event != "" || s.Reason != "" {
		t.Error("web status should not carry event/reason")
	}
}

func TestFormatJSONBeforeFirstTap(t *testing.T) {
	snap := testSnapshot()
	snap.LastTap = time.Time{}
	snap.Toggles = nil

	var parsed map[string]map[string]any
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	tempoObj := parsed["status"]["tempo"].(map[string]any)
	if _, exists := tempoObj["last_tap"]; exists {
		t.Error("last_tap should be omitted before the first tap")
	}
	lights := parsed["status"]["lights"].(map[string]any)
	if toggles, ok := lights["toggles"].([]any); !ok || len(toggles) != 0 {
		t.Errorf("toggles should be an empty array, got %v", lights["toggles"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	data := FormatStatusEvent(testSnapshot(), "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", parsed.Status.Event, parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	data := FormatStatusEvent(testSnapshot(), "HEARTBEAT", "")

	var parsed map[string]map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, exists := parsed["status"]["reason"]; exists {
		t.Error("HEARTBEAT should not have reason field")
	}
	if parsed["status"]["event"] != "HEARTBEAT" {
		t.Errorf("event: got %v", parsed["status"]["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.UpdateTempo(time.Duration(i+1)*time.Millisecond, tempo.StatsSnapshot{Edges: uint64(i)})
			tr.UpdateLights(animation.BreatheState{Reflections: uint64(i)}, []ToggleState{{Name: "a", On: i%2 == 0}})
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
