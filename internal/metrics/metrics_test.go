package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/tempo-lights/internal/tempo"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestTempoMetrics(t *testing.T) {
	stats := &tempo.Stats{}
	stats.Edges.Store(7)
	stats.Debounced.Store(2)
	stats.OutOfRange.Store(1)
	stats.Accepted.Store(3)
	period := tempo.NewPeriod(500 * time.Millisecond)

	body := scrape(t, New(Sources{Stats: stats, Period: period}))

	for _, want := range []string{
		`tempo_lights_tap_edges_total{result="debounced"} 2`,
		`tempo_lights_tap_edges_total{result="out_of_range"} 1`,
		`tempo_lights_tap_edges_total{result="accepted"} 3`,
		`tempo_lights_tap_edges_seen_total 7`,
		`tempo_lights_tempo_period_seconds 0.5`,
		`tempo_lights_tempo_bpm 120`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestMetricsReadLiveValues(t *testing.T) {
	period := tempo.NewPeriod(time.Second)
	r := New(Sources{Period: period})

	if body := scrape(t, r); !strings.Contains(body, "tempo_lights_tempo_bpm 60") {
		t.Fatal("expected 60 bpm")
	}
	period.Store(250 * time.Millisecond)
	if body := scrape(t, r); !strings.Contains(body, "tempo_lights_tempo_bpm 240") {
		t.Error("expected 240 bpm after period change")
	}
}

func TestOptionalSources(t *testing.T) {
	connected := true
	runs := map[string]uint64{"breathe": 50, "toggle-a": 2}

	body := scrape(t, New(Sources{
		BreatheReflections: func() uint64 { return 4 },
		Clamped:            func() uint64 { return 9 },
		LogDropped:         func() uint64 { return 0 },
		MQTTConnected:      func() bool { return connected },
		MQTTBuffered:       func() int { return 3 },
		MQTTDropped:        func() uint64 { return 7 },
		TaskRuns:           func(name string) uint64 { return runs[name] },
		TaskNames:          []string{"breathe", "toggle-a"},
	}))

	for _, want := range []string{
		"tempo_lights_breathe_reflections_total 4",
		"tempo_lights_light_intensity_clamped_total 9",
		"tempo_lights_log_records_dropped_total 0",
		"tempo_lights_mqtt_connected 1",
		"tempo_lights_mqtt_backlog_messages 3",
		"tempo_lights_mqtt_backlog_dropped_total 7",
		`tempo_lights_task_runs_total{task="breathe"} 50`,
		`tempo_lights_task_runs_total{task="toggle-a"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestEmptySources(t *testing.T) {
	body := scrape(t, New(Sources{}))
	if strings.Contains(body, "tempo_lights_") {
		t.Error("no tempo metrics expected without sources")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected Go runtime metrics")
	}
}
