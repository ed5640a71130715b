// Package metrics exposes tempo and light counters in Prometheus format.
//
// Collectors read live state through functions at scrape time, so nothing
// on the edge or animation path touches Prometheus types.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/tempo-lights/internal/tempo"
)

const namespace = "tempo_lights"

// Sources supplies the values behind each metric. Nil fields are skipped.
type Sources struct {
	Stats  *tempo.Stats
	Period *tempo.Period

	// BreatheReflections counts fade direction changes.
	BreatheReflections func() uint64
	// Clamped counts out-of-range intensity writes to the analog light.
	Clamped func() uint64
	// LogDropped counts records lost from the edge log buffer.
	LogDropped func() uint64
	// MQTTConnected reports broker connectivity.
	MQTTConnected func() bool
	// MQTTBuffered and MQTTDropped describe the offline publish backlog.
	MQTTBuffered func() int
	MQTTDropped  func() uint64

	// TaskRuns reports how often each named scheduler task has run.
	TaskRuns  func(name string) uint64
	TaskNames []string
}

// Registry is a Prometheus registry populated from Sources.
type Registry struct {
	reg *prometheus.Registry
}

// New builds a registry with Go runtime collectors plus the tempo metrics.
func New(src Sources) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if s := src.Stats; s != nil {
		taps := func(result tempo.Result, v func() uint64) prometheus.Collector {
			return prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "tap_edges_total",
				Help:        "Tap edges by detector outcome.",
				ConstLabels: prometheus.Labels{"result": strings.ToLower(string(result))},
			}, func() float64 { return float64(v()) })
		}
		reg.MustRegister(
			taps(tempo.ResultDebounced, s.Debounced.Load),
			taps(tempo.ResultOutOfRange, s.OutOfRange.Load),
			taps(tempo.ResultAccepted, s.Accepted.Load),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tap_edges_seen_total",
				Help:      "All tap edges delivered to the detector.",
			}, func() float64 { return float64(s.Edges.Load()) }),
		)
	}

	if p := src.Period; p != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tempo_period_seconds",
				Help:      "Current tempo period.",
			}, func() float64 { return p.Load().Seconds() }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tempo_bpm",
				Help:      "Current tempo in beats per minute.",
			}, p.BPM),
		)
	}

	counter := func(name, help string, v func() uint64) {
		if v == nil {
			return
		}
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v()) }))
	}
	counter("breathe_reflections_total", "Breathing light direction changes.", src.BreatheReflections)
	counter("light_intensity_clamped_total", "Analog intensity writes clamped to the channel range.", src.Clamped)
	counter("log_records_dropped_total", "Log records dropped from the edge buffer.", src.LogDropped)

	counter("mqtt_backlog_dropped_total", "MQTT messages evicted from the offline backlog.", src.MQTTDropped)
	if src.MQTTBuffered != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_backlog_messages",
			Help:      "MQTT messages waiting for a broker connection.",
		}, func() float64 { return float64(src.MQTTBuffered()) }))
	}

	if src.MQTTConnected != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 if the MQTT client is connected.",
		}, func() float64 {
			if src.MQTTConnected() {
				return 1
			}
			return 0
		}))
	}

	if src.TaskRuns != nil {
		for _, name := range src.TaskNames {
			reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "task_runs_total",
				Help:        "Scheduler task executions.",
				ConstLabels: prometheus.Labels{"task": name},
			}, func() float64 { return float64(src.TaskRuns(name)) }))
		}
	}

	return &Registry{reg: reg}
}

// Handler returns the /metrics HTTP handler.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests and embedding.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
