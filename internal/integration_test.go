package internal

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sweeney/tempo-lights/internal/animation"
	"github.com/sweeney/tempo-lights/internal/events"
	"github.com/sweeney/tempo-lights/internal/gpio"
	"github.com/sweeney/tempo-lights/internal/light"
	"github.com/sweeney/tempo-lights/internal/mqtt"
	"github.com/sweeney/tempo-lights/internal/pwm"
	"github.com/sweeney/tempo-lights/internal/scheduler"
	"github.com/sweeney/tempo-lights/internal/status"
	"github.com/sweeney/tempo-lights/internal/tempo"
	"github.com/sweeney/tempo-lights/internal/web"
)

type pipeline struct {
	button  *gpio.FakeButton
	channel *pwm.FakeChannel
	pinA    *gpio.FakePin
	period  *tempo.Period
	det     *tempo.Detector
	analog  *light.Analog
	breathe *animation.Breathe
	toggle  *animation.Toggle
	sched   *scheduler.Scheduler
	tracker *status.Tracker
	pub     *mqtt.FakePublisher
	bus     *events.Bus
}

// newPipeline wires the tap input through to the lights, the status tracker
// and MQTT the same way the daemon does, on fakes.
func newPipeline(t *testing.T, start time.Time) *pipeline {
	t.Helper()
	p := &pipeline{
		button:  gpio.NewFakeButton(),
		channel: pwm.NewFakeChannel(1000),
		pinA:    gpio.NewFakePin(),
		period:  tempo.NewPeriod(tempo.DefaultPeriod),
		pub:     mqtt.NewFakePublisher(),
		bus:     events.New(),
	}
	t.Cleanup(func() { p.bus.Close() })

	p.det = tempo.NewDetector(tempo.DefaultConfig(), p.period, nil)
	analog, err := light.NewAnalog(p.channel, light.Lifecycle{})
	if err != nil {
		t.Fatalf("NewAnalog: %v", err)
	}
	p.analog = analog
	p.breathe = animation.NewBreathe(analog, p.period.Load(), nil, animation.WithPeriodSource(p.period))
	p.toggle = animation.NewToggle(light.NewDigital(p.pinA), nil)
	p.tracker = status.NewTracker(start, status.Config{DebounceMs: 50, MinPeriodMs: 60, MaxPeriodMs: 3000})

	p.sched = scheduler.New(nil)
	for _, task := range []scheduler.Task{
		{Name: "breathe", Period: 20 * time.Millisecond, Run: p.breathe.Tick},
		{Name: "toggle", Period: 800 * time.Millisecond, Run: p.toggle.Tick},
		{Name: "status", Period: 250 * time.Millisecond, Run: func(time.Time) {
			p.tracker.UpdateTempo(p.period.Load(), p.det.Stats().Snapshot())
			p.tracker.UpdateLights(p.breathe.State(), []status.ToggleState{{Name: "toggle", On: p.toggle.IsOn()}})
		}},
	} {
		if err := p.sched.Add(task); err != nil {
			t.Fatal(err)
		}
	}

	p.bus.Subscribe(func(e events.TempoChanged) {
		p.pub.PublishTempo(mqtt.TempoEvent{Timestamp: e.At, Period: e.Period})
	})
	err = p.button.Watch(func(e gpio.Edge) {
		if p.det.OnEdge(e.Timestamp) == tempo.ResultAccepted {
			d := p.period.Load()
			p.bus.Publish(events.TempoChanged{At: start.Add(e.Timestamp), Period: d, BPM: tempo.BPM(d)})
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// run performs n scheduler passes spaced step apart starting at from.
func (p *pipeline) run(from time.Time, step time.Duration, n int) time.Time {
	now := from
	for i := 0; i < n; i++ {
		p.sched.RunPending(now)
		now = now.Add(step)
	}
	return now
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestIntegrationTapToLights follows taps from the button to the breathing
// light, MQTT and the status endpoint.
func TestIntegrationTapToLights(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newPipeline(t, start)
	step := 20 * time.Millisecond

	// Half a default cycle: phase climbs toward 1 at 60 BPM.
	now := p.run(start, step, 20)
	if st := p.breathe.State(); st.Period != time.Second || st.Direction != 1 {
		t.Fatalf("before taps: %+v", st)
	}

	// Tap at 120 BPM with contact bounce on each press.
	for _, ts := range []time.Duration{0, 10, 500, 512, 1000, 1030} {
		p.button.Press(gpio.Edge{Timestamp: ts * time.Millisecond})
	}
	if got := p.period.Load(); got != 500*time.Millisecond {
		t.Fatalf("period after taps: got %v, want 500ms", got)
	}
	stats := p.det.Stats().Snapshot()
	if stats.Edges != 6 || stats.Debounced != 3 || stats.Accepted != 2 {
		t.Errorf("stats: %+v", stats)
	}

	// The new tempo is staged, not applied, until the ramp reflects.
	p.run(now, step, 1)
	now = now.Add(step)
	if st := p.breathe.State(); st.Period != time.Second || st.Pending != 500*time.Millisecond {
		t.Fatalf("mid-ramp: %+v", st)
	}
	now = p.run(now, step, 15)
	st := p.breathe.State()
	if st.Period != 500*time.Millisecond || st.Reflections != 1 || st.Direction != -1 {
		t.Fatalf("after reflection: %+v", st)
	}
	if c := p.channel.Compare(); c < 0 || c > 1000 {
		t.Errorf("compare %d outside range", c)
	}
	if !p.channel.Running() {
		t.Error("breathing light should be on")
	}
	if !p.pinA.High() {
		t.Error("toggle should be on after its first run")
	}

	waitFor(t, "tempo publishes", func() bool { return len(p.pub.Tempos()) == 2 })
	payload, err := mqtt.FormatTempoPayload(p.pub.Tempos()[1])
	if err != nil {
		t.Fatal(err)
	}
	var msg struct {
		Tempo struct {
			PeriodMs int64   `json:"period_ms"`
			BPM      float64 `json:"bpm"`
		} `json:"tempo"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Tempo.PeriodMs != 500 || msg.Tempo.BPM != 120 {
		t.Errorf("payload: %s", payload)
	}

	// Status over HTTP reflects the same state.
	p.run(now, step, 13)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := web.New("", p.tracker)
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + ln.Addr().String() + "/index.json")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatal(err)
	}
	s := sj.Status
	if s.Tempo.PeriodMs != 500 || s.Tempo.BPM != 120 {
		t.Errorf("status tempo: %+v", s.Tempo)
	}
	if s.Taps.Accepted != 2 || s.Taps.Debounced != 3 {
		t.Errorf("status taps: %+v", s.Taps)
	}
	if s.Lights.Breathe.PeriodMs != 500 || s.Lights.Breathe.Reflections == 0 {
		t.Errorf("status breathe: %+v", s.Lights.Breathe)
	}
	if len(s.Lights.Toggles) != 1 || s.Lights.Toggles[0].Name != "toggle" {
		t.Errorf("status toggles: %+v", s.Lights.Toggles)
	}
}

// TestIntegrationOutOfRangeKeepsTempo checks that stray taps leave the
// breathing light at its current tempo.
func TestIntegrationOutOfRangeKeepsTempo(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newPipeline(t, start)

	for _, ts := range []time.Duration{0, 5000, 10000} {
		p.button.Press(gpio.Edge{Timestamp: ts * time.Millisecond})
	}
	p.run(start, 20*time.Millisecond, 60)

	if got := p.period.Load(); got != tempo.DefaultPeriod {
		t.Errorf("period: got %v, want default", got)
	}
	if st := p.breathe.State(); st.Period != tempo.DefaultPeriod || st.Pending != 0 {
		t.Errorf("breathe: %+v", st)
	}
	if n := p.det.Stats().Snapshot().OutOfRange; n != 2 {
		t.Errorf("out of range: got %d, want 2", n)
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(p.pub.Tempos()); n != 0 {
		t.Errorf("tempo publishes: got %d, want 0", n)
	}
}
