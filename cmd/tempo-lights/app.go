package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/sweeney/tempo-lights/internal/animation"
	"github.com/sweeney/tempo-lights/internal/config"
	"github.com/sweeney/tempo-lights/internal/events"
	"github.com/sweeney/tempo-lights/internal/gpio"
	"github.com/sweeney/tempo-lights/internal/light"
	"github.com/sweeney/tempo-lights/internal/logging"
	"github.com/sweeney/tempo-lights/internal/metrics"
	"github.com/sweeney/tempo-lights/internal/mqtt"
	"github.com/sweeney/tempo-lights/internal/pwm"
	"github.com/sweeney/tempo-lights/internal/scheduler"
	"github.com/sweeney/tempo-lights/internal/status"
	"github.com/sweeney/tempo-lights/internal/tempo"
)

// Scheduler task names.
const (
	taskBreathe  = "breathe"
	taskToggleA  = "toggle-a"
	taskToggleB  = "toggle-b"
	taskLogDrain = "log-drain"
	taskStatus   = "status"
	taskWatchdog = "watchdog"
)

// deps is everything the app needs from the outside world. Tests fill it
// with fakes.
type deps struct {
	cfg      config.Config
	log      *slog.Logger
	edgeBuf  *logging.Buffered // nil logs edges directly through log
	levelVar *slog.LevelVar

	button    gpio.EdgeSource
	toggleA   gpio.Pin
	toggleB   gpio.Pin
	pwm       pwm.Channel
	lifecycle light.Lifecycle

	publisher  mqtt.Publisher        // nil disables MQTT
	mqttStatus mqtt.ConnectionStatus // may be nil
	bus        *events.Bus

	// watchdog is the systemd watchdog interval; 0 disables pinging.
	watchdog time.Duration
	notify   func(state string)

	now func() time.Time
	// after replaces time.After for the scheduler's sleeps.
	after func(time.Duration) <-chan time.Time
}

type namedToggle struct {
	name string
	*animation.Toggle
	out light.Output
}

// app owns the lights, animations and detector for one daemon run.
type app struct {
	deps

	period   *tempo.Period
	detector *tempo.Detector
	analog   *light.Analog
	breathe  *animation.Breathe
	toggles  []namedToggle
	sched    *scheduler.Scheduler
	tracker  *status.Tracker

	lastTap       atomic.Int64 // unix ns of the last counted tap, 0 if none
	lastHeartbeat time.Time
	basePeriod    time.Duration
	unsubscribe   []func()
}

func newApp(d deps) (*app, error) {
	if d.log == nil {
		d.log = slog.New(slog.DiscardHandler)
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.notify == nil {
		d.notify = func(string) {}
	}
	cfg := d.cfg

	edgeLog := d.log
	if d.edgeBuf != nil {
		edgeLog = slog.New(d.edgeBuf)
	}

	a := &app{
		deps:       d,
		period:     tempo.NewPeriod(cfg.Tempo.DefaultPeriod.Std()),
		basePeriod: cfg.Tempo.DefaultPeriod.Std(),
	}
	a.detector = tempo.NewDetector(cfg.DetectorConfig(), a.period, edgeLog.With("component", "tempo"))

	analog, err := light.NewAnalog(d.pwm, d.lifecycle)
	if err != nil {
		return nil, fmt.Errorf("init breathing light: %w", err)
	}
	a.analog = analog
	a.breathe = animation.NewBreathe(analog, a.period.Load(), d.log.With("component", "breathe"),
		animation.WithPeriodSource(a.period))

	for _, tg := range []struct {
		name string
		pin  gpio.Pin
	}{{taskToggleA, d.toggleA}, {taskToggleB, d.toggleB}} {
		out := light.NewDigital(tg.pin)
		a.toggles = append(a.toggles, namedToggle{
			name:   tg.name,
			Toggle: animation.NewToggle(out, d.log.With("component", tg.name)),
			out:    out,
		})
	}

	a.tracker = status.NewTracker(d.now(), status.Config{
		DebounceMs:  cfg.Tempo.Debounce.Std().Milliseconds(),
		MinPeriodMs: cfg.Tempo.MinPeriod.Std().Milliseconds(),
		MaxPeriodMs: cfg.Tempo.MaxPeriod.Std().Milliseconds(),
		HeartbeatMs: cfg.MQTT.Heartbeat.Std().Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		LogLevel:    cfg.Log.Level,
	})

	if err := a.buildSchedule(); err != nil {
		analog.Close()
		return nil, err
	}
	a.refreshStatus()
	return a, nil
}

func (a *app) buildSchedule() error {
	t := a.cfg.Tasks
	opts := []scheduler.Option{scheduler.WithClock(a.now)}
	if a.after != nil {
		opts = append(opts, scheduler.WithTimer(a.after))
	}
	a.sched = scheduler.New(a.log.With("component", "scheduler"), opts...)

	tasks := []scheduler.Task{
		{Name: taskBreathe, Period: t.Breathe.Std(), Run: a.breathe.Tick},
		{Name: taskToggleA, Period: t.ToggleA.Std(), Run: a.toggles[0].Tick},
		{Name: taskToggleB, Period: t.ToggleB.Std(), Run: a.toggles[1].Tick},
		{Name: taskStatus, Period: t.Status.Std(), Run: a.statusTask},
	}
	if a.edgeBuf != nil {
		tasks = append(tasks, scheduler.Task{Name: taskLogDrain, Period: t.LogDrain.Std(), Run: func(time.Time) {
			a.edgeBuf.Drain(context.Background())
		}})
	}
	if a.watchdog > 0 {
		tasks = append(tasks, scheduler.Task{Name: taskWatchdog, Period: a.watchdog / 2, Run: func(time.Time) {
			a.notify(daemon.SdNotifyWatchdog)
		}})
	}
	for _, task := range tasks {
		if err := a.sched.Add(task); err != nil {
			return fmt.Errorf("schedule %s: %w", task.Name, err)
		}
	}
	return nil
}

// onEdge runs in the edge context: it must not block.
func (a *app) onEdge(e gpio.Edge) {
	result := a.detector.OnEdge(e.Timestamp)
	if result == tempo.ResultDebounced {
		return
	}
	at := a.now()
	a.lastTap.Store(at.UnixNano())
	if result == tempo.ResultAccepted && a.bus != nil {
		p := a.period.Load()
		a.bus.Publish(events.TempoChanged{At: at, Period: p, BPM: tempo.BPM(p)})
	}
}

// statusTask copies live state into the tracker and raises heartbeats.
// It runs on the scheduler goroutine, which owns the animations.
func (a *app) statusTask(now time.Time) {
	a.refreshStatus()

	hb := a.cfg.MQTT.Heartbeat.Std()
	if a.bus == nil || a.publisher == nil || hb <= 0 {
		return
	}
	if a.lastHeartbeat.IsZero() {
		a.lastHeartbeat = now
		return
	}
	if now.Sub(a.lastHeartbeat) >= hb {
		a.lastHeartbeat = now
		a.bus.Publish(events.Heartbeat{At: now})
	}
}

func (a *app) refreshStatus() {
	a.tracker.UpdateTempo(a.period.Load(), a.detector.Stats().Snapshot())
	toggles := make([]status.ToggleState, len(a.toggles))
	for i, tg := range a.toggles {
		toggles[i] = status.ToggleState{Name: tg.name, On: tg.IsOn()}
	}
	a.tracker.UpdateLights(a.breathe.State(), toggles)
	if ns := a.lastTap.Load(); ns != 0 {
		a.tracker.SetLastTap(time.Unix(0, ns))
	}
	if a.mqttStatus != nil {
		a.tracker.SetMQTTConnected(a.mqttStatus.IsConnected())
	}
}

// metricSources exposes live counters to the metrics registry.
func (a *app) metricSources() metrics.Sources {
	src := metrics.Sources{
		Stats:              a.detector.Stats(),
		Period:             a.period,
		BreatheReflections: a.breathe.Reflections,
		Clamped:            a.analog.Clamped,
		TaskRuns:           a.sched.Runs,
		TaskNames:          a.sched.Names(),
	}
	if a.edgeBuf != nil {
		src.LogDropped = a.edgeBuf.Dropped
	}
	if a.mqttStatus != nil {
		src.MQTTConnected = a.mqttStatus.IsConnected
	}
	if b, ok := a.publisher.(mqtt.Backlog); ok {
		src.MQTTBuffered = b.Buffered
		src.MQTTDropped = b.Dropped
	}
	return src
}

// subscribe wires bus consumers: MQTT publishing of tempo changes and
// heartbeats. Extra handlers (the websocket) are passed by the caller.
func (a *app) subscribe(extra ...any) {
	if a.bus == nil {
		return
	}
	if a.publisher != nil {
		a.unsubscribe = append(a.unsubscribe,
			a.bus.Subscribe(func(e events.TempoChanged) {
				if err := a.publisher.PublishTempo(mqtt.TempoEvent{Timestamp: e.At, Period: e.Period}); err != nil {
					a.log.Warn("tempo publish error", "error", err)
				}
			}),
			a.bus.Subscribe(func(events.Heartbeat) {
				a.publishStatus(mqtt.EventHeartbeat, "", false)
			}),
		)
	}
	for _, h := range extra {
		a.unsubscribe = append(a.unsubscribe, a.bus.Subscribe(h))
	}
}

func (a *app) publishStatus(event, reason string, retained bool) {
	if a.publisher == nil {
		return
	}
	if a.mqttStatus != nil {
		a.tracker.SetMQTTConnected(a.mqttStatus.IsConnected())
	}
	snap := a.tracker.Snapshot()
	err := a.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		a.log.Warn("failed to publish system event", "event", event, "error", err)
		return
	}
	a.log.Info("published system event", "event", event)
}

// applyConfig applies the hot-reloadable settings from a reloaded file.
// It runs on the config watcher goroutine.
func (a *app) applyConfig(cfg config.Config) {
	if a.levelVar != nil {
		if lvl, err := logging.ParseLevel(cfg.Log.Level); err == nil && lvl != a.levelVar.Level() {
			a.levelVar.Set(lvl)
			a.tracker.SetLogLevel(cfg.Log.Level)
			a.log.Info("log level changed", "level", lvl)
		}
	}

	if p := cfg.Tempo.DefaultPeriod.Std(); p != a.basePeriod {
		a.basePeriod = p
		a.breathe.RequestPeriod(p)
		a.log.Info("breathe period staged", "period", p)
	}

	if a.bus != nil {
		a.bus.Publish(events.ConfigReloaded{At: a.now(), LogLevel: cfg.Log.Level, Period: cfg.Tempo.DefaultPeriod.Std()})
	}
}

// start publishes STARTUP and begins watching the tap button.
func (a *app) start() error {
	a.publishStatus(mqtt.EventStartup, "", true)
	if err := a.button.Watch(a.onEdge); err != nil {
		return fmt.Errorf("watch tap button: %w", err)
	}
	a.log.Info("started",
		"default_period", a.cfg.Tempo.DefaultPeriod,
		"debounce", a.cfg.Tempo.Debounce,
		"tasks", a.sched.Names(),
		"broker", a.cfg.MQTT.Broker,
	)
	a.notify(daemon.SdNotifyReady)
	return nil
}

// runLoop runs the scheduler until a signal arrives, then shuts down.
func (a *app) runLoop(sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reason := make(chan string, 1)
	go func() {
		select {
		case s := <-sig:
			a.log.Info("shutting down", "signal", s)
			reason <- signalName(s)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := a.sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.stop(<-reason)
	return nil
}

// stop releases hardware and publishes SHUTDOWN. Lights are left dark.
func (a *app) stop(reason string) {
	a.notify(daemon.SdNotifyStopping)

	if err := a.button.Close(); err != nil {
		a.log.Warn("close tap button", "error", err)
	}
	for _, u := range a.unsubscribe {
		u()
	}

	a.refreshStatus()
	a.publishStatus(mqtt.EventShutdown, reason, true)

	for _, tg := range a.toggles {
		tg.out.Off()
	}
	a.analog.Off()
	if err := a.analog.Close(); err != nil {
		a.log.Warn("release pwm channel", "error", err)
	}

	if a.edgeBuf != nil {
		a.edgeBuf.Drain(context.Background())
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
