// Command tempo-lights paces a breathing LED from a tap-tempo button and
// blinks two indicator LEDs, publishing tempo changes to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sweeney/tempo-lights/internal/config"
	"github.com/sweeney/tempo-lights/internal/events"
	"github.com/sweeney/tempo-lights/internal/logging"
	"github.com/sweeney/tempo-lights/internal/metrics"
	"github.com/sweeney/tempo-lights/internal/mqtt"
	"github.com/sweeney/tempo-lights/internal/web"
)

const (
	edgeLogBuffer  = 256
	reloadDebounce = 250 * time.Millisecond
	shutdownWait   = 2 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath  string
		printConfig bool
		flagCfg     = config.Default()
	)

	cmd := &cobra.Command{
		Use:          "tempo-lights",
		Short:        "Tap-tempo LED animation daemon",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if printConfig {
				return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			}
			return run(cfg, configPath, cmd.Flags())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (.toml, .yaml or .yml)")
	cmd.Flags().BoolVar(&printConfig, "print-config", false, "print the effective config and exit")
	config.BindFlags(cmd.Flags(), &flagCfg)
	return cmd
}

// loadConfig layers defaults, the file at path and explicitly set flags.
// The file alone may be invalid where flags fix it, so validation comes last.
func loadConfig(path string, flags *pflag.FlagSet) (config.Config, error) {
	return config.LoadOverlay(path, flagOverlay(flags))
}

func flagOverlay(flags *pflag.FlagSet) func(*config.Config) error {
	return func(c *config.Config) error {
		return config.ApplyFlags(flags, c)
	}
}

func run(cfg config.Config, configPath string, flags *pflag.FlagSet) error {
	handler, levelVar, err := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Journal: cfg.Log.Journal,
	}, os.Stdout)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := slog.New(handler)
	edgeBuf := logging.NewBuffered(handler, edgeLogBuffer)

	hw, err := openHardware(cfg, log.With("component", "gpio"))
	if err != nil {
		return err
	}
	defer hw.Close()

	bus := events.New()
	defer bus.Close()

	var (
		publisher  mqtt.Publisher
		connStatus mqtt.ConnectionStatus
	)
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			BufferSize: cfg.MQTT.BufferSize,
		}, log.With("component", "mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, connStatus = p, p
	}

	watchdog, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("systemd watchdog misconfigured", "error", err)
	}

	a, err := newApp(deps{
		cfg:        cfg,
		log:        log,
		edgeBuf:    edgeBuf,
		levelVar:   levelVar,
		button:     hw.button,
		toggleA:    hw.toggleA,
		toggleB:    hw.toggleB,
		pwm:        hw.pwm,
		lifecycle:  hw.lifecycle(),
		publisher:  publisher,
		mqttStatus: connStatus,
		bus:        bus,
		watchdog:   watchdog,
		notify: func(state string) {
			if _, err := daemon.SdNotify(false, state); err != nil {
				log.Debug("sd_notify failed", "state", state, "error", err)
			}
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var extra []any
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, a.tracker,
			web.WithMetrics(metrics.New(a.metricSources()).Handler()),
			web.WithLogger(log.With("component", "web")),
		)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", "error", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), shutdownWait)
			defer scancel()
			srv.Shutdown(sctx)
		}()
		go srv.PushStatus(ctx, cfg.HTTP.PushInterval.Std())
		extra = append(extra,
			srv.BroadcastTempo,
			func(events.ConfigReloaded) { srv.BroadcastStatus() },
		)
		log.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}
	a.subscribe(extra...)

	if configPath != "" {
		w := config.NewWatcher(configPath, reloadDebounce, log.With("component", "config"))
		w.Overlay(flagOverlay(flags))
		w.OnReload(a.applyConfig)
		if err := w.Start(); err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			defer w.Stop()
		}
	}

	if err := a.start(); err != nil {
		a.stop("STARTUP_FAILED")
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return a.runLoop(sigCh)
}
