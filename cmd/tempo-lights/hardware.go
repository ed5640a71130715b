package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sweeney/tempo-lights/internal/config"
	"github.com/sweeney/tempo-lights/internal/gpio"
	"github.com/sweeney/tempo-lights/internal/light"
	"github.com/sweeney/tempo-lights/internal/pwm"
)

// hardware holds the real GPIO lines and PWM channel.
type hardware struct {
	button  *gpio.RealButton
	toggleA *gpio.RealPin
	toggleB *gpio.RealPin
	pwm     *pwm.Sysfs
}

func openHardware(cfg config.Config, log *slog.Logger) (*hardware, error) {
	g := cfg.GPIO
	a, err := gpio.NewRealPin(g.Chip, g.ToggleAPin, log)
	if err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	b, err := gpio.NewRealPin(g.Chip, g.ToggleBPin, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init gpio: %w", err)
	}

	return &hardware{
		button:  gpio.NewRealButton(g.Chip, g.TapPin, g.BothEdges),
		toggleA: a,
		toggleB: b,
		pwm:     pwm.NewSysfs(cfg.PWM.Root, cfg.PWM.Chip, cfg.PWM.Channel, int(cfg.PWM.Period.Std().Nanoseconds()), log),
	}, nil
}

// lifecycle exports the PWM channel for the light's lifetime.
func (h *hardware) lifecycle() light.Lifecycle {
	return light.Lifecycle{
		Acquire: h.pwm.Export,
		Release: h.pwm.Unexport,
	}
}

// Close releases the toggle lines. The button is closed by the app, and the
// PWM channel by the analog light that owns it.
func (h *hardware) Close() error {
	return errors.Join(h.toggleA.Close(), h.toggleB.Close())
}
