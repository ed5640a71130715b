package config

import (
	"time"

	"github.com/spf13/pflag"
)

// BindFlags registers the command-line overridable settings on fs, with
// defaults taken from c.
func BindFlags(fs *pflag.FlagSet, c *Config) {
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level (debug, info, warn, error)")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "log format (text, json)")
	fs.BoolVar(&c.Log.Journal, "log-journal", c.Log.Journal, "also log to the systemd journal when available")

	fs.StringVar(&c.GPIO.Chip, "gpio-chip", c.GPIO.Chip, "GPIO chip name")
	fs.IntVar(&c.GPIO.TapPin, "tap-pin", c.GPIO.TapPin, "GPIO offset of the tap button")
	fs.IntVar(&c.GPIO.ToggleAPin, "toggle-a-pin", c.GPIO.ToggleAPin, "GPIO offset of the first toggle LED")
	fs.IntVar(&c.GPIO.ToggleBPin, "toggle-b-pin", c.GPIO.ToggleBPin, "GPIO offset of the second toggle LED")

	fs.StringVar(&c.PWM.Root, "pwm-root", c.PWM.Root, "sysfs PWM class directory (empty for /sys/class/pwm)")
	fs.IntVar(&c.PWM.Chip, "pwm-chip", c.PWM.Chip, "PWM chip number")
	fs.IntVar(&c.PWM.Channel, "pwm-channel", c.PWM.Channel, "PWM channel number")

	fs.DurationVar((*time.Duration)(&c.Tempo.Debounce), "debounce", c.Tempo.Debounce.Std(), "tap debounce window")
	fs.DurationVar((*time.Duration)(&c.Tempo.DefaultPeriod), "default-period", c.Tempo.DefaultPeriod.Std(), "tempo period before the first tap pair")

	fs.StringVar(&c.MQTT.Broker, "mqtt-broker", c.MQTT.Broker, "MQTT broker URL (empty disables MQTT)")
	fs.StringVar(&c.HTTP.Addr, "http-addr", c.HTTP.Addr, "status server listen address (empty disables it)")
}

// ApplyFlags copies every flag explicitly set on changed into dst. Flags on
// changed that BindFlags does not know about are ignored.
func ApplyFlags(changed *pflag.FlagSet, dst *Config) error {
	tmp := pflag.NewFlagSet("apply", pflag.ContinueOnError)
	BindFlags(tmp, dst)

	var err error
	changed.Visit(func(f *pflag.Flag) {
		if err != nil || tmp.Lookup(f.Name) == nil {
			return
		}
		err = tmp.Set(f.Name, f.Value.String())
	})
	return err
}
