// Package config loads daemon configuration from defaults, a TOML or YAML
// file, and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/tempo-lights/internal/gpio"
	"github.com/sweeney/tempo-lights/internal/tempo"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Config is the full daemon configuration.
type Config struct {
	Log   LogConfig   `toml:"log" yaml:"log"`
	GPIO  GPIOConfig  `toml:"gpio" yaml:"gpio"`
	PWM   PWMConfig   `toml:"pwm" yaml:"pwm"`
	Tempo TempoConfig `toml:"tempo" yaml:"tempo"`
	Tasks TaskConfig  `toml:"tasks" yaml:"tasks"`
	MQTT  MQTTConfig  `toml:"mqtt" yaml:"mqtt"`
	HTTP  HTTPConfig  `toml:"http" yaml:"http"`
}

// LogConfig selects logging output.
type LogConfig struct {
	Level   string `toml:"level" yaml:"level"`
	Format  string `toml:"format" yaml:"format"`
	Journal bool   `toml:"journal" yaml:"journal"`
}

// GPIOConfig names the lines used for the tap button and toggle LEDs.
type GPIOConfig struct {
	Chip       string `toml:"chip" yaml:"chip"`
	TapPin     int    `toml:"tap_pin" yaml:"tap_pin"`
	ToggleAPin int    `toml:"toggle_a_pin" yaml:"toggle_a_pin"`
	ToggleBPin int    `toml:"toggle_b_pin" yaml:"toggle_b_pin"`
	BothEdges  bool   `toml:"both_edges" yaml:"both_edges"`
}

// PWMConfig names the sysfs PWM channel driving the breathing LED.
type PWMConfig struct {
	Root    string   `toml:"root" yaml:"root"`
	Chip    int      `toml:"chip" yaml:"chip"`
	Channel int      `toml:"channel" yaml:"channel"`
	Period  Duration `toml:"period" yaml:"period"`
}

// TempoConfig holds tap-tempo thresholds.
type TempoConfig struct {
	Debounce      Duration `toml:"debounce" yaml:"debounce"`
	MinPeriod     Duration `toml:"min_period" yaml:"min_period"`
	MaxPeriod     Duration `toml:"max_period" yaml:"max_period"`
	DefaultPeriod Duration `toml:"default_period" yaml:"default_period"`
}

// TaskConfig holds scheduler cadences.
type TaskConfig struct {
	Breathe  Duration `toml:"breathe" yaml:"breathe"`
	ToggleA  Duration `toml:"toggle_a" yaml:"toggle_a"`
	ToggleB  Duration `toml:"toggle_b" yaml:"toggle_b"`
	LogDrain Duration `toml:"log_drain" yaml:"log_drain"`
	Status   Duration `toml:"status" yaml:"status"`
}

// MQTTConfig configures tempo publishing. An empty Broker disables MQTT.
type MQTTConfig struct {
	Broker     string   `toml:"broker" yaml:"broker"`
	ClientID   string   `toml:"client_id" yaml:"client_id"`
	Heartbeat  Duration `toml:"heartbeat" yaml:"heartbeat"`
	BufferSize int      `toml:"buffer_size" yaml:"buffer_size"`
}

// HTTPConfig configures the status server. An empty Addr disables it.
type HTTPConfig struct {
	Addr         string   `toml:"addr" yaml:"addr"`
	PushInterval Duration `toml:"push_interval" yaml:"push_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text", Journal: true},
		GPIO: GPIOConfig{
			Chip:       gpio.DefaultChip,
			TapPin:     gpio.DefaultPinTap,
			ToggleAPin: gpio.DefaultPinToggleA,
			ToggleBPin: gpio.DefaultPinToggleB,
		},
		PWM: PWMConfig{
			Chip:    0,
			Channel: 0,
			Period:  Duration(time.Millisecond),
		},
		Tempo: TempoConfig{
			Debounce:      Duration(tempo.DefaultDebounce),
			MinPeriod:     Duration(tempo.DefaultMinPeriod),
			MaxPeriod:     Duration(tempo.DefaultMaxPeriod),
			DefaultPeriod: Duration(tempo.DefaultPeriod),
		},
		Tasks: TaskConfig{
			Breathe:  Duration(20 * time.Millisecond),
			ToggleA:  Duration(800 * time.Millisecond),
			ToggleB:  Duration(600 * time.Millisecond),
			LogDrain: Duration(100 * time.Millisecond),
			Status:   Duration(250 * time.Millisecond),
		},
		MQTT: MQTTConfig{
			ClientID:   "tempo-lights",
			Heartbeat:  Duration(15 * time.Minute),
			BufferSize: 100,
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			PushInterval: Duration(time.Second),
		},
	}
}

// Load returns the defaults overlaid with the file at path. The format is
// chosen by extension (.toml, .yaml, .yml). An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(path, data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadOverlay is Load with overlay applied to the decoded file before
// validation, so overrides can repair a file that is invalid on its own.
// A nil overlay makes it equivalent to Load.
func LoadOverlay(path string, overlay func(*Config) error) (Config, error) {
	cfg, err := Load(path)
	if overlay == nil || err != nil && !errors.Is(err, ErrInvalid) {
		return cfg, err
	}
	if err := overlay(&cfg); err != nil {
		return cfg, fmt.Errorf("apply overrides: %w", err)
	}
	return cfg, cfg.Validate()
}

// Decode parses data into cfg using the format implied by name's extension.
// Fields absent from data keep their current values.
func Decode(name string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse TOML config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	t := c.Tempo
	switch {
	case t.MinPeriod <= 0:
		return fmt.Errorf("%w: tempo.min_period must be positive", ErrInvalid)
	case t.MaxPeriod < t.MinPeriod:
		return fmt.Errorf("%w: tempo.max_period %v is below min_period %v", ErrInvalid, t.MaxPeriod, t.MinPeriod)
	case t.DefaultPeriod < t.MinPeriod || t.DefaultPeriod > t.MaxPeriod:
		return fmt.Errorf("%w: tempo.default_period %v outside [%v, %v]", ErrInvalid, t.DefaultPeriod, t.MinPeriod, t.MaxPeriod)
	case t.Debounce < 0:
		return fmt.Errorf("%w: tempo.debounce must not be negative", ErrInvalid)
	}

	for name, d := range map[string]Duration{
		"tasks.breathe":   c.Tasks.Breathe,
		"tasks.toggle_a":  c.Tasks.ToggleA,
		"tasks.toggle_b":  c.Tasks.ToggleB,
		"tasks.log_drain": c.Tasks.LogDrain,
		"tasks.status":    c.Tasks.Status,
		"pwm.period":      c.PWM.Period,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, name)
		}
	}

	if c.MQTT.BufferSize < 1 {
		return fmt.Errorf("%w: mqtt.buffer_size must be at least 1", ErrInvalid)
	}
	return nil
}

// DetectorConfig converts the tempo section for the detector.
func (c Config) DetectorConfig() tempo.Config {
	return tempo.Config{
		Debounce:  c.Tempo.Debounce.Std(),
		MinPeriod: c.Tempo.MinPeriod.Std(),
		MaxPeriod: c.Tempo.MaxPeriod.Std(),
	}
}
