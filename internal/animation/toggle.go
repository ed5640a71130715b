package animation

import (
	"log/slog"
	"time"

	"github.com/sweeney/tempo-lights/internal/light"
)

// Toggle flips its light on every Tick. Cadence is entirely the
// scheduler's; Tick ignores the time.
type Toggle struct {
	out light.Output
	on  bool
	log *slog.Logger
}

// NewToggle creates a Toggle starting in the off state. The light is not
// written until the first Tick.
func NewToggle(out light.Output, log *slog.Logger) *Toggle {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Toggle{out: out, log: log}
}

func (t *Toggle) Tick(time.Time) {
	if t.on {
		t.out.Off()
	} else {
		t.out.On()
	}
	t.on = !t.on
	t.log.Debug("light toggled", "on", t.on)
}

// IsOn reports the state written by the last Tick.
func (t *Toggle) IsOn() bool {
	return t.on
}
