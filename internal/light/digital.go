package light

import "github.com/sweeney/tempo-lights/internal/gpio"

var _ Output = (*Digital)(nil)

// Digital is a light on a binary output line. Range is always {0, 1}.
type Digital struct {
	pin gpio.Pin
}

// NewDigital wraps pin. The pin is borrowed, not owned.
func NewDigital(pin gpio.Pin) *Digital {
	return &Digital{pin: pin}
}

func (d *Digital) On()  { d.pin.Set(true) }
func (d *Digital) Off() { d.pin.Set(false) }

// SetIntensity turns the light on for any nonzero raw value.
func (d *Digital) SetIntensity(raw int) {
	if raw != 0 {
		d.On()
		return
	}
	d.Off()
}

// SetLevel maps v onto {0, 1} and delegates to SetIntensity, so any level
// that rounds to a nonzero raw value turns the light on (v >= 0.5, but also
// v <= -0.5).
func (d *Digital) SetLevel(v float64) {
	d.SetIntensity(LevelToRaw(d.Range(), v))
}

func (d *Digital) Range() Range {
	return Range{Min: 0, Max: 1}
}
