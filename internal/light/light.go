// Package light abstracts controllable indicator lights.
//
// A light is either Digital (a binary GPIO line) or Analog (a pulse-width
// channel). Both satisfy Output, so animations address them uniformly and
// the variant is chosen when the process is composed.
package light

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Range is the inclusive raw intensity range of an Output. Min <= Max.
type Range struct {
	Min int
	Max int
}

// Span returns Max - Min.
func (r Range) Span() int {
	return r.Max - r.Min
}

// Output is the capability every controllable light supports.
type Output interface {
	// On turns the light on. Idempotent.
	On()
	// Off turns the light off. Idempotent.
	Off()
	// SetIntensity writes a raw intensity. Values outside Range are
	// saturated (Analog) or collapsed to on/off (Digital), never rejected.
	SetIntensity(raw int)
	// SetLevel maps a normalized level onto Range and writes it through
	// SetIntensity.
	SetLevel(v float64)
	// Range returns the raw intensity range, fixed for the Output's life.
	Range() Range
}

// LevelToRaw maps v linearly onto r as Min + (Max-Min)*v.
//
// v is not clamped first; saturation is left to SetIntensity. The product is
// rounded half away from zero and converted with saturation, so extreme
// inputs never overflow int. NaN maps to r.Min.
func LevelToRaw(r Range, v float64) int {
	f := float64(r.Min) + float64(r.Span())*v
	if math.IsNaN(f) {
		return r.Min
	}
	return saturateInt(math.Round(f))
}

func saturateInt(f float64) int {
	switch {
	case f >= float64(math.MaxInt):
		return math.MaxInt
	case f <= float64(math.MinInt):
		return math.MinInt
	}
	return int(f)
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
