package galvo

import (
	"fmt"
	"math"
)

// AxisID names one controllable degree of freedom of the mirror system,
// e.g. "x" for steering parallel to the sample surface and "z" for steering
// radially away from it.
type AxisID string

// Calibration is the monotonic affine map between a physical position in
// microns and the digital output code a DAC must emit to hold it.
type Calibration struct {
	Gain    float64 // codes per micron, never zero
	Offset  float64 // code at position zero
	MinCode int
	MaxCode int
}

// Code converts a position to the nearest representable output code,
// clamped to the DAC range. Positions themselves are unbounded here;
// enforcing travel limits belongs to whoever owns the optics.
func (c Calibration) Code(pos float64) int {
	code := int(math.Round(c.Gain*pos + c.Offset))
	if code < c.MinCode {
		return c.MinCode
	}
	if code > c.MaxCode {
		return c.MaxCode
	}
	return code
}

// Position converts an output code back to microns.
func (c Calibration) Position(code int) float64 {
	return (float64(code) - c.Offset) / c.Gain
}

// Precision is the position change of a single code step.
func (c Calibration) Precision() float64 {
	return 1 / math.Abs(c.Gain)
}

// Table holds the calibration for every configured axis.
type Table map[AxisID]Calibration

// Lookup returns the calibration for an axis, or an error wrapping
// ErrInvalidAxis when the axis is not configured.
func (t Table) Lookup(axis AxisID) (Calibration, error) {
	c, ok := t[axis]
	if !ok {
		return Calibration{}, fmt.Errorf("%w: %q", ErrInvalidAxis, axis)
	}
	if c.Gain == 0 {
		return Calibration{}, fmt.Errorf("axis %q has zero calibration gain", axis)
	}
	return c, nil
}
