package galvo

import "fmt"

// Point is an immutable snapshot of one axis at one instant, held as both a
// physical position in microns and its calibrated output code. A new
// position is always a new Point, never an in-place mutation.
type Point struct {
	Axis     AxisID
	Position float64
	Code     int
}

// NewPoint builds a Point from a physical position; the code is derived
// through the axis calibration.
func NewPoint(t Table, axis AxisID, pos float64) (Point, error) {
	c, err := t.Lookup(axis)
	if err != nil {
		return Point{}, err
	}
	return Point{Axis: axis, Position: pos, Code: c.Code(pos)}, nil
}

// NewPointFromCode builds a Point from an output code, typically a hardware
// readback; the position is derived through the axis calibration.
func NewPointFromCode(t Table, axis AxisID, code int) (Point, error) {
	c, err := t.Lookup(axis)
	if err != nil {
		return Point{}, err
	}
	return Point{Axis: axis, Position: c.Position(code), Code: code}, nil
}

// Sub returns the position difference p - o in microns. Codes are never
// subtracted; the affine offset makes a code difference meaningless unless
// both points share a reference.
func (p Point) Sub(o Point) (float64, error) {
	if p.Axis != o.Axis {
		return 0, fmt.Errorf("%w: cannot subtract %q point from %q point", ErrInvalidAxis, o.Axis, p.Axis)
	}
	return p.Position - o.Position, nil
}
