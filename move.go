package galvo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Move is a constant-speed trajectory on one axis, time-discretized to the
// backend sample rate. Motion is linear interpolation only; there is no
// acceleration planning.
type Move struct {
	Axis     AxisID
	Start    float64 // microns
	End      float64 // microns
	Speed    float64 // microns per second
	Duration float64 // seconds
	Codes    []int
}

func validateMove(start, end, speed float64) error {
	if math.IsNaN(speed) || speed < 0 {
		return fmt.Errorf("%w: %v microns/s", ErrInvalidSpeed, speed)
	}
	for _, p := range [2]float64{start, end} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidPosition, p)
		}
	}
	return nil
}

// NewMove plans a move from start to end microns at speed microns/second,
// sampled at sampleRate samples/second. Zero speed or zero distance yields
// a degenerate move: duration 0 and a single destination code to be written
// immediately rather than streamed.
func NewMove(cal Calibration, axis AxisID, start, end, speed, sampleRate float64) (*Move, error) {
	if err := validateMove(start, end, speed); err != nil {
		return nil, err
	}
	m := &Move{Axis: axis, Start: start, End: end, Speed: speed}
	if speed == 0 || start == end {
		m.Codes = []int{cal.Code(end)}
		return m, nil
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("axis %q: sample rate must be positive to stream, got %v", axis, sampleRate)
	}
	m.Duration = math.Abs(end-start) / speed
	n := int(math.Ceil(m.Duration * sampleRate))
	if n < 2 {
		n = 2
	}
	m.Codes = make([]int, n)
	for i, pos := range floats.Span(make([]float64, n), start, end) {
		m.Codes[i] = cal.Code(pos)
	}
	// interpolation rounding must never miss the destination
	m.Codes[n-1] = cal.Code(end)
	return m, nil
}

// Degenerate reports whether the move is a single immediate write instead
// of a timed stream.
func (m *Move) Degenerate() bool { return m.Duration == 0 }

// Final is the destination code.
func (m *Move) Final() int { return m.Codes[len(m.Codes)-1] }
