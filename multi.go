package galvo

// MultiMove synchronizes one Move per axis onto a shared time grid. Every
// axis is planned with the same speed, so an axis traveling a shorter
// distance finishes sooner and holds its final code for the remainder of
// the grid. Speed is a shared rate, not a shared duration.
type MultiMove struct {
	Axes     []AxisID
	Moves    map[AxisID]*Move
	Duration float64 // seconds, max over the per-axis durations
}

// NewMultiMove plans one Move per declared axis from the `from` to the `to`
// absolute positions, all at the same speed and sample rate.
func NewMultiMove(t Table, axes []AxisID, from, to map[AxisID]float64, speed, sampleRate float64) (*MultiMove, error) {
	mm := &MultiMove{Axes: axes, Moves: make(map[AxisID]*Move, len(axes))}
	for _, ax := range axes {
		cal, err := t.Lookup(ax)
		if err != nil {
			return nil, err
		}
		m, err := NewMove(cal, ax, from[ax], to[ax], speed, sampleRate)
		if err != nil {
			return nil, err
		}
		mm.Moves[ax] = m
		if m.Duration > mm.Duration {
			mm.Duration = m.Duration
		}
	}
	return mm, nil
}

// Degenerate reports whether the whole group move is a single immediate
// write.
func (m *MultiMove) Degenerate() bool { return m.Duration == 0 }

// Codes returns every axis's code sequence padded to a common length by
// holding its final code, so that sample index i across all axes denotes
// the same instant. The backend must emit each index as one atomic frame,
// never axis-by-axis, or the beam skews during multi-axis steering.
func (m *MultiMove) Codes() map[AxisID][]int {
	n := 0
	for _, mv := range m.Moves {
		if len(mv.Codes) > n {
			n = len(mv.Codes)
		}
	}
	out := make(map[AxisID][]int, len(m.Moves))
	for ax, mv := range m.Moves {
		codes := make([]int, n)
		copy(codes, mv.Codes)
		for i := len(mv.Codes); i < n; i++ {
			codes[i] = mv.Final()
		}
		out[ax] = codes
	}
	return out
}

// FinalCodes returns each axis's destination code, used for immediate
// writes of degenerate group moves.
func (m *MultiMove) FinalCodes() map[AxisID]int {
	out := make(map[AxisID]int, len(m.Moves))
	for ax, mv := range m.Moves {
		out[ax] = mv.Final()
	}
	return out
}
