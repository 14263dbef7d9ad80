package galvo

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Group drives a named set of axes as one synchronized unit. The group, not
// its members, owns the backend handle: members are built without hardware
// access so every move is exactly one device interaction however many axes
// it spans. Like Axis, a Group is owned by a single goroutine.
type Group struct {
	axes    []AxisID
	members map[AxisID]*Axis
	table   Table
	backend Backend
	logger  *zap.Logger
	state   State
}

// NewGroup validates that channels and initial positions cover every
// declared axis, builds the per-axis controllers, and writes the initial
// codes out when a backend is attached.
func NewGroup(ctx context.Context, table Table, axes []AxisID, channels map[AxisID]string, initial map[AxisID]float64, backend Backend, logger *zap.Logger) (*Group, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, ax := range axes {
		if _, ok := channels[ax]; !ok {
			return nil, fmt.Errorf("%w: channels are missing %q", ErrMissingAxisConfig, ax)
		}
		if _, ok := initial[ax]; !ok {
			return nil, fmt.Errorf("%w: initial positions are missing %q", ErrMissingAxisConfig, ax)
		}
	}
	g := &Group{
		axes:    axes,
		members: make(map[AxisID]*Axis, len(axes)),
		table:   table,
		backend: backend,
		logger:  logger,
		state:   Idle,
	}
	for _, ax := range axes {
		member, err := NewAxis(ctx, table, ax, channels[ax], initial[ax], nil, logger.Named(string(ax)))
		if err != nil {
			return nil, err
		}
		g.members[ax] = member
	}
	if backend != nil {
		codes := make(map[AxisID]int, len(axes))
		for ax, m := range g.members {
			codes[ax] = m.point.Code
		}
		if _, err := backend.WriteImmediate(ctx, codes); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Axes returns the declared axis identifiers in their configured order.
func (g *Group) Axes() []AxisID {
	out := make([]AxisID, len(g.axes))
	copy(out, g.axes)
	return out
}

// State reports whether the group is idle or mid-move.
func (g *Group) State() State { return g.state }

// Pos returns every axis's absolute position in microns.
func (g *Group) Pos() map[AxisID]float64 {
	out := make(map[AxisID]float64, len(g.axes))
	for _, ax := range g.axes {
		out[ax] = g.members[ax].Pos()
	}
	return out
}

// RelPos returns every axis's position relative to its origin.
func (g *Group) RelPos() map[AxisID]float64 {
	out := make(map[AxisID]float64, len(g.axes))
	for _, ax := range g.axes {
		out[ax] = g.members[ax].RelPos()
	}
	return out
}

// Origin returns every axis's origin in microns.
func (g *Group) Origin() map[AxisID]float64 {
	out := make(map[AxisID]float64, len(g.axes))
	for _, ax := range g.axes {
		out[ax] = g.members[ax].Origin()
	}
	return out
}

// History returns every axis's position history, oldest first.
func (g *Group) History() map[AxisID][]float64 {
	out := make(map[AxisID][]float64, len(g.axes))
	for _, ax := range g.axes {
		out[ax] = g.members[ax].History()
	}
	return out
}

// SetOrigin sets each listed axis's origin to the given position in
// microns. A nil map marks every axis's current Point as its origin; axes
// absent from a non-nil map are left unchanged.
func (g *Group) SetOrigin(orig map[AxisID]float64) {
	for _, ax := range g.axes {
		if orig == nil {
			g.members[ax].SetOrigin()
			continue
		}
		if pos, ok := orig[ax]; ok {
			g.members[ax].SetOrigin(pos)
		} else {
			g.logger.Warn("axis not in origin map, leaving unchanged", zap.String("axis", string(ax)))
		}
	}
}

// ResetOrigin sets every axis's origin to absolute zero without moving.
func (g *Group) ResetOrigin() {
	for _, ax := range g.axes {
		g.members[ax].SetOrigin(0)
	}
}

// GoTo moves every axis to its position in pos (microns, relative to each
// axis's origin) at one shared speed in microns/second. Axes traveling
// shorter distances arrive early and hold. Zero speed writes all
// destinations in one immediate frame; otherwise the synchronized stream
// blocks until it completes or ctx is canceled. It returns the measured
// per-axis positions and the measured duration in seconds.
//
// On cancellation every member is reconciled from the same readback before
// a *Canceled error is returned.
func (g *Group) GoTo(ctx context.Context, pos map[AxisID]float64, speed float64) (map[AxisID]float64, float64, error) {
	from := g.Pos()
	to := make(map[AxisID]float64, len(g.axes))
	for _, ax := range g.axes {
		rel, ok := pos[ax]
		if !ok {
			return nil, 0, fmt.Errorf("%w: target positions are missing %q", ErrMissingAxisConfig, ax)
		}
		to[ax] = g.members[ax].target(rel)
	}

	if g.backend == nil {
		for _, ax := range g.axes {
			if err := validateMove(from[ax], to[ax], speed); err != nil {
				return nil, 0, err
			}
		}
		for _, ax := range g.axes {
			g.members[ax].setPosition(to[ax])
		}
		return g.Pos(), 0, nil
	}

	move, err := NewMultiMove(g.table, g.axes, from, to, speed, g.backend.SampleRate())
	if err != nil {
		return nil, 0, err
	}

	g.state = Moving
	defer func() { g.state = Idle }()

	if move.Degenerate() {
		measured, err := g.backend.WriteImmediate(ctx, move.FinalCodes())
		if err != nil {
			return nil, 0, err
		}
		g.commit(to)
		return g.measuredPos(measured, to), 0, nil
	}

	if err := g.backend.StreamSetup(); err != nil {
		return nil, 0, err
	}
	if err := g.backend.StreamLoad(move.Codes()); err != nil {
		return nil, 0, err
	}
	elapsed, err := g.backend.StreamStart(ctx, move.Duration)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return g.recover(move, elapsed)
		}
		return nil, 0, err
	}
	g.commit(to)
	g.logger.Info("group move complete", zap.Float64("duration", elapsed))
	measured, err := g.backend.Read(ctx)
	if err != nil {
		return g.Pos(), elapsed, err
	}
	return g.measuredPos(measured, to), elapsed, nil
}

func (g *Group) commit(to map[AxisID]float64) {
	for _, ax := range g.axes {
		g.members[ax].setPosition(to[ax])
	}
}

func (g *Group) measuredPos(codes map[AxisID]int, fallback map[AxisID]float64) map[AxisID]float64 {
	out := make(map[AxisID]float64, len(g.axes))
	for _, ax := range g.axes {
		if code, ok := codes[ax]; ok {
			out[ax] = g.members[ax].cal.Position(code)
		} else {
			out[ax] = fallback[ax]
		}
	}
	return out
}

// recover reconciles every member from the shared readback after an
// interrupted stream, then surfaces the cancellation.
func (g *Group) recover(move *MultiMove, elapsed float64) (map[AxisID]float64, float64, error) {
	measured, readErr := g.backend.Read(context.Background())
	final := move.FinalCodes()
	if elapsed <= 0 {
		elapsed = move.Duration
	}
	positions := make(map[AxisID]float64, len(g.axes))
	for _, ax := range g.axes {
		code := final[ax]
		if readErr == nil {
			if c, ok := measured[ax]; ok {
				code = c
			}
		}
		g.members[ax].setCode(code)
		positions[ax] = g.members[ax].Pos()
	}
	g.logger.Warn("group move canceled",
		zap.Any("positions", positions),
		zap.Float64("elapsed", elapsed),
	)
	return positions, elapsed, &Canceled{Positions: positions, Elapsed: elapsed}
}

// ResetPos moves every axis immediately back to its origin.
func (g *Group) ResetPos(ctx context.Context) (map[AxisID]float64, float64, error) {
	rst := make(map[AxisID]float64, len(g.axes))
	for _, ax := range g.axes {
		rst[ax] = 0
	}
	return g.GoTo(ctx, rst, 0)
}
