package galvo

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// State of a controller between moves.
type State string

const (
	Idle   State = "Idle"
	Moving State = "Moving"
)

// Axis drives one galvo mirror axis. It owns the axis's current Point, its
// origin offset, and an append-only history of every Point it has held.
// With a nil backend it is a pure position model: moves commit instantly
// and nothing is written to hardware. An Axis is not safe for concurrent
// use; one goroutine owns it.
type Axis struct {
	axis    AxisID
	channel string
	table   Table
	cal     Calibration
	backend Backend
	logger  *zap.Logger

	state   State
	point   Point
	origin  Point
	history []Point
}

// NewAxis builds a controller for one axis with the mirror assumed at
// initial microns. The channel names the DAC output register the axis is
// wired to. When a backend is attached the initial code is written out so
// hardware and model agree from the start.
func NewAxis(ctx context.Context, table Table, axis AxisID, channel string, initial float64, backend Backend, logger *zap.Logger) (*Axis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cal, err := table.Lookup(axis)
	if err != nil {
		return nil, err
	}
	p := Point{Axis: axis, Position: initial, Code: cal.Code(initial)}
	a := &Axis{
		axis:    axis,
		channel: channel,
		table:   table,
		cal:     cal,
		backend: backend,
		logger:  logger,
		state:   Idle,
		point:   p,
		origin:  p,
		history: []Point{p},
	}
	if backend != nil {
		if _, err := backend.WriteImmediate(ctx, map[AxisID]int{axis: p.Code}); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// ID returns the axis identifier.
func (a *Axis) ID() AxisID { return a.axis }

// Channel returns the DAC output register the axis is wired to.
func (a *Axis) Channel() string { return a.channel }

// State reports whether the axis is idle or mid-move.
func (a *Axis) State() State { return a.state }

// Pos is the current absolute position in microns.
func (a *Axis) Pos() float64 { return a.point.Position }

// Current returns the current Point.
func (a *Axis) Current() Point { return a.point }

// RelPos is the current position relative to the origin in microns.
func (a *Axis) RelPos() float64 {
	d, _ := a.point.Sub(a.origin)
	return d
}

// Origin is the origin position in microns.
func (a *Axis) Origin() float64 { return a.origin.Position }

// History returns every position the axis has held, oldest first. The last
// entry is the position held just before the current one.
func (a *Axis) History() []float64 {
	out := make([]float64, len(a.history))
	for i, p := range a.history {
		out[i] = p.Position
	}
	return out
}

// SetOrigin sets the origin to the given position in microns, or to the
// current Point when called with no argument. It never fails.
func (a *Axis) SetOrigin(pos ...float64) {
	if len(pos) == 0 {
		a.origin = a.point
		return
	}
	a.origin = Point{Axis: a.axis, Position: pos[0], Code: a.cal.Code(pos[0])}
}

// ResetOrigin sets the origin to absolute zero without moving the mirror.
func (a *Axis) ResetOrigin() { a.SetOrigin(0) }

// setPoint installs a new current Point, appending the previous one to the
// history first.
func (a *Axis) setPoint(p Point) {
	a.history = append(a.history, a.point)
	a.point = p
}

func (a *Axis) setPosition(pos float64) {
	a.setPoint(Point{Axis: a.axis, Position: pos, Code: a.cal.Code(pos)})
}

func (a *Axis) setCode(code int) {
	a.setPoint(Point{Axis: a.axis, Position: a.cal.Position(code), Code: code})
}

// target resolves a position relative to the origin into an absolute one.
func (a *Axis) target(rel float64) float64 { return a.origin.Position + rel }

// GoTo moves the mirror to pos microns relative to the origin at speed
// microns/second. Zero speed (or zero distance) writes the destination
// immediately; otherwise the trajectory is streamed and the call blocks
// until the stream completes or ctx is canceled. It returns the measured
// position and the measured move duration in seconds.
//
// A canceled stream reconciles the current Point from hardware readback
// before returning a *Canceled error, so the model always reflects where
// the mirror physically stopped, never where it was asked to go.
func (a *Axis) GoTo(ctx context.Context, pos, speed float64) (float64, float64, error) {
	abs := a.target(pos)

	if a.backend == nil {
		if err := validateMove(a.point.Position, abs, speed); err != nil {
			return 0, 0, err
		}
		a.setPosition(abs)
		return abs, 0, nil
	}

	move, err := NewMove(a.cal, a.axis, a.point.Position, abs, speed, a.backend.SampleRate())
	if err != nil {
		return 0, 0, err
	}

	a.state = Moving
	defer func() { a.state = Idle }()

	if move.Degenerate() {
		measured, err := a.backend.WriteImmediate(ctx, map[AxisID]int{a.axis: move.Final()})
		if err != nil {
			return 0, 0, err
		}
		a.setPosition(abs)
		return a.measuredPos(measured, abs), 0, nil
	}

	if err := a.backend.StreamSetup(); err != nil {
		return 0, 0, err
	}
	if err := a.backend.StreamLoad(map[AxisID][]int{a.axis: move.Codes}); err != nil {
		return 0, 0, err
	}
	elapsed, err := a.backend.StreamStart(ctx, move.Duration)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return a.recover(move, elapsed)
		}
		return 0, 0, err
	}
	a.setPosition(abs)
	a.logger.Info("move complete",
		zap.String("axis", string(a.axis)),
		zap.Float64("pos", abs),
		zap.Float64("duration", elapsed),
	)
	measured, err := a.backend.Read(ctx)
	if err != nil {
		return abs, elapsed, err
	}
	return a.measuredPos(measured, abs), elapsed, nil
}

func (a *Axis) measuredPos(codes map[AxisID]int, fallback float64) float64 {
	if code, ok := codes[a.axis]; ok {
		return a.cal.Position(code)
	}
	return fallback
}

// recover reconciles in-memory state with the physically observed output
// after an interrupted stream. Reconciliation completes before the
// cancellation is surfaced, so a supervisor catching it can trust Pos when
// shutting down dependent operations.
func (a *Axis) recover(move *Move, elapsed float64) (float64, float64, error) {
	// ctx is already canceled; the readback must still happen
	code := move.Final()
	if measured, err := a.backend.Read(context.Background()); err == nil {
		if c, ok := measured[a.axis]; ok {
			code = c
		}
	}
	if elapsed <= 0 {
		// the stream never reported a duration; the plan is the best estimate
		elapsed = move.Duration
	}
	a.setCode(code)
	a.logger.Warn("move canceled",
		zap.String("axis", string(a.axis)),
		zap.Float64("pos", a.point.Position),
		zap.Float64("elapsed", elapsed),
	)
	return a.point.Position, elapsed, &Canceled{
		Positions: map[AxisID]float64{a.axis: a.point.Position},
		Elapsed:   elapsed,
	}
}

// ResetPos moves immediately back to the origin.
func (a *Axis) ResetPos(ctx context.Context) (float64, float64, error) {
	return a.GoTo(ctx, 0, 0)
}
