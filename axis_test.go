package galvo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jt05610/galvo"
	"github.com/jt05610/galvo/daq/sim"
)

func TestAxisWithoutBackend(t *testing.T) {
	ctx := context.Background()
	axis, err := galvo.NewAxis(ctx, testTable, "x", "DAC0", 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	pos, dur, err := axis.GoTo(ctx, 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if pos != 100 || dur != 0 {
		t.Errorf("expected (100, 0), got (%v, %v)", pos, dur)
	}
	if axis.Pos() != 100 {
		t.Errorf("expected pos 100, got %v", axis.Pos())
	}
	axis.SetOrigin(100)
	if axis.RelPos() != 0 {
		t.Errorf("expected relative 0 after SetOrigin(100), got %v", axis.RelPos())
	}
	if _, _, err := axis.GoTo(ctx, 50, 0); err != nil {
		t.Fatal(err)
	}
	if axis.Pos() != 150 || axis.RelPos() != 50 {
		t.Errorf("expected pos 150 rel 50, got %v and %v", axis.Pos(), axis.RelPos())
	}
}

func TestAxisHistoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	axis, err := galvo.NewAxis(ctx, testTable, "x", "DAC0", 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(axis.History()) != 1 {
		t.Fatalf("history should be seeded with the initial point, got %v", axis.History())
	}
	for i, pos := range []float64{10, 20, 30} {
		prev := axis.Pos()
		if _, _, err := axis.GoTo(ctx, pos, 0); err != nil {
			t.Fatal(err)
		}
		hist := axis.History()
		if len(hist) != i+2 {
			t.Fatalf("expected history length %d, got %d", i+2, len(hist))
		}
		if hist[len(hist)-1] != prev {
			t.Errorf("last history entry should be the previous position %v, got %v", prev, hist[len(hist)-1])
		}
	}
}

func TestAxisMarkOrigin(t *testing.T) {
	ctx := context.Background()
	axis, err := galvo.NewAxis(ctx, testTable, "x", "DAC0", 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := axis.GoTo(ctx, 123.4, 0); err != nil {
		t.Fatal(err)
	}
	axis.SetOrigin()
	if axis.RelPos() != 0 {
		t.Errorf("expected relative 0 after marking origin, got %v", axis.RelPos())
	}
	axis.ResetOrigin()
	if axis.Origin() != 0 || axis.RelPos() != 123.4 {
		t.Errorf("expected origin 0 rel 123.4, got %v and %v", axis.Origin(), axis.RelPos())
	}
}

func TestAxisImmediateWrite(t *testing.T) {
	ctx := context.Background()
	backend := sim.New(1000, nil)
	axis, err := galvo.NewAxis(ctx, testTable, "x", "DAC0", 0, backend, nil)
	if err != nil {
		t.Fatal(err)
	}
	pos, dur, err := axis.GoTo(ctx, 400, 0)
	if err != nil {
		t.Fatal(err)
	}
	if dur != 0 {
		t.Errorf("immediate write should report zero duration, got %v", dur)
	}
	cal := testTable["x"]
	if pos != cal.Position(cal.Code(400)) {
		t.Errorf("returned position should come from readback, got %v", pos)
	}
	codes, err := backend.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if codes["x"] != cal.Code(400) {
		t.Errorf("backend should hold %d, got %d", cal.Code(400), codes["x"])
	}
	if axis.Pos() != 400 {
		t.Errorf("committed position should be the destination, got %v", axis.Pos())
	}
}

func TestAxisStreamCompletes(t *testing.T) {
	ctx := context.Background()
	backend := sim.New(1000, nil)
	axis, err := galvo.NewAxis(ctx, testTable, "x", "DAC0", 0, backend, nil)
	if err != nil {
		t.Fatal(err)
	}
	// 100 microns at 10000 microns/s is a 10ms stream
	pos, dur, err := axis.GoTo(ctx, 100, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if axis.Pos() != 100 {
		t.Errorf("expected committed destination 100, got %v", axis.Pos())
	}
	cal := testTable["x"]
	if pos != cal.Position(cal.Code(100)) {
		t.Errorf("returned position should come from readback, got %v", pos)
	}
	if dur <= 0 {
		t.Errorf("expected a measured duration, got %v", dur)
	}
	if axis.State() != galvo.Idle {
		t.Errorf("axis should be idle after the move, got %v", axis.State())
	}
}

func TestAxisStreamCanceled(t *testing.T) {
	backend := sim.New(1000, nil)
	axis, err := galvo.NewAxis(context.Background(), testTable, "x", "DAC0", 0, backend, nil)
	if err != nil {
		t.Fatal(err)
	}
	// 5000 microns at 10000 microns/s is a 500ms stream; cancel at 50ms
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	pos, elapsed, err := axis.GoTo(ctx, 5000, 10000)
	if !errors.Is(err, galvo.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	var canceled *galvo.Canceled
	if !errors.As(err, &canceled) {
		t.Fatalf("expected *Canceled, got %T", err)
	}
	if axis.Pos() == 5000 {
		t.Error("canceled move must not commit the destination")
	}
	codes, readErr := backend.Read(context.Background())
	if readErr != nil {
		t.Fatal(readErr)
	}
	cal := testTable["x"]
	if axis.Pos() != cal.Position(codes["x"]) {
		t.Errorf("position %v should equal readback %v", axis.Pos(), cal.Position(codes["x"]))
	}
	if pos != axis.Pos() {
		t.Errorf("returned position %v should equal reconciled position %v", pos, axis.Pos())
	}
	if canceled.Positions["x"] != axis.Pos() {
		t.Errorf("cancellation payload should carry the reconciled position")
	}
	if elapsed <= 0 {
		t.Errorf("expected elapsed time, got %v", elapsed)
	}
	hist := axis.History()
	if hist[len(hist)-1] != 0 {
		t.Errorf("history should record the pre-move position 0, got %v", hist[len(hist)-1])
	}
}

func TestAxisResetPos(t *testing.T) {
	ctx := context.Background()
	axis, err := galvo.NewAxis(ctx, testTable, "x", "DAC0", 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := axis.GoTo(ctx, 250, 0); err != nil {
		t.Fatal(err)
	}
	axis.SetOrigin(100)
	if _, _, err := axis.ResetPos(ctx); err != nil {
		t.Fatal(err)
	}
	if axis.Pos() != 100 || axis.RelPos() != 0 {
		t.Errorf("reset should land on the origin: pos %v rel %v", axis.Pos(), axis.RelPos())
	}
}

func TestAxisRejectsBadInputWithoutStateChange(t *testing.T) {
	ctx := context.Background()
	axis, err := galvo.NewAxis(ctx, testTable, "x", "DAC0", 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	before := len(axis.History())
	if _, _, err := axis.GoTo(ctx, 100, -5); !errors.Is(err, galvo.ErrInvalidSpeed) {
		t.Fatalf("expected ErrInvalidSpeed, got %v", err)
	}
	if len(axis.History()) != before || axis.Pos() != 0 {
		t.Error("rejected move must not mutate state")
	}
}

func TestNewAxisUnknownAxis(t *testing.T) {
	if _, err := galvo.NewAxis(context.Background(), testTable, "y", "DAC9", 0, nil, nil); !errors.Is(err, galvo.ErrInvalidAxis) {
		t.Errorf("expected ErrInvalidAxis, got %v", err)
	}
}
