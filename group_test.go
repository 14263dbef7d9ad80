package galvo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jt05610/galvo"
	"github.com/jt05610/galvo/daq/sim"
)

var (
	testChannels = map[galvo.AxisID]string{"x": "DAC0", "z": "DAC1"}
	testInitial  = map[galvo.AxisID]float64{"x": 0, "z": 0}
	testAxes     = []galvo.AxisID{"x", "z"}
)

func TestNewGroupValidatesConfig(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name     string
		channels map[galvo.AxisID]string
		initial  map[galvo.AxisID]float64
	}{
		{
			name:     "missingChannel",
			channels: map[galvo.AxisID]string{"x": "DAC0"},
			initial:  testInitial,
		},
		{
			name:     "missingInitial",
			channels: testChannels,
			initial:  map[galvo.AxisID]float64{"z": 0},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := galvo.NewGroup(ctx, testTable, testAxes, tc.channels, tc.initial, nil, nil)
			if !errors.Is(err, galvo.ErrMissingAxisConfig) {
				t.Errorf("expected ErrMissingAxisConfig, got %v", err)
			}
		})
	}
}

func TestGroupImmediateMove(t *testing.T) {
	ctx := context.Background()
	backend := sim.New(1000, nil)
	group, err := galvo.NewGroup(ctx, testTable, testAxes, testChannels, testInitial, backend, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := group.GoTo(ctx, map[galvo.AxisID]float64{"x": 100, "z": 300}, 0); err != nil {
		t.Fatal(err)
	}
	pos := group.Pos()
	if pos["x"] != 100 || pos["z"] != 300 {
		t.Errorf("expected x=100 z=300, got %v", pos)
	}

	group.SetOrigin(nil) // mark current points
	rel := group.RelPos()
	if rel["x"] != 0 || rel["z"] != 0 {
		t.Errorf("expected zero relative positions, got %v", rel)
	}
	if _, _, err := group.GoTo(ctx, map[galvo.AxisID]float64{"x": 50, "z": 50}, 0); err != nil {
		t.Fatal(err)
	}
	pos = group.Pos()
	if pos["x"] != 150 || pos["z"] != 350 {
		t.Errorf("expected x=150 z=350, got %v", pos)
	}
	if _, _, err := group.ResetPos(ctx); err != nil {
		t.Fatal(err)
	}
	pos, rel = group.Pos(), group.RelPos()
	if pos["x"] != 100 || pos["z"] != 300 || rel["x"] != 0 || rel["z"] != 0 {
		t.Errorf("reset should land on the origins: pos %v rel %v", pos, rel)
	}
}

func TestGroupRequiresEveryAxisTarget(t *testing.T) {
	ctx := context.Background()
	group, err := galvo.NewGroup(ctx, testTable, testAxes, testChannels, testInitial, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := group.GoTo(ctx, map[galvo.AxisID]float64{"x": 10}, 0); !errors.Is(err, galvo.ErrMissingAxisConfig) {
		t.Errorf("expected ErrMissingAxisConfig, got %v", err)
	}
}

func TestGroupStreamCanceled(t *testing.T) {
	backend := sim.New(1000, nil)
	group, err := galvo.NewGroup(context.Background(), testTable, testAxes, testChannels, testInitial, backend, nil)
	if err != nil {
		t.Fatal(err)
	}
	// x streams for 500ms, z for 250ms; cancel at 50ms
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	positions, elapsed, err := group.GoTo(ctx, map[galvo.AxisID]float64{"x": 5000, "z": 2500}, 10000)
	if !errors.Is(err, galvo.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	codes, readErr := backend.Read(context.Background())
	if readErr != nil {
		t.Fatal(readErr)
	}
	pos := group.Pos()
	for _, ax := range testAxes {
		want := testTable[ax].Position(codes[ax])
		if pos[ax] != want {
			t.Errorf("axis %q: position %v should equal readback %v", ax, pos[ax], want)
		}
		if positions[ax] != want {
			t.Errorf("axis %q: returned position %v should equal readback %v", ax, positions[ax], want)
		}
	}
	if pos["x"] == 5000 || pos["z"] == 2500 {
		t.Error("canceled move must not commit destinations")
	}
	if elapsed <= 0 {
		t.Errorf("expected elapsed time, got %v", elapsed)
	}
	if group.State() != galvo.Idle {
		t.Errorf("group should be idle after recovery, got %v", group.State())
	}
}

func TestGroupStreamCompletes(t *testing.T) {
	ctx := context.Background()
	backend := sim.New(1000, nil)
	group, err := galvo.NewGroup(ctx, testTable, testAxes, testChannels, testInitial, backend, nil)
	if err != nil {
		t.Fatal(err)
	}
	// x travels twice as far as z at the same speed and lands later
	positions, elapsed, err := group.GoTo(ctx, map[galvo.AxisID]float64{"x": 100, "z": 50}, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if elapsed <= 0 {
		t.Errorf("expected elapsed time, got %v", elapsed)
	}
	pos := group.Pos()
	if pos["x"] != 100 || pos["z"] != 50 {
		t.Errorf("expected committed destinations, got %v", pos)
	}
	for _, ax := range testAxes {
		want := testTable[ax].Position(testTable[ax].Code(pos[ax]))
		if positions[ax] != want {
			t.Errorf("axis %q: returned position %v should come from readback %v", ax, positions[ax], want)
		}
	}
}

func TestGroupHistory(t *testing.T) {
	ctx := context.Background()
	group, err := galvo.NewGroup(ctx, testTable, testAxes, testChannels, testInitial, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := group.GoTo(ctx, map[galvo.AxisID]float64{"x": 10, "z": 20}, 0); err != nil {
		t.Fatal(err)
	}
	hist := group.History()
	for _, ax := range testAxes {
		if len(hist[ax]) != 2 || hist[ax][1] != 0 {
			t.Errorf("axis %q: expected history [0 0], got %v", ax, hist[ax])
		}
	}
}
