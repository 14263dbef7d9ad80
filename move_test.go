package galvo_test

import (
	"errors"
	"math"
	"testing"

	"github.com/jt05610/galvo"
)

func TestNewMove(t *testing.T) {
	cal := testTable["x"]
	for _, tc := range []struct {
		name       string
		start, end float64
		speed      float64
		rate       float64
		duration   float64
		samples    int
	}{
		{
			name:  "zeroSpeed",
			start: 0, end: 500, speed: 0, rate: 1000,
			duration: 0, samples: 1,
		},
		{
			name:  "zeroDistance",
			start: 250, end: 250, speed: 100, rate: 1000,
			duration: 0, samples: 1,
		},
		{
			name:  "oneSecond",
			start: 0, end: 1000, speed: 1000, rate: 100,
			duration: 1, samples: 100,
		},
		{
			name:  "backwards",
			start: 1000, end: 0, speed: 2000, rate: 100,
			duration: 0.5, samples: 50,
		},
		{
			name:  "shortMoveStillHasTwoSamples",
			start: 0, end: 1, speed: 1e6, rate: 100,
			duration: 1e-6, samples: 2,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, err := galvo.NewMove(cal, "x", tc.start, tc.end, tc.speed, tc.rate)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(m.Duration-tc.duration) > 1e-12 {
				t.Errorf("duration: expected %v, got %v", tc.duration, m.Duration)
			}
			if len(m.Codes) != tc.samples {
				t.Errorf("samples: expected %d, got %d", tc.samples, len(m.Codes))
			}
			if m.Final() != cal.Code(tc.end) {
				t.Errorf("final code: expected %d, got %d", cal.Code(tc.end), m.Final())
			}
			if (m.Duration == 0) != m.Degenerate() {
				t.Error("Degenerate disagrees with duration")
			}
		})
	}
}

func TestNewMoveRejectsBadInput(t *testing.T) {
	cal := testTable["x"]
	if _, err := galvo.NewMove(cal, "x", 0, 100, -1, 1000); !errors.Is(err, galvo.ErrInvalidSpeed) {
		t.Errorf("expected ErrInvalidSpeed, got %v", err)
	}
	if _, err := galvo.NewMove(cal, "x", 0, 100, math.NaN(), 1000); !errors.Is(err, galvo.ErrInvalidSpeed) {
		t.Errorf("expected ErrInvalidSpeed for NaN, got %v", err)
	}
	if _, err := galvo.NewMove(cal, "x", math.NaN(), 100, 1, 1000); !errors.Is(err, galvo.ErrInvalidPosition) {
		t.Errorf("expected ErrInvalidPosition, got %v", err)
	}
	if _, err := galvo.NewMove(cal, "x", 0, math.Inf(1), 1, 1000); !errors.Is(err, galvo.ErrInvalidPosition) {
		t.Errorf("expected ErrInvalidPosition, got %v", err)
	}
	if _, err := galvo.NewMove(cal, "x", 0, 100, 1, 0); err == nil {
		t.Error("expected error streaming with zero sample rate")
	}
}

func TestMoveCodesMonotonic(t *testing.T) {
	cal := testTable["x"]
	m, err := galvo.NewMove(cal, "x", 0, 1000, 500, 250)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(m.Codes); i++ {
		if m.Codes[i] < m.Codes[i-1] {
			t.Fatalf("codes not monotone at sample %d: %d < %d", i, m.Codes[i], m.Codes[i-1])
		}
	}
	if m.Codes[0] != cal.Code(0) {
		t.Errorf("first code: expected %d, got %d", cal.Code(0), m.Codes[0])
	}
	if m.Final() != cal.Code(1000) {
		t.Errorf("final code: expected %d, got %d", cal.Code(1000), m.Final())
	}
}
