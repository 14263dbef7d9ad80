package galvo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidAxis is returned when an axis identifier is not in the
	// calibration table.
	ErrInvalidAxis = errors.New("invalid axis")

	// ErrInvalidSpeed is returned for negative or NaN speeds.
	ErrInvalidSpeed = errors.New("invalid speed")

	// ErrInvalidPosition is returned for NaN or infinite positions.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrMissingAxisConfig is returned when a per-axis configuration map
	// omits a declared axis.
	ErrMissingAxisConfig = errors.New("missing axis config")

	// ErrCanceled is matched by errors.Is for any *Canceled error.
	ErrCanceled = errors.New("move canceled")
)

// Canceled reports that a streaming move stopped before reaching its
// destination. By the time a caller sees it, the controller has already
// reconciled its current Point from hardware readback, so Positions hold
// where the mirrors actually are. Elapsed is the measured stream time in
// seconds; when the stream never reported one it falls back to the planned
// duration and is only an estimate.
type Canceled struct {
	Positions map[AxisID]float64
	Elapsed   float64
}

func (e *Canceled) Error() string {
	parts := make([]string, 0, len(e.Positions))
	for ax, pos := range e.Positions {
		parts = append(parts, fmt.Sprintf("%s=%.3fum", ax, pos))
	}
	sort.Strings(parts)
	return fmt.Sprintf("move canceled after %.3fs at %s", e.Elapsed, strings.Join(parts, ", "))
}

func (e *Canceled) Unwrap() error { return ErrCanceled }
