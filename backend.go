package galvo

import "context"

// Backend is the DAC/streaming device that physically drives the mirrors.
// Implementations live under daq/. A Backend handle is exclusively owned by
// a single Axis or a single Group, never both; the owner serializes all
// calls.
type Backend interface {
	// SampleRate is the hardware output rate in samples per second.
	SampleRate() float64

	// WriteImmediate sets every listed axis at once and returns the
	// measured output codes.
	WriteImmediate(ctx context.Context, codes map[AxisID]int) (map[AxisID]int, error)

	// StreamSetup prepares the device for a timed stream.
	StreamSetup() error

	// StreamLoad queues one code sequence per axis. Sequences must have
	// equal length; sample i of every axis is emitted as one frame.
	StreamLoad(codes map[AxisID][]int) error

	// StreamStart plays the loaded stream over the given duration in
	// seconds and blocks until it finishes or ctx is canceled, returning
	// the measured duration. Cancellation surfaces as ctx.Err(), possibly
	// wrapped.
	StreamStart(ctx context.Context, duration float64) (float64, error)

	// Read reports the current output codes. Valid at any time, including
	// immediately after a canceled stream.
	Read(ctx context.Context) (map[AxisID]int, error)
}
