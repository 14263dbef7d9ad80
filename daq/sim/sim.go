// Package sim provides an in-memory galvo.Backend with hardware-like
// streaming timing, used by tests and the demo CLI.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jt05610/galvo"
	"go.uber.org/zap"
)

// Backend stores the last code written per axis and plays streams
// sample-by-sample on a wall-clock ticker. A canceled stream stops between
// frames, leaving the last emitted frame readable, which is exactly what
// the recovery path needs to exercise.
type Backend struct {
	mu     sync.Mutex
	rate   float64
	logger *zap.Logger
	codes  map[galvo.AxisID]int
	loaded map[galvo.AxisID][]int
}

// New builds a simulated backend emitting rate samples per second.
func New(rate float64, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		rate:   rate,
		logger: logger,
		codes:  make(map[galvo.AxisID]int),
	}
}

func (b *Backend) SampleRate() float64 { return b.rate }

func (b *Backend) WriteImmediate(_ context.Context, codes map[galvo.AxisID]int) (map[galvo.AxisID]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ax, code := range codes {
		b.codes[ax] = code
	}
	return b.snapshot(), nil
}

func (b *Backend) StreamSetup() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = nil
	return nil
}

func (b *Backend) StreamLoad(codes map[galvo.AxisID][]int) error {
	n := -1
	for ax, seq := range codes {
		if len(seq) == 0 {
			return fmt.Errorf("axis %q: empty stream", ax)
		}
		if n == -1 {
			n = len(seq)
		}
		if len(seq) != n {
			return fmt.Errorf("axis %q: stream length %d does not match %d", ax, len(seq), n)
		}
	}
	loaded := make(map[galvo.AxisID][]int, len(codes))
	for ax, seq := range codes {
		cp := make([]int, len(seq))
		copy(cp, seq)
		loaded[ax] = cp
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = loaded
	return nil
}

func (b *Backend) StreamStart(ctx context.Context, duration float64) (float64, error) {
	b.mu.Lock()
	loaded := b.loaded
	b.loaded = nil
	b.mu.Unlock()
	if len(loaded) == 0 {
		return 0, errors.New("no stream loaded")
	}
	n := 0
	for _, seq := range loaded {
		n = len(seq)
		break
	}
	interval := time.Duration(duration / float64(n) * float64(time.Second))
	if interval <= 0 {
		interval = time.Microsecond
	}
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			elapsed := time.Since(start).Seconds()
			b.logger.Debug("stream canceled", zap.Int("frame", i), zap.Float64("elapsed", elapsed))
			return elapsed, ctx.Err()
		case <-ticker.C:
			b.mu.Lock()
			for ax, seq := range loaded {
				b.codes[ax] = seq[i]
			}
			b.mu.Unlock()
		}
	}
	return time.Since(start).Seconds(), nil
}

func (b *Backend) Read(_ context.Context) (map[galvo.AxisID]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot(), nil
}

func (b *Backend) snapshot() map[galvo.AxisID]int {
	out := make(map[galvo.AxisID]int, len(b.codes))
	for ax, code := range b.codes {
		out[ax] = code
	}
	return out
}
