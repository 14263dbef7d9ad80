// Package labjack implements galvo.Backend for a LabJack-style DAC unit
// speaking a line protocol over a serial port. Commands are single lines;
// the unit answers with "ok" acks, <REG:code,...> readbacks, and a
// <done,T:seconds> line when a stream finishes.
package labjack

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jt05610/galvo"
	"github.com/jt05610/galvo/comm/serial"
	"go.uber.org/zap"
)

var _ galvo.Backend = (*Backend)(nil)

// Backend drives the DAC unit. It maps axis identifiers onto the DAC output
// registers the mirrors are wired to; readbacks come back keyed by register
// and are translated back to axes.
type Backend struct {
	channels  map[galvo.AxisID]string
	byChannel map[string]galvo.AxisID
	rate      float64
	logger    *zap.Logger
	port      *serial.Port
	rx        <-chan io.Reader
	tx        chan []byte
}

// New opens the channel pumps on port. channels maps each axis to its DAC
// output register; rate is the hardware stream rate in samples per second.
func New(ctx context.Context, port *serial.Port, channels map[galvo.AxisID]string, rate float64, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tx := make(chan []byte, 100)
	rx, err := port.ChannelPort(ctx, tx)
	if err != nil {
		return nil, err
	}
	byChannel := make(map[string]galvo.AxisID, len(channels))
	for ax, ch := range channels {
		byChannel[ch] = ax
	}
	return &Backend{
		channels:  channels,
		byChannel: byChannel,
		rate:      rate,
		logger:    logger,
		port:      port,
		rx:        rx,
		tx:        tx,
	}, nil
}

func (b *Backend) Close() error {
	return b.port.Close()
}

func (b *Backend) SampleRate() float64 { return b.rate }

func (b *Backend) send(cmd string) {
	b.logger.Debug("tx", zap.String("cmd", cmd))
	b.tx <- []byte(cmd + "\n")
}

// reply parses the next line from the unit, skipping blank lines.
func (b *Backend) reply(ctx context.Context) (Reply, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-b.rx:
			reply, err := NewParser(r).Parse()
			if err == io.EOF {
				continue
			}
			return reply, err
		}
	}
}

func (b *Backend) awaitAck(ctx context.Context) error {
	for {
		reply, err := b.reply(ctx)
		if err != nil {
			return err
		}
		if _, ok := reply.(*Ack); ok {
			return nil
		}
		b.logger.Debug("skipping reply while waiting for ack", zap.Any("reply", reply))
	}
}

func (b *Backend) awaitReadback(ctx context.Context) (map[galvo.AxisID]int, error) {
	for {
		reply, err := b.reply(ctx)
		if err != nil {
			return nil, err
		}
		if rb, ok := reply.(*Readback); ok {
			out := make(map[galvo.AxisID]int, len(rb.Channels))
			for ch, code := range rb.Channels {
				if ax, ok := b.byChannel[ch]; ok {
					out[ax] = code
				}
			}
			return out, nil
		}
	}
}

// sortedAxes keeps command lines deterministic.
func sortedAxes[V any](m map[galvo.AxisID]V) []galvo.AxisID {
	axes := make([]galvo.AxisID, 0, len(m))
	for ax := range m {
		axes = append(axes, ax)
	}
	sort.Slice(axes, func(i, j int) bool { return axes[i] < axes[j] })
	return axes
}

func (b *Backend) WriteImmediate(ctx context.Context, codes map[galvo.AxisID]int) (map[galvo.AxisID]int, error) {
	var sb strings.Builder
	sb.WriteString("U")
	for _, ax := range sortedAxes(codes) {
		ch, ok := b.channels[ax]
		if !ok {
			return nil, fmt.Errorf("%w: no DAC register for %q", galvo.ErrInvalidAxis, ax)
		}
		fmt.Fprintf(&sb, " %s:%d", ch, codes[ax])
	}
	b.send(sb.String())
	if err := b.awaitAck(ctx); err != nil {
		return nil, err
	}
	return b.Read(ctx)
}

func (b *Backend) StreamSetup() error {
	b.send("SS")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return b.awaitAck(ctx)
}

func (b *Backend) StreamLoad(codes map[galvo.AxisID][]int) error {
	n := -1
	for ax, seq := range codes {
		if n == -1 {
			n = len(seq)
		}
		if len(seq) != n {
			return fmt.Errorf("axis %q: stream length %d does not match %d", ax, len(seq), n)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ax := range sortedAxes(codes) {
		ch, ok := b.channels[ax]
		if !ok {
			return fmt.Errorf("%w: no DAC register for %q", galvo.ErrInvalidAxis, ax)
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "SL %s", ch)
		for _, code := range codes[ax] {
			fmt.Fprintf(&sb, " %d", code)
		}
		b.send(sb.String())
		if err := b.awaitAck(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StreamStart plays the loaded stream and blocks for the done line. On ctx
// cancellation it aborts the stream and returns the wall time spent, so the
// controller can fall back to it when reconciling.
func (b *Backend) StreamStart(ctx context.Context, duration float64) (float64, error) {
	b.send(fmt.Sprintf("SB %.6f", duration))
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			b.send("!")
			b.logger.Warn("stream aborted", zap.Float64("planned", duration))
			return time.Since(start).Seconds(), ctx.Err()
		case r := <-b.rx:
			reply, err := NewParser(r).Parse()
			if err == io.EOF {
				continue
			}
			if err != nil {
				return 0, err
			}
			if done, ok := reply.(*Done); ok {
				return done.Seconds, nil
			}
		}
	}
}

func (b *Backend) Read(ctx context.Context) (map[galvo.AxisID]int, error) {
	b.send("R")
	return b.awaitReadback(ctx)
}
