// Package serial wraps a serial port as a pair of channels: a tx channel of
// raw writes and an rx channel delivering one reader per received line.
package serial

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"time"

	"go.bug.st/serial"
)

type Port struct {
	port serial.Port
	rxCh chan io.Reader
}

func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

func OpenPort(port string, baud int) (*Port, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(500 * time.Millisecond); err != nil {
		return nil, err
	}
	return &Port{port: p}, nil
}

func (p *Port) Close() error {
	return p.port.Close()
}

// ChannelPort starts the rx and tx pumps. Each received line arrives on the
// returned channel as its own reader; writes sent to writeCh go out as-is.
// Both pumps stop when ctx is canceled.
func (p *Port) ChannelPort(ctx context.Context, writeCh <-chan []byte) (<-chan io.Reader, error) {
	p.rxCh = make(chan io.Reader, 100)
	go func() {
		scanner := bufio.NewScanner(p.port)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if scanner.Scan() {
					p.rxCh <- bytes.NewBuffer(scanner.Bytes())
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case data := <-writeCh:
				if _, err := p.port.Write(data); err != nil {
					return
				}
			}
		}
	}()

	return p.rxCh, nil
}
