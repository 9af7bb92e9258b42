package serialio

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// probeTimeout bounds the read used by Available to sample pending bytes.
// The OS serial API exposes no portable "bytes pending" query, so Available
// performs a short bounded read into a staging buffer instead.
const probeTimeout = time.Millisecond

// SerialTransport implements Transport on top of a physical serial port.
// Bytes pulled off the line by Available are staged until ReadUpTo consumes
// them, so no byte is ever dropped between the two calls.
type SerialTransport struct {
	port    serial.Port
	stage   []byte
	scratch [1024]byte
}

// SerialFactory opens physical serial ports via go.bug.st/serial.
type SerialFactory struct{}

// Open opens the serial port at path with the given line mode and prepares it
// for non-blocking polled reads.
func (SerialFactory) Open(path string, mode *Mode) (Transport, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: mode.BaudRate,
		DataBits: mode.DataBits,
		Parity:   serialParity(mode.Parity),
		StopBits: serialStopBits(mode.StopBits),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	if err := port.SetReadTimeout(probeTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", path, err)
	}
	return &SerialTransport{port: port}, nil
}

func serialParity(p Parity) serial.Parity {
	switch p {
	case OddParity:
		return serial.OddParity
	case EvenParity:
		return serial.EvenParity
	default:
		return serial.NoParity
	}
}

func serialStopBits(s StopBits) serial.StopBits {
	if s == TwoStopBits {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}

// Available samples the line with a bounded read and reports the total number
// of staged bytes ready for ReadUpTo.
func (t *SerialTransport) Available() (int, error) {
	n, err := t.port.Read(t.scratch[:])
	if err != nil {
		return 0, fmt.Errorf("failed to poll serial port: %w", err)
	}
	t.stage = append(t.stage, t.scratch[:n]...)
	return len(t.stage), nil
}

// ReadUpTo returns at most max staged bytes, pulling from the line first if
// nothing is staged yet.
func (t *SerialTransport) ReadUpTo(max int) ([]byte, error) {
	if len(t.stage) == 0 {
		if _, err := t.Available(); err != nil {
			return nil, err
		}
	}
	n := max
	if n > len(t.stage) {
		n = len(t.stage)
	}
	out := make([]byte, n)
	copy(out, t.stage[:n])
	t.stage = t.stage[n:]
	return out, nil
}

// Write writes raw bytes to the serial port.
func (t *SerialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

// Close closes the underlying serial port.
func (t *SerialTransport) Close() error {
	return t.port.Close()
}
