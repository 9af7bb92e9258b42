// Package serialio provides the byte-level transport abstraction between the
// sensor UARTs and the frame reassembler, with mock implementations so the
// acquisition pipeline can be tested without radar hardware.
package serialio

import (
	"io"
)

// Transport is the minimal interface the acquisition core consumes.
// Available and ReadUpTo are non-blocking: a poll first asks how many bytes
// are pending and then reads at most that many, so a poll never stalls on a
// quiet line.
type Transport interface {
	// Available reports how many bytes are currently pending for reading.
	// An error here means the device is gone and the connection is dead.
	Available() (int, error)

	// ReadUpTo reads at most max bytes of pending data. It never blocks
	// waiting for more input and never returns more than max bytes.
	ReadUpTo(max int) ([]byte, error)

	io.Writer
	io.Closer
}

// Mode defines serial line configuration parameters.
type Mode struct {
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits
}

// Parity defines serial port parity options.
type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

// StopBits defines serial port stop bit options.
type StopBits int

const (
	OneStopBit StopBits = iota
	TwoStopBits
)

// ConfigPortMode returns the line mode for the sensor command UART.
func ConfigPortMode() *Mode {
	return &Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   NoParity,
		StopBits: OneStopBit,
	}
}

// DataPortMode returns the line mode for the sensor data UART.
func DataPortMode() *Mode {
	return &Mode{
		BaudRate: 921600,
		DataBits: 8,
		Parity:   NoParity,
		StopBits: OneStopBit,
	}
}

// Factory defines an interface for opening transports.
// This abstraction enables dependency injection of port creation.
type Factory interface {
	// Open opens a transport at the specified path with the given mode.
	Open(path string, mode *Mode) (Transport, error)
}
