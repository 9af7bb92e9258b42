// Package mmwave manages a connection to a TI mmWave radar sensor: two
// UARTs (a command port and a high-rate data port), a one-time configuration
// upload, and the poll-driven frame acquisition pipeline.
package mmwave

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/mmwave.report/internal/config"
	"github.com/banshee-data/mmwave.report/internal/framing"
	"github.com/banshee-data/mmwave.report/internal/mmwave/parse"
	"github.com/banshee-data/mmwave.report/internal/serialio"
)

// Options configures a sensor connection.
type Options struct {
	// ConfigPortPath is the device path of the command UART.
	ConfigPortPath string

	// DataPortPath is the device path of the data UART.
	DataPortPath string

	// ConfigScript, when non-nil, is uploaded to the sensor before
	// streaming starts.
	ConfigScript io.Reader

	// Factory opens the two transports. Defaults to real serial ports.
	Factory serialio.Factory

	// Tuning supplies acquisition parameters. Defaults apply when nil.
	Tuning *config.TuningConfig
}

// Sensor is an open connection to one radar device. It owns both transports,
// the reassembly buffer and the decoded frame queue. All methods are safe for
// concurrent use; a single mutex serialises polling against queue access.
type Sensor struct {
	mu sync.Mutex

	sessionID  string
	configPort serialio.Transport
	dataPort   serialio.Transport
	queue      *framing.Queue[*parse.Frame]
	re         *framing.Reassembler[*parse.Frame]
}

// Stats is a snapshot of acquisition counters.
type Stats struct {
	Buffered       int `json:"buffered_bytes"`
	Queued         int `json:"queued_frames"`
	DecodeFailures int `json:"decode_failures"`
	OverflowResets int `json:"overflow_resets"`
}

// Open establishes a sensor connection: both ports are opened, the config
// script (if any) is uploaded with its acknowledgement handshake, and the
// reassembly pipeline is armed. On any setup failure every port opened so far
// is closed before returning.
func Open(opts Options) (*Sensor, error) {
	tuning := opts.Tuning
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	factory := opts.Factory
	if factory == nil {
		factory = serialio.SerialFactory{}
	}

	cfgMode := serialio.ConfigPortMode()
	cfgMode.BaudRate = tuning.GetConfigBaudRate()
	configPort, err := factory.Open(opts.ConfigPortPath, cfgMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open config port: %w", err)
	}

	dataMode := serialio.DataPortMode()
	dataMode.BaudRate = tuning.GetDataBaudRate()
	dataPort, err := factory.Open(opts.DataPortPath, dataMode)
	if err != nil {
		configPort.Close()
		return nil, fmt.Errorf("failed to open data port: %w", err)
	}

	if opts.ConfigScript != nil {
		if err := UploadConfig(configPort, opts.ConfigScript, tuning.GetAckTimeout(), tuning.GetAckPollInterval()); err != nil {
			configPort.Close()
			dataPort.Close()
			return nil, fmt.Errorf("config upload failed: %w", err)
		}
	}

	queue := &framing.Queue[*parse.Frame]{}
	re := framing.NewReassembler(dataPort, parse.Decode, queue, framing.ReassemblerConfig{
		ReadCapacity: tuning.GetReadCapacity(),
		MaxBuffer:    tuning.GetMaxBuffer(),
	})

	return &Sensor{
		sessionID:  uuid.NewString(),
		configPort: configPort,
		dataPort:   dataPort,
		queue:      queue,
		re:         re,
	}, nil
}

// SessionID identifies this connection in archived data.
func (s *Sensor) SessionID() string {
	return s.sessionID
}

// Poll reads pending data-port bytes and carves out complete frames,
// returning how many were carved this call. A zero count with a nil error is
// the expected idle case. A non-nil error other than
// framing.ErrBufferOverflow means the connection is dead.
func (s *Sensor) Poll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.re.Poll()
}

// PeekAll returns the queued decoded frames, oldest first, without removing
// them.
func (s *Sensor) PeekAll() []*parse.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.PeekAll()
}

// TakeFront returns the first n queued frames, removing them when remove is
// true. Asking for more frames than QueueLen reports fails with
// framing.ErrRange.
func (s *Sensor) TakeFront(n int, remove bool) ([]*parse.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.TakeFront(n, remove)
}

// QueueLen reports the number of decoded frames awaiting the consumer.
func (s *Sensor) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// SendCommand writes a single command line to the sensor's command port.
func (s *Sensor) SendCommand(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(command) == 0 || command[len(command)-1] != '\n' {
		command += "\n" // ensure command ends with a newline
	}
	if _, err := s.configPort.Write([]byte(command)); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the acquisition counters.
func (s *Sensor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Buffered:       s.re.Buffered(),
		Queued:         s.queue.Len(),
		DecodeFailures: s.re.DecodeFailures(),
		OverflowResets: s.re.OverflowResets(),
	}
}

// Close releases both serial ports.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.configPort.Close(), s.dataPort.Close())
}
