package serialio

import (
	"bytes"
	"errors"
	"sync"
)

// TestableTransport implements Transport with configurable behaviour for
// testing. It provides fine-grained control over reads, writes and injected
// errors.
type TestableTransport struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by ReadUpTo calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the transport
	WriteBuffer *bytes.Buffer

	// ChunkLimit caps how many bytes a single ReadUpTo returns, to simulate
	// fragmented delivery. Zero means no extra limit beyond the caller's max.
	ChunkLimit int

	// AvailableError is returned by the next Available call if set
	AvailableError error

	// ReadError is returned by the next ReadUpTo call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// CloseError is returned by Close if set
	CloseError error

	// AutoAck makes every Write queue AckResponse on the read side,
	// simulating the sensor's command acknowledgement.
	AutoAck     bool
	AckResponse string

	// Closed indicates whether Close was called
	Closed bool

	// AvailableCalls records the number of Available calls
	AvailableCalls int

	// ReadCalls records the number of ReadUpTo calls
	ReadCalls int

	// WriteCalls records the number of Write calls
	WriteCalls int
}

// NewTestableTransport creates a new TestableTransport for testing.
func NewTestableTransport() *TestableTransport {
	return &TestableTransport{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
		AckResponse: "Done\n",
	}
}

// Available reports the number of buffered bytes, honouring injected errors.
func (t *TestableTransport) Available() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.AvailableCalls++

	if t.Closed {
		return 0, errors.New("transport closed")
	}
	if t.AvailableError != nil {
		err := t.AvailableError
		t.AvailableError = nil
		return 0, err
	}

	n := t.ReadBuffer.Len()
	if t.ChunkLimit > 0 && n > t.ChunkLimit {
		n = t.ChunkLimit
	}
	return n, nil
}

// ReadUpTo pops at most max bytes from the read buffer.
func (t *TestableTransport) ReadUpTo(max int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++

	if t.Closed {
		return nil, errors.New("transport closed")
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return nil, err
	}

	if t.ChunkLimit > 0 && max > t.ChunkLimit {
		max = t.ChunkLimit
	}
	return t.ReadBuffer.Next(max), nil
}

// Write captures written data, optionally queueing an acknowledgement.
func (t *TestableTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++

	if t.Closed {
		return 0, errors.New("transport closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	n, err := t.WriteBuffer.Write(p)
	if err == nil && t.AutoAck {
		t.ReadBuffer.WriteString(t.AckResponse)
	}
	return n, err
}

// Close marks the transport as closed.
func (t *TestableTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	return t.CloseError
}

// AddReadData adds data to be returned by subsequent ReadUpTo calls.
func (t *TestableTransport) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
}

// WrittenData returns all data written to the transport.
func (t *TestableTransport) WrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.WriteBuffer.Bytes()
}

// MockFactory implements Factory for testing and dev mode.
type MockFactory struct {
	mu sync.Mutex

	// Ports maps path to the transport returned from Open. If a path is
	// missing, a fresh TestableTransport is created and recorded.
	Ports map[string]Transport

	// Error is returned by Open if set
	Error error

	// OpenCalls records all Open calls
	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path string
	Mode *Mode
}

// NewMockFactory creates a MockFactory with no preconfigured ports.
func NewMockFactory() *MockFactory {
	return &MockFactory{Ports: make(map[string]Transport)}
}

// Open returns the transport configured for path, creating a
// TestableTransport on first use.
func (f *MockFactory) Open(path string, mode *Mode) (Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = append(f.OpenCalls, MockOpenCall{Path: path, Mode: mode})

	if f.Error != nil {
		return nil, f.Error
	}
	if t, ok := f.Ports[path]; ok {
		return t, nil
	}
	t := NewTestableTransport()
	f.Ports[path] = t
	return t, nil
}

// LastCall returns the most recent Open call, or nil if none.
func (f *MockFactory) LastCall() *MockOpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.OpenCalls) == 0 {
		return nil
	}
	return &f.OpenCalls[len(f.OpenCalls)-1]
}
