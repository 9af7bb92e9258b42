package mmwave

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/banshee-data/mmwave.report/internal/framing"
	"github.com/banshee-data/mmwave.report/internal/serialio"
)

// minimalFrame builds a valid empty frame (header only, no TLVs) with the
// given frame number.
func minimalFrame(frameNumber uint32) []byte {
	raw := make([]byte, 40)
	copy(raw, framing.Marker)
	binary.LittleEndian.PutUint32(raw[12:16], 40) // total packet length
	binary.LittleEndian.PutUint32(raw[20:24], frameNumber)
	return raw
}

func openTestSensor(t *testing.T) (*Sensor, *serialio.TestableTransport) {
	t.Helper()

	factory := serialio.NewMockFactory()
	s, err := Open(Options{
		ConfigPortPath: "/dev/ttyUSB0",
		DataPortPath:   "/dev/ttyUSB1",
		Factory:        factory,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	dataPort := factory.Ports["/dev/ttyUSB1"].(*serialio.TestableTransport)
	return s, dataPort
}

func TestOpenUploadsConfigThenStreams(t *testing.T) {
	factory := serialio.NewMockFactory()

	cfgPort := serialio.NewTestableTransport()
	cfgPort.AutoAck = true
	factory.Ports["/dev/ttyUSB0"] = cfgPort

	s, err := Open(Options{
		ConfigPortPath: "/dev/ttyUSB0",
		DataPortPath:   "/dev/ttyUSB1",
		ConfigScript:   strings.NewReader("% bench profile\nsensorStart\n"),
		Factory:        factory,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if got := string(cfgPort.WrittenData()); got != "sensorStart\n" {
		t.Errorf("config port received %q, want %q", got, "sensorStart\n")
	}
	if s.SessionID() == "" {
		t.Error("SessionID() is empty")
	}

	// Both ports were opened with the expected line modes.
	if len(factory.OpenCalls) != 2 {
		t.Fatalf("factory saw %d Open calls, want 2", len(factory.OpenCalls))
	}
	if got := factory.OpenCalls[0].Mode.BaudRate; got != 115200 {
		t.Errorf("config port baud = %d, want 115200", got)
	}
	if got := factory.OpenCalls[1].Mode.BaudRate; got != 921600 {
		t.Errorf("data port baud = %d, want 921600", got)
	}
}

func TestOpenClosesPortsOnUploadFailure(t *testing.T) {
	factory := serialio.NewMockFactory()

	cfgPort := serialio.NewTestableTransport()
	cfgPort.WriteError = errors.New("port wedged")
	factory.Ports["/dev/ttyUSB0"] = cfgPort

	_, err := Open(Options{
		ConfigPortPath: "/dev/ttyUSB0",
		DataPortPath:   "/dev/ttyUSB1",
		ConfigScript:   strings.NewReader("sensorStart\n"),
		Factory:        factory,
	})
	if err == nil {
		t.Fatal("Open succeeded despite upload failure")
	}

	if !cfgPort.Closed {
		t.Error("config port left open after setup failure")
	}
	dataPort := factory.Ports["/dev/ttyUSB1"].(*serialio.TestableTransport)
	if !dataPort.Closed {
		t.Error("data port left open after setup failure")
	}
}

func TestOpenFailsWhenPortMissing(t *testing.T) {
	factory := serialio.NewMockFactory()
	factory.Error = errors.New("no such device")

	if _, err := Open(Options{ConfigPortPath: "/dev/nope", DataPortPath: "/dev/nope2", Factory: factory}); err == nil {
		t.Fatal("Open succeeded with a failing factory")
	}
}

func TestSensorPollAndDrain(t *testing.T) {
	s, dataPort := openTestSensor(t)

	dataPort.AddReadData(minimalFrame(1))
	dataPort.AddReadData(minimalFrame(2))
	dataPort.AddReadData(minimalFrame(3))
	dataPort.AddReadData(framing.Marker) // closes frame 3

	var carved int
	for i := 0; i < 4; i++ {
		n, err := s.Poll()
		if err != nil {
			t.Fatalf("Poll() error: %v", err)
		}
		carved += n
	}
	if carved != 3 {
		t.Fatalf("carved %d frames, want 3", carved)
	}

	frames := s.PeekAll()
	if len(frames) != 3 {
		t.Fatalf("PeekAll() returned %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if got := f.Header.FrameNumber; got != uint32(i+1) {
			t.Errorf("frame %d has FrameNumber %d, want %d (order must match transmission)", i, got, i+1)
		}
	}

	taken, err := s.TakeFront(2, true)
	if err != nil {
		t.Fatalf("TakeFront failed: %v", err)
	}
	if len(taken) != 2 || taken[0].Header.FrameNumber != 1 {
		t.Errorf("TakeFront returned wrong frames: %+v", taken)
	}
	if s.QueueLen() != 1 {
		t.Errorf("QueueLen() = %d after drain, want 1", s.QueueLen())
	}

	if _, err := s.TakeFront(5, true); !errors.Is(err, framing.ErrRange) {
		t.Errorf("TakeFront(5) error = %v, want framing.ErrRange", err)
	}
}

func TestSensorStats(t *testing.T) {
	s, dataPort := openTestSensor(t)

	// A frame whose declared TLV count exceeds its bytes fails to decode.
	bad := minimalFrame(9)
	binary.LittleEndian.PutUint32(bad[32:36], 4)
	dataPort.AddReadData(bad)
	dataPort.AddReadData(minimalFrame(10))
	dataPort.AddReadData(framing.Marker)

	for i := 0; i < 3; i++ {
		if _, err := s.Poll(); err != nil {
			t.Fatalf("Poll() error: %v", err)
		}
	}

	stats := s.Stats()
	if stats.Queued != 1 {
		t.Errorf("Stats().Queued = %d, want 1", stats.Queued)
	}
	if stats.DecodeFailures != 1 {
		t.Errorf("Stats().DecodeFailures = %d, want 1", stats.DecodeFailures)
	}
	if stats.Buffered != len(framing.Marker) {
		t.Errorf("Stats().Buffered = %d, want %d (the trailing marker)", stats.Buffered, len(framing.Marker))
	}
}

func TestSensorSendCommand(t *testing.T) {
	factory := serialio.NewMockFactory()
	s, err := Open(Options{ConfigPortPath: "cfg", DataPortPath: "data", Factory: factory})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.SendCommand("sensorStop"); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	cfgPort := factory.Ports["cfg"].(*serialio.TestableTransport)
	if got := string(cfgPort.WrittenData()); got != "sensorStop\n" {
		t.Errorf("command port received %q, want %q", got, "sensorStop\n")
	}
}
