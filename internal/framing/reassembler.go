package framing

import (
	"errors"
	"fmt"

	"github.com/banshee-data/mmwave.report/internal/monitoring"
	"github.com/banshee-data/mmwave.report/internal/serialio"
)

// ErrBufferOverflow is returned by Poll when the accumulation buffer exceeds
// its bound without containing a complete frame. The buffer is reset before
// returning, so the caller may keep polling; the error signals upstream noise
// or marker desynchronisation.
var ErrBufferOverflow = errors.New("accumulation buffer exceeded bound without a complete frame")

// DecodeFunc converts one complete frame's raw bytes (marker included) into a
// decoded frame. A failure is scoped to that single frame.
type DecodeFunc[F any] func(raw []byte) (F, error)

// ReassemblerConfig holds tuning for a Reassembler.
type ReassemblerConfig struct {
	// ReadCapacity caps how many bytes a single Poll pulls off the
	// transport.
	ReadCapacity int

	// MaxBuffer bounds the accumulation buffer. Exceeding it without two
	// markers in sight triggers a reset.
	MaxBuffer int
}

// DefaultReassemblerConfig returns the standard reassembly tuning.
func DefaultReassemblerConfig() ReassemblerConfig {
	return ReassemblerConfig{
		ReadCapacity: 1024,
		MaxBuffer:    64 * 1024,
	}
}

// Reassembler accumulates transport reads into a buffer, carves out complete
// frames between boundary markers and feeds decoded frames to its queue.
// It is generic over the decoded frame type so the framing layer stays
// independent of any particular payload format.
//
// A Reassembler is not safe for concurrent use; the owning connection
// serialises Poll against queue access.
type Reassembler[F any] struct {
	transport serialio.Transport
	decode    DecodeFunc[F]
	queue     *Queue[F]
	cfg       ReassemblerConfig

	buf []byte

	decodeFailures int
	overflowResets int
}

// NewReassembler creates a Reassembler reading from transport, decoding with
// decode and appending results to queue.
func NewReassembler[F any](transport serialio.Transport, decode DecodeFunc[F], queue *Queue[F], cfg ReassemblerConfig) *Reassembler[F] {
	if cfg.ReadCapacity <= 0 {
		cfg.ReadCapacity = DefaultReassemblerConfig().ReadCapacity
	}
	if cfg.MaxBuffer < cfg.ReadCapacity {
		cfg.MaxBuffer = DefaultReassemblerConfig().MaxBuffer
	}
	return &Reassembler[F]{
		transport: transport,
		decode:    decode,
		queue:     queue,
		cfg:       cfg,
	}
}

// Poll reads whatever the transport has pending, appends it to the
// accumulation buffer and carves out every complete frame. It returns the
// number of frames carved this call; zero with a nil error is the expected
// idle case. Transport failures are fatal for the connection and are
// propagated; a decode failure is counted and logged but does not abort the
// remaining frames.
func (r *Reassembler[F]) Poll() (int, error) {
	available, err := r.transport.Available()
	if err != nil {
		return 0, fmt.Errorf("failed to query available bytes: %w", err)
	}
	if available == 0 {
		return 0, nil
	}

	toRead := available
	if toRead > r.cfg.ReadCapacity {
		toRead = r.cfg.ReadCapacity
	}
	chunk, err := r.transport.ReadUpTo(toRead)
	if err != nil {
		return 0, fmt.Errorf("failed to read from transport: %w", err)
	}
	r.buf = append(r.buf, chunk...)

	indexes := MarkerIndexes(r.buf)

	// Fewer than two boundaries means no complete frame yet: everything
	// stays buffered (the span after the last marker may still be growing).
	if len(indexes) < 2 {
		if len(r.buf) > r.cfg.MaxBuffer {
			r.resetBuffer()
			return 0, ErrBufferOverflow
		}
		return 0, nil
	}

	// Bytes before the first marker are pre-sync garbage.
	if first := indexes[0]; first != 0 {
		r.buf = r.buf[first:]
		for i := range indexes {
			indexes[i] -= first
		}
	}

	carved := 0
	for i := 0; i+1 < len(indexes); i++ {
		raw := r.buf[indexes[i]:indexes[i+1]]
		frame, err := r.decode(raw)
		if err != nil {
			r.decodeFailures++
			monitoring.Logf("failed to decode frame: %v", err)
		} else {
			r.queue.Enqueue(frame)
		}
		carved++
	}

	// Retain only the trailing partial frame, compacted to offset 0.
	last := indexes[len(indexes)-1]
	r.buf = append(r.buf[:0], r.buf[last:]...)

	return carved, nil
}

// resetBuffer discards the accumulation buffer after an overflow, keeping the
// trailing len(Marker)-1 bytes so a marker straddling the reset point can
// still be recognised.
func (r *Reassembler[F]) resetBuffer() {
	keep := len(Marker) - 1
	if len(r.buf) > keep {
		r.buf = append(r.buf[:0], r.buf[len(r.buf)-keep:]...)
	}
	r.overflowResets++
}

// Buffered reports the number of bytes currently held in the accumulation
// buffer.
func (r *Reassembler[F]) Buffered() int {
	return len(r.buf)
}

// DecodeFailures reports how many carved frames failed to decode.
func (r *Reassembler[F]) DecodeFailures() int {
	return r.decodeFailures
}

// OverflowResets reports how many times the buffer bound forced a reset.
func (r *Reassembler[F]) OverflowResets() int {
	return r.overflowResets
}
