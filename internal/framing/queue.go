package framing

import "errors"

// ErrRange is returned by TakeFront when the caller requests more frames than
// are queued. Callers should check Len first; this failure is a caller bug,
// not a transient condition.
var ErrRange = errors.New("requested more frames than queued")

// Queue is an ordered FIFO store of decoded frames. Insertion order matches
// device transmission order. The zero value is ready to use.
//
// A Queue is not safe for concurrent use; the owning connection serialises
// producer and consumer access.
type Queue[F any] struct {
	frames []F
}

// Enqueue appends a frame to the tail of the queue.
func (q *Queue[F]) Enqueue(frame F) {
	q.frames = append(q.frames, frame)
}

// Len reports the number of queued frames.
func (q *Queue[F]) Len() int {
	return len(q.frames)
}

// PeekAll returns a copy of the full ordered contents without mutation.
func (q *Queue[F]) PeekAll() []F {
	out := make([]F, len(q.frames))
	copy(out, q.frames)
	return out
}

// TakeFront returns the first n frames in order. If remove is true they are
// also removed from the queue. Requesting more frames than are queued fails
// with ErrRange and leaves the queue untouched.
func (q *Queue[F]) TakeFront(n int, remove bool) ([]F, error) {
	if n < 0 || n > len(q.frames) {
		return nil, ErrRange
	}
	out := make([]F, n)
	copy(out, q.frames[:n])
	if remove {
		q.frames = q.frames[:copy(q.frames, q.frames[n:])]
	}
	return out, nil
}
