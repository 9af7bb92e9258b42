// Package framing reconstructs discrete sensor frames from the continuous
// byte stream arriving on the data UART. It owns the accumulation buffer,
// locates frame boundary markers under arbitrary fragmentation, carves
// complete frames out for decoding and queues the results for a downstream
// consumer.
package framing

import "bytes"

// Marker is the fixed byte pattern that starts every sensor frame (the
// mmWave demo magic word).
var Marker = []byte{0x02, 0x01, 0x04, 0x03, 0x06, 0x05, 0x08, 0x07}

// MarkerAt reports whether buf begins with the Marker.
func MarkerAt(buf []byte) bool {
	return len(buf) >= len(Marker) && bytes.Equal(buf[:len(Marker)], Marker)
}

// MarkerIndexes returns the ascending offsets of every occurrence of Marker
// in buf. The scan resumes one byte past each match rather than past the full
// marker, so a real marker starting just after a spurious match is still
// found. On pathological input this can report two adjacent hits for what is
// a single marker; callers accept that as a known limitation.
func MarkerIndexes(buf []byte) []int {
	var indexes []int
	off := 0
	for {
		i := bytes.Index(buf[off:], Marker)
		if i < 0 {
			return indexes
		}
		indexes = append(indexes, off+i)
		off += i + 1
	}
}
