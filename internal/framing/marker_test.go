package framing

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMarkerIndexes(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}

	tests := []struct {
		name string
		buf  []byte
		want []int
	}{
		{
			name: "empty buffer",
			buf:  nil,
			want: nil,
		},
		{
			name: "no marker",
			buf:  bytes.Repeat([]byte{0x00, 0x01, 0x02}, 10),
			want: nil,
		},
		{
			name: "single marker at start",
			buf:  append(append([]byte{}, Marker...), payload...),
			want: []int{0},
		},
		{
			name: "single marker after garbage",
			buf:  append([]byte{0x11, 0x22, 0x33}, Marker...),
			want: []int{3},
		},
		{
			name: "three markers",
			buf: bytes.Join([][]byte{Marker, payload, Marker, payload, Marker}, nil),
			want: []int{0, 13, 26},
		},
		{
			name: "adjacent markers",
			buf:  append(append([]byte{}, Marker...), Marker...),
			want: []int{0, 8},
		},
		{
			name: "marker prefix is not a match",
			buf:  append([]byte{0x02, 0x01, 0x04}, payload...),
			want: nil,
		},
		{
			name: "spurious first byte before real marker",
			buf:  append([]byte{0x02}, Marker...),
			want: []int{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarkerIndexes(tt.buf)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MarkerIndexes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarkerIndexesTruncatedTail(t *testing.T) {
	// A marker split at the end of the buffer must not match until the rest
	// of it arrives.
	buf := append(append([]byte{}, Marker...), Marker[:5]...)
	got := MarkerIndexes(buf)
	if diff := cmp.Diff([]int{0}, got); diff != "" {
		t.Errorf("MarkerIndexes mismatch (-want +got):\n%s", diff)
	}
}
