// Package parse decodes the payload of one complete sensor frame into a
// structured measurement record.
//
// Frame layout (all fields little-endian):
//
//	Frame header (40 bytes):
//	  magic word (8) + version (4) + total packet length (4) + platform (4) +
//	  frame number (4) + CPU cycle time (4) + detected object count (4) +
//	  TLV count (4) + subframe number (4)
//	TLVs, each with an 8-byte header:
//	  type (4) + length (4), followed by length payload bytes
//
// TLV type 1 carries detected points (x, y, z, doppler as float32), type 7
// carries per-point side info (SNR and noise as uint16). Other types are
// retained raw.
package parse

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/mmwave.report/internal/framing"
)

const (
	FrameHeaderSize   = 40
	TLVHeaderSize     = 8
	DetectedPointSize = 16
	SideInfoSize      = 4
)

// TLV type identifiers from the mmWave demo output format.
const (
	TLVTypeDetectedPoints = 1
	TLVTypeRangeProfile   = 2
	TLVTypeNoiseProfile   = 3
	TLVTypeSideInfo       = 7
)

var (
	// ErrBadMagic indicates the frame bytes do not start with the magic word.
	ErrBadMagic = errors.New("frame does not start with the magic word")

	// ErrTruncated indicates the frame ended before its declared contents.
	ErrTruncated = errors.New("frame truncated")
)

// FrameHeader is the fixed 40-byte header at the start of every frame.
type FrameHeader struct {
	Version        uint32
	TotalPacketLen uint32
	Platform       uint32
	FrameNumber    uint32
	TimeCPUCycles  uint32
	NumDetectedObj uint32
	NumTLVs        uint32
	SubFrameNumber uint32
}

// DetectedPoint is one radar detection in sensor-relative Cartesian
// coordinates, with derived polar values.
type DetectedPoint struct {
	X       float32 // metres
	Y       float32 // metres
	Z       float32 // metres
	Doppler float32 // m/s, negative approaching

	Range     float64 // metres
	Azimuth   float64 // degrees
	Elevation float64 // degrees
}

// SideInfo carries the detection quality measures paired with a point.
type SideInfo struct {
	SNR   uint16 // 0.1 dB units
	Noise uint16 // 0.1 dB units
}

// TLV is a type-length-value record the decoder does not interpret.
type TLV struct {
	Type    uint32
	Length  uint32
	Payload []byte
}

// Frame is the decoded form of one complete sensor frame.
type Frame struct {
	Header   FrameHeader
	Points   []DetectedPoint
	SideInfo []SideInfo

	// Other holds TLVs of types the decoder does not interpret.
	Other []TLV
}

// Decode parses one complete frame's raw bytes, magic word included.
func Decode(raw []byte) (*Frame, error) {
	if len(raw) < FrameHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d for header", ErrTruncated, len(raw), FrameHeaderSize)
	}
	if !framing.MarkerAt(raw) {
		return nil, ErrBadMagic
	}

	f := &Frame{
		Header: FrameHeader{
			Version:        binary.LittleEndian.Uint32(raw[8:12]),
			TotalPacketLen: binary.LittleEndian.Uint32(raw[12:16]),
			Platform:       binary.LittleEndian.Uint32(raw[16:20]),
			FrameNumber:    binary.LittleEndian.Uint32(raw[20:24]),
			TimeCPUCycles:  binary.LittleEndian.Uint32(raw[24:28]),
			NumDetectedObj: binary.LittleEndian.Uint32(raw[28:32]),
			NumTLVs:        binary.LittleEndian.Uint32(raw[32:36]),
			SubFrameNumber: binary.LittleEndian.Uint32(raw[36:40]),
		},
	}

	rest := raw[FrameHeaderSize:]
	for i := uint32(0); i < f.Header.NumTLVs; i++ {
		if len(rest) < TLVHeaderSize {
			return nil, fmt.Errorf("%w: TLV %d header missing", ErrTruncated, i)
		}
		tlvType := binary.LittleEndian.Uint32(rest[0:4])
		tlvLen := binary.LittleEndian.Uint32(rest[4:8])
		rest = rest[TLVHeaderSize:]

		if uint32(len(rest)) < tlvLen {
			return nil, fmt.Errorf("%w: TLV %d declares %d bytes, %d remain", ErrTruncated, i, tlvLen, len(rest))
		}
		payload := rest[:tlvLen]
		rest = rest[tlvLen:]

		switch tlvType {
		case TLVTypeDetectedPoints:
			f.Points = decodePoints(payload)
		case TLVTypeSideInfo:
			f.SideInfo = decodeSideInfo(payload)
		default:
			f.Other = append(f.Other, TLV{
				Type:    tlvType,
				Length:  tlvLen,
				Payload: append([]byte(nil), payload...),
			})
		}
	}

	return f, nil
}

func decodePoints(payload []byte) []DetectedPoint {
	n := len(payload) / DetectedPointSize
	points := make([]DetectedPoint, 0, n)
	for i := 0; i < n; i++ {
		p := payload[i*DetectedPointSize:]
		x := math.Float32frombits(binary.LittleEndian.Uint32(p[0:4]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(p[4:8]))
		z := math.Float32frombits(binary.LittleEndian.Uint32(p[8:12]))
		doppler := math.Float32frombits(binary.LittleEndian.Uint32(p[12:16]))
		points = append(points, newDetectedPoint(x, y, z, doppler))
	}
	return points
}

func newDetectedPoint(x, y, z, doppler float32) DetectedPoint {
	xf, yf, zf := float64(x), float64(y), float64(z)

	p := DetectedPoint{
		X:       x,
		Y:       y,
		Z:       z,
		Doppler: doppler,
		Range:   math.Sqrt(xf*xf + yf*yf + zf*zf),
	}

	if yf == 0 {
		if xf >= 0 {
			p.Azimuth = 90
		} else {
			p.Azimuth = -90
		}
	} else {
		p.Azimuth = math.Atan(xf/yf) * (180 / math.Pi)
	}

	if xf == 0 && yf == 0 {
		if zf >= 0 {
			p.Elevation = 90
		} else {
			p.Elevation = -90
		}
	} else {
		p.Elevation = math.Atan(zf/math.Hypot(xf, yf)) * (180 / math.Pi)
	}

	return p
}

func decodeSideInfo(payload []byte) []SideInfo {
	n := len(payload) / SideInfoSize
	infos := make([]SideInfo, 0, n)
	for i := 0; i < n; i++ {
		p := payload[i*SideInfoSize:]
		infos = append(infos, SideInfo{
			SNR:   binary.LittleEndian.Uint16(p[0:2]),
			Noise: binary.LittleEndian.Uint16(p[2:4]),
		})
	}
	return infos
}
