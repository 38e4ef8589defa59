package archive

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Numeric payloads are stored as fixed-width little-endian buffers.

func encodeFloat32s(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeFloat32s(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, errors.Errorf("float32 buffer length %d is not a multiple of 4", len(buf))
	}
	values := make([]float32, len(buf)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return values, nil
}

func encodeUint32s(values []uint32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func decodeUint32s(buf []byte) ([]uint32, error) {
	if len(buf)%4 != 0 {
		return nil, errors.Errorf("uint32 buffer length %d is not a multiple of 4", len(buf))
	}
	values := make([]uint32, len(buf)/4)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return values, nil
}

func encodeFloat64(v float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

func decodeFloat64(buf []byte) (float64, error) {
	if len(buf) != 8 {
		return 0, errors.Errorf("float64 value has %d bytes, want 8", len(buf))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
}
