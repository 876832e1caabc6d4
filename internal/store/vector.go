package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector serializes a []float32 as a length-prefixed little-endian
// BLOB: a uint32 element count followed by that many float32 values.
// SQLite has no native vector column type, so archival embeddings are
// stored this way and decoded into the in-process HNSW graph on load.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4+4*len(v))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(v)))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4+4*i:8+4*i], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(buf []byte) ([]float32, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("vector blob too short: %d bytes", len(buf))
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	want := 4 + 4*int(n)
	if len(buf) != want {
		return nil, fmt.Errorf("vector blob length mismatch: have %d, want %d", len(buf), want)
	}
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4+4*i : 8+4*i]))
	}
	return v, nil
}
