package store_test

import (
	"testing"

	"github.com/rcliao/hierarchical-memory-engine/internal/store"
)

func TestEncodeDecodeVector_RoundTrip(t *testing.T) {
	v := []float32{0.1, -0.2, 3.5, 0}
	blob := store.EncodeVector(v)
	got, err := store.DecodeVector(blob)
	if err != nil {
		t.Fatalf("DecodeVector: %v", err)
	}
	if len(got) != len(v) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("element %d = %v, want %v", i, got[i], v[i])
		}
	}
}

func TestDecodeVector_RejectsTruncatedBlob(t *testing.T) {
	blob := store.EncodeVector([]float32{1, 2, 3})
	if _, err := store.DecodeVector(blob[:len(blob)-1]); err == nil {
		t.Fatal("expected error decoding truncated vector blob")
	}
}

func TestEncodeVector_Empty(t *testing.T) {
	blob := store.EncodeVector(nil)
	got, err := store.DecodeVector(blob)
	if err != nil {
		t.Fatalf("DecodeVector: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len(got) = %d, want 0", len(got))
	}
}
