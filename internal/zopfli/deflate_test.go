package zopfli

import (
	"bytes"
	"compress/flate"
	"io"
	"testing"

	"github.com/deepteams/flaca/internal/bitio"
)

// roundTrip deflates data and inflates the result with the standard
// library, which acts as the independent RFC 1951 reference.
func roundTrip(t *testing.T, data []byte) []byte {
	t.Helper()

	w := bitio.NewDeflateWriter(len(data))
	if err := Deflate(w, data); err != nil {
		t.Fatalf("Deflate: %v", err)
	}

	fr := flate.NewReader(bytes.NewReader(w.Bytes()))
	got, err := io.ReadAll(fr)
	if err != nil {
		t.Fatalf("inflating our own stream: %v", err)
	}
	if err := fr.Close(); err != nil {
		t.Fatalf("closing inflater: %v", err)
	}

	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(data))
	}
	return w.Bytes()
}

func TestDeflateEmpty(t *testing.T) {
	out := roundTrip(t, nil)
	// One empty final fixed block: bits 1, 01, 0000000.
	want := []byte{0x03, 0x00}
	if !bytes.Equal(out, want) {
		t.Fatalf("empty stream = %x, want %x", out, want)
	}
}

func TestDeflateSingleByte(t *testing.T) {
	roundTrip(t, []byte{'x'})
}

func TestDeflateZeroRun(t *testing.T) {
	// 32 zero bytes: one run-length match of length 31, distance 1,
	// after the initial literal.
	roundTrip(t, make([]byte, 32))
}

func TestDeflateMaxMatch(t *testing.T) {
	// Exactly minMatch-1 + maxMatch identical bytes exercises the
	// 258-length ceiling.
	data := bytes.Repeat([]byte{0xAB}, maxMatch+2)
	roundTrip(t, data)
}

func TestDeflateText(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 40)
	roundTrip(t, data)
}

func TestDeflateBinary(t *testing.T) {
	// A deterministic pseudorandom buffer; high-entropy data lands in
	// stored or near-stored blocks and must still round-trip.
	data := make([]byte, 4096)
	seed := uint32(0x2545F491)
	for i := range data {
		seed = seed*1664525 + 1013904223
		data[i] = byte(seed >> 24)
	}
	roundTrip(t, data)
}

func TestDeflateStructured(t *testing.T) {
	// Mixed content: repetitive prefix, structured middle, sparse tail.
	var data []byte
	data = append(data, bytes.Repeat([]byte{1, 2, 3, 4}, 200)...)
	for i := 0; i < 512; i++ {
		data = append(data, byte(i), byte(i>>3), 0, 0)
	}
	data = append(data, make([]byte, 300)...)
	roundTrip(t, data)
}

func TestDeflateSizeBeatsStored(t *testing.T) {
	// Low-entropy input must compress far below the stored-block size.
	data := bytes.Repeat([]byte("abcabcabc"), 500)
	out := roundTrip(t, data)
	if len(out) >= len(data)/4 {
		t.Fatalf("repetitive input compressed to %d of %d bytes", len(out), len(data))
	}
}

func TestIterationsFor(t *testing.T) {
	if got := iterationsFor(100); got != 60 {
		t.Fatalf("iterationsFor(100) = %d, want 60", got)
	}
	if got := iterationsFor(500_000); got != 20 {
		t.Fatalf("iterationsFor(500000) = %d, want 20", got)
	}

	SetIterations(5)
	defer SetIterations(0)
	if got := iterationsFor(100); got != 5 {
		t.Fatalf("override: iterationsFor(100) = %d, want 5", got)
	}
}
