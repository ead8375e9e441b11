package bitio

import (
	"bytes"
	"testing"
)

func TestDeflateWriterBitOrder(t *testing.T) {
	w := NewDeflateWriter(0)

	// LSB-first: value 0b101 over three bits lands as bits 1, 0, 1.
	w.WriteBits(0b101, 3)
	if got := w.Bytes(); len(got) != 1 || got[0] != 0b101 {
		t.Fatalf("bytes = %x, want 05", got)
	}

	// Huffman codes go MSB-first: code 0b110 emits 1, 1, 0 into bit
	// positions 3, 4, 5.
	w.WriteHuffman(0b110, 3)
	if got := w.Bytes(); got[0] != 0b00011101 {
		t.Fatalf("bytes = %x, want 1d", got)
	}
}

func TestDeflateWriterAlignment(t *testing.T) {
	w := NewDeflateWriter(0)
	w.WriteBit(1)
	w.AlignByte()
	w.WriteRawByte(0xAA)
	w.WriteBytes([]byte{0xBB, 0xCC})

	want := []byte{0x01, 0xAA, 0xBB, 0xCC}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("bytes = %x, want %x", w.Bytes(), want)
	}
	if w.Len() != 4 {
		t.Fatalf("Len = %d, want 4", w.Len())
	}

	// After WriteRawByte the next bit starts a fresh byte.
	w.WriteBit(1)
	if got := w.Bytes(); len(got) != 5 || got[4] != 0x01 {
		t.Fatalf("bytes = %x, want trailing 01", got)
	}
}

func TestDeflateWriterByteBoundary(t *testing.T) {
	w := NewDeflateWriter(0)
	w.WriteBits(0xFFFF, 16)
	want := []byte{0xFF, 0xFF}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("bytes = %x, want %x", w.Bytes(), want)
	}
}
