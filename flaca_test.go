package flaca

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	stdjpeg "image/jpeg"
	stdpng "image/png"
	"testing"
)

func TestSniff(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Kind
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, KindJPEG},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0}, KindPNG},
		{"gif87", []byte("GIF87a trailer"), KindGIF},
		{"gif89", []byte("GIF89a trailer"), KindGIF},
		{"empty", nil, KindUnknown},
		{"short", []byte{0xFF, 0xD8}, KindUnknown},
		{"text", []byte("hello, world"), KindUnknown},
	}
	for _, c := range cases {
		if got := Sniff(c.data); got != c.want {
			t.Errorf("%s: Sniff = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestOptimizeDispatch(t *testing.T) {
	if _, err := Optimize([]byte("GIF89a...")); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("GIF: err = %v, want ErrUnsupported", err)
	}
	if _, err := Optimize([]byte("garbage")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("garbage: err = %v, want ErrUnknownFormat", err)
	}
}

func TestOptimizePNGEndToEnd(t *testing.T) {
	m := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			m.SetNRGBA(x, y, color.NRGBA{uint8(x * 6), uint8(y * 12), 40, 255})
		}
	}
	var buf bytes.Buffer
	if err := stdpng.Encode(&buf, m); err != nil {
		t.Fatalf("std encode: %v", err)
	}
	src := buf.Bytes()

	out, err := Optimize(src)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if out == nil {
		return // legal: the source was already optimal
	}
	if len(out) >= len(src) {
		t.Fatalf("result %d bytes >= source %d", len(out), len(src))
	}
	if Sniff(out) != KindPNG {
		t.Fatal("result does not sniff as PNG")
	}
	if _, err := stdpng.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("result does not decode: %v", err)
	}
}

func TestOptimizeJPEGEndToEnd(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range m.Pix {
		m.Pix[i] = uint8(i * 3)
	}
	var buf bytes.Buffer
	if err := stdjpeg.Encode(&buf, m, &stdjpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("std encode: %v", err)
	}
	src := buf.Bytes()

	out, err := Optimize(src)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if out == nil {
		return
	}
	if len(out) >= len(src) {
		t.Fatalf("result %d bytes >= source %d", len(out), len(src))
	}
	if Sniff(out) != KindJPEG {
		t.Fatal("result does not sniff as JPEG")
	}
	if _, err := stdjpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("result does not decode: %v", err)
	}
}
