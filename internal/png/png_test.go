package png

import (
	"bytes"
	"image"
	"image/color"
	stdpng "image/png"
	"testing"
)

// stdEncode builds a reference PNG with the standard library.
func stdEncode(t *testing.T, m image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := stdpng.Encode(&buf, m); err != nil {
		t.Fatalf("std encode: %v", err)
	}
	return buf.Bytes()
}

// gradientNRGBA returns a small image with smooth ramps and an alpha edge.
func gradientNRGBA(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if x == 0 {
				a = 128
			}
			m.SetNRGBA(x, y, color.NRGBA{uint8(x * 7), uint8(y * 11), uint8((x + y) * 3), a})
		}
	}
	return m
}

func palettedImage(w, h int) *image.Paletted {
	pal := color.Palette{
		color.NRGBA{0, 0, 0, 255},
		color.NRGBA{255, 0, 0, 255},
		color.NRGBA{0, 255, 0, 255},
		color.NRGBA{0, 0, 255, 255},
	}
	m := image.NewPaletted(image.Rect(0, 0, w, h), pal)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetColorIndex(x, y, uint8((x/3+y/2)%4))
		}
	}
	return m
}

// samePixels compares two PNG byte streams pixel for pixel via the standard
// decoder.
func samePixels(t *testing.T, a, b []byte) {
	t.Helper()
	ma, err := stdpng.Decode(bytes.NewReader(a))
	if err != nil {
		t.Fatalf("decoding a: %v", err)
	}
	mb, err := stdpng.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decoding b: %v", err)
	}
	if !ma.Bounds().Eq(mb.Bounds()) {
		t.Fatalf("bounds differ: %v vs %v", ma.Bounds(), mb.Bounds())
	}
	for y := ma.Bounds().Min.Y; y < ma.Bounds().Max.Y; y++ {
		for x := ma.Bounds().Min.X; x < ma.Bounds().Max.X; x++ {
			ar, ag, ab2, aa := ma.At(x, y).RGBA()
			br, bg, bb, ba := mb.At(x, y).RGBA()
			if ar != br || ag != bg || ab2 != bb || aa != ba {
				t.Fatalf("pixel (%d, %d) differs", x, y)
			}
		}
	}
}

func TestDecodeMatchesStdlib(t *testing.T) {
	src := stdEncode(t, gradientNRGBA(17, 9))

	img, err := Decode(src)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Width != 17 || img.Height != 9 {
		t.Fatalf("dims = %dx%d, want 17x9", img.Width, img.Height)
	}
	if img.BitDepth != 8 {
		t.Fatalf("depth = %d, want 8", img.BitDepth)
	}
	if len(img.Pix) != img.rowBytes()*img.Height {
		t.Fatalf("pix length %d, want %d", len(img.Pix), img.rowBytes()*img.Height)
	}
}

func TestEncodeRoundTripAllStrategies(t *testing.T) {
	src := stdEncode(t, gradientNRGBA(23, 11))
	img, err := Decode(src)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	for _, s := range Strategies {
		out, err := Encode(img, s, FastDeflate)
		if err != nil {
			t.Fatalf("Encode strategy %d: %v", s, err)
		}
		samePixels(t, src, out)

		// And the result must survive our own decoder too.
		img2, err := Decode(out)
		if err != nil {
			t.Fatalf("re-decoding strategy %d: %v", s, err)
		}
		if !bytes.Equal(img.Pix, img2.Pix) {
			t.Fatalf("strategy %d: raw pixels differ after round trip", s)
		}
	}
}

func TestEncodeZopfliRoundTrip(t *testing.T) {
	src := stdEncode(t, palettedImage(20, 20))
	img, err := Decode(src)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	out, err := Encode(img, StrategyZero, ZopfliDeflate)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	samePixels(t, src, out)
}

func TestOptimizePreservesPixels(t *testing.T) {
	cases := []struct {
		name string
		m    image.Image
	}{
		{"gradient", gradientNRGBA(32, 16)},
		{"paletted", palettedImage(24, 24)},
		{"gray", func() image.Image {
			g := image.NewGray(image.Rect(0, 0, 16, 16))
			for i := range g.Pix {
				g.Pix[i] = uint8(i % 7 * 36)
			}
			return g
		}()},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := stdEncode(t, c.m)
			out, err := Optimize(src)
			if err != nil {
				t.Fatalf("Optimize: %v", err)
			}
			if out == nil {
				return // no improvement is a legal outcome
			}
			if len(out) >= len(src) {
				t.Fatalf("result %d bytes is not smaller than source %d", len(out), len(src))
			}
			samePixels(t, src, out)
		})
	}
}

func TestOptimizeRejectsGarbage(t *testing.T) {
	if _, err := Optimize([]byte("not a png at all")); err == nil {
		t.Fatal("expected an error for non-PNG input")
	}

	// Valid signature, corrupt chunk checksum.
	src := stdEncode(t, gradientNRGBA(4, 4))
	src[len(src)-1] ^= 0xFF
	if _, err := Optimize(src); err == nil {
		t.Fatal("expected an error for a corrupted chunk")
	}
}

func TestPaletteFreeImage(t *testing.T) {
	src := stdEncode(t, palettedImage(8, 8))
	img, err := Decode(src)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.ColorType != Palette {
		t.Skipf("stdlib wrote color type %d, not palette", img.ColorType)
	}

	flat := paletteFreeImage(img)
	if flat.ColorType == Palette {
		t.Fatal("palette survived the drop")
	}

	out, err := Encode(flat, StrategyZero, FastDeflate)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	samePixels(t, src, out)
}

func TestDeinterlaceGeometry(t *testing.T) {
	// Direct unit check of the pass scatter: 4x4, 8-bit gray.
	img := &Image{Width: 4, Height: 4, ColorType: Gray, BitDepth: 8}

	// Build the raw pass stream: for each pass, rows of (filter 0 + data).
	var raw []byte
	val := byte(1)
	type passDim struct{ w, h int }
	dims := []passDim{}
	for _, p := range adam7 {
		pw, ph := 0, 0
		if 4 > p.xStart {
			pw = (4 - p.xStart + p.xStep - 1) / p.xStep
		}
		if 4 > p.yStart {
			ph = (4 - p.yStart + p.yStep - 1) / p.yStep
		}
		dims = append(dims, passDim{pw, ph})
		// An empty pass contributes no bytes, not even filter bytes.
		if pw == 0 || ph == 0 {
			continue
		}
		for y := 0; y < ph; y++ {
			raw = append(raw, 0)
			for x := 0; x < pw; x++ {
				raw = append(raw, val)
				val++
			}
		}
	}

	if err := deinterlace(img, raw); err != nil {
		t.Fatalf("deinterlace: %v", err)
	}

	// Every source value must appear exactly once.
	seen := make(map[byte]int)
	for _, v := range img.Pix {
		seen[v]++
	}
	total := 0
	for _, d := range dims {
		total += d.w * d.h
	}
	if total != 16 {
		t.Fatalf("pass dims cover %d pixels, want 16", total)
	}
	for v := byte(1); v < val; v++ {
		if seen[v] != 1 {
			t.Fatalf("value %d appears %d times", v, seen[v])
		}
	}

	// Pass 1 starts at the origin.
	if img.Pix[0] != 1 {
		t.Fatalf("pixel (0,0) = %d, want 1", img.Pix[0])
	}
}
