package jpeg

import (
	"bytes"
	"image"
	"image/color"
	stdjpeg "image/jpeg"
	"testing"
)

// testJPEG builds a reference baseline JPEG with the standard library
// encoder (which writes no APPn or COM segments of its own).
func testJPEG(t *testing.T, w, h int, quality int) []byte {
	t.Helper()
	m := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.Y[m.YOffset(x, y)] = uint8(x*5 + y*3)
		}
	}
	for i := range m.Cb {
		m.Cb[i] = uint8(110 + i%40)
		m.Cr[i] = uint8(130 - i%30)
	}
	var buf bytes.Buffer
	if err := stdjpeg.Encode(&buf, m, &stdjpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("std encode: %v", err)
	}
	return buf.Bytes()
}

func testGrayJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	m := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetGray(x, y, color.Gray{uint8((x*x + y*7) % 256)})
		}
	}
	var buf bytes.Buffer
	if err := stdjpeg.Encode(&buf, m, &stdjpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("std encode: %v", err)
	}
	return buf.Bytes()
}

// sameCoefficients compares two parsed frames over each component's
// meaningful block grid. MCU padding blocks are excluded: non-interleaved
// progressive scans never code their AC coefficients, so their content is
// not part of the lossless contract (jpegtran drops it the same way).
func sameCoefficients(t *testing.T, a, b *frame) {
	t.Helper()
	if len(a.comps) != len(b.comps) {
		t.Fatalf("component count %d vs %d", len(a.comps), len(b.comps))
	}
	for ci := range a.comps {
		ca, cb := &a.comps[ci], &b.comps[ci]
		if ca.blocksPerLine != cb.blocksPerLine || ca.blocksPerCol != cb.blocksPerCol {
			t.Fatalf("component %d grid %dx%d vs %dx%d",
				ci, ca.blocksPerLine, ca.blocksPerCol, cb.blocksPerLine, cb.blocksPerCol)
		}
		bw, bh := a.sizeInBlocks(ci)
		for by := 0; by < bh; by++ {
			for bx := 0; bx < bw; bx++ {
				bi := by*ca.blocksPerLine + bx
				if ca.coeffs[bi] != cb.coeffs[bi] {
					t.Fatalf("component %d block (%d, %d) coefficients differ:\n%v\n%v",
						ci, bx, by, ca.coeffs[bi], cb.coeffs[bi])
				}
			}
		}
	}
}

func TestParseBaseline(t *testing.T) {
	src := testJPEG(t, 40, 24, 75)
	f, err := parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.width != 40 || f.height != 24 {
		t.Fatalf("dims = %dx%d, want 40x24", f.width, f.height)
	}
	if len(f.comps) != 3 {
		t.Fatalf("components = %d, want 3", len(f.comps))
	}
	if f.progressive {
		t.Fatal("stdlib output mis-detected as progressive")
	}
}

func TestOptimizeCoefficientFidelity(t *testing.T) {
	for _, c := range []struct {
		name string
		src  []byte
	}{
		{"ycbcr420", testJPEG(t, 48, 32, 75)},
		{"ycbcr-small", testJPEG(t, 9, 7, 90)},
		{"gray", testGrayJPEG(t, 33, 17)},
	} {
		t.Run(c.name, func(t *testing.T) {
			before, err := parse(c.src)
			if err != nil {
				t.Fatalf("parse source: %v", err)
			}

			out, err := Optimize(c.src)
			if err != nil {
				t.Fatalf("Optimize: %v", err)
			}
			if out == nil {
				t.Skip("no improvement on this fixture")
			}
			if len(out) >= len(c.src) {
				t.Fatalf("result %d bytes is not smaller than source %d", len(out), len(c.src))
			}

			after, err := parse(out)
			if err != nil {
				t.Fatalf("parse result: %v", err)
			}
			if !after.progressive {
				t.Fatal("result is not progressive")
			}
			sameCoefficients(t, before, after)

			// The standard library is the independent reference decoder.
			if _, err := stdjpeg.Decode(bytes.NewReader(out)); err != nil {
				t.Fatalf("stdlib cannot decode the result: %v", err)
			}
		})
	}
}

func TestOptimizeStripsMarkers(t *testing.T) {
	src := testJPEG(t, 32, 32, 85)
	// Splice a JFIF APP0 segment in right after SOI so there is a marker to
	// strip.
	app0 := []byte{0xFF, mAPP0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00}
	src = append(append(append([]byte(nil), src[:2]...), app0...), src[2:]...)
	if !bytes.Contains(src[:64], []byte("JFIF")) {
		t.Fatal("fixture is missing the JFIF marker this test relies on")
	}

	out, err := Optimize(src)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if out == nil {
		t.Skip("no improvement on this fixture")
	}

	if bytes.Contains(out, []byte("JFIF")) {
		t.Fatal("JFIF marker survived")
	}
	// No APPn or COM segments at all.
	for i := 0; i+1 < len(out); i++ {
		if out[i] == 0xFF && (out[i+1] >= mAPP0 && out[i+1] <= 0xEF || out[i+1] == mCOM) {
			t.Fatalf("marker FF%02X found at offset %d", out[i+1], i)
		}
	}
}

func TestOptimizeProgressiveInput(t *testing.T) {
	// Re-optimizing our own progressive output must decode to the same
	// coefficients again (and usually yields no further gain).
	src := testJPEG(t, 40, 40, 70)
	out, err := Optimize(src)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if out == nil {
		t.Skip("no improvement on this fixture")
	}

	before, err := parse(out)
	if err != nil {
		t.Fatalf("parse progressive: %v", err)
	}

	out2, err := Optimize(out)
	if err != nil {
		t.Fatalf("re-Optimize: %v", err)
	}
	if out2 == nil {
		return
	}
	if len(out2) >= len(out) {
		t.Fatalf("second pass grew the file: %d -> %d", len(out), len(out2))
	}
	after, err := parse(out2)
	if err != nil {
		t.Fatalf("parse second pass: %v", err)
	}
	sameCoefficients(t, before, after)
}

func TestOptimizeRejectsGarbage(t *testing.T) {
	if _, err := Optimize([]byte{0xFF, 0xD8, 0xFF, 0x00}); err == nil {
		t.Fatal("expected an error for truncated input")
	}
	if _, err := Optimize([]byte("plainly not a jpeg")); err == nil {
		t.Fatal("expected an error for non-JPEG input")
	}
}

func TestBuildOptimalTable(t *testing.T) {
	var freq [257]int64
	freq[0] = 1000
	freq[1] = 500
	freq[2] = 250
	freq[3] = 10
	freq[200] = 1

	spec := buildOptimalTable(&freq)

	total := 0
	for _, c := range spec.counts {
		total += int(c)
	}
	if total != len(spec.vals) {
		t.Fatalf("counts sum %d != %d values", total, len(spec.vals))
	}
	if total != 5 {
		t.Fatalf("table carries %d symbols, want 5", total)
	}

	var enc encTable
	spec.derive(&enc)
	for _, sym := range spec.vals {
		if enc.size[sym] == 0 || enc.size[sym] > 16 {
			t.Fatalf("symbol %d has code size %d", sym, enc.size[sym])
		}
		// No code may be all ones (reserved to keep decoders from seeing
		// 0xFF-like sequences).
		if enc.code[sym] == 1<<enc.size[sym]-1 {
			t.Fatalf("symbol %d was assigned the all-ones code", sym)
		}
	}

	// The most frequent symbol gets the shortest code.
	if enc.size[0] > enc.size[200] {
		t.Fatalf("frequency order violated: size[0]=%d > size[200]=%d", enc.size[0], enc.size[200])
	}
}

func TestNbits(t *testing.T) {
	cases := []struct {
		v    int32
		want int
	}{
		{0, 0}, {1, 1}, {-1, 1}, {2, 2}, {3, 2}, {-3, 2},
		{4, 3}, {7, 3}, {255, 8}, {-255, 8}, {1024, 11},
	}
	for _, c := range cases {
		if got := nbits(c.v); got != c.want {
			t.Fatalf("nbits(%d) = %d, want %d", c.v, got, c.want)
		}
	}
}
