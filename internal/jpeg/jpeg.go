// Package jpeg implements the coefficient-level JPEG rework the optimizer
// needs: it entropy-decodes a baseline or progressive source down to its
// quantized DCT coefficients, then re-encodes those exact coefficients as a
// progressive stream with per-scan optimized Huffman tables and all
// application markers stripped — the transform performed by
// "jpegtran -copy none -progressive -optimize".
package jpeg

import "errors"

// Errors returned by the parser and entropy decoder.
var (
	ErrFormat      = errors.New("jpeg: invalid format")
	ErrUnsupported = errors.New("jpeg: unsupported format")
)

// Marker codes (without the 0xFF prefix).
const (
	mSOI  = 0xD8
	mEOI  = 0xD9
	mSOS  = 0xDA
	mDQT  = 0xDB
	mDNL  = 0xDC
	mDRI  = 0xDD
	mSOF0 = 0xC0
	mSOF1 = 0xC1
	mSOF2 = 0xC2
	mDHT  = 0xC4
	mRST0 = 0xD0
	mRST7 = 0xD7
	mAPP0 = 0xE0
	mCOM  = 0xFE
)

const (
	maxComponents = 4
	blockSize     = 64
)

// block holds one 8x8 coefficient block in zigzag order: index 0 is DC,
// 1..63 follow the scan path. Keeping zigzag order end to end means the
// re-encoder never permutes.
type block [blockSize]int32

// component is one frame component plus its decoded coefficient planes.
type component struct {
	id byte
	h  int
	v  int
	tq byte

	// Block grid, MCU-aligned.
	blocksPerLine int
	blocksPerCol  int
	coeffs        []block
}

// frame is a fully parsed and entropy-decoded JPEG.
type frame struct {
	precision   int
	width       int
	height      int
	progressive bool
	comps       []component

	quant   [4][blockSize]uint16 // zigzag order, as read
	quantOK [4]bool
}

// maxSampling returns the frame's maximum horizontal and vertical sampling
// factors.
func (f *frame) maxSampling() (hMax, vMax int) {
	for i := range f.comps {
		if f.comps[i].h > hMax {
			hMax = f.comps[i].h
		}
		if f.comps[i].v > vMax {
			vMax = f.comps[i].v
		}
	}
	return hMax, vMax
}

// mcus returns the MCU grid dimensions for interleaved scans.
func (f *frame) mcus() (mx, my int) {
	hMax, vMax := f.maxSampling()
	mx = (f.width + 8*hMax - 1) / (8 * hMax)
	my = (f.height + 8*vMax - 1) / (8 * vMax)
	return mx, my
}

// sizeInBlocks returns a component's meaningful block dimensions (the
// non-interleaved scan geometry), which may be smaller than its MCU-aligned
// storage.
func (f *frame) sizeInBlocks(ci int) (w, h int) {
	hMax, vMax := f.maxSampling()
	c := &f.comps[ci]
	w = (f.width*c.h + 8*hMax - 1) / (8 * hMax)
	h = (f.height*c.v + 8*vMax - 1) / (8 * vMax)
	return w, h
}
