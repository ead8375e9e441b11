// Package flaca losslessly recompresses JPEG and PNG images in memory.
//
// JPEG sources are rebuilt at the DCT-coefficient level as progressive
// streams with optimized Huffman tables and stripped application markers,
// matching "jpegtran -copy none -progressive -optimize". PNG sources are
// re-filtered and re-deflated through a zopfli encoder, matching
// "zopflipng -m". In both cases the original buffer wins unless the rebuild
// is strictly smaller.
package flaca

import (
	"bytes"
	"errors"

	"github.com/deepteams/flaca/internal/jpeg"
	"github.com/deepteams/flaca/internal/png"
	"github.com/deepteams/flaca/internal/zopfli"
)

// Errors returned by Optimize.
var (
	// ErrUnknownFormat marks data whose magic bytes match no supported
	// image format.
	ErrUnknownFormat = errors.New("flaca: unknown image format")

	// ErrUnsupported marks a recognized format this package does not
	// rewrite (currently GIF).
	ErrUnsupported = errors.New("flaca: unsupported image format")
)

// Kind is an image format recognized by magic-byte sniffing.
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG
	KindPNG
	KindGIF
)

var (
	magicJPEG  = []byte{0xFF, 0xD8, 0xFF}
	magicPNG   = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	magicGIF87 = []byte("GIF87a")
	magicGIF89 = []byte("GIF89a")
)

// Sniff identifies data by its magic bytes.
func Sniff(data []byte) Kind {
	switch {
	case bytes.HasPrefix(data, magicPNG):
		return KindPNG
	case bytes.HasPrefix(data, magicJPEG):
		return KindJPEG
	case bytes.HasPrefix(data, magicGIF87), bytes.HasPrefix(data, magicGIF89):
		return KindGIF
	default:
		return KindUnknown
	}
}

// SetIterations overrides the zopfli squeeze iteration count process-wide.
// Zero keeps the size-based default (60 below 200 kB, 20 above). Call once
// during startup, before any compression begins.
func SetIterations(n uint32) { zopfli.SetIterations(n) }

// Optimize recompresses src according to its sniffed format. A nil, nil
// return means the source could not be beaten; a non-nil result is a valid
// image of the same kind, strictly smaller, and (for PNG) pixel-identical
// or (for JPEG) coefficient-identical to the source.
func Optimize(src []byte) ([]byte, error) {
	switch Sniff(src) {
	case KindJPEG:
		return jpeg.Optimize(src)
	case KindPNG:
		return png.Optimize(src)
	case KindGIF:
		return nil, ErrUnsupported
	default:
		return nil, ErrUnknownFormat
	}
}
