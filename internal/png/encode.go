package png

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"hash/adler32"
	"hash/crc32"

	"github.com/deepteams/flaca/internal/bitio"
	"github.com/deepteams/flaca/internal/zopfli"
)

// Deflater compresses a filtered scanline stream into a raw DEFLATE stream.
type Deflater func(raw []byte) ([]byte, error)

// FastDeflate is the strategy-search compressor: the standard library's
// best-compression flate, standing in for lodepng's built-in deflate.
func FastDeflate(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(raw); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ZopfliDeflate is the final-pass compressor.
func ZopfliDeflate(raw []byte) ([]byte, error) {
	w := bitio.NewDeflateWriter(len(raw) / 2)
	if err := zopfli.Deflate(w, raw); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Encode serializes img with the given filter strategy and deflate
// implementation.
func Encode(img *Image, strategy FilterStrategy, deflater Deflater) ([]byte, error) {
	filtered := filterScanlines(img, strategy)

	compressed, err := deflater(filtered)
	if err != nil {
		return nil, err
	}

	// zlib container: CMF/FLG header, deflate stream, Adler-32 of the
	// uncompressed data.
	zdata := make([]byte, 0, len(compressed)+6)
	zdata = append(zdata, 0x78, 0x01)
	zdata = append(zdata, compressed...)
	zdata = binary.BigEndian.AppendUint32(zdata, adler32.Checksum(filtered))

	out := make([]byte, 0, len(zdata)+256)
	out = append(out, signature[:]...)

	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:], uint32(img.Width))
	binary.BigEndian.PutUint32(ihdr[4:], uint32(img.Height))
	ihdr[8] = byte(img.BitDepth)
	ihdr[9] = byte(img.ColorType)
	out = appendChunk(out, "IHDR", ihdr[:])

	if img.ColorType == Palette {
		out = appendChunk(out, "PLTE", img.Palette)
		if len(img.TrnsPalette) > 0 {
			out = appendChunk(out, "tRNS", img.TrnsPalette)
		}
	} else if img.HasTrnsKey {
		switch img.ColorType {
		case Gray:
			var t [2]byte
			binary.BigEndian.PutUint16(t[:], img.TrnsKey[0])
			out = appendChunk(out, "tRNS", t[:])
		case RGB:
			var t [6]byte
			for i := 0; i < 3; i++ {
				binary.BigEndian.PutUint16(t[i*2:], img.TrnsKey[i])
			}
			out = appendChunk(out, "tRNS", t[:])
		}
	}

	out = appendChunk(out, "IDAT", zdata)
	out = appendChunk(out, "IEND", nil)
	return out, nil
}

func appendChunk(dst []byte, typ string, body []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(body)))
	start := len(dst)
	dst = append(dst, typ...)
	dst = append(dst, body...)
	return binary.BigEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst[start:]))
}
