package jpeg

// bitWriter emits entropy-coded data MSB-first with 0xFF byte stuffing.
type bitWriter struct {
	buf []byte
	acc uint32
	n   int
}

func (w *bitWriter) emit(v uint32, nBits int) {
	if nBits == 0 {
		return
	}
	w.acc = w.acc<<uint(nBits) | (v & (1<<uint(nBits) - 1))
	w.n += nBits
	for w.n >= 8 {
		w.n -= 8
		b := byte(w.acc >> uint(w.n))
		w.buf = append(w.buf, b)
		if b == 0xFF {
			w.buf = append(w.buf, 0x00)
		}
	}
}

// flush pads the final partial byte with one bits, per F.1.2.3.
func (w *bitWriter) flush() {
	if w.n > 0 {
		w.emit(0x7F, 7-w.n+1)
	}
	w.acc = 0
	w.n = 0
}

// symbolSink receives the scan encoders' output. The frequency pass counts
// symbols; the emission pass writes codes and raw bits.
type symbolSink interface {
	sym(table *tableRef, s int)
	bits(v uint32, n int)
}

// tableRef names one Huffman table slot used by a scan.
type tableRef struct {
	class int // 0 = DC, 1 = AC
	slot  int
	freq  [257]int64
	enc   encTable
	used  bool
}

type freqSink struct{}

func (freqSink) sym(table *tableRef, s int) { table.freq[s]++ }
func (freqSink) bits(uint32, int)           {}

type emitSink struct{ w *bitWriter }

func (e emitSink) sym(table *tableRef, s int) {
	e.w.emit(table.enc.code[s], int(table.enc.size[s]))
}
func (e emitSink) bits(v uint32, n int) { e.w.emit(v, n) }

// appendMarker starts a marker segment with its two-byte length.
func appendMarker(dst []byte, marker byte, body []byte) []byte {
	dst = append(dst, 0xFF, marker)
	n := len(body) + 2
	dst = append(dst, byte(n>>8), byte(n))
	return append(dst, body...)
}

// appendDQT emits every quant table the frame's components reference,
// widening to 16-bit precision only when a value demands it.
func appendDQT(dst []byte, f *frame) []byte {
	var used [4]bool
	for i := range f.comps {
		used[f.comps[i].tq] = true
	}

	var body []byte
	for t := 0; t < 4; t++ {
		if !used[t] || !f.quantOK[t] {
			continue
		}
		wide := false
		for _, q := range f.quant[t] {
			if q > 255 {
				wide = true
				break
			}
		}
		if wide {
			body = append(body, byte(1<<4|t))
			for _, q := range f.quant[t] {
				body = append(body, byte(q>>8), byte(q))
			}
		} else {
			body = append(body, byte(t))
			for _, q := range f.quant[t] {
				body = append(body, byte(q))
			}
		}
	}
	if len(body) == 0 {
		return dst
	}
	return appendMarker(dst, mDQT, body)
}

// appendSOF2 emits the progressive frame header.
func appendSOF2(dst []byte, f *frame) []byte {
	body := []byte{
		byte(f.precision),
		byte(f.height >> 8), byte(f.height),
		byte(f.width >> 8), byte(f.width),
		byte(len(f.comps)),
	}
	for i := range f.comps {
		c := &f.comps[i]
		body = append(body, c.id, byte(c.h<<4|c.v), c.tq)
	}
	return appendMarker(dst, mSOF2, body)
}

// appendDHT emits one Huffman table definition.
func appendDHT(dst []byte, ref *tableRef, spec *huffSpec) []byte {
	body := make([]byte, 0, 17+len(spec.vals))
	body = append(body, byte(ref.class<<4|ref.slot))
	body = append(body, spec.counts[:]...)
	body = append(body, spec.vals...)
	return appendMarker(dst, mDHT, body)
}

// appendSOS emits a scan header.
func appendSOS(dst []byte, f *frame, sc *scanSpec) []byte {
	body := []byte{byte(len(sc.comps))}
	for _, ci := range sc.comps {
		table := byte(0)
		if ci != 0 {
			table = 1
		}
		var sel byte
		if sc.ss == 0 && sc.ah == 0 {
			sel = table << 4 // DC table; AC unused
		} else if sc.ss == 0 {
			sel = 0 // DC refinement needs no entropy table
		} else {
			sel = table // AC table
		}
		body = append(body, f.comps[ci].id, sel)
	}
	body = append(body, byte(sc.ss), byte(sc.se), byte(sc.ah<<4|sc.al))
	return appendMarker(dst, mSOS, body)
}
