package jpeg

// Optimize losslessly re-encodes a JPEG as a progressive stream with
// optimized Huffman tables and no application markers, returning nil when
// the rebuild is not strictly smaller than the source.
func Optimize(src []byte) ([]byte, error) {
	f, err := parse(src)
	if err != nil {
		return nil, err
	}

	out, err := encodeProgressive(f)
	if err != nil {
		return nil, err
	}

	if len(out) > 0 && len(out) < len(src) {
		return out, nil
	}
	return nil, nil
}

// encodeProgressive writes the full output stream: SOI, tables, SOF2, then
// one optimized Huffman pass and one emission pass per scan.
func encodeProgressive(f *frame) ([]byte, error) {
	for i := range f.comps {
		if !f.quantOK[f.comps[i].tq] {
			return nil, ErrFormat
		}
	}

	out := []byte{0xFF, mSOI}
	out = appendDQT(out, f)
	out = appendSOF2(out, f)

	enc := &scanEncoder{f: f}

	for _, sc := range simpleProgression(f) {
		sc := sc
		refs, err := scanTables(&sc)
		if err != nil {
			return nil, err
		}
		enc.dcRefs = refs.dc
		enc.acRef = refs.ac

		// Frequency-gathering pass.
		enc.sink = freqSink{}
		enc.reset()
		if err := enc.run(&sc); err != nil {
			return nil, err
		}

		// Build and emit the tables this scan uses.
		for _, ref := range refs.all {
			spec := buildOptimalTable(&ref.freq)
			spec.derive(&ref.enc)
			out = appendDHT(out, ref, &spec)
		}

		out = appendSOS(out, f, &sc)

		// Emission pass.
		bw := &bitWriter{buf: out}
		enc.sink = emitSink{w: bw}
		enc.reset()
		if err := enc.run(&sc); err != nil {
			return nil, err
		}
		bw.flush()
		out = bw.buf
	}

	out = append(out, 0xFF, mEOI)
	return out, nil
}

// scanRefs bundles the Huffman table slots one scan touches.
type scanRefs struct {
	dc  [maxComponents]*tableRef
	ac  *tableRef
	all []*tableRef
}

// scanTables allocates the table references for a scan: slot 0 for the
// first component, slot 1 for the rest, DC tables for DC-first scans and a
// single AC table for AC scans. DC refinement scans code no symbols.
func scanTables(sc *scanSpec) (*scanRefs, error) {
	refs := &scanRefs{}

	switch {
	case sc.ss == 0 && sc.ah == 0:
		var slots [2]*tableRef
		for _, ci := range sc.comps {
			if ci >= maxComponents {
				return nil, ErrFormat
			}
			slot := 0
			if ci != 0 {
				slot = 1
			}
			if slots[slot] == nil {
				slots[slot] = &tableRef{class: 0, slot: slot}
				refs.all = append(refs.all, slots[slot])
			}
			refs.dc[ci] = slots[slot]
		}
	case sc.ss == 0:
		// DC refinement: raw bits only.
	default:
		slot := 0
		if sc.comps[0] != 0 {
			slot = 1
		}
		refs.ac = &tableRef{class: 1, slot: slot}
		refs.all = append(refs.all, refs.ac)
	}

	return refs, nil
}
