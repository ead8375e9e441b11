package jpeg

// scanEncoder walks one progressive scan's blocks twice with identical
// traversal: a frequency pass feeding the optimal-table builder, then an
// emission pass writing the entropy-coded data.
type scanEncoder struct {
	f    *frame
	sink symbolSink

	dcPred [maxComponents]int32

	// AC refinement state: the pending end-of-band run, the correction bits
	// buffered behind it (beBuffer), and the current block's correction
	// bits (brBuffer).
	eobRun   int32
	beBuffer []byte
	brBuffer []byte

	dcRefs [maxComponents]*tableRef
	acRef  *tableRef
}

func (e *scanEncoder) reset() {
	for i := range e.dcPred {
		e.dcPred[i] = 0
	}
	e.eobRun = 0
	e.beBuffer = e.beBuffer[:0]
	e.brBuffer = e.brBuffer[:0]
}

// run traverses the scan in coded order.
func (e *scanEncoder) run(sc *scanSpec) error {
	f := e.f

	if len(sc.comps) > 1 {
		mx, my := f.mcus()
		for m := 0; m < mx*my; m++ {
			my0, mx0 := m/mx, m%mx
			for _, ci := range sc.comps {
				c := &f.comps[ci]
				for by := 0; by < c.v; by++ {
					for bx := 0; bx < c.h; bx++ {
						bi := (my0*c.v+by)*c.blocksPerLine + mx0*c.h + bx
						if err := e.encodeBlock(&c.coeffs[bi], ci, sc); err != nil {
							return err
						}
					}
				}
			}
		}
	} else {
		ci := sc.comps[0]
		c := &f.comps[ci]
		bw, bh := f.sizeInBlocks(ci)
		for m := 0; m < bw*bh; m++ {
			bi := (m/bw)*c.blocksPerLine + m%bw
			if err := e.encodeBlock(&c.coeffs[bi], ci, sc); err != nil {
				return err
			}
		}
	}

	e.flushEOBRun()
	return nil
}

func (e *scanEncoder) encodeBlock(b *block, ci int, sc *scanSpec) error {
	switch {
	case sc.ss == 0 && sc.ah == 0:
		e.encodeDCFirst(b, ci, sc.al)
	case sc.ss == 0:
		e.sink.bits(uint32(b[0]>>uint(sc.al))&1, 1)
	case sc.ah == 0:
		e.encodeACFirst(b, sc)
	default:
		e.encodeACRefine(b, sc)
	}
	return nil
}

func (e *scanEncoder) encodeDCFirst(b *block, ci, al int) {
	temp := b[0] >> uint(al)
	diff := temp - e.dcPred[ci]
	e.dcPred[ci] = temp

	n := nbits(diff)
	e.sink.sym(e.dcRefs[ci], n)
	if n > 0 {
		v := diff
		if diff < 0 {
			v = diff - 1
		}
		e.sink.bits(uint32(v)&(1<<uint(n)-1), n)
	}
}

func (e *scanEncoder) encodeACFirst(b *block, sc *scanSpec) {
	r := 0
	for k := sc.ss; k <= sc.se; k++ {
		temp := b[k]
		if temp == 0 {
			r++
			continue
		}

		// Successive-approximation shift; point transform of negatives uses
		// the one's-complement trick so the emitted bits invert the sign.
		var temp2 int32
		if temp < 0 {
			temp = -temp
			temp >>= uint(sc.al)
			temp2 = ^temp
		} else {
			temp >>= uint(sc.al)
			temp2 = temp
		}
		if temp == 0 {
			r++
			continue
		}

		e.flushEOBRun()

		for r > 15 {
			e.sink.sym(e.acRef, 0xF0)
			r -= 16
		}

		n := nbits(temp)
		e.sink.sym(e.acRef, r<<4|n)
		e.sink.bits(uint32(temp2)&(1<<uint(n)-1), n)
		r = 0
	}

	if r > 0 {
		e.eobRun++
		if e.eobRun == 0x7FFF {
			e.flushEOBRun()
		}
	}
}

func (e *scanEncoder) encodeACRefine(b *block, sc *scanSpec) {
	var absValues [blockSize]int32
	eob := 0
	for k := sc.ss; k <= sc.se; k++ {
		temp := b[k]
		if temp < 0 {
			temp = -temp
		}
		temp >>= uint(sc.al)
		absValues[k] = temp
		if temp == 1 {
			eob = k
		}
	}

	r := 0
	e.brBuffer = e.brBuffer[:0]
	for k := sc.ss; k <= sc.se; k++ {
		temp := absValues[k]
		if temp == 0 {
			r++
			continue
		}

		// Emit pending ZRLs unless they can fold into the EOB run.
		for r > 15 && k <= eob {
			e.flushEOBRun()
			e.sink.sym(e.acRef, 0xF0)
			r -= 16
			e.emitBlockBits()
		}

		if temp > 1 {
			// Previously nonzero: buffer its correction bit.
			e.brBuffer = append(e.brBuffer, byte(temp&1))
			continue
		}

		// Newly nonzero.
		e.flushEOBRun()
		e.sink.sym(e.acRef, r<<4|1)
		if b[k] < 0 {
			e.sink.bits(0, 1)
		} else {
			e.sink.bits(1, 1)
		}
		e.emitBlockBits()
		r = 0
	}

	if r > 0 || len(e.brBuffer) > 0 {
		e.eobRun++
		e.beBuffer = append(e.beBuffer, e.brBuffer...)
		e.brBuffer = e.brBuffer[:0]
		if e.eobRun == 0x7FFF || len(e.beBuffer) > 930 {
			e.flushEOBRun()
		}
	}
}

// flushEOBRun emits the pending end-of-band run plus the correction bits
// buffered behind it.
func (e *scanEncoder) flushEOBRun() {
	if e.eobRun > 0 {
		n := 0
		for t := e.eobRun; t > 1; t >>= 1 {
			n++
		}
		e.sink.sym(e.acRef, n<<4)
		if n > 0 {
			e.sink.bits(uint32(e.eobRun)&(1<<uint(n)-1), n)
		}
		e.eobRun = 0
	}
	for _, bit := range e.beBuffer {
		e.sink.bits(uint32(bit), 1)
	}
	e.beBuffer = e.beBuffer[:0]
}

// emitBlockBits writes the current block's buffered correction bits.
func (e *scanEncoder) emitBlockBits() {
	for _, bit := range e.brBuffer {
		e.sink.bits(uint32(bit), 1)
	}
	e.brBuffer = e.brBuffer[:0]
}
