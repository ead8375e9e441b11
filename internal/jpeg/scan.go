package jpeg

// scanComp binds one frame component to its table selectors for a scan.
type scanComp struct {
	ci int
	td byte
	ta byte
}

// processSOS parses a scan header and entropy-decodes its data, advancing
// d.pos past the coded segment.
func (d *decoder) processSOS() error {
	if d.frame == nil {
		return ErrFormat
	}
	body, err := d.segment()
	if err != nil {
		return err
	}
	if len(body) < 4 {
		return ErrFormat
	}

	n := int(body[0])
	if n < 1 || n > maxComponents || len(body) != 4+2*n {
		return ErrFormat
	}

	scan := make([]scanComp, n)
	totalHV := 0
	for i := 0; i < n; i++ {
		cs := body[1+2*i]
		ci := -1
		for j := range d.frame.comps {
			if d.frame.comps[j].id == cs {
				ci = j
			}
		}
		if ci < 0 {
			return ErrFormat
		}
		for j := 0; j < i; j++ {
			if scan[j].ci == ci {
				return ErrFormat
			}
		}
		scan[i] = scanComp{ci: ci, td: body[2+2*i] >> 4, ta: body[2+2*i] & 15}
		if scan[i].td > 3 || scan[i].ta > 3 {
			return ErrFormat
		}
		totalHV += d.frame.comps[ci].h * d.frame.comps[ci].v
	}
	if n > 1 && totalHV > 10 {
		return ErrFormat
	}

	ss, se := 0, blockSize-1
	ah, al := 0, 0
	if d.frame.progressive {
		ss = int(body[1+2*n])
		se = int(body[2+2*n])
		ah = int(body[3+2*n] >> 4)
		al = int(body[3+2*n] & 15)
		if ss > se || se >= blockSize || (ss == 0 && se != 0) {
			return ErrFormat
		}
		if ss != 0 && n != 1 {
			return ErrFormat
		}
		if ah != 0 && ah != al+1 {
			return ErrFormat
		}
	}

	d.br.reset(d.src, d.pos)
	d.eobRun = 0
	for i := range d.dcPred {
		d.dcPred[i] = 0
	}

	if err := d.decodeScanData(scan, ss, se, ah, al); err != nil {
		return err
	}

	d.pos = d.br.pos
	return nil
}

// decodeScanData walks the scan's MCUs (interleaved) or blocks
// (single-component), handling restart intervals.
func (d *decoder) decodeScanData(scan []scanComp, ss, se, ah, al int) error {
	f := d.frame

	var totalMCUs int
	interleaved := len(scan) > 1
	var bw, bh int
	if interleaved {
		mx, my := f.mcus()
		totalMCUs = mx * my
	} else {
		bw, bh = f.sizeInBlocks(scan[0].ci)
		totalMCUs = bw * bh
	}

	sinceRestart := 0
	rst := 0
	for m := 0; m < totalMCUs; m++ {
		if d.restartInterval > 0 && sinceRestart == d.restartInterval {
			if err := d.readRestart(rst); err != nil {
				return err
			}
			rst = (rst + 1) & 7
			sinceRestart = 0
		}
		sinceRestart++

		if interleaved {
			mx, _ := f.mcus()
			my0, mx0 := m/mx, m%mx
			for _, sc := range scan {
				c := &f.comps[sc.ci]
				for by := 0; by < c.v; by++ {
					for bx := 0; bx < c.h; bx++ {
						bi := (my0*c.v+by)*c.blocksPerLine + mx0*c.h + bx
						if err := d.decodeBlock(&c.coeffs[bi], sc, ss, se, ah, al); err != nil {
							return err
						}
					}
				}
			}
		} else {
			c := &f.comps[scan[0].ci]
			by, bx := m/bw, m%bw
			bi := by*c.blocksPerLine + bx
			if err := d.decodeBlock(&c.coeffs[bi], scan[0], ss, se, ah, al); err != nil {
				return err
			}
		}
	}

	return nil
}

// readRestart byte-aligns and consumes the expected RSTn marker, resetting
// the predictors and any outstanding EOB run.
func (d *decoder) readRestart(rst int) error {
	d.br.align()
	p := d.br.pos
	if p+2 > len(d.src) || d.src[p] != 0xFF || d.src[p+1] != byte(mRST0+rst) {
		return ErrFormat
	}
	d.br.pos = p + 2
	d.eobRun = 0
	for i := range d.dcPred {
		d.dcPred[i] = 0
	}
	return nil
}

func (d *decoder) decodeBlock(b *block, sc scanComp, ss, se, ah, al int) error {
	if !d.frame.progressive {
		return d.decodeBaselineBlock(b, sc)
	}
	switch {
	case ss == 0 && ah == 0:
		return d.decodeDCFirst(b, sc, al)
	case ss == 0:
		return d.decodeDCRefine(b, al)
	case ah == 0:
		return d.decodeACFirst(b, sc, ss, se, al)
	default:
		return d.decodeACRefine(b, sc, ss, se, al)
	}
}

func (d *decoder) decodeBaselineBlock(b *block, sc scanComp) error {
	t, err := d.dcTab[sc.td].decode(&d.br)
	if err != nil {
		return err
	}
	diff, err := d.br.receive(int(t))
	if err != nil {
		return err
	}
	d.dcPred[sc.ci] += extend(diff, int(t))
	b[0] = d.dcPred[sc.ci]

	for k := 1; k < blockSize; {
		rs, err := d.acTab[sc.ta].decode(&d.br)
		if err != nil {
			return err
		}
		r, s := int(rs>>4), int(rs&15)
		if s == 0 {
			if r != 15 {
				break
			}
			k += 16
			continue
		}
		k += r
		if k >= blockSize {
			return ErrFormat
		}
		v, err := d.br.receive(s)
		if err != nil {
			return err
		}
		b[k] = extend(v, s)
		k++
	}
	return nil
}

func (d *decoder) decodeDCFirst(b *block, sc scanComp, al int) error {
	t, err := d.dcTab[sc.td].decode(&d.br)
	if err != nil {
		return err
	}
	diff, err := d.br.receive(int(t))
	if err != nil {
		return err
	}
	d.dcPred[sc.ci] += extend(diff, int(t))
	b[0] = d.dcPred[sc.ci] << al
	return nil
}

func (d *decoder) decodeDCRefine(b *block, al int) error {
	bit, err := d.br.readBit()
	if err != nil {
		return err
	}
	if bit != 0 {
		b[0] |= 1 << al
	}
	return nil
}

func (d *decoder) decodeACFirst(b *block, sc scanComp, ss, se, al int) error {
	if d.eobRun > 0 {
		d.eobRun--
		return nil
	}

	for k := ss; k <= se; {
		rs, err := d.acTab[sc.ta].decode(&d.br)
		if err != nil {
			return err
		}
		r, s := int(rs>>4), int(rs&15)
		if s == 0 {
			if r != 15 {
				d.eobRun = 1<<r - 1
				if r != 0 {
					bits, err := d.br.receive(r)
					if err != nil {
						return err
					}
					d.eobRun += bits
				}
				break
			}
			k += 16
			continue
		}
		k += r
		if k > se {
			return ErrFormat
		}
		v, err := d.br.receive(s)
		if err != nil {
			return err
		}
		b[k] = extend(v, s) << al
		k++
	}
	return nil
}

func (d *decoder) decodeACRefine(b *block, sc scanComp, ss, se, al int) error {
	delta := int32(1) << al
	k := ss

	if d.eobRun == 0 {
	refinement:
		for ; k <= se; k++ {
			rs, err := d.acTab[sc.ta].decode(&d.br)
			if err != nil {
				return err
			}
			r, s := int(rs>>4), int(rs&15)
			var z int32
			switch s {
			case 0:
				if r != 15 {
					// The full run count: the current block is consumed by
					// the post-loop refinement step below.
					d.eobRun = 1 << r
					if r != 0 {
						bits, err := d.br.receive(r)
						if err != nil {
							return err
						}
						d.eobRun |= bits
					}
					break refinement
				}
			case 1:
				z = delta
				bit, err := d.br.readBit()
				if err != nil {
					return err
				}
				if bit == 0 {
					z = -z
				}
			default:
				return ErrFormat
			}

			k, err = d.refineNonZeroes(b, k, se, r, delta)
			if err != nil {
				return err
			}
			if k > se {
				return ErrFormat
			}
			if z != 0 {
				b[k] = z
			}
		}
	}

	if d.eobRun > 0 {
		d.eobRun--
		if _, err := d.refineNonZeroes(b, k, se, -1, delta); err != nil {
			return err
		}
	}
	return nil
}

// refineNonZeroes emits correction bits for already-nonzero coefficients
// while skipping nz zero coefficients (nz < 0 refines through se).
func (d *decoder) refineNonZeroes(b *block, k, se, nz int, delta int32) (int, error) {
	for ; k <= se; k++ {
		if b[k] == 0 {
			if nz == 0 {
				break
			}
			nz--
			continue
		}
		bit, err := d.br.readBit()
		if err != nil {
			return 0, err
		}
		if bit == 0 {
			continue
		}
		if b[k] >= 0 {
			b[k] += delta
		} else {
			b[k] -= delta
		}
	}
	return k, nil
}
