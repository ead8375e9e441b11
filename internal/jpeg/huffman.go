package jpeg

// huffDecoder decodes Huffman symbols via the canonical min/max code
// bounds for each length, as in ITU T.81 F.2.2.3.
type huffDecoder struct {
	mincode [17]int32
	maxcode [17]int32
	valptr  [17]int32
	vals    []byte
	defined bool
}

func (h *huffDecoder) build(counts *[16]byte, vals []byte) error {
	total := 0
	for _, c := range counts {
		total += int(c)
	}
	if total > 256 || total != len(vals) {
		return ErrFormat
	}

	h.vals = vals
	h.defined = true

	code := int32(0)
	k := int32(0)
	for l := 1; l <= 16; l++ {
		h.valptr[l] = k
		h.mincode[l] = code
		code += int32(counts[l-1])
		k += int32(counts[l-1])
		h.maxcode[l] = code - 1
		if counts[l-1] == 0 {
			h.maxcode[l] = -1
		} else if code-1 >= 1<<l {
			return ErrFormat
		}
		code <<= 1
	}
	return nil
}

func (h *huffDecoder) decode(br *bitReader) (byte, error) {
	if !h.defined {
		return 0, ErrFormat
	}
	code := int32(0)
	for l := 1; l <= 16; l++ {
		bit, err := br.readBit()
		if err != nil {
			return 0, err
		}
		code = code<<1 | int32(bit)
		if h.maxcode[l] >= 0 && code <= h.maxcode[l] {
			return h.vals[h.valptr[l]+code-h.mincode[l]], nil
		}
	}
	return 0, ErrFormat
}

// huffSpec is a serializable Huffman table: the BITS counts and the symbol
// values, as carried in a DHT segment.
type huffSpec struct {
	counts [16]byte
	vals   []byte
}

// encTable holds the derived per-symbol codes for emission.
type encTable struct {
	code [256]uint32
	size [256]uint8
}

func (s *huffSpec) derive(t *encTable) {
	var code uint32
	k := 0
	for l := 1; l <= 16; l++ {
		for i := 0; i < int(s.counts[l-1]); i++ {
			sym := s.vals[k]
			t.code[sym] = code
			t.size[sym] = uint8(l)
			code++
			k++
		}
		code <<= 1
	}
}

// buildOptimalTable computes the optimal code lengths for the given symbol
// frequencies, following the two-smallest-merge procedure of ITU T.81
// Annex K (and libjpeg's jpeg_gen_optimal_table): a 257th pseudo-symbol
// guarantees no real symbol is assigned an all-ones code, and lengths are
// folded down to the 16-bit ceiling.
func buildOptimalTable(freqIn *[257]int64) huffSpec {
	var freq [257]int64
	copy(freq[:], freqIn[:])
	freq[256] = 1 // reserved codepoint

	var codesize [257]int
	var others [257]int
	for i := range others {
		others[i] = -1
	}

	for {
		// Find the smallest nonzero frequency; ties break toward the larger
		// symbol value.
		c1 := -1
		v := int64(1) << 62
		for i := 0; i <= 256; i++ {
			if freq[i] != 0 && freq[i] <= v {
				v = freq[i]
				c1 = i
			}
		}

		// And the next smallest.
		c2 := -1
		v = int64(1) << 62
		for i := 0; i <= 256; i++ {
			if freq[i] != 0 && freq[i] <= v && i != c1 {
				v = freq[i]
				c2 = i
			}
		}
		if c2 < 0 {
			break
		}

		freq[c1] += freq[c2]
		freq[c2] = 0

		codesize[c1]++
		for others[c1] >= 0 {
			c1 = others[c1]
			codesize[c1]++
		}
		others[c1] = c2

		codesize[c2]++
		for others[c2] >= 0 {
			c2 = others[c2]
			codesize[c2]++
		}
	}

	var bits [33]int
	for i := 0; i <= 256; i++ {
		if codesize[i] > 0 {
			bits[codesize[i]]++
		}
	}

	// Fold lengths above 16 down, per Annex K.3.
	for i := 32; i > 16; i-- {
		for bits[i] > 0 {
			j := i - 2
			for bits[j] == 0 {
				j--
			}
			bits[i] -= 2
			bits[i-1]++
			bits[j+1] += 2
			bits[j]--
		}
	}

	// Remove the reserved codepoint from the longest populated length.
	for i := 16; i > 0; i-- {
		if bits[i] > 0 {
			bits[i]--
			break
		}
	}

	var spec huffSpec
	for i := 1; i <= 16; i++ {
		spec.counts[i-1] = byte(bits[i])
	}
	for size := 1; size <= 32; size++ {
		for sym := 0; sym <= 255; sym++ {
			if codesize[sym] == size {
				spec.vals = append(spec.vals, byte(sym))
			}
		}
	}
	return spec
}

// nbits returns the JPEG magnitude category of v (the number of bits needed
// to represent |v|).
func nbits(v int32) int {
	if v < 0 {
		v = -v
	}
	n := 0
	for v != 0 {
		n++
		v >>= 1
	}
	return n
}
