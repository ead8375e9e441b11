package zopfli

// dynamicLengths computes the best dynamic-tree configuration for a store
// range: code lengths for both alphabets, the tree-serialization combination,
// and the total block size in bits. Two passes are tried — the raw histogram
// and an RLE-optimized rewrite of it — and the smaller wins.
type dynamicLengths struct {
	extra     uint8
	size      uint32
	llLengths [numLL]uint8
	dLengths  [numD]uint8
}

func newDynamicLengths(store *lz77Store, lstart, lend int) (*dynamicLengths, error) {
	llCounts, dCounts := store.histogram(lstart, lend)
	llCounts[256] = 1 // end-of-block symbol

	out := &dynamicLengths{}
	if err := llcl(llCounts[:], 15, out.llLengths[:]); err != nil {
		return nil, err
	}
	if err := llcl(dCounts[:], 15, out.dLengths[:]); err != nil {
		return nil, err
	}
	patchDistanceCodes(&out.dLengths)

	extra, size, err := calculateSize(&llCounts, &dCounts, &out.llLengths, &out.dLengths)
	if err != nil {
		return nil, err
	}
	out.extra = extra
	out.size = size

	// Second pass with RLE-friendly counts.
	var llLengths2 [numLL]uint8
	var dLengths2 [numD]uint8
	ll2 := optimizeHuffmanForRle(llCounts[:])
	d2 := optimizeHuffmanForRle(dCounts[:])
	if ll2 == nil && d2 == nil {
		return out, nil
	}
	if ll2 != nil {
		if err := llcl(ll2, 15, llLengths2[:]); err != nil {
			return nil, err
		}
	} else {
		llLengths2 = out.llLengths
	}
	if d2 != nil {
		if err := llcl(d2, 15, dLengths2[:]); err != nil {
			return nil, err
		}
	} else {
		dLengths2 = out.dLengths
	}
	patchDistanceCodes(&dLengths2)

	if llLengths2 == out.llLengths && dLengths2 == out.dLengths {
		return out, nil
	}

	extra2, size2, err := calculateSize(&llCounts, &dCounts, &llLengths2, &dLengths2)
	if err != nil {
		return nil, err
	}
	if size2 < out.size {
		out.extra = extra2
		out.size = size2
		out.llLengths = llLengths2
		out.dLengths = dLengths2
	}
	return out, nil
}

// patchDistanceCodes works around zlib 1.2.1, which chokes on dynamic trees
// with fewer than two non-zero distance codes. The two out-of-spec symbols
// 30 and 31 are ignored.
func patchDistanceCodes(dLengths *[numD]uint8) {
	nonZero := 0
	for i := 0; i < 30; i++ {
		if dLengths[i] != 0 {
			nonZero++
		}
	}
	switch nonZero {
	case 0:
		dLengths[0] = 1
		dLengths[1] = 1
	case 1:
		if dLengths[0] != 0 {
			dLengths[1] = 1
		} else {
			dLengths[0] = 1
		}
	}
}

// calculateSize returns the winning tree combination and the total
// (tree + data) bit size for the given lengths.
func calculateSize(llCounts *[numLL]uint32, dCounts *[numD]uint32, llLengths *[numLL]uint8, dLengths *[numD]uint8) (uint8, uint32, error) {
	extra, treeBits, err := bestTreeSize(llLengths, dLengths)
	if err != nil {
		return 0, 0, err
	}

	var dataBits uint32
	for i := 0; i < numLL-2; i++ {
		dataBits += llCounts[i] * (uint32(llLengths[i]) + uint32(llExtraBits[i]))
	}
	for i := 0; i < numD-2; i++ {
		dataBits += dCounts[i] * (uint32(dLengths[i]) + uint32(distanceBits[i]))
	}

	return extra, treeBits + dataBits, nil
}

// goodForRleFlags marks positions inside runs that already compress well
// under the tree RLE codes: 5+ identical zeros or 7+ identical non-zeros.
func goodForRleFlags(counts []uint32) []bool {
	flags := make([]bool, len(counts))
	for i := 0; i < len(counts); {
		j := i + 1
		for j < len(counts) && counts[j] == counts[i] {
			j++
		}
		stride := j - i
		if (counts[i] == 0 && stride >= 5) || (counts[i] != 0 && stride >= 7) {
			for k := i; k < j; k++ {
				flags[k] = true
			}
		}
		i = j
	}
	return flags
}

// optimizeHuffmanForRle rewrites a histogram so stretches of similar counts
// collapse to their weighted average, making the resulting code lengths
// cheaper to RLE-encode. Returns nil when every count is zero.
func optimizeHuffmanForRle(counts []uint32) []uint32 {
	out := make([]uint32, len(counts))
	copy(out, counts)

	n := len(out)
	for n > 0 && out[n-1] == 0 {
		n--
	}
	if n == 0 {
		return nil
	}
	work := out[:n]
	good := goodForRleFlags(work)

	var stride, sum uint32
	scratch := work[0]
	for i, count := range work {
		if good[i] || absDiff(count, scratch) >= 4 {
			if sum != 0 && stride >= 4 {
				v := (sum + stride/2) / stride
				if v < 1 {
					v = 1
				}
				for k := i - int(stride); k < i; k++ {
					work[k] = v
				}
			}

			stride = 0
			sum = 0

			if i+4 <= len(work) {
				scratch = (work[i] + work[i+1] + work[i+2] + work[i+3] + 2) / 4
			} else {
				scratch = count
			}
		}

		stride++
		sum += count
	}

	if sum != 0 && stride >= 4 {
		v := (sum + stride/2) / stride
		if v < 1 {
			v = 1
		}
		for k := len(work) - int(stride); k < len(work); k++ {
			work[k] = v
		}
	}

	return out
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
