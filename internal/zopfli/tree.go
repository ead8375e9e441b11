package zopfli

import "github.com/deepteams/flaca/internal/bitio"

// Tree serialization: the litlen and distance code lengths are themselves
// Huffman-coded over a 19-symbol alphabet with three repeat codes
// (16: repeat previous 3..6, 17: repeat zero 3..10, 18: repeat zero 11..138).
// All eight combinations of "use 16/17/18" are sized and the cheapest wins.

// treeSymbols concatenates the trimmed litlen and distance lengths into the
// combined sequence the tree codes run over.
func treeSymbols(llLengths *[numLL]uint8, dLengths *[numD]uint8) (all []uint8, hlit, hdist int) {
	hlit = 29
	for hlit > 0 && llLengths[256+hlit] == 0 {
		hlit--
	}
	hdist = 29
	for hdist > 0 && dLengths[hdist] == 0 {
		hdist--
	}

	llEnd := hlit + 257
	all = make([]uint8, 0, llEnd+hdist+1)
	all = append(all, llLengths[:llEnd]...)
	all = append(all, dLengths[:hdist+1]...)
	return all, hlit, hdist
}

type rleToken struct {
	sym   uint8
	extra uint16
}

// runTreeRLE walks the combined symbol sequence under one use-16/17/18
// combination, filling clCounts and, when tokens is non-nil, appending the
// emitted token stream.
func runTreeRLE(all []uint8, extra uint8, clCounts *[19]uint32, tokens *[]rleToken) {
	use16 := extra&1 != 0
	use17 := extra&2 != 0
	use18 := extra&4 != 0

	emit := func(sym uint8, bits uint16) {
		if tokens != nil {
			*tokens = append(*tokens, rleToken{sym, bits})
		}
	}

	for i := 0; i < len(all); i++ {
		count := uint32(1)
		symbol := all[i]

		if use16 || ((use17 || use18) && symbol == 0) {
			for i+1 < len(all) && all[i+1] == symbol {
				count++
				i++
			}
		}

		if symbol == 0 && count >= 3 {
			if use18 {
				for count >= 11 {
					count2 := count
					if count2 > 138 {
						count2 = 138
					}
					emit(18, uint16(count2-11))
					clCounts[18]++
					count -= count2
				}
			}
			if use17 {
				for count >= 3 {
					count2 := count
					if count2 > 10 {
						count2 = 10
					}
					emit(17, uint16(count2-3))
					clCounts[17]++
					count -= count2
				}
			}
		}

		if use16 && count >= 4 {
			// The first occurrence is always coded as itself.
			count--
			emit(symbol, 0)
			clCounts[symbol]++
			for count >= 3 {
				count2 := count
				if count2 > 6 {
					count2 = 6
				}
				emit(16, uint16(count2-3))
				clCounts[16]++
				count -= count2
			}
		}

		for j := uint32(0); j < count; j++ {
			emit(symbol, 0)
		}
		clCounts[symbol] += count
	}
}

// treeSize returns the encoded bit size of the tree under one combination.
func treeSize(all []uint8, extra uint8) (uint32, error) {
	var clCounts [19]uint32
	runTreeRLE(all, extra, &clCounts, nil)

	var clLengths [19]uint8
	if err := llcl(clCounts[:], 7, clLengths[:]); err != nil {
		return 0, err
	}

	hclen := 15
	for hclen > 0 && clCounts[treeOrder[hclen+3]] == 0 {
		hclen--
	}

	size := uint32(hclen+4) * 3
	for i := range clLengths {
		size += uint32(clLengths[i]) * clCounts[i]
	}
	size += clCounts[16] * 2
	size += clCounts[17] * 3
	size += clCounts[18] * 7

	// Plus the 14 bits of hlit/hdist/hclen.
	return 14 + size, nil
}

// bestTreeSize sizes all eight combinations and returns the winner.
func bestTreeSize(llLengths *[numLL]uint8, dLengths *[numD]uint8) (uint8, uint32, error) {
	all, _, _ := treeSymbols(llLengths, dLengths)

	bestExtra := uint8(0)
	bestSize := ^uint32(0)
	for extra := uint8(0); extra < 8; extra++ {
		size, err := treeSize(all, extra)
		if err != nil {
			return 0, 0, err
		}
		if size < bestSize {
			bestExtra = extra
			bestSize = size
		}
	}
	return bestExtra, bestSize, nil
}

// encodeTree emits the tree under the given combination: hlit, hdist, hclen,
// the 3-bit code lengths in permuted order, then the RLE token stream.
func encodeTree(llLengths *[numLL]uint8, dLengths *[numD]uint8, extra uint8, w *bitio.DeflateWriter) error {
	all, hlit, hdist := treeSymbols(llLengths, dLengths)

	var clCounts [19]uint32
	tokens := make([]rleToken, 0, len(all))
	runTreeRLE(all, extra, &clCounts, &tokens)

	var clLengths [19]uint8
	if err := llcl(clCounts[:], 7, clLengths[:]); err != nil {
		return err
	}

	hclen := 15
	for hclen > 0 && clCounts[treeOrder[hclen+3]] == 0 {
		hclen--
	}

	var clSymbols [19]uint32
	llclSymbols(clLengths[:], 7, clSymbols[:])

	w.WriteBits(uint32(hlit), 5)
	w.WriteBits(uint32(hdist), 5)
	w.WriteBits(uint32(hclen), 4)

	for _, o := range treeOrder[:hclen+4] {
		w.WriteBits(uint32(clLengths[o]), 3)
	}

	for _, tok := range tokens {
		w.WriteHuffman(clSymbols[tok.sym], uint32(clLengths[tok.sym]))
		switch tok.sym {
		case 16:
			w.WriteBits(uint32(tok.extra), 2)
		case 17:
			w.WriteBits(uint32(tok.extra), 3)
		case 18:
			w.WriteBits(uint32(tok.extra), 7)
		}
	}

	return nil
}
