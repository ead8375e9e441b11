package zopfli

import "github.com/deepteams/flaca/internal/bitio"

const (
	blockTypeFixed   = 1
	blockTypeDynamic = 2

	// minSplitDistance is the smallest LZ77 range worth splitting further.
	minSplitDistance = 10

	// maxSplitPoints caps the interior split points per master block.
	maxSplitPoints = 14
)

// costMax is the unbeatable-cost sentinel used by the split search.
const costMax = ^uint32(0)

// deflatePart compresses one master block. arr extends from the start of
// the input through the end of the block so back-references can reach the
// sliding-window prefix before instart; output covers [instart, len(arr))
// only.
func deflatePart(st *State, numIterations int, lastBlock bool, arr []byte, instart int, w *bitio.DeflateWriter) error {
	var store, scratch lz77Store

	best, bestLen, err := splitPoints(numIterations, arr, instart, &store, &scratch, st)
	if err != nil {
		return err
	}

	storeLen := best[bestLen+1]
	for i := 0; i <= bestLen; i++ {
		last := lastBlock && best[i+1] == storeLen
		if err := addLZ77Block(last, &store, &scratch, st, arr, best[i], best[i+1], w); err != nil {
			return err
		}
	}

	return nil
}

// addLZ77Block sizes all three block types for the store range
// [lstart, lend) and writes the cheapest to the output.
func addLZ77Block(lastBlock bool, store, fixedStore *lz77Store, st *State, arr []byte, lstart, lend int, w *bitio.DeflateWriter) error {
	// An empty range becomes an empty fixed block: header plus the 7-bit
	// end-of-block code.
	if lstart >= lend {
		if lastBlock {
			w.WriteBits(1, 1)
		} else {
			w.WriteBits(0, 1)
		}
		w.WriteBits(1, 2)
		w.WriteBits(0, 7)
		return nil
	}

	uncompressedCost, err := blockSizeUncompressed(store, lstart, lend)
	if err != nil {
		return err
	}
	dyn, err := newDynamicLengths(store, lstart, lend)
	if err != nil {
		return err
	}

	// Small blocks, and blocks whose unoptimized fixed size is within 10% of
	// dynamic, earn a dedicated fixed-tree squeeze pass over the raw bytes.
	if lend-lstart <= 1000 || satMul(blockSizeFixed(store, lstart, lend), 10) <= satMul(dyn.size, 11) {
		bstart, bend, err := store.byteRange(lstart, lend)
		if err != nil {
			return err
		}
		st.initCaches(bend - bstart)

		if bend > len(arr) {
			return errCorrupt
		}
		if err := st.optimalRunFixed(arr[:bend], bstart, fixedStore); err != nil {
			return err
		}

		fixedSize := blockSizeFixed(fixedStore, 0, fixedStore.size())
		if fixedSize < dyn.size && fixedSize <= uncompressedCost {
			return addFixedBlock(lastBlock, fixedStore, 0, fixedStore.size(), w)
		}
	}

	if dyn.size <= uncompressedCost {
		return addDynamicBlock(lastBlock, store, lstart, lend, w, dyn)
	}

	bstart, bend, err := store.byteRange(lstart, lend)
	if err != nil {
		return err
	}
	addUncompressedBlock(lastBlock, arr[bstart:bend], w)
	return nil
}

func writeBlockHeader(lastBlock bool, blockType uint8, w *bitio.DeflateWriter) {
	if lastBlock {
		w.WriteBit(1)
	} else {
		w.WriteBit(0)
	}
	w.WriteBit(blockType & 1)
	w.WriteBit(blockType >> 1)
}

func addDynamicBlock(lastBlock bool, store *lz77Store, lstart, lend int, w *bitio.DeflateWriter, dyn *dynamicLengths) error {
	writeBlockHeader(lastBlock, blockTypeDynamic, w)

	if err := encodeTree(&dyn.llLengths, &dyn.dLengths, dyn.extra, w); err != nil {
		return err
	}

	var llSymbols [numLL]uint32
	var dSymbols [numD]uint32
	llclSymbols(dyn.llLengths[:], 15, llSymbols[:])
	llclSymbols(dyn.dLengths[:], 15, dSymbols[:])

	if err := addLZ77Data(store, lstart, lend, &llSymbols, &dyn.llLengths, &dSymbols, &dyn.dLengths, w); err != nil {
		return err
	}

	w.WriteHuffman(llSymbols[256], uint32(dyn.llLengths[256]))
	return nil
}

func addFixedBlock(lastBlock bool, store *lz77Store, lstart, lend int, w *bitio.DeflateWriter) error {
	writeBlockHeader(lastBlock, blockTypeFixed, w)

	if err := addLZ77Data(store, lstart, lend, &fixedSymbolsLL, &fixedTreeLL, &fixedSymbolsD, &fixedTreeD, w); err != nil {
		return err
	}

	w.WriteHuffman(fixedSymbolsLL[256], uint32(fixedTreeLL[256]))
	return nil
}

// addLZ77Data emits every entry of the range as Huffman symbols plus extra
// bits, excluding the end-of-block code.
func addLZ77Data(store *lz77Store, lstart, lend int, llSymbols *[numLL]uint32, llLengths *[numLL]uint8, dSymbols *[numD]uint32, dLengths *[numD]uint8, w *bitio.DeflateWriter) error {
	if lend > len(store.entries) {
		return errCorrupt
	}
	for _, e := range store.entries[lstart:lend] {
		if llLengths[e.llSym] == 0 {
			return errCorrupt
		}
		w.WriteHuffman(llSymbols[e.llSym], uint32(llLengths[e.llSym]))

		if e.dist > 0 {
			w.WriteBits(uint32(lengthSymbolBitValues[e.litlen]), uint32(lengthSymbolBits[e.litlen]))

			if dLengths[e.dSym] == 0 {
				return errCorrupt
			}
			w.WriteHuffman(dSymbols[e.dSym], uint32(dLengths[e.dSym]))
			w.WriteBits(uint32(distanceValues[e.dist&windowMask]), uint32(distanceBits[e.dSym]))
		} else if e.litlen >= 256 {
			return errCorrupt
		}
	}
	return nil
}

// addUncompressedBlock writes the range as stored blocks, splitting at the
// 65535-byte LEN ceiling.
func addUncompressedBlock(lastBlock bool, data []byte, w *bitio.DeflateWriter) {
	nChunks := (len(data) + 65534) / 65535
	if nChunks == 0 {
		nChunks = 1
	}
	for i := 0; i < nChunks; i++ {
		chunk := data[i*65535:]
		if len(chunk) > 65535 {
			chunk = chunk[:65535]
		}
		writeBlockHeader(lastBlock && i == nChunks-1, 0, w)
		w.AlignByte()

		n := uint16(len(chunk))
		w.WriteRawByte(byte(n))
		w.WriteRawByte(byte(n >> 8))
		w.WriteRawByte(byte(^n))
		w.WriteRawByte(byte(^n >> 8))
		w.WriteBytes(chunk)
	}
}

func satMul(a uint32, b uint32) uint32 {
	v := uint64(a) * uint64(b)
	if v > uint64(costMax) {
		return costMax
	}
	return uint32(v)
}

func satAdd(a, b uint32) uint32 {
	v := uint64(a) + uint64(b)
	if v > uint64(costMax) {
		return costMax
	}
	return uint32(v)
}

// blockSizeUncompressed is the stored-block cost: 40 header bits per
// 65535-byte chunk plus eight bits per byte.
func blockSizeUncompressed(store *lz77Store, lstart, lend int) (uint32, error) {
	bstart, bend, err := store.byteRange(lstart, lend)
	if err != nil {
		return 0, err
	}
	blockSize := uint32(bend - bstart)
	blocks := (blockSize + 65534) / 65535
	return blocks*40 + blockSize*8, nil
}

// blockSizeFixed sums the fixed-tree code and extra-bit widths over the
// range, plus the end-of-block code.
func blockSizeFixed(store *lz77Store, lstart, lend int) uint32 {
	var size uint32
	if lstart < lend && lend <= len(store.entries) {
		for _, e := range store.entries[lstart:lend] {
			size += uint32(fixedTreeLL[e.llSym])
			if e.dist > 0 {
				size += uint32(lengthSymbolBits[e.litlen])
				size += uint32(distanceBits[e.dSym])
				size += uint32(fixedTreeD[e.dSym])
			}
		}
	}
	size += uint32(fixedTreeLL[256])
	if size == 0 {
		return costMax
	}
	return size
}

func blockSizeDynamic(store *lz77Store, lstart, lend int) (uint32, error) {
	dyn, err := newDynamicLengths(store, lstart, lend)
	if err != nil {
		return 0, err
	}
	return dyn.size, nil
}

// blockSizeAutoType is the cost of the cheapest viable block type for the
// range. Large blocks skip the fixed-tree estimate; it never wins there.
func blockSizeAutoType(store *lz77Store, lstart, lend int) (uint32, error) {
	uncompressedCost, err := blockSizeUncompressed(store, lstart, lend)
	if err != nil {
		return 0, err
	}

	fixedSize := uncompressedCost
	if lend-lstart <= 1000 {
		fixedSize = blockSizeFixed(store, lstart, lend)
	}

	dynamicCost, err := blockSizeDynamic(store, lstart, lend)
	if err != nil {
		return 0, err
	}

	if uncompressedCost < fixedSize && uncompressedCost < dynamicCost {
		return uncompressedCost, nil
	}
	if fixedSize < dynamicCost {
		return fixedSize, nil
	}
	return dynamicCost, nil
}

// splitCost is the combined cost of cutting [start, end) at mid.
func splitCost(store *lz77Store, start, mid, end int) (uint32, error) {
	a, err := blockSizeAutoType(store, start, mid)
	if err != nil {
		return 0, err
	}
	b, err := blockSizeAutoType(store, mid, end)
	if err != nil {
		return 0, err
	}
	return satAdd(a, b), nil
}

// findMinimumCost locates the cheapest interior split of [start, end).
// Small ranges are scanned linearly; larger ones use a nine-probe bisection
// that narrows around the best probe until the window shrinks below ten
// entries or the cost stops improving.
func findMinimumCost(store *lz77Store, start, end int) (int, uint32, error) {
	splitStart := start - 1
	splitEnd := end

	bestCost := costMax
	bestIdx := start

	if end-start < 1024 {
		for i := start; i < end; i++ {
			cost, err := splitCost(store, splitStart, i, splitEnd)
			if err != nil {
				return 0, 0, err
			}
			if cost < bestCost {
				bestCost = cost
				bestIdx = i
			}
		}
		return bestIdx, bestCost, nil
	}

	var p [minSplitDistance - 1]int
	lastBestCost := costMax
	for end-start >= minSplitDistance {
		bestPIdx := 0
		for i := range p {
			p[i] = start + (i+1)*((end-start)/minSplitDistance)
			var lineCost uint32
			if bestIdx == p[i] {
				lineCost = lastBestCost
			} else {
				var err error
				lineCost, err = splitCost(store, splitStart, p[i], splitEnd)
				if err != nil {
					return 0, 0, err
				}
			}
			if i == 0 || lineCost < bestCost {
				bestCost = lineCost
				bestPIdx = i
			}
		}

		if lastBestCost < bestCost {
			break
		}

		bestIdx = p[bestPIdx]
		if bestPIdx > 0 {
			start = p[bestPIdx-1]
		}
		if bestPIdx+1 < len(p) {
			end = p[bestPIdx+1]
		}

		lastBestCost = bestCost
	}

	return bestIdx, lastBestCost, nil
}

// lz77Optimal is the iterated squeeze: seed with a greedy pass, then repeat
// optimal runs under evolving statistics, keeping the cheapest result in
// store and perturbing the stats when progress stalls.
func lz77Optimal(arr []byte, instart, numIterations int, store, scratch *lz77Store, st *State) error {
	if instart >= len(arr) || numIterations < 1 {
		return nil
	}

	st.initCaches(len(arr) - instart)

	if err := st.greedy(arr, instart, scratch, instart); err != nil {
		return err
	}

	ran := newRanState()
	var bestStats, currentStats symbolStats
	currentStats.loadStore(scratch)

	lastCost := uint32(0)
	bestCost := costMax

	lastRan := -1
	for i := 0; i < numIterations; i++ {
		currentStats.crunch()

		if err := st.optimalRun(arr, instart, &currentStats, scratch); err != nil {
			return err
		}

		currentCost, err := blockSizeDynamic(scratch, 0, scratch.size())
		if err != nil {
			return err
		}

		if currentCost < bestCost {
			store.replace(scratch)
			bestStats = currentStats
			bestCost = currentCost
		}

		currentStats.reloadStore(scratch, lastRan != -1)

		if i > 5 && currentCost == lastCost {
			currentStats = bestStats
			currentStats.randomize(&ran)
			lastRan = i
		}

		lastCost = currentCost
	}

	return nil
}

// splitPoints computes the best block split for one master block. The raw
// pass splits on byte positions via a greedy store; when it produced at
// least two points, a second pass re-splits the accumulated optimal store in
// LZ77 space and the cheaper plan wins. The returned array is
// [0, p1, ..., pn, storeLen] in store-entry coordinates; the returned count
// excludes the two boundary entries.
func splitPoints(numIterations int, arr []byte, instart int, store, scratch *lz77Store, st *State) ([16]int, int, error) {
	var splitA, splitB [16]int

	rawLen, err := splitPointsRaw(arr, instart, scratch, st, &splitA, &splitB)
	if err != nil {
		return splitA, 0, err
	}
	scratch.clear()

	// Cost out the raw split, collecting the optimal stores as we go.
	var cost1 uint32
	var store3 lz77Store
	for i := 0; i <= rawLen; i++ {
		start := instart
		if i > 0 {
			start = splitA[i-1]
		}
		end := len(arr)
		if i < rawLen {
			end = splitA[i]
		}

		if start > end || end > len(arr) {
			return splitA, 0, errCorrupt
		}
		if err := lz77Optimal(arr[:end], start, numIterations, scratch, &store3, st); err != nil {
			return splitA, 0, err
		}
		c, err := blockSizeAutoType(scratch, 0, scratch.size())
		if err != nil {
			return splitA, 0, err
		}
		cost1 += c

		store.stealFrom(scratch)
		splitB[i] = store.size()
	}

	// With two or more points, re-split in LZ77 space and compare.
	if rawLen > 1 {
		twoLen, err := splitPointsLZ77(st, store, &splitA)
		if err != nil {
			return splitA, 0, err
		}
		splitA[twoLen] = store.size()
		rotateRight(&splitA)

		var cost2 uint32
		for i := 0; i <= twoLen; i++ {
			c, err := blockSizeAutoType(store, splitA[i], splitA[i+1])
			if err != nil {
				return splitA, 0, err
			}
			cost2 += c
		}

		if cost2 < cost1 {
			return splitA, twoLen, nil
		}
	}

	rotateRight(&splitB)
	return splitB, rawLen, nil
}

// rotateRight shifts the points up one slot so index zero holds the
// implicit start boundary. The final slot is never written, so it arrives
// as zero.
func rotateRight(points *[16]int) {
	last := points[len(points)-1]
	copy(points[1:], points[:len(points)-1])
	points[0] = last
}

// splitPointsRaw finds split points on the uncompressed bytes: a greedy
// LZ77 pass over the whole block, an LZ77-space split of that store, then a
// mapping of the chosen entry indices back to byte positions.
func splitPointsRaw(arr []byte, instart int, store *lz77Store, st *State, splitA, splitB *[16]int) (int, error) {
	if err := st.greedy(arr, instart, store, -1); err != nil {
		return 0, err
	}

	n, err := splitPointsLZ77(st, store, splitB)
	if err != nil || n == 0 {
		return n, err
	}

	pos := instart
	j := 0
	for i := 0; i <= splitB[n-1] && i < store.size(); i++ {
		if i == splitB[j] {
			splitA[j] = pos
			j++
			if j == n {
				return n, nil
			}
		}
		pos += store.entries[i].length()
	}

	return 0, errCorrupt
}

// splitPointsLZ77 greedily splits a store by repeatedly cutting the largest
// unfinished region at its cost-minimum point, up to maxSplitPoints cuts.
func splitPointsLZ77(st *State, store *lz77Store, splitB *[16]int) (int, error) {
	if store.size() < minSplitDistance {
		return 0, nil
	}

	start, end := 0, store.size()
	done := st.split
	done.init(end)

	last := 0
	n := 0
	for {
		llpos, llcost, err := findMinimumCost(store, start+1, end)
		if err != nil {
			return 0, err
		}
		if llpos <= start || llpos >= end {
			return 0, errCorrupt
		}

		whole, err := blockSizeAutoType(store, start, end)
		if err != nil {
			return 0, err
		}
		if llpos == start+1 || whole < llcost {
			done.set(start)
		} else {
			splitB[n] = llpos
			n++

			if last > llpos {
				sortInts(splitB[:n])
			} else {
				last = llpos
			}

			if n == maxSplitPoints {
				break
			}
		}

		if !findLargestSplittable(store.size(), done, splitB[:n], &start, &end) {
			break
		}
	}

	return n, nil
}

// findLargestSplittable picks the biggest not-yet-done region between
// existing split points, requiring at least minSplitDistance entries.
func findLargestSplittable(lz77Size int, done *splitCache, points []int, start, end *int) bool {
	best := 0
	for i := 0; i <= len(points); i++ {
		s := 0
		if i > 0 {
			s = points[i-1]
		}
		e := lz77Size - 1
		if i < len(points) {
			e = points[i]
		}

		if best < e-s && done.isUnset(s) {
			*start = s
			*end = e
			best = e - s
		}
	}
	return best >= minSplitDistance
}

func sortInts(v []int) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j] < v[j-1]; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
}
