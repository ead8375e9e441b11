package zopfli

const (
	hashShift = 5
	hashMask  = 32767
)

// hashChain records, for every window position, the most recent position
// seen for each 15-bit hash value plus a link to the previous position with
// the same hash. Entries are int16 with the sign bit doubling as an "unset"
// flag.
type hashChain struct {
	head   [windowSize]int16 // hash value -> most recent position
	hashAt [windowSize]int16 // position -> hash value
	prev   [windowSize]int16 // position -> previous position, same hash
	val    int16             // current rolling hash
}

func (c *hashChain) reset() {
	for i := range c.head {
		c.head[i] = -1
		c.hashAt[i] = -1
		c.prev[i] = -1
	}
	c.val = 0
}

// record links pos into the chain under the current hash value.
func (c *hashChain) record(pos int) {
	hpos := pos & windowMask
	hval := c.val
	if hval < 0 {
		hval = 0
	}

	c.hashAt[hpos] = hval

	head := c.head[hval]
	if head >= 0 && c.hashAt[head] == hval {
		c.prev[hpos] = head
	} else {
		c.prev[hpos] = int16(hpos)
	}
	c.head[hval] = int16(hpos)
}

// zopfliHash is the full match-finder state: a primary rolling-hash chain, a
// secondary chain keyed on run lengths, and the per-position same-byte run
// counts that drive it.
type zopfliHash struct {
	chain1 hashChain
	chain2 hashChain

	// same counts how many following bytes equal the byte at each window
	// position, clamped to 65535.
	same [windowSize]uint16
}

// reset clears both chains, warms the rolling hash with the first byte or
// two at the window start, and replays every byte between the window start
// and the block start so back-references into the prelude resolve.
func (h *zopfliHash) reset(arr []byte, windowStart, blockStart int) {
	h.chain1.reset()
	h.chain2.reset()
	clear(h.same[:])

	h.updateVal(arr[windowStart])
	if windowStart+1 < len(arr) {
		h.updateVal(arr[windowStart+1])
	}

	for pos := windowStart; pos < blockStart; pos++ {
		h.update(arr, pos)
	}
}

// updateVal cycles the primary rolling hash by one byte.
func (h *zopfliHash) updateVal(b byte) {
	h.chain1.val = (h.chain1.val<<hashShift ^ int16(b)) & hashMask
}

// update advances both chains by one byte at pos.
func (h *zopfliHash) update(arr []byte, pos int) {
	hpos := pos & windowMask

	// Cycle the primary hash with the byte two ahead, if any.
	var next byte
	if pos+minMatch-1 < len(arr) {
		next = arr[pos+minMatch-1]
	}
	h.updateVal(next)
	h.chain1.record(pos)

	// Count same-byte repetitions, seeded from the previous position.
	cur := arr[pos]
	amount := h.same[(pos-1)&windowMask]
	if amount > 0 {
		amount--
	}
	remaining := len(arr) - pos
	for amount < 65535 && int(amount)+1 < remaining && cur == arr[pos+int(amount)+1] {
		amount++
	}
	h.same[hpos] = amount

	// The secondary hash mixes the run length into the primary value.
	h.chain2.val = int16((amount-minMatch)&255) ^ h.chain1.val
	h.chain2.record(pos)
}

// findLoop walks the hash chains for the longest match at pos, up to limit
// bytes. It fills sublen (when non-nil) with the shortest distance achieving
// each length, and returns (0, 1) when nothing matchable turns up.
func (h *zopfliHash) findLoop(arr []byte, pos int, limit uint16, sublen []uint16) (uint16, uint16) {
	right := arr[pos:]
	hpos := pos & windowMask

	bestDist := 0
	bestLength := uint16(1)

	switched := false
	chain := &h.chain1

	pp := hpos
	p := hpos
	if chain.prev[hpos] >= 0 {
		p = int(chain.prev[hpos])
	}

	dist := pppDistance(p, pp)
	hits := 0
	same0 := h.same[hpos]
	same1 := same0
	if uint16(limit) < same1 {
		same1 = limit
	}

	for p < windowSize && dist < windowSize && hits < maxChainHits {
		if dist != 0 && dist <= pos {
			left := arr[pos-dist:]

			// Cheap reject: a longer match must agree at bestLength first.
			if int(bestLength) >= len(right) || right[bestLength] == left[bestLength] {
				// Run-length fast-forward over known repetitions.
				var currentLength uint16
				if same0 > 2 && right[0] == left[0] {
					currentLength = same1
					if s := h.same[(pos-dist)&windowMask]; s < currentLength {
						currentLength = s
					}
				}

				for currentLength < limit &&
					int(currentLength) < len(right) &&
					left[currentLength] == right[currentLength] {
					currentLength++
				}

				if currentLength > bestLength {
					if sublen != nil {
						for k := bestLength + 1; k <= currentLength; k++ {
							sublen[k] = uint16(dist)
						}
					}
					bestDist = dist
					bestLength = currentLength
					if currentLength >= limit {
						break
					}
				}
			}
		}

		// Switch to the run-length chain once it looks more promising.
		if !switched && same0 <= bestLength && h.chain2.hashAt[p] == h.chain2.val {
			switched = true
			chain = &h.chain2
		}

		if chain.prev[p] < 0 {
			break
		}
		pp = p
		p = int(chain.prev[p])
		dist += pppDistance(p, pp)
		hits++
	}

	if bestLength <= limit {
		return uint16(bestDist), bestLength
	}
	return 0, 1
}

// pppDistance is the window-relative distance between two chain positions.
func pppDistance(p, pp int) int {
	if p < pp {
		return pp - p
	}
	return windowSize + pp - p
}

// find returns the longest match at pos, consulting and feeding the
// longest-match cache when blockStart >= 0. Lengths never exceed limit nor
// the remaining block, but may fall below minMatch near the block end.
func (h *zopfliHash) find(arr []byte, pos int, limit uint16, sublen []uint16, lmc *matchCache, blockStart int) (dist, length uint16, err error) {
	remaining := len(arr) - pos

	if blockStart >= 0 {
		l, d, done, err := lmc.find(pos-blockStart, &limit, sublen)
		if err != nil {
			return 0, 0, err
		}
		if done {
			if int(l) > remaining {
				return 0, 0, errCorrupt
			}
			return d, l, nil
		}
	}

	if remaining < minMatch {
		return 0, 0, nil
	}
	if int(limit) > remaining {
		limit = uint16(remaining)
	}

	bestDist, bestLength := h.findLoop(arr, pos, limit, sublen)

	if limit == maxMatch && blockStart >= 0 && sublen != nil {
		if err := lmc.setSublen(pos-blockStart, sublen, bestDist, bestLength); err != nil {
			return 0, 0, err
		}
	}

	if int(bestLength) > remaining {
		return 0, 0, errCorrupt
	}
	return bestDist, bestLength, nil
}

// lengthScore downgrades long-distance matches by one so ties break toward
// nearby runs.
func lengthScore(length, dist uint16) uint16 {
	if dist > 1024 && length > 0 {
		return length - 1
	}
	return length
}

// greedy runs a single LZ77 pass over [instart, len(arr)) with lazy
// matching, appending the result to store. cacheStart enables the
// longest-match cache relative to that block start; pass -1 to disable.
func (st *State) greedy(arr []byte, instart int, store *lz77Store, cacheStart int) error {
	store.clear()

	windowStart := instart
	if windowStart > windowSize {
		windowStart = instart - windowSize
	} else {
		windowStart = 0
	}
	st.hash.reset(arr, windowStart, instart)

	sublen := make([]uint16, sublenLen)
	var prevLength, prevDist uint16
	matchAvailable := false
	var prevValue byte

	for pos := instart; pos < len(arr); pos++ {
		st.hash.update(arr, pos)
		prevPrevValue := prevValue
		prevValue = arr[pos]

		dist, length, err := st.hash.find(arr, pos, maxMatch, sublen, st.lmc, cacheStart)
		if err != nil {
			return err
		}

		score := lengthScore(length, dist)
		prevScore := lengthScore(prevLength, prevDist)
		if matchAvailable {
			matchAvailable = false

			if score > prevScore+1 {
				store.push(uint16(prevPrevValue), 0, pos-1)
				if score >= minMatch && length < maxMatch {
					matchAvailable = true
					prevLength = length
					prevDist = dist
					continue
				}
			} else {
				// The previous match wins.
				length = prevLength
				dist = prevDist
				store.push(length, dist, pos-1)

				for i := 0; i < int(length)-2 && pos+1 < len(arr); i++ {
					pos++
					st.hash.update(arr, pos)
				}
				continue
			}
		} else if score >= minMatch && length < maxMatch {
			matchAvailable = true
			prevLength = length
			prevDist = dist
			continue
		}

		if score >= minMatch {
			store.push(length, dist, pos)
		} else {
			length = 1
			store.push(uint16(arr[pos]), 0, pos)
		}

		for i := 0; i < int(length)-1 && pos+1 < len(arr); i++ {
			pos++
			st.hash.update(arr, pos)
		}
	}

	return nil
}
