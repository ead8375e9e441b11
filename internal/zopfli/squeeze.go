package zopfli

// minCostDistances is the extra-bit width of each distance symbol, used when
// bounding the cheapest possible match cost.
var minCostDistances = [30]uint8{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3,
	4, 4, 5, 5, 6, 6, 7, 7, 8, 8,
	9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

// minimumCost returns the smallest possible cost of any match under the
// given statistics.
func minimumCost(stats *symbolStats) float64 {
	lengthCost := inf64
	for litlen := minMatch; litlen <= maxMatch; litlen++ {
		cost := float64(lengthSymbolBits[litlen]) + stats.llSymbols[lengthSymbols[litlen]]
		if cost < lengthCost {
			lengthCost = cost
		}
	}

	distCost := inf64
	for i, bits := range minCostDistances {
		cost := float64(bits) + stats.dSymbols[i]
		if cost < distCost {
			distCost = cost
		}
	}

	return lengthCost + distCost
}

const inf64 = 1e30

// statCost is the statistical cost model: bits needed to emit a literal
// (dist == 0) or a (length, distance) pair.
func statCost(dist uint16, k int, stats *symbolStats) float64 {
	if dist == 0 {
		return stats.llSymbols[k]
	}
	dsym := distanceSymbols[dist&windowMask]
	return float64(distanceBits[dsym]) +
		stats.dSymbols[dsym] +
		stats.llSymbols[lengthSymbols[k]] +
		float64(lengthSymbolBits[k])
}

// fixedCost is the fixed-tree cost model. The values are small enough for
// byte math: literals cost 8 or 9 bits, matches a 12- or 13-bit base plus
// extra bits.
func fixedCost(dist uint16, k int) float64 {
	if dist == 0 {
		if k > 143 {
			return 9
		}
		return 8
	}
	dsym := distanceSymbols[dist&windowMask]
	cost := uint32(distanceBits[dsym]) + uint32(lengthSymbolBits[k]) + 12
	if k > 114 {
		cost++
	}
	return float64(cost)
}

// getBestLengths is the forward squeeze pass: for every block position it
// records the lowest known cost of reaching each later position, either
// through a literal or through any sublength of the best match found there.
// A nil stats selects the fixed-tree cost model.
//
// Costs are computed in 64 bits, stored in 32, and widened back for
// comparison, matching the original arithmetic exactly.
func (st *State) getBestLengths(arr []byte, instart int, stats *symbolStats, costs []float32, paths []uint16) error {
	end := len(arr)
	if len(costs) != end-instart+1 {
		return errCorrupt
	}

	var minCost, symbolCost float64
	if stats != nil {
		minCost = minimumCost(stats)
		symbolCost = stats.llSymbols[285] + stats.dSymbols[0]
	} else {
		minCost = 8
		symbolCost = 13
	}

	sublen := make([]uint16, sublenLen)

	for pos := instart; pos < end; pos++ {
		st.hash.update(arr, pos)
		j := pos - instart

		// Long-run fast-forward: inside a long same-byte run, every position
		// has a maximal match at distance 1, so jump maxMatch positions in
		// one step.
		if pos > instart+maxMatch+1 &&
			end-pos > maxMatch*2+1 &&
			st.hash.same[pos&windowMask] > maxMatch*2 &&
			st.hash.same[(pos-maxMatch)&windowMask] > maxMatch {
			for k := 0; k < maxMatch; k++ {
				costs[j+maxMatch] = float32(float64(costs[j]) + symbolCost)
				paths[j+maxMatch] = maxMatch
				pos++
				j++
				st.hash.update(arr, pos)
			}
		}

		_, length, err := st.hash.find(arr, pos, maxMatch, sublen, st.lmc, instart)
		if err != nil {
			return err
		}

		costJ := float64(costs[j])

		// Literal step.
		var litCost float64
		if stats != nil {
			litCost = stats.llSymbols[arr[pos]] + costJ
		} else if arr[pos] <= 143 {
			litCost = 8 + costJ
		} else {
			litCost = 9 + costJ
		}
		if litCost < float64(costs[j+1]) {
			costs[j+1] = float32(litCost)
			paths[j+1] = 1
		}

		// Match steps, for every profitable sublength.
		limit := int(length)
		if rem := end - pos; limit > rem {
			limit = rem
		}
		if limit >= minMatch {
			minCostAdd := minCost + costJ
			for k := minMatch; k <= limit; k++ {
				current := float64(costs[j+k])
				if minCostAdd < current {
					var newCost float64
					if stats != nil {
						newCost = costJ + statCost(sublen[k], k, stats)
					} else {
						newCost = costJ + fixedCost(sublen[k], k)
					}
					if newCost < current {
						costs[j+k] = float32(newCost)
						paths[j+k] = uint16(k)
					}
				}
			}
		}
	}

	return nil
}

// followPaths replays the squeeze result in forward order, rebuilding the
// LZ77 stream into store and re-running the finder at each match position to
// recover the distance.
func (st *State) followPaths(arr []byte, instart int, paths []uint16, store *lz77Store) error {
	windowStart := 0
	if instart > windowSize {
		windowStart = instart - windowSize
	}
	st.hash.reset(arr, windowStart, instart)

	pos := instart
	for _, length := range paths {
		if pos >= len(arr) {
			return errCorrupt
		}
		st.hash.update(arr, pos)

		if length >= minMatch {
			dist, testLength, err := st.hash.find(arr, pos, length, nil, st.lmc, instart)
			if err != nil {
				return err
			}
			if testLength != length && testLength >= minMatch {
				return errCorrupt
			}

			store.push(length, dist, pos)

			for i := 1; i < int(length); i++ {
				st.hash.update(arr, pos+i)
			}
			pos += int(length)
		} else {
			store.push(uint16(arr[pos]), 0, pos)
			pos++
		}
	}

	return nil
}

// optimalRun performs one forward/backward squeeze pass under the given
// statistics, leaving the resulting stream in store.
func (st *State) optimalRun(arr []byte, instart int, stats *symbolStats, store *lz77Store) error {
	store.clear()
	costs := st.squeeze.resetCosts()
	if len(costs) == 0 {
		return nil
	}

	windowStart := 0
	if instart > windowSize {
		windowStart = instart - windowSize
	}
	st.hash.reset(arr, windowStart, instart)

	paths := st.squeeze.paths[:st.squeeze.size+1]
	if err := st.getBestLengths(arr, instart, stats, costs, paths); err != nil {
		return err
	}
	trace, err := st.squeeze.tracePaths()
	if err != nil {
		return err
	}
	if len(trace) == 0 {
		return nil
	}
	return st.followPaths(arr, instart, trace, store)
}

// optimalRunFixed is optimalRun under the fixed-tree cost model.
func (st *State) optimalRunFixed(arr []byte, instart int, store *lz77Store) error {
	return st.optimalRun(arr, instart, nil, store)
}
