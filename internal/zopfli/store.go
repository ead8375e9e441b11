package zopfli

// lz77Entry is one literal or back-reference in an LZ77 stream. A literal
// has dist == 0 and litlen < 256; a match has 3 <= litlen <= 258 and
// 1 <= dist <= 32768. The symbol fields cache the DEFLATE codes so histogram
// and emission passes never recompute them.
type lz77Entry struct {
	litlen uint16
	dist   uint16
	llSym  uint16
	dSym   uint16
}

// length returns the number of source bytes the entry covers.
func (e lz77Entry) length() int {
	if e.dist == 0 {
		return 1
	}
	return int(e.litlen)
}

// lz77Store is an append-only LZ77 stream plus cumulative histograms that
// answer range-histogram queries in O(alphabet) time. The histograms are
// bucketed every numLL (litlen) and numD (distance) entries: each bucket
// holds the running totals through the last entry written inside it, so any
// range can be reconstructed by bucket copy and suffix subtraction.
type lz77Store struct {
	entries []lz77Entry
	pos     []int // source byte position of each entry

	llCounts []uint32 // cumulative, in buckets of numLL
	dCounts  []uint32 // cumulative, in buckets of numD
}

func (s *lz77Store) size() int { return len(s.entries) }

func (s *lz77Store) clear() {
	s.entries = s.entries[:0]
	s.pos = s.pos[:0]
	s.llCounts = s.llCounts[:0]
	s.dCounts = s.dCounts[:0]
}

// push appends one literal or match recorded at source position pos.
func (s *lz77Store) push(litlen, dist uint16, pos int) {
	var llSym, dSym uint16
	if dist == 0 {
		llSym = litlen
	} else {
		llSym = lengthSymbols[litlen]
		dSym = distanceSymbols[dist&windowMask]
	}

	i := len(s.entries)
	if i%numLL == 0 {
		// Seed a fresh litlen bucket with the previous bucket's totals.
		if i == 0 {
			s.llCounts = append(s.llCounts, make([]uint32, numLL)...)
		} else {
			s.llCounts = append(s.llCounts, s.llCounts[len(s.llCounts)-numLL:]...)
		}
	}
	if i%numD == 0 {
		if i == 0 {
			s.dCounts = append(s.dCounts, make([]uint32, numD)...)
		} else {
			s.dCounts = append(s.dCounts, s.dCounts[len(s.dCounts)-numD:]...)
		}
	}

	llStart := numLL * (i / numLL)
	dStart := numD * (i / numD)
	s.llCounts[llStart+int(llSym)]++
	if dist != 0 {
		s.dCounts[dStart+int(dSym)]++
	}

	s.entries = append(s.entries, lz77Entry{litlen, dist, llSym, dSym})
	s.pos = append(s.pos, pos)
}

// replace makes s a copy of other.
func (s *lz77Store) replace(other *lz77Store) {
	s.entries = append(s.entries[:0], other.entries...)
	s.pos = append(s.pos[:0], other.pos...)
	s.llCounts = append(s.llCounts[:0], other.llCounts...)
	s.dCounts = append(s.dCounts[:0], other.dCounts...)
}

// stealFrom moves every entry of other onto the end of s, leaving other
// empty.
func (s *lz77Store) stealFrom(other *lz77Store) {
	for i, e := range other.entries {
		s.push(e.litlen, e.dist, other.pos[i])
	}
	other.clear()
}

// byteRange maps an entry range [lstart, lend) to the source byte range it
// covers.
func (s *lz77Store) byteRange(lstart, lend int) (start, end int, err error) {
	if lstart > lend || lend > len(s.entries) {
		return 0, 0, errCorrupt
	}
	if lstart == lend {
		if lend == 0 {
			return 0, 0, nil
		}
		last := lend - 1
		p := s.pos[last] + s.entries[last].length()
		return p, p, nil
	}
	last := lend - 1
	return s.pos[lstart], s.pos[last] + s.entries[last].length(), nil
}

// histogramAt reconstructs the cumulative histograms through entry pos
// (inclusive) from the bucket containing it.
func (s *lz77Store) histogramAt(pos int, ll *[numLL]uint32, d *[numD]uint32) {
	llPos := numLL * (pos / numLL)
	dPos := numD * (pos / numD)

	copy(ll[:], s.llCounts[llPos:llPos+numLL])
	copy(d[:], s.dCounts[dPos:dPos+numD])

	// Subtract entries written after pos within the same bucket.
	for i := pos + 1; i < len(s.entries) && i < llPos+numLL; i++ {
		ll[s.entries[i].llSym]--
	}
	for i := pos + 1; i < len(s.entries) && i < dPos+numD; i++ {
		if s.entries[i].dist != 0 {
			d[s.entries[i].dSym]--
		}
	}
}

// histogram returns symbol counts for the entry range [lstart, lend).
func (s *lz77Store) histogram(lstart, lend int) (ll [numLL]uint32, d [numD]uint32) {
	if lstart+numLL*3 > lend {
		// Small range: count directly.
		for i := lstart; i < lend; i++ {
			ll[s.entries[i].llSym]++
			if s.entries[i].dist != 0 {
				d[s.entries[i].dSym]++
			}
		}
		return ll, d
	}

	s.histogramAt(lend-1, &ll, &d)
	if lstart > 0 {
		var ll2 [numLL]uint32
		var d2 [numD]uint32
		s.histogramAt(lstart-1, &ll2, &d2)
		for i := range ll {
			ll[i] -= ll2[i]
		}
		for i := range d {
			d[i] -= d2[i]
		}
	}
	return ll, d
}
