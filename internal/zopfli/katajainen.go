package zopfli

import (
	"sort"
	"sync"
)

// The boundary package-merge needs a few thousand transient nodes per call.
// Node tails are arena indices rather than pointers, so the whole working
// set lives in one reusable allocation.

type katNode struct {
	weight uint32
	count  uint32
	tail   int32 // arena index, -1 for none
}

type katLeaf struct {
	freq uint32
	sym  int
}

type katList struct {
	lookahead0 int32
	lookahead1 int32
}

// katMaxNodes is the theoretical node ceiling for one length-limiting pass.
const katMaxNodes = (2*numLL - 2) * 15

type katScratch struct {
	nodes  []katNode
	leaves []katLeaf
	lists  [15]katList
}

var katPool = sync.Pool{
	New: func() any {
		return &katScratch{
			nodes:  make([]katNode, 0, katMaxNodes),
			leaves: make([]katLeaf, 0, numLL),
		}
	},
}

func (k *katScratch) push(n katNode) (int32, error) {
	if len(k.nodes) >= katMaxNodes {
		return 0, errCorrupt
	}
	k.nodes = append(k.nodes, n)
	return int32(len(k.nodes) - 1), nil
}

// llcl computes length-limited code lengths for the given symbol
// frequencies using the boundary package-merge algorithm. lengths must have
// the same size as freqs; entries for zero-frequency symbols stay zero.
func llcl(freqs []uint32, maxbits int, lengths []uint8) error {
	clear(lengths)

	k := katPool.Get().(*katScratch)
	defer katPool.Put(k)

	// Collect and sort the non-zero frequencies.
	k.leaves = k.leaves[:0]
	for sym, f := range freqs {
		if f != 0 {
			k.leaves = append(k.leaves, katLeaf{freq: f, sym: sym})
		}
	}
	leaves := k.leaves
	sort.SliceStable(leaves, func(i, j int) bool { return leaves[i].freq < leaves[j].freq })

	if len(leaves) <= 2 {
		for _, leaf := range leaves {
			lengths[leaf.sym] = 1
		}
		return nil
	}

	// Seed every list with the two smallest leaves.
	k.nodes = k.nodes[:0]
	n0, _ := k.push(katNode{weight: leaves[0].freq, count: 1, tail: -1})
	n1, _ := k.push(katNode{weight: leaves[1].freq, count: 2, tail: -1})

	numLists := maxbits
	if len(leaves)-1 < numLists {
		numLists = len(leaves) - 1
	}
	lists := k.lists[:numLists]
	for i := range lists {
		lists[i] = katList{lookahead0: n0, lookahead1: n1}
	}

	// 2n-5 boundary steps create the remaining active chains.
	for i := 0; i < 2*len(leaves)-5; i++ {
		if err := k.boundaryPM(leaves, lists, numLists-1); err != nil {
			return err
		}
	}

	// The final chain either takes one more leaf or fuses the previous
	// list's lookaheads.
	listY := lists[numLists-2]
	listZ := lists[numLists-1]
	lastCount := k.nodes[listZ.lookahead1].count
	weightSum := k.nodes[listY.lookahead0].weight + k.nodes[listY.lookahead1].weight

	var final katNode
	if int(lastCount) < len(leaves) && leaves[lastCount].freq < weightSum {
		final = katNode{count: lastCount + 1, tail: k.nodes[listZ.lookahead1].tail}
	} else {
		final = katNode{count: lastCount, tail: listY.lookahead1}
	}

	return k.writeLengths(final, leaves, maxbits, lengths)
}

// boundaryPM adds one chain to lists[idx], either by taking the next leaf or
// by fusing the previous list's lookahead pair (and recursing to replace the
// pair it consumed).
func (k *katScratch) boundaryPM(leaves []katLeaf, lists []katList, idx int) error {
	cur := &lists[idx]
	lastCount := k.nodes[cur.lookahead1].count

	if idx == 0 {
		if int(lastCount) >= len(leaves) {
			return nil
		}
		cur.lookahead0 = cur.lookahead1
		n, err := k.push(katNode{
			weight: leaves[lastCount].freq,
			count:  lastCount + 1,
			tail:   k.nodes[cur.lookahead0].tail,
		})
		if err != nil {
			return err
		}
		cur.lookahead1 = n
		return nil
	}

	cur.lookahead0 = cur.lookahead1

	prev := lists[idx-1]
	weightSum := k.nodes[prev.lookahead0].weight + k.nodes[prev.lookahead1].weight

	if int(lastCount) < len(leaves) && leaves[lastCount].freq < weightSum {
		n, err := k.push(katNode{
			weight: leaves[lastCount].freq,
			count:  lastCount + 1,
			tail:   k.nodes[cur.lookahead0].tail,
		})
		if err != nil {
			return err
		}
		cur.lookahead1 = n
		return nil
	}

	n, err := k.push(katNode{
		weight: weightSum,
		count:  lastCount,
		tail:   prev.lookahead1,
	})
	if err != nil {
		return err
	}
	cur.lookahead1 = n

	if err := k.boundaryPM(leaves, lists, idx-1); err != nil {
		return err
	}
	return k.boundaryPM(leaves, lists, idx-1)
}

// writeLengths walks the final chain backward, assigning the current bit
// value to the leaves uncovered at each count step.
func (k *katScratch) writeLengths(node katNode, leaves []katLeaf, maxbits int, lengths []uint8) error {
	lastCount := node.count
	if int(lastCount) > len(leaves) {
		return errCorrupt
	}

	wIdx := int(lastCount) - 1
	for value := uint8(1); int(value) <= maxbits; value++ {
		tail := node.tail
		if tail < 0 {
			for wIdx >= 0 {
				lengths[leaves[wIdx].sym] = value
				wIdx--
			}
			return nil
		}
		t := k.nodes[tail]
		if t.count < lastCount {
			for i := uint32(0); i < lastCount-t.count; i++ {
				lengths[leaves[wIdx].sym] = value
				wIdx--
			}
			lastCount = t.count
		}
		node = t
	}

	return errCorrupt
}

// llclSymbols derives the canonical code for each symbol from its code
// length.
func llclSymbols(lengths []uint8, maxbits int, symbols []uint32) {
	var counts [19]uint32
	for _, l := range lengths {
		counts[l]++
	}

	// Convert counts to the first code of each length.
	var code uint32
	counts[0] = 0
	for l := 0; l <= maxbits; l++ {
		next := (code + counts[l]) << 1
		counts[l] = code
		code = next
	}

	for i, l := range lengths {
		if l != 0 {
			symbols[i] = counts[l]
			counts[l]++
		}
	}
}
