package zopfli

import (
	"errors"
	"math"
)

// errCorrupt is the single coarse error produced when an internal encoding
// contract is broken. The caller treats it as "encoding failed" and keeps
// the original image.
var errCorrupt = errors.New("zopfli: encoding failed")

const (
	// cacheLength is the number of cached sublength slots per position.
	cacheLength = 8

	// sublenUnits is the byte width of a position's sublength cache; each
	// slot packs (length-3, distance) into three bytes.
	sublenUnits = cacheLength * 3

	// defaultLD is the packed (length 1, distance 0) never-touched marker.
	defaultLD = 1
)

// matchCache is the longest-match cache: for every position of a master
// block it memoizes the best (length, distance) the finder produced, plus up
// to eight sublength break points, so later squeeze passes skip the chain
// walk entirely.
type matchCache struct {
	ld     []uint32 // packed length (low 16) and distance (high 16)
	sublen []uint8
}

func newMatchCache() *matchCache {
	return &matchCache{
		ld:     make([]uint32, masterBlockSize),
		sublen: make([]uint8, masterBlockSize*sublenUnits),
	}
}

// init resets the active prefix for a new block of the given size.
func (c *matchCache) init(blockSize int) {
	if blockSize > masterBlockSize {
		blockSize = masterBlockSize
	}
	for i := 0; i < blockSize; i++ {
		c.ld[i] = defaultLD
	}
	clear(c.sublen[:blockSize*sublenUnits])
}

func ldJoin(length, dist uint16) uint32 { return uint32(length) | uint32(dist)<<16 }

func ldSplit(ld uint32) (length, dist uint16) { return uint16(ld), uint16(ld >> 16) }

// maxSublen returns the largest cached sublength for one position's slots,
// or zero when the first slot carries no distance.
func maxSublen(slots []uint8) int {
	if slots[1] == 0 && slots[2] == 0 {
		return 0
	}
	return int(slots[sublenUnits-3]) + minMatch
}

// writeSublen expands one position's cached slots back into a full sublength
// array.
func writeSublen(slots []uint8, dst []uint16) {
	maxLength := maxSublen(slots)
	old := 0
	for k := 0; k+3 <= sublenUnits; k += 3 {
		length := int(slots[k]) + minMatch
		if old <= length {
			value := uint16(slots[k+1]) | uint16(slots[k+2])<<8
			for i := old; i <= length; i++ {
				dst[i] = value
			}
		}
		if length == maxLength {
			return
		}
		old = length + 1
	}
}

// find consults the cache at pos. On a hit it fills length/distance (and the
// sublength array when provided) and returns done=true; it may also lower
// *limit when the cached length is known to be the best achievable.
func (c *matchCache) find(pos int, limit *uint16, sublen []uint16) (length, dist uint16, done bool, err error) {
	if pos >= masterBlockSize {
		return 0, 0, false, errCorrupt
	}

	cacheLen, cacheDist := ldSplit(c.ld[pos])
	if cacheLen != 0 && cacheDist == 0 {
		// Never touched.
		return 0, 0, false, nil
	}
	slots := c.sublen[pos*sublenUnits : (pos+1)*sublenUnits]

	maxLength := 0
	if sublen != nil {
		maxLength = maxSublen(slots)
	}

	if *limit == maxMatch || cacheLen <= *limit || (sublen != nil && maxLength >= int(*limit)) {
		if sublen == nil || int(cacheLen) <= maxLength {
			length = cacheLen
			if length > *limit {
				length = *limit
			}
			if sublen != nil {
				if length >= minMatch {
					writeSublen(slots, sublen)
				}
				dist = sublen[length]
				if dist != cacheDist && *limit == maxMatch && length >= minMatch {
					return 0, 0, false, errCorrupt
				}
			} else {
				dist = cacheDist
			}
			return length, dist, true, nil
		}
		// The cached length is the best we will ever do here.
		*limit = cacheLen
	}

	return 0, 0, false, nil
}

// setSublen records a finder result at pos. Results below the minimum match
// are cached as "not worth caching" (length 0).
func (c *matchCache) setSublen(pos int, sublen []uint16, dist, length uint16) error {
	if pos >= masterBlockSize {
		return errCorrupt
	}

	if c.ld[pos] != defaultLD {
		cacheLen, cacheDist := ldSplit(c.ld[pos])
		// A prior "not worth caching" verdict stands.
		if cacheDist != 0 || cacheLen == 0 {
			return nil
		}
		return errCorrupt
	}

	if length < minMatch {
		c.ld[pos] = 0
		return nil
	}
	if dist == 0 {
		return errCorrupt
	}
	c.ld[pos] = ldJoin(length, dist)

	slots := c.sublen[pos*sublenUnits : (pos+1)*sublenUnits]
	slot := 0

	// Record every sublength transition, up to the slot limit.
	for i := minMatch; i < int(length); i++ {
		if sublen[i] != sublen[i+1] {
			if slot >= cacheLength {
				return nil
			}
			slots[slot*3] = uint8(i - minMatch)
			slots[slot*3+1] = uint8(sublen[i])
			slots[slot*3+2] = uint8(sublen[i] >> 8)
			slot++
		}
	}

	// The final value is implicitly a transition.
	if slot < cacheLength {
		slots[slot*3] = uint8(length - minMatch)
		slots[slot*3+1] = uint8(sublen[length])
		slots[slot*3+2] = uint8(sublen[length] >> 8)
		slot++

		// Replicate the max length into the last slot so maxSublen lookups
		// stay a single read.
		if slot < cacheLength {
			slots[(cacheLength-1)*3] = uint8(length - minMatch)
		}
	}

	return nil
}

// splitCache is a bit-array over master-block positions marking candidate
// split points already examined and rejected.
type splitCache struct {
	bits []uint8
}

func newSplitCache() *splitCache {
	return &splitCache{bits: make([]uint8, (masterBlockSize+7)/8)}
}

func (c *splitCache) init(size int) {
	n := (size + 7) / 8
	if n > len(c.bits) {
		n = len(c.bits)
	}
	clear(c.bits[:n])
}

func (c *splitCache) isUnset(pos int) bool {
	idx := pos / 8
	return idx >= len(c.bits) || c.bits[idx]&(1<<(pos%8)) == 0
}

func (c *splitCache) set(pos int) {
	idx := pos / 8
	if idx < len(c.bits) {
		c.bits[idx] |= 1 << (pos % 8)
	}
}

// squeezeCache holds the forward-pass cost table and the backward-pass path
// table for the squeeze passes.
type squeezeCache struct {
	costs []float32
	paths []uint16
	size  int // active block size
}

func newSqueezeCache() *squeezeCache {
	return &squeezeCache{
		costs: make([]float32, masterBlockSize+1),
		paths: make([]uint16, masterBlockSize+1),
	}
}

// resize sets the active block size without touching values; costs are
// (re)set immediately before every forward pass.
func (c *squeezeCache) resize(blockSize int) {
	c.size = blockSize
}

// resetCosts prepares costs for a forward pass: zero at the origin,
// +infinity everywhere else. It returns the active cost slice
// (blockSize+1 entries) or nil when there is nothing to do.
func (c *squeezeCache) resetCosts() []float32 {
	if c.size == 0 {
		return nil
	}
	costs := c.costs[:c.size+1]
	costs[0] = 0
	inf := float32(math.Inf(1))
	for i := 1; i < len(costs); i++ {
		costs[i] = inf
	}
	return costs
}

// tracePaths walks the path table backward from the block end and returns
// the chosen lengths in forward order.
func (c *squeezeCache) tracePaths() ([]uint16, error) {
	if c.size == 0 {
		return nil, nil
	}
	paths := c.paths[:c.size+1]
	out := make([]uint16, 0, 64)
	idx := c.size
	for idx > 0 {
		v := paths[idx]
		if v == 0 || int(v) > idx {
			return nil, errCorrupt
		}
		out = append(out, v)
		idx -= int(v)
	}
	// Reverse into forward order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
