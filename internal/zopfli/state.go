package zopfli

import "sync"

// State bundles the four large working arenas a compression needs: the
// longest-match cache, the hash chains, the split cache, and the squeeze
// cost/path tables. A State weighs roughly 35 megabytes, so
// instances are built once, kept off the stack, and recycled through a
// pool — one State serves one image at a time, and a worker grabs the same
// arena back for its next image.
type State struct {
	lmc     *matchCache
	hash    zopfliHash
	split   *splitCache
	squeeze *squeezeCache
}

// NewState allocates a fresh set of arenas. Most callers should use
// AcquireState instead.
func NewState() *State {
	return &State{
		lmc:     newMatchCache(),
		split:   newSplitCache(),
		squeeze: newSqueezeCache(),
	}
}

var statePool = sync.Pool{New: func() any { return NewState() }}

// AcquireState fetches a pooled State; pair it with ReleaseState.
func AcquireState() *State { return statePool.Get().(*State) }

// ReleaseState returns a State to the pool for the next image.
func ReleaseState(st *State) { statePool.Put(st) }

// initCaches prepares the longest-match cache and the squeeze tables for a
// block of the given size. Only the active prefix is reset; the backing
// memory persists across images.
func (st *State) initCaches(blockSize int) {
	st.lmc.init(blockSize)
	st.squeeze.resize(blockSize)
}
