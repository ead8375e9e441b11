package zopfli

import (
	"sync/atomic"

	"github.com/deepteams/flaca/internal/bitio"
)

// numIterations is the process-wide iteration override. It is written at
// most once, during startup, before any compression begins; zero selects
// the size-based default.
var numIterations atomic.Uint32

// SetIterations overrides the default number of squeeze iterations. Values
// above math.MaxInt32 are capped. Call before starting any compression.
func SetIterations(n uint32) {
	if n > 1<<31-1 {
		n = 1<<31 - 1
	}
	numIterations.Store(n)
}

// iterationsFor returns the iteration count for an input of the given size:
// the user override if set, otherwise 60 for small inputs and 20 for large
// ones.
func iterationsFor(size int) int {
	if n := numIterations.Load(); n != 0 {
		return int(n)
	}
	if size < 200_000 {
		return 60
	}
	return 20
}

// Deflate compresses data into w as a complete RFC 1951 stream using a
// pooled State.
func Deflate(w *bitio.DeflateWriter, data []byte) error {
	st := AcquireState()
	defer ReleaseState(st)
	return DeflateState(st, w, data)
}

// DeflateState compresses data into w using the caller's State. The input
// is processed in master blocks of up to one million bytes; each block sees
// all preceding bytes as sliding-window context.
func DeflateState(st *State, w *bitio.DeflateWriter, data []byte) error {
	if len(data) == 0 {
		// A valid stream still needs a final block.
		w.WriteBits(1, 1)
		w.WriteBits(1, 2)
		w.WriteBits(0, 7)
		return nil
	}

	n := iterationsFor(len(data))

	for pos := 0; pos < len(data); {
		end := pos + masterBlockSize
		if end > len(data) {
			end = len(data)
		}
		if err := deflatePart(st, n, end == len(data), data[:end], pos, w); err != nil {
			return err
		}
		pos = end
	}

	return nil
}
