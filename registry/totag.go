// Package registry holds the per-worker, single-threaded collections of
// Call, Dialog, and Transaction records described in spec.md §4.4. A
// Registry is owned by exactly one worker goroutine and is never shared
// across workers, so none of its types take a lock of their own.
package registry

import (
	"math/rand"
	"time"
)

const toTagLength = 8

// tagSource generates To-tags. spec.md §9 flags the original's
// unseeded PRNG as a defect (it reuses the same sequence across
// worker processes started in the same second); each Registry seeds
// its own source once at construction from the current time plus its
// worker index, so sibling workers don't draw from the same stream.
type tagSource struct {
	rnd *rand.Rand
}

func newTagSource(workerID int) *tagSource {
	seed := time.Now().UnixNano() ^ int64(workerID)*2654435761
	return &tagSource{rnd: rand.New(rand.NewSource(seed))}
}

// next returns an 8-digit decimal To-tag, e.g. "04821397".
func (s *tagSource) next() string {
	b := make([]byte, toTagLength)
	for i := range b {
		b[i] = byte('0' + s.rnd.Intn(10))
	}
	return string(b)
}
