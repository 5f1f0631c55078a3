// Package queue implements the bounded, per-worker message queue from
// spec.md §4.2: a fixed-capacity FIFO with a non-blocking producer and
// a blocking consumer, built on sync.Cond the way the teacher's own
// connection pool (transport_connection_pool.go) guards its map with a
// plain sync.Mutex rather than reaching for a channel-based design.
package queue

import (
	"sync"

	"github.com/sipterm/uasd/sip"
)

// DefaultCapacity matches spec.md's default queue capacity.
const DefaultCapacity = 10

// Queue is a circular FIFO of *sip.Message, capacity-limited at
// construction. Enqueue never blocks; Dequeue blocks until an item is
// available or the queue is closed.
type Queue struct {
	mu     sync.Mutex
	notEmpty *sync.Cond
	items  []*sip.Message
	head   int
	count  int
	cap    int
	closed bool

	dropped int64
}

// New creates a queue with the given capacity. A capacity <= 0 falls
// back to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{
		items: make([]*sip.Message, capacity),
		cap:   capacity,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue attempts a non-blocking insert. It returns false (the
// producer's signal to drop) if the queue is full or closed.
func (q *Queue) Enqueue(msg *sip.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.count == q.cap {
		q.dropped++
		return false
	}

	idx := (q.head + q.count) % q.cap
	q.items[idx] = msg
	q.count++
	q.notEmpty.Signal()
	return true
}

// Dequeue blocks until an item is available or the queue is closed,
// in which case it returns (nil, false).
func (q *Queue) Dequeue() (*sip.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.count == 0 {
		return nil, false
	}

	msg := q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % q.cap
	q.count--
	return msg, true
}

// Len reports the number of items currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Dropped reports how many Enqueue calls were rejected because the
// queue was full or closed.
func (q *Queue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close marks the queue closed and wakes any blocked Dequeue callers.
// Still-queued messages are released (dropped, not delivered); Close
// is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for i := range q.items {
		q.items[i] = nil
	}
	q.head, q.count = 0, 0
	q.notEmpty.Broadcast()
}
