// Package queue implements two mutex-protected queues: BrowsingHistoryQueue
// (time-ordered expiration, a container/list) and SalesTransactionQueue
// (FIFO, a slice). Each is guarded by a single mutex and operated on by a
// periodic background worker.
package queue

import (
	"container/list"
	"sync"

	"github.com/corretto/heapothesys-go/internal/clock"
)

// Entry is the minimal shape BrowsingHistoryQueue needs from whatever it
// stores: an expiration instant. internal/model.BrowsingHistory satisfies
// this directly.
type Entry interface {
	ExpiresAt() clock.Absolute
}

// Handle identifies a live entry's position inside a BrowsingHistoryQueue,
// returned by Enqueue and required by Remove. It is opaque outside this
// package, which keeps internal/model free of a *list.Element field
// (avoiding a BrowsingHistory/queue cyclic reference) while still giving
// O(1) removal.
type Handle struct {
	elem *list.Element
}

// Valid reports whether the handle still refers to a live list position.
func (h Handle) Valid() bool { return h.elem != nil }

// BrowsingHistoryQueue is a doubly-linked list ordered by insertion order,
// which is also expiration order because every entry enqueued by a given
// customer worker shares one fixed BrowsingExpiration duration.
type BrowsingHistoryQueue struct {
	mu sync.Mutex
	l  *list.List
}

// NewBrowsingHistoryQueue constructs an empty queue.
func NewBrowsingHistoryQueue() *BrowsingHistoryQueue {
	return &BrowsingHistoryQueue{l: list.New()}
}

// Enqueue appends e at the tail and returns a Handle for later Remove.
func (q *BrowsingHistoryQueue) Enqueue(e Entry) Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Handle{elem: q.l.PushBack(e)}
}

// PopIfExpired returns and unlinks the head entry if its expiration is
// <= now, else returns (nil, false) without mutating the queue,
// testable property 8).
func (q *BrowsingHistoryQueue) PopIfExpired(now clock.Absolute) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.l.Front()
	if front == nil {
		return nil, false
	}
	head := front.Value.(Entry)
	if head.ExpiresAt().After(now) {
		return nil, false
	}
	q.l.Remove(front)
	return head, true
}

// Remove unlinks the entry referenced by h, wherever it currently sits in
// the list. A no-op if h is not valid or already removed.
func (q *BrowsingHistoryQueue) Remove(h Handle) {
	if !h.Valid() {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.l.Remove(h.elem)
}

// Len reports the current number of live entries.
func (q *BrowsingHistoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len()
}
