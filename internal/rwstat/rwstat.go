// Package rwstat implements the coarse-mode concurrency controller of
// a fair reader/writer lock exposing ActAsReader/ActAsWriter,
// guaranteeing a waiting writer is not starved by a steady stream of
// readers, and recording every acquisition's wait time into a
// internal/latency.Log.
//
// sync.RWMutex alone does not give the "no new readers once a writer is
// waiting" guarantee this package needs, so Controller does not use it:
// it keeps its own reader count, writer flag and pending-writer counter
// under a sync.Mutex and waits on a sync.Cond.
package rwstat

import (
	"sync"

	"github.com/corretto/heapothesys-go/internal/clock"
	"github.com/corretto/heapothesys-go/internal/latency"
)

// Controller is a fair reader/writer lock with contention statistics.
type Controller struct {
	mu             sync.Mutex
	cond           *sync.Cond
	activeReaders  int
	writerActive   bool
	pendingWriters int

	readWait  *latency.Log
	writeWait *latency.Log
}

// New constructs a Controller. The returned wait-time logs can be sampled
// via ReadWaitLog/WriteWaitLog for reporting.
func New() *Controller {
	c := &Controller{
		readWait:  latency.New(0),
		writeWait: latency.New(0),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// ReadWaitLog exposes the accumulated reader wait-time histogram.
func (c *Controller) ReadWaitLog() *latency.Log { return c.readWait }

// WriteWaitLog exposes the accumulated writer wait-time histogram.
func (c *Controller) WriteWaitLog() *latency.Log { return c.writeWait }

// ActAsReader runs f while holding the shared (read) lock. Multiple
// readers may run concurrently; a reader blocks if a writer is active or
// pending, which is what makes a waiting writer non-starvable.
func (c *Controller) ActAsReader(f func()) {
	start := clock.Now()
	c.mu.Lock()
	for c.writerActive || c.pendingWriters > 0 {
		c.cond.Wait()
	}
	c.activeReaders++
	c.mu.Unlock()

	c.readWait.RecordDuration(clock.Now().Sub(start).Duration())

	defer func() {
		c.mu.Lock()
		c.activeReaders--
		if c.activeReaders == 0 {
			c.cond.Broadcast()
		}
		c.mu.Unlock()
	}()
	f()
}

// ActAsWriter runs f while holding the exclusive (write) lock. Writers are
// mutually exclusive with all readers and other writers.
func (c *Controller) ActAsWriter(f func()) {
	start := clock.Now()
	c.mu.Lock()
	c.pendingWriters++
	for c.writerActive || c.activeReaders > 0 {
		c.cond.Wait()
	}
	c.pendingWriters--
	c.writerActive = true
	c.mu.Unlock()

	c.writeWait.RecordDuration(clock.Now().Sub(start).Duration())

	defer func() {
		c.mu.Lock()
		c.writerActive = false
		c.cond.Broadcast()
		c.mu.Unlock()
	}()
	f()
}

// Stats is a snapshot of current contention state, useful for
// internal/metrics exposition.
type Stats struct {
	ActiveReaders  int
	WriterActive   bool
	PendingWriters int
}

// Stats returns a point-in-time snapshot of lock state.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		ActiveReaders:  c.activeReaders,
		WriterActive:   c.writerActive,
		PendingWriters: c.pendingWriters,
	}
}
