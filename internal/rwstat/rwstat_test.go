package rwstat_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/corretto/heapothesys-go/internal/rwstat"
)

func TestReadersRunConcurrently(t *testing.T) {
	c := rwstat.New()
	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.ActAsReader(func() {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
			})
		}()
	}
	wg.Wait()

	if maxActive < 2 {
		t.Fatalf("expected readers to overlap, max concurrent = %d", maxActive)
	}
}

func TestWriterExclusiveWithReadersAndWriters(t *testing.T) {
	c := rwstat.New()
	var inCritical int32
	var violations int32
	var wg sync.WaitGroup

	check := func() {
		n := atomic.AddInt32(&inCritical, 1)
		if n != 1 {
			atomic.AddInt32(&violations, 1)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inCritical, -1)
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.ActAsWriter(check)
		}()
	}
	wg.Wait()
	if violations != 0 {
		t.Fatalf("writer exclusivity violated %d times", violations)
	}
}

func TestWriterNotStarvedByReaders(t *testing.T) {
	c := rwstat.New()
	stop := make(chan struct{})
	var readerLoops int64

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				c.ActAsReader(func() {
					atomic.AddInt64(&readerLoops, 1)
					time.Sleep(time.Millisecond)
				})
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		c.ActAsWriter(func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writer starved by continuous reader stream")
	}
	close(stop)
	wg.Wait()
}

func TestWaitLogsRecordSamples(t *testing.T) {
	c := rwstat.New()
	c.ActAsReader(func() {})
	c.ActAsWriter(func() {})

	if c.ReadWaitLog().Count() == 0 {
		t.Fatal("expected at least one read-wait sample")
	}
	if c.WriteWaitLog().Count() == 0 {
		t.Fatal("expected at least one write-wait sample")
	}
}
