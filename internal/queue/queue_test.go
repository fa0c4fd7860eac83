package queue_test

import (
	"sync"
	"testing"
	"time"

	"github.com/corretto/heapothesys-go/internal/clock"
	"github.com/corretto/heapothesys-go/internal/queue"
)

type fakeHistory struct {
	name    string
	expires clock.Absolute
}

func (f *fakeHistory) ExpiresAt() clock.Absolute { return f.expires }

// Expiration queue ordering under interleaved pops.
func TestScenarioS4Expiration(t *testing.T) {
	base := clock.Now()
	q := queue.NewBrowsingHistoryQueue()

	h1 := &fakeHistory{name: "h1", expires: base.Add(clock.NewRelative(10 * time.Millisecond))}
	h2 := &fakeHistory{name: "h2", expires: base.Add(clock.NewRelative(20 * time.Millisecond))}
	q.Enqueue(h1)
	q.Enqueue(h2)

	at15 := base.Add(clock.NewRelative(15 * time.Millisecond))
	got, ok := q.PopIfExpired(at15)
	if !ok || got.(*fakeHistory).name != "h1" {
		t.Fatalf("expected h1 at t+15, got %v ok=%v", got, ok)
	}

	if _, ok := q.PopIfExpired(at15); ok {
		t.Fatal("expected no expired entry on second call at same time")
	}

	at25 := base.Add(clock.NewRelative(25 * time.Millisecond))
	got, ok = q.PopIfExpired(at25)
	if !ok || got.(*fakeHistory).name != "h2" {
		t.Fatalf("expected h2 at t+25, got %v ok=%v", got, ok)
	}
}

func TestRemoveArbitraryNode(t *testing.T) {
	base := clock.Now()
	q := queue.NewBrowsingHistoryQueue()
	h1 := &fakeHistory{name: "h1", expires: base.Add(clock.NewRelative(time.Hour))}
	h2 := &fakeHistory{name: "h2", expires: base.Add(clock.NewRelative(2 * time.Hour))}
	handle1 := q.Enqueue(h1)
	q.Enqueue(h2)

	if q.Len() != 2 {
		t.Fatalf("len = %d, want 2", q.Len())
	}
	q.Remove(handle1)
	if q.Len() != 1 {
		t.Fatalf("len after remove = %d, want 1", q.Len())
	}
	// Removing again must be a safe no-op.
	q.Remove(handle1)
	if q.Len() != 1 {
		t.Fatalf("len after double remove = %d, want 1", q.Len())
	}
}

// Transaction queue FIFO under concurrent producers.
func TestScenarioS6TransactionFIFO(t *testing.T) {
	q := queue.NewSalesTransactionQueue()
	const n = 500

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Enqueue(i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Enqueue(-(i + 1))
		}
	}()
	wg.Wait()

	drained := q.DrainAll()
	if len(drained) != 2*n {
		t.Fatalf("drained %d, want %d", len(drained), 2*n)
	}

	lastPositive, lastNegative := -1, 0
	for _, v := range drained {
		iv := v.(int)
		if iv >= 0 {
			if iv <= lastPositive {
				t.Fatalf("producer-A order violated: %d after %d", iv, lastPositive)
			}
			lastPositive = iv
		} else {
			if iv >= lastNegative {
				t.Fatalf("producer-B order violated: %d after %d", iv, lastNegative)
			}
			lastNegative = iv
		}
	}

	if got := q.Len(); got != 0 {
		t.Fatalf("len after drain = %d, want 0", got)
	}
	if got := q.DrainAll(); got != nil {
		t.Fatalf("drain of empty queue should be nil, got %v", got)
	}
}
