package clock_test

import (
	"testing"
	"time"

	"github.com/corretto/heapothesys-go/internal/clock"
)

func TestAddSub(t *testing.T) {
	a := clock.Now()
	r := clock.NewRelative(5 * time.Second)
	b := a.Add(r)

	got := b.Sub(a)
	if got.Duration() != r.Duration() {
		t.Fatalf("expected round-trip span %v, got %v", r.Duration(), got.Duration())
	}
	if !a.Before(b) || !b.After(a) {
		t.Fatalf("expected a < b")
	}
	if a.Cmp(a) != 0 {
		t.Fatalf("expected a == a")
	}
}

func TestMultiplyDivide(t *testing.T) {
	r := clock.NewRelative(10 * time.Millisecond)
	if got := r.Multiply(3).Duration(); got != 30*time.Millisecond {
		t.Fatalf("multiply: got %v", got)
	}
	if got := r.Multiply(3).DivideInt(3).Duration(); got != r.Duration() {
		t.Fatalf("divide: got %v want %v", got, r.Duration())
	}
	if got := clock.NewRelative(100 * time.Millisecond).DivideBy(clock.NewRelative(10 * time.Millisecond)); got != 10 {
		t.Fatalf("divideBy: got %d want 10", got)
	}
}

func TestScaleFloat(t *testing.T) {
	r := clock.NewRelative(1000 * time.Microsecond)
	got := r.ScaleFloat(0.9)
	if got.Duration() != 900*time.Microsecond {
		t.Fatalf("scale: got %v", got.Duration())
	}
}

func TestSleepUntilPast(t *testing.T) {
	// Sleeping until a past instant must return immediately.
	done := make(chan struct{})
	go func() {
		clock.SleepUntil(clock.Now().Add(clock.NewRelative(-time.Hour)))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SleepUntil on a past instant did not return promptly")
	}
}
