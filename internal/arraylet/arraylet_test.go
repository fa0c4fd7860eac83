package arraylet_test

import (
	"testing"

	"github.com/corretto/heapothesys-go/internal/arraylet"
)

func TestFlatModeBoundaries(t *testing.T) {
	a, err := arraylet.New[int](0, 16)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Set(0, 42); err != nil {
		t.Fatal(err)
	}
	if v, _ := a.Get(0); v != 42 {
		t.Fatalf("got %d want 42", v)
	}
	if err := a.Set(15, 7); err != nil {
		t.Fatal(err)
	}
	if v, _ := a.Get(15); v != 7 {
		t.Fatalf("got %d want 7", v)
	}
	if _, err := a.Get(16); err != arraylet.ErrOutOfBounds {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestChunkedModeMatchesFlat(t *testing.T) {
	const n = 1000
	flat, _ := arraylet.New[int](0, n)
	chunked, _ := arraylet.New[int](4, n)

	for i := 0; i < n; i++ {
		flat.Set(i, i*i)
		chunked.Set(i, i*i)
	}
	for i := 0; i < n; i++ {
		fv, _ := flat.Get(i)
		cv, _ := chunked.Get(i)
		if fv != cv {
			t.Fatalf("index %d: flat=%d chunked=%d", i, fv, cv)
		}
	}
}

func TestMinChunkRejected(t *testing.T) {
	if _, err := arraylet.New[int](2, 100); err == nil {
		t.Fatal("expected error for maxChunk below MinChunk")
	}
	if _, err := arraylet.New[int](arraylet.MinChunk, 100); err != nil {
		t.Fatalf("MinChunk itself should be accepted: %v", err)
	}
}

func TestOddSizedChunkedTree(t *testing.T) {
	for _, n := range []int{0, 1, 3, 4, 5, 17, 100, 257, 4096 + 1} {
		a, err := arraylet.New[string](4, n)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if a.Len() != n {
			t.Fatalf("n=%d: Len()=%d", n, a.Len())
		}
		for i := 0; i < n; i++ {
			if err := a.Set(i, "x"); err != nil {
				t.Fatalf("n=%d i=%d: %v", n, i, err)
			}
		}
		for i := 0; i < n; i++ {
			v, err := a.Get(i)
			if err != nil || v != "x" {
				t.Fatalf("n=%d i=%d: got %q, %v", n, i, v, err)
			}
		}
		if n > 0 {
			if _, err := a.Get(n); err != arraylet.ErrOutOfBounds {
				t.Fatalf("n=%d: expected out of bounds at index n", n)
			}
		}
	}
}
