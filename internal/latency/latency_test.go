package latency_test

import (
	"testing"

	"github.com/corretto/heapothesys-go/internal/latency"
)

// Basic record/percentile scenario.
func TestScenarioS1HistogramBasic(t *testing.T) {
	l := latency.New(0)
	l.Record(500)
	l.Record(600)
	l.Record(900)

	if got := l.Count(); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}
	if got := l.Min(); got != 500 {
		t.Fatalf("min = %d, want 500", got)
	}
	if got := l.Max(); got != 900 {
		t.Fatalf("max = %d, want 900", got)
	}
	if p50 := l.P50(); p50 < 500 || p50 > 900 {
		t.Fatalf("p50 = %d, want in [500,900]", p50)
	}
	if got := l.P100(); got != 900 {
		t.Fatalf("p100 = %d, want 900", got)
	}
}

// Compression under a large, spread-out value set.
func TestScenarioS2Compression(t *testing.T) {
	l := latency.New(0)
	for v := int64(80000); v <= 207750; v += 250 {
		l.Record(v)
	}
	for v := int64(79975); v >= 67200; v -= 25 {
		l.Record(v)
	}

	if got := l.Count(); got != 1024 {
		t.Fatalf("count = %d, want 1024", got)
	}
	if got := l.Min(); got != 67200 {
		t.Fatalf("min = %d, want 67200", got)
	}
	if got := l.Max(); got != 207750 {
		t.Fatalf("max = %d, want 207750", got)
	}
	if got := l.BucketsInUse(); got > latency.MaxBuckets {
		t.Fatalf("buckets in use = %d, want <= %d", got, latency.MaxBuckets)
	}
	assertMonotonicSpans(t, l)
}

func TestNegativeClipsToZero(t *testing.T) {
	l := latency.New(0)
	l.Record(-500)
	l.Record(100)
	if got := l.Count(); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}
	if got := l.Min(); got != 0 {
		t.Fatalf("min = %d, want 0 (clipped)", got)
	}
}

func TestRecordPreservesCountAndExtrema(t *testing.T) {
	l := latency.New(0)
	values := []int64{1, 10, 100, 1000, 10000, 100000, 1000000, 5, 50, 500}
	for _, v := range values {
		l.Record(v)
	}
	if got := l.Count(); got != uint64(len(values)) {
		t.Fatalf("count = %d, want %d", got, len(values))
	}
	if got := l.Min(); got != 1 {
		t.Fatalf("min = %d, want 1", got)
	}
	if got := l.Max(); got != 1000000 {
		t.Fatalf("max = %d, want 1000000", got)
	}
	if got := l.BucketsInUse(); got > latency.MaxBuckets {
		t.Fatalf("buckets = %d, exceeds cap", got)
	}
	assertMonotonicSpans(t, l)
}

func TestMergePreservesCountAndExtrema(t *testing.T) {
	a := latency.New(0)
	b := latency.New(0)
	for v := int64(100); v < 2000; v += 37 {
		a.Record(v)
	}
	for v := int64(50); v < 5000; v += 53 {
		b.Record(v)
	}

	wantCount := a.Count() + b.Count()
	wantMin := a.Min()
	if b.Min() < wantMin {
		wantMin = b.Min()
	}
	wantMax := a.Max()
	if b.Max() > wantMax {
		wantMax = b.Max()
	}

	a.Merge(b)

	if got := a.Count(); got != wantCount {
		t.Fatalf("merged count = %d, want %d", got, wantCount)
	}
	if got := a.Min(); got != wantMin {
		t.Fatalf("merged min = %d, want %d", got, wantMin)
	}
	if got := a.Max(); got != wantMax {
		t.Fatalf("merged max = %d, want %d", got, wantMax)
	}
}

func TestColumnCountsSumsToTotal(t *testing.T) {
	l := latency.New(0)
	for v := int64(0); v < 500; v++ {
		l.Record(v * 123)
	}
	cols := l.ColumnCounts(64)
	if cols == nil {
		t.Fatal("expected non-nil columns")
	}
	var sum uint64
	for _, c := range cols {
		sum += c
	}
	if sum != l.Count() {
		t.Fatalf("column sum = %d, want %d", sum, l.Count())
	}
}

func TestEmptyLogIsWellBehaved(t *testing.T) {
	l := latency.New(0)
	if got := l.Count(); got != 0 {
		t.Fatalf("count = %d, want 0", got)
	}
	if got := l.P50(); got != 0 {
		t.Fatalf("p50 of empty log = %d, want 0", got)
	}
	if cols := l.ColumnCounts(64); cols != nil {
		t.Fatalf("expected nil columns for empty log, got %v", cols)
	}
}

// assertMonotonicSpans checks that consecutive bucket
// spans are non-decreasing with ratio in {1, 2}, and invariant 5 (bucket
// counts sum to the total), via Log.CheckInvariants.
func assertMonotonicSpans(t *testing.T, l *latency.Log) {
	t.Helper()
	if err := l.CheckInvariants(); err != nil {
		t.Fatalf("invariant violation: %v", err)
	}
}

func TestCheckInvariantsOnEmptyLog(t *testing.T) {
	l := latency.New(0)
	if err := l.CheckInvariants(); err != nil {
		t.Fatalf("empty log should have no invariant violations: %v", err)
	}
}
