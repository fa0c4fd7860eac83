// Package latency implements LatencyLog, the 32-bucket self-adapting
// logarithmic histogram used to record every measured operation in the
// workload.
package latency

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MaxBuckets is the fixed bucket budget for a Log.
const MaxBuckets = 32

// DefaultQuantumMicros is the minimum bucket width (Q) used when the
// caller does not supply one.
const DefaultQuantumMicros int64 = 256

// bucket is one histogram bucket covering the half-open interval
// [low, low+span) microseconds. minSeen/maxSeen/count let Merge
// reconstruct two exact data points per bucket instead of only a midpoint
// (the Merge bias documented below applies to the remaining count-2
// synthetic samples).
type bucket struct {
	low     int64
	span    int64
	count   uint64
	minSeen int64
	maxSeen int64
}

// Log is a per-thread (or aggregated) latency histogram. Zero value is not
// usable; construct with New.
type Log struct {
	mu       sync.Mutex
	quantum  int64
	buckets  []bucket
	empty    bool
	minSeen  int64
	maxSeen  int64
	total    uint64
	totalMic uint64
}

// New constructs an empty Log. quantumMicros == 0 selects
// DefaultQuantumMicros.
func New(quantumMicros int64) *Log {
	if quantumMicros <= 0 {
		quantumMicros = DefaultQuantumMicros
	}
	return &Log{quantum: quantumMicros, empty: true}
}

// Record inserts one observation, in microseconds. Negative values are
// clipped to zero, compensating for SleepUntil's best-effort early
// return.
func (l *Log) Record(vUs int64) {
	if vUs < 0 {
		vUs = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(vUs)
}

// RecordDuration is a convenience wrapper for recording a time.Duration.
func (l *Log) RecordDuration(d time.Duration) {
	l.Record(int64(d / time.Microsecond))
}

func (l *Log) record(v int64) {
	l.total++
	l.totalMic += uint64(v)

	if l.empty {
		lo := alignDown(v, l.quantum)
		l.buckets = []bucket{{low: lo, span: l.quantum, count: 1, minSeen: v, maxSeen: v}}
		l.empty = false
		l.minSeen, l.maxSeen = v, v
		return
	}

	if v < l.minSeen {
		l.minSeen = v
	}
	if v > l.maxSeen {
		l.maxSeen = v
	}

	first := l.buckets[0]
	last := l.buckets[len(l.buckets)-1]

	if v < first.low {
		l.expandLow(v)
	} else if v >= last.low+last.span {
		l.expandHigh(v)
	}

	idx := l.locate(v)
	b := &l.buckets[idx]
	b.count++
	if v < b.minSeen {
		b.minSeen = v
	}
	if v > b.maxSeen {
		b.maxSeen = v
	}
}

// locate finds the bucket index whose [low, low+span) contains v. Bucket
// boundaries are strictly increasing, so binary search applies.
func (l *Log) locate(v int64) int {
	return sort.Search(len(l.buckets), func(i int) bool {
		b := l.buckets[i]
		return b.low+b.span > v
	})
}

func alignDown(v, quantum int64) int64 {
	q := v / quantum
	if v%quantum != 0 && v < 0 {
		q--
	}
	return q * quantum
}

// expandLow grows the low side of the histogram to cover v, using a
// logarithmic fold: new buckets double in span (Q, 2Q, 4Q, ...) moving
// away from v toward the existing data, clamped so the span never exceeds
// the bucket it attaches to (preserving the non-decreasing span
// invariant). If there isn't room, the existing buckets are first
// consolidated into one, the fallback documented on consolidateAll.
func (l *Log) expandLow(v int64) {
	needed := l.estimateLowBucketsNeeded(v)
	if len(l.buckets)+needed > MaxBuckets {
		l.consolidateAll()
	}

	first := l.buckets[0]
	var prepend []bucket
	cursor := first.low
	span := l.quantum
	clamp := first.span

	for cursor > v {
		lo := cursor - span
		if lo <= v {
			lo = v
			prepend = append(prepend, bucket{low: lo, span: cursor - lo, count: 0, minSeen: v, maxSeen: v})
			cursor = lo
			break
		}
		prepend = append(prepend, bucket{low: lo, span: span, count: 0, minSeen: v, maxSeen: v})
		cursor = lo
		if span < clamp {
			span *= 2
			if span > clamp {
				span = clamp
			}
		}
		if len(l.buckets)+len(prepend) >= MaxBuckets {
			// Ran out of room mid-fold: consolidate what we have so far
			// plus the existing data, then retry from scratch against a
			// single bucket (guaranteed to terminate since a single
			// bucket always has room for a fresh fold).
			l.buckets = append(reverseBuckets(prepend), l.buckets...)
			l.consolidateAll()
			l.expandLow(v)
			return
		}
	}

	reverseInPlace(prepend)
	l.buckets = append(prepend, l.buckets...)
}

// estimateLowBucketsNeeded is a cheap upper bound on how many buckets a
// low-side fold down to v might need, used only to decide whether to
// consolidate before folding.
func (l *Log) estimateLowBucketsNeeded(v int64) int {
	first := l.buckets[0]
	gap := first.low - v
	if gap <= 0 {
		return 0
	}
	n := 0
	span := l.quantum
	for g := gap; g > 0; n++ {
		g -= span
		if span < first.span {
			span *= 2
		}
		if n > MaxBuckets {
			break
		}
	}
	return n
}

// expandHigh grows the high side symmetrically to expandLow: new buckets'
// spans start at the last bucket's span and double, appended until v is
// covered.
func (l *Log) expandHigh(v int64) {
	needed := l.estimateHighBucketsNeeded(v)
	if len(l.buckets)+needed > MaxBuckets {
		l.consolidateAll()
	}

	for {
		last := l.buckets[len(l.buckets)-1]
		cursor := last.low + last.span
		if v < cursor {
			return
		}
		span := last.span
		if len(l.buckets) >= MaxBuckets {
			l.consolidateAll()
			l.expandHigh(v)
			return
		}
		l.buckets = append(l.buckets, bucket{low: cursor, span: span, count: 0, minSeen: v, maxSeen: v})
	}
}

func (l *Log) estimateHighBucketsNeeded(v int64) int {
	last := l.buckets[len(l.buckets)-1]
	gap := v - (last.low + last.span) + 1
	if gap <= 0 {
		return 0
	}
	n := 0
	span := last.span
	for g := gap; g > 0; n++ {
		g -= span
		if n > MaxBuckets {
			break
		}
	}
	return n
}

// consolidateAll merges every existing bucket into a single bucket
// spanning the full observed range, the documented fallback for when no
// incremental fold/compression leaves enough room.
func (l *Log) consolidateAll() {
	if len(l.buckets) <= 1 {
		return
	}
	first := l.buckets[0]
	last := l.buckets[len(l.buckets)-1]
	var count uint64
	minSeen, maxSeen := first.minSeen, first.minSeen
	for _, b := range l.buckets {
		count += b.count
		if b.minSeen < minSeen {
			minSeen = b.minSeen
		}
		if b.maxSeen > maxSeen {
			maxSeen = b.maxSeen
		}
	}
	l.buckets = []bucket{{
		low:     first.low,
		span:    last.low + last.span - first.low,
		count:   count,
		minSeen: minSeen,
		maxSeen: maxSeen,
	}}
}

// compress frees a bucket slot when all MaxBuckets slots are occupied, by
// trying each compression tier in turn. Nothing in this package calls it
// at present: expandLow/expandHigh fall back to their own consolidation
// path, and Merge replays samples through record.
func (l *Log) compress() {
	if l.tryCoalesceRun() {
		return
	}
	if l.tryCoalescePair() {
		return
	}
	l.enlargeLowest()
}

// tryCoalesceRun implements compression tier 1: find a run of 3+
// consecutive equal-span buckets and coalesce the highest two of that run
// into one double-span bucket.
func (l *Log) tryCoalesceRun() bool {
	n := len(l.buckets)
	for i := 0; i+2 < n; i++ {
		if l.buckets[i].span == l.buckets[i+1].span && l.buckets[i+1].span == l.buckets[i+2].span {
			j := i + 2
			for j+1 < n && l.buckets[j+1].span == l.buckets[i].span {
				j++
			}
			// Coalesce the top two of the run [i, j].
			if l.mergeAdjacent(j-1, j) {
				return true
			}
		}
	}
	return false
}

// tryCoalescePair implements compression tier 2: coalesce the
// highest-to-lowest consecutive equal-span pair.
func (l *Log) tryCoalescePair() bool {
	for i := len(l.buckets) - 2; i >= 0; i-- {
		if l.buckets[i].span == l.buckets[i+1].span {
			if l.mergeAdjacent(i, i+1) {
				return true
			}
		}
	}
	return false
}

// mergeAdjacent merges buckets[i] and buckets[i+1] into a double-span
// bucket, provided doing so does not violate the non-decreasing span
// invariant against whatever follows.
func (l *Log) mergeAdjacent(i, j int) bool {
	if j != i+1 {
		return false
	}
	merged := bucket{
		low:     l.buckets[i].low,
		span:    l.buckets[i].span + l.buckets[j].span,
		count:   l.buckets[i].count + l.buckets[j].count,
		minSeen: minI64(l.buckets[i].minSeen, l.buckets[j].minSeen),
		maxSeen: maxI64(l.buckets[i].maxSeen, l.buckets[j].maxSeen),
	}
	if j+1 < len(l.buckets) && merged.span > l.buckets[j+1].span {
		return false
	}
	next := append([]bucket{}, l.buckets[:i]...)
	next = append(next, merged)
	next = append(next, l.buckets[j+1:]...)
	l.buckets = next
	return true
}

// enlargeLowest implements compression tier 3: absorb buckets[0..k) into
// one bucket whose span equals the neighbouring bucket's span.
func (l *Log) enlargeLowest() {
	if len(l.buckets) < 2 {
		return
	}
	target := l.buckets[1].span
	var cum int64
	k := 0
	for k < len(l.buckets)-1 && cum < target {
		cum += l.buckets[k].span
		k++
	}
	if k < 1 {
		k = 1
	}
	var count uint64
	minSeen, maxSeen := l.buckets[0].minSeen, l.buckets[0].maxSeen
	for _, b := range l.buckets[:k] {
		count += b.count
		if b.minSeen < minSeen {
			minSeen = b.minSeen
		}
		if b.maxSeen > maxSeen {
			maxSeen = b.maxSeen
		}
	}
	merged := bucket{
		low:     l.buckets[0].low,
		span:    l.buckets[k-1].low + l.buckets[k-1].span - l.buckets[0].low,
		count:   count,
		minSeen: minSeen,
		maxSeen: maxSeen,
	}
	next := []bucket{merged}
	next = append(next, l.buckets[k:]...)
	l.buckets = next
}

func reverseBuckets(bs []bucket) []bucket {
	out := make([]bucket, len(bs))
	for i, b := range bs {
		out[len(bs)-1-i] = b
	}
	return out
}

func reverseInPlace(bs []bucket) {
	for i, j := 0, len(bs)-1; i < j; i, j = i+1, j-1 {
		bs[i], bs[j] = bs[j], bs[i]
	}
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Snapshot is a point-in-time, lock-free copy of a Log's summary
// statistics, safe to pass to internal/metrics or internal/report.
type Snapshot struct {
	Count       uint64
	Min         int64
	Max         int64
	Mean        float64
	BucketsUsed int
	P50         int64
	P95         int64
	P99         int64
	P999        int64
	P9999       int64
	P99999      int64
	P100        int64
}

// Snapshot returns the current summary statistics.
func (l *Log) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.empty {
		return Snapshot{}
	}
	mean := float64(l.totalMic) / float64(l.total)
	return Snapshot{
		Count:       l.total,
		Min:         l.minSeen,
		Max:         l.maxSeen,
		Mean:        mean,
		BucketsUsed: len(l.buckets),
		P50:         l.percentileLocked(0.50),
		P95:         l.percentileLocked(0.95),
		P99:         l.percentileLocked(0.99),
		P999:        l.percentileLocked(0.999),
		P9999:       l.percentileLocked(0.9999),
		P99999:      l.percentileLocked(0.99999),
		P100:        l.maxSeen,
	}
}

// Count returns the total number of recorded observations.
func (l *Log) Count() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Min returns the exact smallest recorded value, or 0 if empty.
func (l *Log) Min() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minSeen
}

// Max returns the exact largest recorded value, or 0 if empty.
func (l *Log) Max() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxSeen
}

// BucketsInUse returns the number of occupied buckets (<= MaxBuckets).
func (l *Log) BucketsInUse() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Percentile returns the value at percentile p (0 < p <= 1), walking
// buckets low to high until the cumulative count exceeds the target
// index. p >= 1 returns the exact maximum.
func (l *Log) Percentile(p float64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.percentileLocked(p)
}

func (l *Log) percentileLocked(p float64) int64 {
	if l.empty || l.total == 0 {
		return 0
	}
	if p >= 1 {
		return l.maxSeen
	}
	if p <= 0 {
		return l.minSeen
	}
	target := uint64(p * float64(l.total))
	var cum uint64
	for i, b := range l.buckets {
		cum += b.count
		if cum > target {
			if i == 0 {
				return l.minSeen
			}
			if i == len(l.buckets)-1 {
				return l.maxSeen
			}
			return b.low + b.span/2
		}
	}
	return l.maxSeen
}

// P50, P95, P99, P999, P9999, P99999, P100 are convenience wrappers over
// Percentile for commonly reported percentiles.
func (l *Log) P50() int64    { return l.Percentile(0.50) }
func (l *Log) P95() int64    { return l.Percentile(0.95) }
func (l *Log) P99() int64    { return l.Percentile(0.99) }
func (l *Log) P999() int64   { return l.Percentile(0.999) }
func (l *Log) P9999() int64  { return l.Percentile(0.9999) }
func (l *Log) P99999() int64 { return l.Percentile(0.99999) }

func (l *Log) P100() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxSeen
}

// Merge folds other's buckets into l. Each of other's buckets contributes
// its exact recorded minimum and maximum (two exact data points) plus
// count-2 synthetic samples at the bucket midpoint, clamped into the
// bucket's recorded [min, max] range (a bucket with count 2 contributes
// just its min and max, one with count 1 just its single observation).
// This is lossy for the merged median but preserves total count and
// global extrema exactly.
func (l *Log) Merge(other *Log) {
	other.mu.Lock()
	obuckets := make([]bucket, len(other.buckets))
	copy(obuckets, other.buckets)
	other.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range obuckets {
		if b.count == 0 {
			continue
		}
		mid := b.low + b.span/2
		if mid < b.minSeen {
			mid = b.minSeen
		}
		if mid > b.maxSeen {
			mid = b.maxSeen
		}
		switch {
		case b.count == 1:
			l.record(b.minSeen)
		case b.count == 2:
			l.record(b.minSeen)
			l.record(b.maxSeen)
		default:
			l.record(b.minSeen)
			l.record(b.maxSeen)
			for i := uint64(2); i < b.count; i++ {
				l.record(mid)
			}
		}
	}
}

// ColumnCounts bins the histogram down into numColumns evenly spaced
// columns across [Min, Max], for fixed-width report rendering. Returns
// nil if the log is empty.
func (l *Log) ColumnCounts(numColumns int) []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.empty || numColumns <= 0 {
		return nil
	}
	cols := make([]uint64, numColumns)
	span := l.maxSeen - l.minSeen + 1
	for _, b := range l.buckets {
		// Approximate: assume observations are uniformly spread across
		// the bucket's own width when assigning to display columns.
		lo := b.low
		hi := b.low + b.span
		if lo < l.minSeen {
			lo = l.minSeen
		}
		if hi > l.maxSeen+1 {
			hi = l.maxSeen + 1
		}
		if hi <= lo {
			hi = lo + 1
		}
		colLo := int64(numColumns) * (lo - l.minSeen) / span
		colHi := int64(numColumns) * (hi - l.minSeen) / span
		if colHi <= colLo {
			colHi = colLo + 1
		}
		if colHi > int64(numColumns) {
			colHi = int64(numColumns)
		}
		width := colHi - colLo
		if width <= 0 {
			width = 1
		}
		per := b.count / uint64(width)
		rem := b.count % uint64(width)
		for c := colLo; c < colHi && c < int64(numColumns); c++ {
			cols[c] += per
			if rem > 0 {
				cols[c]++
				rem--
			}
		}
	}
	return cols
}

// String renders a compact one-line summary, useful for debug logging.
func (l *Log) String() string {
	s := l.Snapshot()
	return fmt.Sprintf("count=%d min=%dus max=%dus mean=%.1fus p50=%dus p99=%dus p100=%dus buckets=%d",
		s.Count, s.Min, s.Max, s.Mean, s.P50, s.P99, s.P100, s.BucketsUsed)
}

// CheckInvariants validates that the bucket span sequence is
// non-decreasing with consecutive ratio in {1,2}, gapless, and
// non-overlapping, and that bucket counts sum to the total. A violation
// indicates a bug in this package, not recoverable state in the caller.
func (l *Log) CheckInvariants() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.empty {
		return nil
	}
	if len(l.buckets) > MaxBuckets {
		return fmt.Errorf("latency: %d buckets exceeds cap %d", len(l.buckets), MaxBuckets)
	}
	var sum uint64
	for i, b := range l.buckets {
		if b.span <= 0 {
			return fmt.Errorf("latency: bucket %d has non-positive span %d", i, b.span)
		}
		sum += b.count
		if i == 0 {
			continue
		}
		prev := l.buckets[i-1]
		if prev.low+prev.span != b.low {
			return fmt.Errorf("latency: gap/overlap between bucket %d [%d,+%d) and bucket %d low %d",
				i-1, prev.low, prev.span, i, b.low)
		}
		if b.span != prev.span && b.span != 2*prev.span {
			return fmt.Errorf("latency: bucket %d span %d is not 1x or 2x bucket %d span %d", i, b.span, i-1, prev.span)
		}
	}
	if sum != l.total {
		return fmt.Errorf("latency: bucket counts sum to %d, total is %d", sum, l.total)
	}
	first, last := l.buckets[0], l.buckets[len(l.buckets)-1]
	if l.minSeen < first.low || l.minSeen >= first.low+first.span {
		return fmt.Errorf("latency: minSeen %d outside first bucket [%d,+%d)", l.minSeen, first.low, first.span)
	}
	if l.maxSeen < last.low || l.maxSeen >= last.low+last.span {
		return fmt.Errorf("latency: maxSeen %d outside last bucket [%d,+%d)", l.maxSeen, last.low, last.span)
	}
	return nil
}
