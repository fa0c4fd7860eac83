package sim

import (
	"context"
	"math/rand"
	"time"

	"github.com/corretto/heapothesys-go/internal/clock"
	"github.com/corretto/heapothesys-go/internal/latency"
	"github.com/corretto/heapothesys-go/internal/model"
)

// attention point names, round-robin order.
const (
	attentionDrainSales       = "drain_sales_queue"
	attentionPopExpired       = "pop_expired_browsing"
	attentionReplaceCustomers = "replace_customers"
	attentionReplaceProducts  = "replace_products"
	attentionIdle             = "idle"
)

var attentionNames = [...]string{
	attentionDrainSales,
	attentionPopExpired,
	attentionReplaceCustomers,
	attentionReplaceProducts,
	attentionIdle,
}

// attentionLogs groups one LatencyLog per attention point, shared across
// every server worker (each Log is internally mutex-guarded, so
// concurrent workers recording into the same attention's log is safe).
type attentionLogs struct {
	logs map[string]*latency.Log
}

func newAttentionLogs() *attentionLogs {
	a := &attentionLogs{logs: make(map[string]*latency.Log, len(attentionNames))}
	for _, name := range attentionNames {
		a.logs[name] = latency.New(0)
	}
	return a
}

// serverState is the per-worker mutable bookkeeping carried between
// attention-point invocations: which point comes next, and when each
// replacement job last ran.
type serverState struct {
	cursor                  int
	lastCustomerReplacement clock.Absolute
	lastProductReplacement  clock.Absolute
}

// runServerWorker drives server worker slot id on its staggered release
// schedule until ctx ends, round-robining over the five attention points.
// Samples taken before warmupEnd are dropped, so the warmup period's
// JIT/cache-fill noise never reaches log or attn.
func (s *Scheduler) runServerWorker(ctx context.Context, id int, start, warmupEnd clock.Absolute, period time.Duration, attn *attentionLogs, log *latency.Log) {
	rng := seedRNG(s.cfg.RandomSeed, "server", id)
	stagger := period / time.Duration(s.cfg.ServerThreads)
	next := start.Add(clock.NewRelative(stagger * time.Duration(id)))

	salesIdx := id % intMax1(int(s.cfg.SalesTransactionQueueCount))
	browsingIdx := id % intMax1(int(s.cfg.BrowsingHistoryQueueCount))

	state := &serverState{lastCustomerReplacement: start, lastProductReplacement: start}

	for {
		if ctx.Err() != nil {
			return
		}
		clock.SleepUntil(next)
		if ctx.Err() != nil {
			return
		}

		workStart := clock.Now()
		s.serverAttentionStep(rng, id, salesIdx, browsingIdx, state, attn, warmupEnd)
		s.recordSample(log, warmupEnd, workStart, clock.Now().Sub(workStart).Duration())

		next = next.Add(clock.NewRelative(period))
	}
}

// serverAttentionStep performs exactly one of the five attention points,
// chosen round-robin by state.cursor, and records one sample into that
// point's own LatencyLog.
func (s *Scheduler) serverAttentionStep(rng *rand.Rand, workerID, salesIdx, browsingIdx int, state *serverState, attn *attentionLogs, warmupEnd clock.Absolute) {
	point := attentionNames[state.cursor]
	state.cursor = (state.cursor + 1) % len(attentionNames)

	start := clock.Now()
	switch point {
	case attentionDrainSales:
		s.drainSales(salesIdx, attn.logs[attentionDrainSales], warmupEnd)
	case attentionPopExpired:
		s.popExpiredBrowsing(browsingIdx)
	case attentionReplaceCustomers:
		s.maybeReplaceCustomers(rng, state)
	case attentionReplaceProducts:
		s.maybeReplaceProducts(rng, state)
	case attentionIdle:
		// Do-nothing attention point; the sample below still records
		// its (near-zero) elapsed time.
	}
	s.recordSample(attn.logs[point], warmupEnd, start, clock.Now().Sub(start).Duration())
}

// drainSales empties the worker's sales queue in one batch and records
// each transaction's enqueue-to-dequeue latency.
func (s *Scheduler) drainSales(salesIdx int, log *latency.Log, warmupEnd clock.Absolute) {
	now := clock.Now()
	for _, tx := range s.salesQueues[salesIdx].DrainAll() {
		st, ok := tx.(*model.SalesTransaction)
		if !ok {
			continue
		}
		s.recordSample(log, warmupEnd, now, now.Sub(st.EnqueuedAt).Duration())
	}
}

// popExpiredBrowsing pops every already-expired head entry off the
// worker's browsing queue. A popped entry's customer-side save-for-later
// reference is left in place and reaped lazily on that customer's next
// replacement, rather than looked up here by id (the registry's id space
// is scoped to name lookups for ReplaceRandom/SelectRandom, not an
// arbitrary id-to-customer index).
func (s *Scheduler) popExpiredBrowsing(browsingIdx int) {
	now := clock.Now()
	for {
		if _, ok := s.browsingQueues[browsingIdx].PopIfExpired(now); !ok {
			return
		}
	}
}

func (s *Scheduler) maybeReplaceCustomers(rng *rand.Rand, state *serverState) {
	now := clock.Now()
	if now.Sub(state.lastCustomerReplacement).Duration() < s.cfg.CustomerReplacementPeriod {
		return
	}
	for i := uint32(0); i < s.cfg.CustomerReplacementCount; i++ {
		s.reg.ReplaceRandom(rng, s.dict, s.onCustomerRetire)
		if s.metrics != nil {
			s.metrics.IncReplacement("customer")
		}
	}
	state.lastCustomerReplacement = now
}

func (s *Scheduler) maybeReplaceProducts(rng *rand.Rand, state *serverState) {
	now := clock.Now()
	if now.Sub(state.lastProductReplacement).Duration() < s.cfg.ProductReplacementPeriod {
		return
	}
	for i := uint32(0); i < s.cfg.ProductReplacementCount; i++ {
		s.cat.ReplaceRandom(rng, s.dict, int(s.cfg.ProductNameLength), int(s.cfg.ProductDescriptionLength))
		if s.metrics != nil {
			s.metrics.IncReplacement("product")
		}
	}
	state.lastProductReplacement = now
}
