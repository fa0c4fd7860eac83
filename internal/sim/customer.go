package sim

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/corretto/heapothesys-go/internal/clock"
	"github.com/corretto/heapothesys-go/internal/dictionary"
	"github.com/corretto/heapothesys-go/internal/latency"
	"github.com/corretto/heapothesys-go/internal/logging"
	"github.com/corretto/heapothesys-go/internal/model"
)

// presentDecay and missingDecay tune the per-criteria weight applied when
// scoring a candidate's synthetic review: weight shrinks by presentDecay
// after a criteria word that did overlap the review, and by the steeper
// missingDecay after one that didn't, so earlier (higher-priority)
// criteria dominate the score and a miss costs more than a partial hit.
const (
	presentDecay = 0.85
	missingDecay = 0.5
)

// runCustomerWorker drives customer worker slot id on its staggered
// release schedule until ctx ends. Samples taken before warmupEnd are
// dropped, so the warmup period's JIT/cache-fill noise never reaches log.
func (s *Scheduler) runCustomerWorker(ctx context.Context, id int, start, warmupEnd clock.Absolute, period, thinkTime time.Duration, log *latency.Log) {
	rng := seedRNG(s.cfg.RandomSeed, "customer", id)
	stagger := period / time.Duration(s.cfg.CustomerThreads)
	next := start.Add(clock.NewRelative(stagger * time.Duration(id)))

	browsingIdx := id % intMax1(int(s.cfg.BrowsingHistoryQueueCount))
	salesIdx := id % intMax1(int(s.cfg.SalesTransactionQueueCount))

	for {
		if ctx.Err() != nil {
			return
		}
		clock.SleepUntil(next)
		if ctx.Err() != nil {
			return
		}

		workStart := clock.Now()
		s.customerUnitOfWork(ctx, rng, id, browsingIdx, salesIdx, thinkTime)
		s.recordSample(log, warmupEnd, workStart, clock.Now().Sub(workStart).Duration())

		next = next.Add(clock.NewRelative(period))
	}
}

func intMax1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// customerUnitOfWork implements one customer period: select a customer,
// search the catalogue, union in its save-for-later products, score every
// candidate's synthetic review against random selection criteria, and
// buy/save/drop the best match.
func (s *Scheduler) customerUnitOfWork(ctx context.Context, rng *rand.Rand, workerID, browsingIdx, salesIdx int, thinkTime time.Duration) {
	customer, ok := s.reg.SelectRandom(rng)
	if !ok {
		return
	}

	keywords := distinctNonSubstringKeywords(rng, s.dict, int(s.cfg.KeywordSearchCount))

	candidates := s.cat.MatchAll(keywords)
	if s.cfg.AllowAnyMatch {
		candidates = append(candidates, s.cat.MatchAny(keywords)...)
	}
	candidates = append(candidates, s.saveForLaterProducts(customer)...)
	candidates = dedupeProducts(candidates)

	if len(candidates) == 0 {
		s.logger.Debug("no-choice", logging.WorkerFields(fmt.Sprintf("customer-%d", workerID), "no_choice", browsingIdx)...)
		sleepOrDone(ctx, thinkTime)
		return
	}

	pick := func(size int) int { return rng.Intn(size) }
	reviews := make([]string, len(candidates))
	for i := range candidates {
		reviews[i] = dictionary.RandomWords(s.dict, int(s.cfg.ProductReviewLength), pick)
	}

	sleepOrDone(ctx, thinkTime)

	criteria := make([]string, s.cfg.SelectionCriteriaCount)
	for i := range criteria {
		criteria[i] = s.dict.Word(rng.Intn(s.dict.Size()))
	}

	bestIdx := 0
	bestScore := -1.0
	for i, review := range reviews {
		if score := scoreReview(review, criteria); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	chosen := candidates[bestIdx]

	r := rng.Float64()
	switch {
	case r < s.cfg.BuyThreshold:
		tx := model.NewSalesTransaction(customer.ID, chosen.ID, reviews[bestIdx], clock.Now())
		s.salesQueues[salesIdx].Enqueue(tx)
	case r < s.cfg.BuyThreshold+s.cfg.SaveForLaterThreshold:
		h := model.NewBrowsingHistory(customer.ID, chosen.ID, clock.Now().Add(clock.NewRelative(s.cfg.BrowsingExpiration)), browsingIdx)
		handle := s.browsingQueues[browsingIdx].Enqueue(h)
		h.SetHandle(handle)
		s.reg.AddSaveForLater(customer, h)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// saveForLaterProducts resolves a customer's save-for-later histories
// back to live catalogue products. A product that has since been retired
// (or a history whose queue entry already expired) is silently dropped,
// not an error: save-for-later references a product by id, and ids
// outlive their slot occupancy.
func (s *Scheduler) saveForLaterProducts(c *model.Customer) []*model.Product {
	histories := c.SaveForLater()
	out := make([]*model.Product, 0, len(histories))
	now := clock.Now()
	for _, h := range histories {
		if !h.ExpiresAt().After(now) {
			continue
		}
		p, ok := s.cat.ByID(h.Product)
		if !ok || !p.Available() {
			continue
		}
		out = append(out, p)
	}
	return out
}

func dedupeProducts(in []*model.Product) []*model.Product {
	seen := make(map[model.ProductID]struct{}, len(in))
	out := make([]*model.Product, 0, len(in))
	for _, p := range in {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// distinctNonSubstringKeywords draws n dictionary words such that no
// drawn word is a substring of (or equal to) any other, retrying on
// collision. With a dictionary sized sensibly relative to n this
// terminates quickly; maxAttempts bounds worst-case pathological input
// rather than looping forever.
func distinctNonSubstringKeywords(rng *rand.Rand, dict dictionary.Dictionary, n int) []string {
	const maxAttempts = 200
	out := make([]string, 0, n)
	for len(out) < n {
		ok := false
		for attempt := 0; attempt < maxAttempts; attempt++ {
			candidate := dict.Word(rng.Intn(dict.Size()))
			if isDistinctNonSubstring(candidate, out) {
				out = append(out, candidate)
				ok = true
				break
			}
		}
		if !ok {
			// Dictionary too small/collision-prone to satisfy the
			// constraint; accept one more random word without the
			// distinctness check rather than loop forever.
			candidate := dict.Word(rng.Intn(dict.Size()))
			out = append(out, candidate)
		}
	}
	return out
}

func isDistinctNonSubstring(candidate string, existing []string) bool {
	for _, w := range existing {
		if w == candidate || containsSubstring(w, candidate) || containsSubstring(candidate, w) {
			return false
		}
	}
	return true
}

func containsSubstring(s, sub string) bool {
	return len(sub) > 0 && len(sub) <= len(s) && indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// scoreReview computes a deterministic similarity score between review
// and criteria: criteria are weighted in the order given (first is most
// important), each contributing its longest-common-substring length
// (normalized by the criteria word's length) times the running weight.
// The weight decays by presentDecay after a word that matched at all and
// by the steeper missingDecay after one that didn't.
func scoreReview(review string, criteria []string) float64 {
	score := 0.0
	weight := 1.0
	for _, c := range criteria {
		if len(c) == 0 {
			continue
		}
		lcs := longestCommonSubstring(review, c)
		ratio := float64(lcs) / float64(len(c))
		score += ratio * weight
		if lcs == 0 {
			weight *= missingDecay
		} else {
			weight *= presentDecay
		}
	}
	return score
}

// longestCommonSubstring returns the length of the longest contiguous
// run shared by a and b, via the standard O(len(a)*len(b)) DP over a
// single rolling row.
func longestCommonSubstring(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return best
}
