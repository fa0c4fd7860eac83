package catalogue_test

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corretto/heapothesys-go/internal/catalogue"
	"github.com/corretto/heapothesys-go/internal/dictionary"
	"github.com/corretto/heapothesys-go/internal/model"
)

func namesOf(words []string) *dictionary.SliceDictionary {
	return dictionary.NewSliceDictionary(words)
}

func fixedProducts() []*model.Product {
	return []*model.Product{
		model.NewProduct(1, "red hat", ""),
		model.NewProduct(2, "red shoe", ""),
		model.NewProduct(3, "blue hat", ""),
	}
}

// Keyword all-match vs any-match over a small fixed catalogue.
func TestScenarioS3KeywordMatching(t *testing.T) {
	ctors := map[string]func([]*model.Product, int) catalogue.Catalogue{
		"coarse": catalogue.NewCoarseFromProducts,
		"fine":   catalogue.NewFineGrainedFromProducts,
		"phased": catalogue.NewPhasedFromProducts,
	}
	for name, ctor := range ctors {
		t.Run(name, func(t *testing.T) {
			c := ctor(fixedProducts(), 0)

			any := c.MatchAny([]string{"red", "hat"})
			require.Len(t, any, 3, "matches-any should return all three products")

			all := c.MatchAll([]string{"red", "hat"})
			require.Len(t, all, 1, "matches-all should return exactly one product")
			require.Equal(t, "red hat", all[0].Name)
		})
	}
}

func TestFetchByIndexReturnsMintedProduct(t *testing.T) {
	dict := namesOf([]string{"alpha", "beta", "gamma", "delta"})
	rng := rand.New(rand.NewSource(42))
	c := catalogue.NewCoarse(5, rng, dict, 2, 2, 0)

	p, ok := c.FetchByIndex(0)
	if !ok || p == nil {
		t.Fatal("expected a product at slot 0")
	}
	if _, ok := c.FetchByIndex(5); ok {
		t.Fatal("expected out-of-range fetch to report false")
	}
}

func TestReplaceRandomRemovesOldFromIndexes(t *testing.T) {
	c := catalogue.NewCoarseFromProducts(fixedProducts(), 0)

	before := c.MatchAny([]string{"red"})
	if len(before) != 2 {
		t.Fatalf("before replace, MatchAny(red) = %d, want 2", len(before))
	}

	// Replace until slot 0 (the "red hat" product) is hit; deterministic
	// seed search keeps this bounded and avoids flakiness.
	var replaced *model.Product
	for seed := int64(0); seed < 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		fresh := c.ReplaceRandom(rng, namesOf([]string{"teal", "sock"}), 2, 0)
		if p, _ := c.FetchByIndex(0); p.ID == fresh.ID {
			replaced = fresh
			break
		}
	}
	if replaced == nil {
		t.Skip("replacement never landed on slot 0 within search budget")
	}

	after := c.MatchAny([]string{"red", "hat"})
	for _, p := range after {
		if p.Name == "red hat" {
			t.Fatal("retired product still reachable via keyword index")
		}
	}
}

// Replacement under coarse lock with concurrent readers/writers.
func TestScenarioS5ReplacementUnderCoarseLock(t *testing.T) {
	dict := namesOf([]string{"alpha", "beta", "gamma", "delta", "epsilon"})
	rng := rand.New(rand.NewSource(7))
	c := catalogue.NewCoarse(100, rng, dict, 2, 2, 0)

	deadline := time.Now().Add(300 * time.Millisecond)
	var wg sync.WaitGroup

	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 50; i++ {
				c.ReplaceRandom(r, dict, 2, 2)
			}
		}(int64(1000 + w))
	}

	for r := 0; r < 10; r++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rr := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				c.FetchByIndex(rr.Intn(100))
				c.MatchAny([]string{"alpha", "beta"})
			}
		}(int64(2000 + r))
	}
	wg.Wait()

	require.Equal(t, 100, c.Len())

	seen := make(map[uint64]struct{})
	for i := 0; i < 100; i++ {
		p, ok := c.FetchByIndex(i)
		require.True(t, ok, "slot %d unexpectedly empty", i)
		_, dup := seen[uint64(p.ID)]
		require.False(t, dup, "duplicate product id %d across slots", p.ID)
		seen[uint64(p.ID)] = struct{}{}
	}
}

func TestPhasedReplaceIsInvisibleUntilRebuild(t *testing.T) {
	c := catalogue.NewPhasedFromProducts(fixedProducts(), 0)

	before, _ := c.FetchByIndex(0)
	rng := rand.New(rand.NewSource(3))
	fresh := c.ReplaceRandom(rng, namesOf([]string{"teal"}), 1, 0)

	after, _ := c.FetchByIndex(0)
	if after.ID == fresh.ID {
		t.Fatal("replacement should not be visible before Rebuild")
	}
	if before.ID != after.ID {
		t.Fatal("unrelated slot read changed before Rebuild")
	}

	rebuild, ok := catalogue.Rebuilder(c)
	if !ok {
		t.Fatal("expected phased catalogue to expose a rebuilder")
	}
	rebuild()
	rebuild() // idempotent on an empty log
}

func TestFineGrainedMatchAllAndAny(t *testing.T) {
	c := catalogue.NewFineGrainedFromProducts(fixedProducts(), 0)

	all := c.MatchAll([]string{"red", "hat"})
	if len(all) != 1 || all[0].Name != "red hat" {
		t.Fatalf("MatchAll(red,hat) unexpected result: %+v", all)
	}
	any := c.MatchAny([]string{"blue"})
	if len(any) != 1 || any[0].Name != "blue hat" {
		t.Fatalf("MatchAny(blue) unexpected result: %+v", any)
	}
}

func TestMatchAllEmptyKeywordAbsent(t *testing.T) {
	c := catalogue.NewCoarseFromProducts(fixedProducts(), 0)
	got := c.MatchAll([]string{"nonexistent"})
	if len(got) != 0 {
		t.Fatalf("MatchAll(nonexistent) = %d results, want 0", len(got))
	}
}
