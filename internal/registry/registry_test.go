package registry_test

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corretto/heapothesys-go/internal/clock"
	"github.com/corretto/heapothesys-go/internal/dictionary"
	"github.com/corretto/heapothesys-go/internal/model"
	"github.com/corretto/heapothesys-go/internal/registry"
)

func fixedCustomers() []*model.Customer {
	return []*model.Customer{
		model.NewCustomer(1, "ab cd"),
		model.NewCustomer(2, "ef gh"),
		model.NewCustomer(3, "ij kl"),
	}
}

func TestSelectRandomReturnsLiveCustomer(t *testing.T) {
	r := registry.NewCoarseFromCustomers(fixedCustomers(), 0)
	rng := rand.New(rand.NewSource(1))
	c, ok := r.SelectRandom(rng)
	if !ok || c == nil {
		t.Fatal("expected a live customer")
	}
}

func TestAddSaveForLaterVisibleOnCustomer(t *testing.T) {
	r := registry.NewCoarseFromCustomers(fixedCustomers(), 0)
	rng := rand.New(rand.NewSource(1))
	c, _ := r.SelectRandom(rng)

	h := model.NewBrowsingHistory(c.ID, 1, clock.Now().Add(clock.NewRelative(time.Hour)), 0)
	r.AddSaveForLater(c, h)

	if got := len(c.SaveForLater()); got != 1 {
		t.Fatalf("SaveForLater() len = %d, want 1", got)
	}
}

func TestReplaceRandomDrainsSaveForLater(t *testing.T) {
	r := registry.NewCoarseFromCustomers(fixedCustomers(), 0)
	dict := dictionary.NewSliceDictionary([]string{"mn", "op", "qr", "st"})

	rng := rand.New(rand.NewSource(1))
	c, _ := r.SelectRandom(rng)
	h := model.NewBrowsingHistory(c.ID, 1, clock.Now().Add(clock.NewRelative(time.Hour)), 0)
	r.AddSaveForLater(c, h)

	var retired []*model.BrowsingHistory
	for seed := int64(0); seed < 50; seed++ {
		rr := rand.New(rand.NewSource(seed))
		retired = nil
		fresh := r.ReplaceRandom(rr, dict, func(bh *model.BrowsingHistory) {
			retired = append(retired, bh)
		})
		require.NotEmpty(t, fresh.Name)
		if len(retired) > 0 {
			break
		}
	}
	if got := r.Len(); got != 3 {
		t.Fatalf("Len() after replace = %d, want 3", got)
	}
	require.Len(t, retired, 1, "replacing c should hand its save-for-later entry to onRetire")
	require.Same(t, h, retired[0])
	require.Empty(t, c.SaveForLater())
}

func TestGeneratedNamesAreUnique(t *testing.T) {
	r := registry.NewCoarseFromCustomers(fixedCustomers(), 0)
	dict := dictionary.NewSliceDictionary([]string{"a", "b"})
	rng := rand.New(rand.NewSource(9))

	names := make(map[string]struct{})
	for i := 0; i < 10; i++ {
		fresh := r.ReplaceRandom(rng, dict, nil)
		_, dup := names[fresh.Name]
		require.False(t, dup, "duplicate generated name %q", fresh.Name)
		names[fresh.Name] = struct{}{}
	}
}

func TestPhasedReplaceIsInvisibleUntilRebuild(t *testing.T) {
	r := registry.NewPhasedFromCustomers(fixedCustomers(), 0)
	dict := dictionary.NewSliceDictionary([]string{"mn", "op"})
	rng := rand.New(rand.NewSource(2))

	countBefore := r.Len()
	fresh := r.ReplaceRandom(rng, dict, nil)

	for seed := int64(0); seed < 50; seed++ {
		c, ok := r.SelectRandom(rand.New(rand.NewSource(seed)))
		require.True(t, ok)
		require.NotEqual(t, fresh.Name, c.Name, "replacement visible before Rebuild")
	}

	rebuild, ok := registry.Rebuilder(r, nil)
	if !ok {
		t.Fatal("expected phased registry to expose a rebuilder")
	}
	rebuild()
	rebuild()

	require.Equal(t, countBefore, r.Len())

	visible := false
	for seed := int64(0); seed < 50 && !visible; seed++ {
		c, ok := r.SelectRandom(rand.New(rand.NewSource(seed)))
		require.True(t, ok)
		visible = c.Name == fresh.Name
	}
	require.True(t, visible, "replacement not visible after Rebuild")
}

func TestConcurrentSelectAndReplaceCoarse(t *testing.T) {
	customers := make([]*model.Customer, 50)
	for i := range customers {
		customers[i] = model.NewCustomer(model.CustomerID(i+1), string(rune('a'+i%26))+string(rune('A'+i%26)))
	}
	r := registry.NewCoarseFromCustomers(customers, 0)
	dict := dictionary.NewSliceDictionary([]string{"x1", "x2", "x3", "x4", "x5", "x6"})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rr := rand.New(rand.NewSource(seed))
			for i := 0; i < 20; i++ {
				r.ReplaceRandom(rr, dict, nil)
			}
		}(int64(w))
	}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rr := rand.New(rand.NewSource(seed + 100))
			for i := 0; i < 100; i++ {
				r.SelectRandom(rr)
			}
		}(int64(w))
	}
	wg.Wait()

	require.Equal(t, 50, r.Len())
}
