// Package registry implements the customer registry: a fixed-length slot
// sequence of customer names plus a name-to-customer map, in the same
// three concurrency flavors as internal/catalogue (coarse, fine-grained,
// phased). ReplaceRandom's generated name must be unique among
// currently-live customers, and retiring a customer drains its
// save-for-later set back to the caller so internal/sim (which owns the
// BrowsingHistoryQueue table) can unlink each entry from its queue.
package registry

import (
	"math/rand"
	"sync/atomic"

	"github.com/corretto/heapothesys-go/internal/dictionary"
	"github.com/corretto/heapothesys-go/internal/model"
)

// OnRetire is called once per save-for-later entry of a customer being
// replaced, so the caller can remove it from whichever queue owns it.
type OnRetire func(h *model.BrowsingHistory)

// Registry is the read/write surface every concurrency mode exposes.
type Registry interface {
	// SelectRandom returns a uniformly random live customer.
	SelectRandom(rng *rand.Rand) (*model.Customer, bool)

	// ReplaceRandom retires a uniformly random slot's occupant (invoking
	// onRetire for each of its save-for-later entries) and installs a
	// freshly minted customer with a unique two-word name, returning it.
	ReplaceRandom(rng *rand.Rand, dict dictionary.Dictionary, onRetire OnRetire) *model.Customer

	// AddSaveForLater registers h on c's save-for-later set.
	AddSaveForLater(c *model.Customer, h *model.BrowsingHistory)

	// Len reports the fixed slot count (NumCustomers).
	Len() int
}

type idGenerator struct {
	next atomic.Uint64
}

func newIDGenerator(startAbove model.CustomerID) *idGenerator {
	g := &idGenerator{}
	g.next.Store(uint64(startAbove) + 1)
	return g
}

func (g *idGenerator) next_() model.CustomerID {
	return model.CustomerID(g.next.Add(1) - 1)
}

// generateName draws two dictionary words, regenerating while the result
// collides with an entry in taken. Dictionary size must be large enough
// for two-word names to be drawable from a space greater than the
// customer count; this loop does not bound its iteration count.
func generateName(rng *rand.Rand, dict dictionary.Dictionary, taken func(name string) bool) string {
	for {
		pick := func(size int) int { return rng.Intn(size) }
		name := dictionary.RandomWords(dict, 2, pick)
		if !taken(name) {
			return name
		}
	}
}

func seedCustomers(numCustomers int, rng *rand.Rand, dict dictionary.Dictionary) []*model.Customer {
	out := make([]*model.Customer, numCustomers)
	seen := make(map[string]struct{}, numCustomers)
	for i := range out {
		name := generateName(rng, dict, func(n string) bool {
			_, ok := seen[n]
			return ok
		})
		seen[name] = struct{}{}
		out[i] = model.NewCustomer(model.CustomerID(i+1), name)
	}
	return out
}

// drainSaveForLater invokes onRetire for every entry in c's save-for-later
// set and clears it.
func drainSaveForLater(c *model.Customer, onRetire OnRetire) {
	for _, h := range c.SaveForLater() {
		if onRetire != nil {
			onRetire(h)
		}
		c.RemoveSaveForLater(h.CustomerSeq())
	}
}
