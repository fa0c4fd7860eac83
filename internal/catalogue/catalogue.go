// Package catalogue implements the product catalogue and its two keyword
// inverted indexes, in three concurrency flavors selected at construction
// time: coarse (a single fair reader/writer lock), fine-grained (a cluster
// of short-scope mutexes, admitting lost-update races against a
// concurrent replace), and phased (immutable snapshot plus a change-log
// rebuilder). All three implement the same Catalogue interface so
// internal/sim can be written against it without caring which mode is
// active.
package catalogue

import (
	"math/rand"
	"sync/atomic"

	"github.com/corretto/heapothesys-go/internal/dictionary"
	"github.com/corretto/heapothesys-go/internal/model"
)

// Catalogue is the read/write surface every concurrency mode exposes.
type Catalogue interface {
	// FetchByIndex returns the product currently occupying slot i, or
	// (nil, false) if the slot is empty (the id sentinel) or the slot
	// index is out of range.
	FetchByIndex(i int) (*model.Product, bool)

	// ByID returns the product with the given id, or (nil, false) if no
	// live slot currently holds it. Used to resolve a customer's
	// save-for-later products, which are referenced by id rather than
	// slot (a slot's occupant can change out from under a stale index).
	ByID(id model.ProductID) (*model.Product, bool)

	// MatchAny returns every live, available product whose name or
	// description contains at least one of keywords.
	MatchAny(keywords []string) []*model.Product

	// MatchAll returns every live, available product whose name or
	// description contains all of keywords.
	MatchAll(keywords []string) []*model.Product

	// ReplaceRandom retires a uniformly random slot's occupant and
	// installs a freshly minted product with nameWords/descWords random
	// dictionary words, returning the new product.
	ReplaceRandom(rng *rand.Rand, dict dictionary.Dictionary, nameWords, descWords int) *model.Product

	// Len reports the fixed slot count (NumProducts).
	Len() int
}

// idGenerator mints monotonic, globally unique product ids starting above
// whatever ids were assigned at construction.
type idGenerator struct {
	next atomic.Uint64
}

func newIDGenerator(startAbove model.ProductID) *idGenerator {
	g := &idGenerator{}
	g.next.Store(uint64(startAbove) + 1)
	return g
}

func (g *idGenerator) next_() model.ProductID {
	return model.ProductID(g.next.Add(1) - 1)
}

// mintProduct builds a new available Product with freshly generated
// dictionary-word name/description.
func mintProduct(id model.ProductID, rng *rand.Rand, dict dictionary.Dictionary, nameWords, descWords int) *model.Product {
	pick := func(size int) int { return rng.Intn(size) }
	name := dictionary.RandomWords(dict, nameWords, pick)
	desc := dictionary.RandomWords(dict, descWords, pick)
	return model.NewProduct(id, name, desc)
}

// seedCatalogue mints the initial NumProducts products, with ids 1 through
// numProducts, for handoff to whichever concurrency mode's constructor.
func seedCatalogue(numProducts int, rng *rand.Rand, dict dictionary.Dictionary, nameWords, descWords int) []*model.Product {
	out := make([]*model.Product, numProducts)
	for i := range out {
		out[i] = mintProduct(model.ProductID(i+1), rng, dict, nameWords, descWords)
	}
	return out
}
