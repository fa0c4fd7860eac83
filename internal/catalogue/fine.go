package catalogue

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/corretto/heapothesys-go/internal/arraylet"
	"github.com/corretto/heapothesys-go/internal/dictionary"
	"github.com/corretto/heapothesys-go/internal/model"
)

// keywordSet is one keyword's id set, independently lockable so two
// unrelated keywords never contend with each other.
type keywordSet struct {
	mu  sync.Mutex
	ids map[model.ProductID]struct{}
}

// invertedIndex is a top-level keyword map with its own short mutex
// guarding only the creation of new keyword entries; membership changes
// within an existing keyword's set are serialized by that set's own
// mutex instead.
type invertedIndex struct {
	mu   sync.Mutex
	sets map[string]*keywordSet
}

func newInvertedIndex() *invertedIndex {
	return &invertedIndex{sets: make(map[string]*keywordSet)}
}

func (idx *invertedIndex) setFor(word string) *keywordSet {
	idx.mu.Lock()
	s, ok := idx.sets[word]
	if !ok {
		s = &keywordSet{ids: make(map[model.ProductID]struct{})}
		idx.sets[word] = s
	}
	idx.mu.Unlock()
	return s
}

func (idx *invertedIndex) lookup(word string) (*keywordSet, bool) {
	idx.mu.Lock()
	s, ok := idx.sets[word]
	idx.mu.Unlock()
	return s, ok
}

func (idx *invertedIndex) add(word string, id model.ProductID) {
	s := idx.setFor(word)
	s.mu.Lock()
	s.ids[id] = struct{}{}
	s.mu.Unlock()
}

func (idx *invertedIndex) remove(word string, id model.ProductID) {
	s, ok := idx.lookup(word)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
}

func (idx *invertedIndex) snapshot(word string) []model.ProductID {
	s, ok := idx.lookup(word)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ProductID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

// fineCatalogue replaces the single controller of coarseCatalogue with a
// cluster of short-scope mutexes: one for the slot sequence, one for the
// id map, and one per keyword set inside each index (plus each index's
// own mutex guarding new-keyword creation). Lock order, when a single
// operation must hold more than one, is always slots -> ids -> index ->
// keyword-set. This admits lost-update races between a concurrent
// ReplaceRandom and a reader (a reader may see a just-retired id, or miss
// a just-installed one) by design.
type fineCatalogue struct {
	slotsMu sync.Mutex
	slots   *arraylet.Arraylet[model.ProductID]

	idsMu sync.Mutex
	ids   map[model.ProductID]*model.Product

	nameIdx *invertedIndex
	descIdx *invertedIndex

	gen *idGenerator
}

// NewFineGrained builds a fine-grained-mode Catalogue. maxChunk is the
// Arraylet chunk ceiling backing the slot sequence; 0 requests a flat
// allocation.
func NewFineGrained(numProducts int, rng *rand.Rand, dict dictionary.Dictionary, nameWords, descWords, maxChunk int) Catalogue {
	return NewFineGrainedFromProducts(seedCatalogue(numProducts, rng, dict, nameWords, descWords), maxChunk)
}

// NewFineGrainedFromProducts builds a fine-grained-mode Catalogue seeded
// directly from an explicit product set.
func NewFineGrainedFromProducts(products []*model.Product, maxChunk int) Catalogue {
	slots, err := arraylet.New[model.ProductID](maxChunk, len(products))
	if err != nil {
		panic(fmt.Sprintf("catalogue: building slot arraylet: %v", err))
	}
	c := &fineCatalogue{
		slots:   slots,
		ids:     make(map[model.ProductID]*model.Product, len(products)),
		nameIdx: newInvertedIndex(),
		descIdx: newInvertedIndex(),
	}
	var maxID model.ProductID
	for i, p := range products {
		if err := c.slots.Set(i, p.ID); err != nil {
			panic(fmt.Sprintf("catalogue: seeding slot %d: %v", i, err))
		}
		c.ids[p.ID] = p
		for _, w := range model.Words(p.Name) {
			c.nameIdx.add(w, p.ID)
		}
		for _, w := range model.Words(p.Description) {
			c.descIdx.add(w, p.ID)
		}
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	c.gen = newIDGenerator(maxID)
	return c
}

func (c *fineCatalogue) Len() int {
	c.slotsMu.Lock()
	defer c.slotsMu.Unlock()
	return c.slots.Len()
}

func (c *fineCatalogue) readSlot(i int) (model.ProductID, bool) {
	c.slotsMu.Lock()
	defer c.slotsMu.Unlock()
	id, err := c.slots.Get(i)
	if err != nil {
		return model.NoProduct, false
	}
	return id, true
}

func (c *fineCatalogue) writeSlot(i int, id model.ProductID) {
	c.slotsMu.Lock()
	if err := c.slots.Set(i, id); err != nil {
		c.slotsMu.Unlock()
		panic(fmt.Sprintf("catalogue: writing slot %d: %v", i, err))
	}
	c.slotsMu.Unlock()
}

func (c *fineCatalogue) lookupProduct(id model.ProductID) (*model.Product, bool) {
	c.idsMu.Lock()
	defer c.idsMu.Unlock()
	p, ok := c.ids[id]
	return p, ok
}

func (c *fineCatalogue) FetchByIndex(i int) (*model.Product, bool) {
	id, ok := c.readSlot(i)
	if !ok || id == model.NoProduct {
		return nil, false
	}
	// The slot read and the id-map read are two independent critical
	// sections; a concurrent ReplaceRandom may retire or replace the
	// product in between, which is the accepted lost-update window.
	return c.lookupProduct(id)
}

func (c *fineCatalogue) ByID(id model.ProductID) (*model.Product, bool) {
	return c.lookupProduct(id)
}

func (c *fineCatalogue) idsSnapshot() map[model.ProductID]*model.Product {
	c.idsMu.Lock()
	defer c.idsMu.Unlock()
	out := make(map[model.ProductID]*model.Product, len(c.ids))
	for id, p := range c.ids {
		out[id] = p
	}
	return out
}

func (c *fineCatalogue) MatchAny(keywords []string) []*model.Product {
	seen := make(map[model.ProductID]struct{})
	var out []*model.Product
	for _, kw := range keywords {
		ids := append(c.nameIdx.snapshot(kw), c.descIdx.snapshot(kw)...)
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			p, ok := c.lookupProduct(id)
			if !ok || !p.Available() {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func (c *fineCatalogue) unionForKeyword(kw string) map[model.ProductID]*model.Product {
	out := make(map[model.ProductID]*model.Product)
	ids := append(c.nameIdx.snapshot(kw), c.descIdx.snapshot(kw)...)
	for _, id := range ids {
		if p, ok := c.lookupProduct(id); ok && p.Available() {
			out[id] = p
		}
	}
	return out
}

func (c *fineCatalogue) MatchAll(keywords []string) []*model.Product {
	if len(keywords) == 0 {
		return nil
	}
	acc := c.unionForKeyword(keywords[0])
	for _, kw := range keywords[1:] {
		if len(acc) == 0 {
			return nil
		}
		next := c.unionForKeyword(kw)
		for id := range acc {
			if _, ok := next[id]; !ok {
				delete(acc, id)
			}
		}
	}
	out := make([]*model.Product, 0, len(acc))
	for _, p := range acc {
		out = append(out, p)
	}
	return out
}

func (c *fineCatalogue) ReplaceRandom(rng *rand.Rand, dict dictionary.Dictionary, nameWords, descWords int) *model.Product {
	c.slotsMu.Lock()
	i := rng.Intn(c.slots.Len())
	oldID, err := c.slots.Get(i)
	if err != nil {
		c.slotsMu.Unlock()
		panic(fmt.Sprintf("catalogue: reading slot %d: %v", i, err))
	}
	if err := c.slots.Set(i, model.NoProduct); err != nil {
		c.slotsMu.Unlock()
		panic(fmt.Sprintf("catalogue: clearing slot %d: %v", i, err))
	}
	c.slotsMu.Unlock()

	if old, ok := c.lookupProduct(oldID); ok {
		old.Retire()
		for _, w := range model.Words(old.Name) {
			c.nameIdx.remove(w, oldID)
		}
		for _, w := range model.Words(old.Description) {
			c.descIdx.remove(w, oldID)
		}
	}

	newID := c.gen.next_()
	fresh := mintProduct(newID, rng, dict, nameWords, descWords)

	c.idsMu.Lock()
	c.ids[newID] = fresh
	c.idsMu.Unlock()

	// The name-index and description-index updates are separate critical
	// sections, so a concurrent reader may see fresh indexed under its name
	// words but not yet under its description words (and the reverse for
	// the removals above).
	for _, w := range model.Words(fresh.Name) {
		c.nameIdx.add(w, newID)
	}
	for _, w := range model.Words(fresh.Description) {
		c.descIdx.add(w, newID)
	}

	c.writeSlot(i, newID)
	return fresh
}
