package catalogue

import (
	"container/list"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/corretto/heapothesys-go/internal/arraylet"
	"github.com/corretto/heapothesys-go/internal/dictionary"
	"github.com/corretto/heapothesys-go/internal/model"
)

// catalogueSnapshot is an immutable point-in-time view. Readers load the
// current pointer once and then operate on it without further
// synchronization; it is never mutated in place.
type catalogueSnapshot struct {
	slots    *arraylet.Arraylet[model.ProductID]
	maxChunk int
	ids      map[model.ProductID]*model.Product
	nameIdx  map[string]map[model.ProductID]struct{}
	descIdx  map[string]map[model.ProductID]struct{}
}

func (s *catalogueSnapshot) clone() *catalogueSnapshot {
	slots, err := arraylet.New[model.ProductID](s.maxChunk, s.slots.Len())
	if err != nil {
		panic(fmt.Sprintf("catalogue: cloning slot arraylet: %v", err))
	}
	for i := 0; i < s.slots.Len(); i++ {
		id, err := s.slots.Get(i)
		if err != nil {
			panic(fmt.Sprintf("catalogue: reading slot %d during clone: %v", i, err))
		}
		if err := slots.Set(i, id); err != nil {
			panic(fmt.Sprintf("catalogue: writing slot %d during clone: %v", i, err))
		}
	}
	out := &catalogueSnapshot{
		slots:    slots,
		maxChunk: s.maxChunk,
		ids:      make(map[model.ProductID]*model.Product, len(s.ids)),
		nameIdx:  make(map[string]map[model.ProductID]struct{}, len(s.nameIdx)),
		descIdx:  make(map[string]map[model.ProductID]struct{}, len(s.descIdx)),
	}
	for id, p := range s.ids {
		out.ids[id] = p
	}
	for w, set := range s.nameIdx {
		ns := make(map[model.ProductID]struct{}, len(set))
		for id := range set {
			ns[id] = struct{}{}
		}
		out.nameIdx[w] = ns
	}
	for w, set := range s.descIdx {
		ns := make(map[model.ProductID]struct{}, len(set))
		for id := range set {
			ns[id] = struct{}{}
		}
		out.descIdx[w] = ns
	}
	return out
}

// changeRecord is one pending (slot, new product) replacement, appended
// by ReplaceRandom and drained by Rebuild.
type changeRecord struct {
	slot    int
	product *model.Product
}

// phasedCatalogue never mutates its live state directly: writers append
// to a change log, and a dedicated rebuilder (driven externally by
// internal/sim, woken every PhasedUpdateInterval) periodically folds the
// log into a fresh snapshot and swaps the pointer.
type phasedCatalogue struct {
	current atomic.Pointer[catalogueSnapshot]

	logMu sync.Mutex
	log   *list.List

	publishMu sync.Mutex

	gen *idGenerator
}

// NewPhased builds a phased-updates-mode Catalogue. maxChunk is the
// Arraylet chunk ceiling backing the slot sequence; 0 requests a flat
// allocation.
func NewPhased(numProducts int, rng *rand.Rand, dict dictionary.Dictionary, nameWords, descWords, maxChunk int) Catalogue {
	return NewPhasedFromProducts(seedCatalogue(numProducts, rng, dict, nameWords, descWords), maxChunk)
}

// NewPhasedFromProducts builds a phased-updates-mode Catalogue seeded
// directly from an explicit product set.
func NewPhasedFromProducts(products []*model.Product, maxChunk int) Catalogue {
	slots, err := arraylet.New[model.ProductID](maxChunk, len(products))
	if err != nil {
		panic(fmt.Sprintf("catalogue: building slot arraylet: %v", err))
	}
	snap := &catalogueSnapshot{
		slots:    slots,
		maxChunk: maxChunk,
		ids:      make(map[model.ProductID]*model.Product, len(products)),
		nameIdx:  make(map[string]map[model.ProductID]struct{}),
		descIdx:  make(map[string]map[model.ProductID]struct{}),
	}
	var maxID model.ProductID
	for i, p := range products {
		if err := snap.slots.Set(i, p.ID); err != nil {
			panic(fmt.Sprintf("catalogue: seeding slot %d: %v", i, err))
		}
		snap.ids[p.ID] = p
		indexWords(snap.nameIdx, p.Name, p.ID)
		indexWords(snap.descIdx, p.Description, p.ID)
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	c := &phasedCatalogue{log: list.New(), gen: newIDGenerator(maxID)}
	c.current.Store(snap)
	return c
}

func (c *phasedCatalogue) Len() int {
	return c.current.Load().slots.Len()
}

func (c *phasedCatalogue) FetchByIndex(i int) (*model.Product, bool) {
	s := c.current.Load()
	id, err := s.slots.Get(i)
	if err != nil || id == model.NoProduct {
		return nil, false
	}
	p, ok := s.ids[id]
	return p, ok
}

func (c *phasedCatalogue) ByID(id model.ProductID) (*model.Product, bool) {
	s := c.current.Load()
	p, ok := s.ids[id]
	return p, ok
}

func (c *phasedCatalogue) MatchAny(keywords []string) []*model.Product {
	s := c.current.Load()
	return matchAnyLocked(s.ids, s.nameIdx, s.descIdx, keywords)
}

func (c *phasedCatalogue) MatchAll(keywords []string) []*model.Product {
	s := c.current.Load()
	return matchAllLocked(s.ids, s.nameIdx, s.descIdx, keywords)
}

// ReplaceRandom never touches the live snapshot; it only appends a
// pending replacement record for the next Rebuild to fold in.
func (c *phasedCatalogue) ReplaceRandom(rng *rand.Rand, dict dictionary.Dictionary, nameWords, descWords int) *model.Product {
	s := c.current.Load()
	i := rng.Intn(s.slots.Len())
	newID := c.gen.next_()
	fresh := mintProduct(newID, rng, dict, nameWords, descWords)

	c.logMu.Lock()
	c.log.PushBack(changeRecord{slot: i, product: fresh})
	c.logMu.Unlock()

	return fresh
}

// Rebuild drains the change log against the current snapshot and, if any
// record applied, publishes a new snapshot under a short mutex. A record
// whose product's name already names a live product in the snapshot
// being built is discarded rather than applied, per the rebuild
// discard-on-collision rule.
func (c *phasedCatalogue) Rebuild() {
	c.logMu.Lock()
	if c.log.Len() == 0 {
		c.logMu.Unlock()
		return
	}
	pending := c.log
	c.log = list.New()
	c.logMu.Unlock()

	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	base := c.current.Load()
	next := base.clone()

	names := make(map[string]struct{}, len(next.ids))
	for _, p := range next.ids {
		names[p.Name] = struct{}{}
	}

	applied := false
	for e := pending.Front(); e != nil; e = e.Next() {
		rec := e.Value.(changeRecord)
		if _, dup := names[rec.product.Name]; dup {
			continue
		}
		if _, dup := next.ids[rec.product.ID]; dup {
			continue
		}
		oldSlotID, err := next.slots.Get(rec.slot)
		if err != nil {
			panic(fmt.Sprintf("catalogue: reading slot %d during rebuild: %v", rec.slot, err))
		}
		old := next.ids[oldSlotID]
		if old != nil {
			old.Retire()
			unindexWords(next.nameIdx, old.Name, old.ID)
			unindexWords(next.descIdx, old.Description, old.ID)
		}
		next.ids[rec.product.ID] = rec.product
		indexWords(next.nameIdx, rec.product.Name, rec.product.ID)
		indexWords(next.descIdx, rec.product.Description, rec.product.ID)
		if err := next.slots.Set(rec.slot, rec.product.ID); err != nil {
			panic(fmt.Sprintf("catalogue: writing slot %d during rebuild: %v", rec.slot, err))
		}
		names[rec.product.Name] = struct{}{}
		applied = true
	}

	if applied {
		c.current.Store(next)
	}
}

// Rebuilder returns the type-specific rebuild function, for internal/sim
// to drive on a PhasedUpdateInterval ticker without a type assertion on
// the Catalogue interface itself.
func Rebuilder(c Catalogue) (func(), bool) {
	p, ok := c.(*phasedCatalogue)
	if !ok {
		return nil, false
	}
	return p.Rebuild, true
}
