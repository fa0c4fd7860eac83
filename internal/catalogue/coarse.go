package catalogue

import (
	"fmt"
	"math/rand"

	"github.com/corretto/heapothesys-go/internal/arraylet"
	"github.com/corretto/heapothesys-go/internal/dictionary"
	"github.com/corretto/heapothesys-go/internal/latency"
	"github.com/corretto/heapothesys-go/internal/model"
	"github.com/corretto/heapothesys-go/internal/rwstat"
)

// coarseCatalogue serializes every access through a single fair
// reader/writer controller. Internal maps need no locking of their own;
// the controller is the only synchronization in play.
type coarseCatalogue struct {
	rw *rwstat.Controller

	slots   *arraylet.Arraylet[model.ProductID]
	ids     map[model.ProductID]*model.Product
	nameIdx map[string]map[model.ProductID]struct{}
	descIdx map[string]map[model.ProductID]struct{}

	gen *idGenerator
}

// NewCoarse builds a coarse-mode Catalogue with numProducts freshly minted
// products. maxChunk is the Arraylet chunk ceiling backing the slot
// sequence; 0 requests a flat allocation.
func NewCoarse(numProducts int, rng *rand.Rand, dict dictionary.Dictionary, nameWords, descWords, maxChunk int) Catalogue {
	return NewCoarseFromProducts(seedCatalogue(numProducts, rng, dict, nameWords, descWords), maxChunk)
}

// NewCoarseFromProducts builds a coarse-mode Catalogue seeded directly
// from an explicit product set, one slot per product in order given.
func NewCoarseFromProducts(products []*model.Product, maxChunk int) Catalogue {
	slots, err := arraylet.New[model.ProductID](maxChunk, len(products))
	if err != nil {
		panic(fmt.Sprintf("catalogue: building slot arraylet: %v", err))
	}
	c := &coarseCatalogue{
		rw:      rwstat.New(),
		slots:   slots,
		ids:     make(map[model.ProductID]*model.Product, len(products)),
		nameIdx: make(map[string]map[model.ProductID]struct{}),
		descIdx: make(map[string]map[model.ProductID]struct{}),
	}
	var maxID model.ProductID
	for i, p := range products {
		if err := c.slots.Set(i, p.ID); err != nil {
			panic(fmt.Sprintf("catalogue: seeding slot %d: %v", i, err))
		}
		c.ids[p.ID] = p
		indexWords(c.nameIdx, p.Name, p.ID)
		indexWords(c.descIdx, p.Description, p.ID)
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	c.gen = newIDGenerator(maxID)
	return c
}

func indexWords(idx map[string]map[model.ProductID]struct{}, field string, id model.ProductID) {
	for _, w := range model.Words(field) {
		set, ok := idx[w]
		if !ok {
			set = make(map[model.ProductID]struct{})
			idx[w] = set
		}
		set[id] = struct{}{}
	}
}

func unindexWords(idx map[string]map[model.ProductID]struct{}, field string, id model.ProductID) {
	for _, w := range model.Words(field) {
		if set, ok := idx[w]; ok {
			delete(set, id)
		}
	}
}

func (c *coarseCatalogue) Len() int { return c.slots.Len() }

func (c *coarseCatalogue) FetchByIndex(i int) (*model.Product, bool) {
	var out *model.Product
	var ok bool
	c.rw.ActAsReader(func() {
		id, err := c.slots.Get(i)
		if err != nil || id == model.NoProduct {
			return
		}
		out, ok = c.ids[id]
	})
	return out, ok
}

func (c *coarseCatalogue) ByID(id model.ProductID) (*model.Product, bool) {
	var out *model.Product
	var ok bool
	c.rw.ActAsReader(func() {
		out, ok = c.ids[id]
	})
	return out, ok
}

func (c *coarseCatalogue) MatchAny(keywords []string) []*model.Product {
	var out []*model.Product
	c.rw.ActAsReader(func() {
		out = matchAnyLocked(c.ids, c.nameIdx, c.descIdx, keywords)
	})
	return out
}

func (c *coarseCatalogue) MatchAll(keywords []string) []*model.Product {
	var out []*model.Product
	c.rw.ActAsReader(func() {
		out = matchAllLocked(c.ids, c.nameIdx, c.descIdx, keywords)
	})
	return out
}

func (c *coarseCatalogue) ReplaceRandom(rng *rand.Rand, dict dictionary.Dictionary, nameWords, descWords int) *model.Product {
	var fresh *model.Product
	c.rw.ActAsWriter(func() {
		i := rng.Intn(c.slots.Len())
		oldID, err := c.slots.Get(i)
		if err != nil {
			panic(fmt.Sprintf("catalogue: reading slot %d: %v", i, err))
		}
		if old, ok := c.ids[oldID]; ok {
			old.Retire()
			unindexWords(c.nameIdx, old.Name, oldID)
			unindexWords(c.descIdx, old.Description, oldID)
		}

		newID := c.gen.next_()
		fresh = mintProduct(newID, rng, dict, nameWords, descWords)
		c.ids[newID] = fresh
		indexWords(c.nameIdx, fresh.Name, newID)
		indexWords(c.descIdx, fresh.Description, newID)
		if err := c.slots.Set(i, newID); err != nil {
			panic(fmt.Sprintf("catalogue: writing slot %d: %v", i, err))
		}
	})
	return fresh
}

// WaitLogs returns c's reader/writer contention logs if c is running in
// coarse mode, for a caller (internal/sim) that wants to mirror them into
// external observability. Returns (nil, nil, false) for the other modes,
// which have no single controller to sample.
func WaitLogs(c Catalogue) (readWait, writeWait *latency.Log, ok bool) {
	cc, ok := c.(*coarseCatalogue)
	if !ok {
		return nil, nil, false
	}
	return cc.rw.ReadWaitLog(), cc.rw.WriteWaitLog(), true
}

// matchAnyLocked and matchAllLocked implement the union/intersection
// keyword query semantics shared by the coarse and fine-grained modes;
// callers are responsible for whatever locking their mode requires before
// calling in.
func matchAnyLocked(ids map[model.ProductID]*model.Product, nameIdx, descIdx map[string]map[model.ProductID]struct{}, keywords []string) []*model.Product {
	seen := make(map[model.ProductID]struct{})
	var out []*model.Product
	for _, kw := range keywords {
		for _, set := range []map[model.ProductID]struct{}{nameIdx[kw], descIdx[kw]} {
			for id := range set {
				if _, dup := seen[id]; dup {
					continue
				}
				p, ok := ids[id]
				if !ok || !p.Available() {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, p)
			}
		}
	}
	return out
}

func matchAllLocked(ids map[model.ProductID]*model.Product, nameIdx, descIdx map[string]map[model.ProductID]struct{}, keywords []string) []*model.Product {
	if len(keywords) == 0 {
		return nil
	}
	acc := unionForKeyword(ids, nameIdx, descIdx, keywords[0])
	for _, kw := range keywords[1:] {
		if len(acc) == 0 {
			return nil
		}
		next := unionForKeyword(ids, nameIdx, descIdx, kw)
		for id := range acc {
			if _, ok := next[id]; !ok {
				delete(acc, id)
			}
		}
	}
	out := make([]*model.Product, 0, len(acc))
	for id := range acc {
		out = append(out, ids[id])
	}
	return out
}

func unionForKeyword(ids map[model.ProductID]*model.Product, nameIdx, descIdx map[string]map[model.ProductID]struct{}, kw string) map[model.ProductID]struct{} {
	out := make(map[model.ProductID]struct{})
	for _, set := range []map[model.ProductID]struct{}{nameIdx[kw], descIdx[kw]} {
		for id := range set {
			if p, ok := ids[id]; ok && p.Available() {
				out[id] = struct{}{}
			}
		}
	}
	return out
}
