package registry

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/corretto/heapothesys-go/internal/arraylet"
	"github.com/corretto/heapothesys-go/internal/dictionary"
	"github.com/corretto/heapothesys-go/internal/model"
)

// fineRegistry replaces the single controller with two short-scope
// mutexes: one for the name-slot sequence, one for the name-to-customer
// map. Lock order is always slots -> map, matching internal/catalogue's
// fine-grained discipline.
type fineRegistry struct {
	slotsMu sync.Mutex
	slots   *arraylet.Arraylet[string]

	mapMu  sync.Mutex
	byName map[string]*model.Customer

	gen *idGenerator
}

// NewFineGrained builds a fine-grained-mode Registry. maxChunk is the
// Arraylet chunk ceiling backing the slot sequence; 0 requests a flat
// allocation.
func NewFineGrained(numCustomers int, rng *rand.Rand, dict dictionary.Dictionary, maxChunk int) Registry {
	return NewFineGrainedFromCustomers(seedCustomers(numCustomers, rng, dict), maxChunk)
}

// NewFineGrainedFromCustomers builds a fine-grained-mode Registry from an
// explicit customer set.
func NewFineGrainedFromCustomers(customers []*model.Customer, maxChunk int) Registry {
	slots, err := arraylet.New[string](maxChunk, len(customers))
	if err != nil {
		panic(fmt.Sprintf("registry: building slot arraylet: %v", err))
	}
	r := &fineRegistry{
		slots:  slots,
		byName: make(map[string]*model.Customer, len(customers)),
	}
	var maxID model.CustomerID
	for i, c := range customers {
		if err := r.slots.Set(i, c.Name); err != nil {
			panic(fmt.Sprintf("registry: seeding slot %d: %v", i, err))
		}
		r.byName[c.Name] = c
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	r.gen = newIDGenerator(maxID)
	return r
}

func (r *fineRegistry) Len() int {
	r.slotsMu.Lock()
	defer r.slotsMu.Unlock()
	return r.slots.Len()
}

func (r *fineRegistry) lookup(name string) (*model.Customer, bool) {
	r.mapMu.Lock()
	defer r.mapMu.Unlock()
	c, ok := r.byName[name]
	return c, ok
}

func (r *fineRegistry) SelectRandom(rng *rand.Rand) (*model.Customer, bool) {
	r.slotsMu.Lock()
	if r.slots.Len() == 0 {
		r.slotsMu.Unlock()
		return nil, false
	}
	name, err := r.slots.Get(rng.Intn(r.slots.Len()))
	r.slotsMu.Unlock()
	if err != nil {
		panic(fmt.Sprintf("registry: reading random slot: %v", err))
	}

	// The slot read and the map lookup are independent critical
	// sections; a concurrent ReplaceRandom may have already retired this
	// name, which is the accepted lost-update window.
	return r.lookup(name)
}

func (r *fineRegistry) AddSaveForLater(c *model.Customer, h *model.BrowsingHistory) {
	r.mapMu.Lock()
	defer r.mapMu.Unlock()
	c.AddSaveForLater(h)
}

func (r *fineRegistry) ReplaceRandom(rng *rand.Rand, dict dictionary.Dictionary, onRetire OnRetire) *model.Customer {
	r.slotsMu.Lock()
	i := rng.Intn(r.slots.Len())
	oldName, err := r.slots.Get(i)
	r.slotsMu.Unlock()
	if err != nil {
		panic(fmt.Sprintf("registry: reading slot %d: %v", i, err))
	}

	r.mapMu.Lock()
	old, ok := r.byName[oldName]
	if ok {
		delete(r.byName, oldName)
	}
	r.mapMu.Unlock()
	if ok {
		drainSaveForLater(old, onRetire)
	}

	newID := r.gen.next_()
	name := generateName(rng, dict, func(n string) bool {
		_, taken := r.lookup(n)
		return taken
	})
	fresh := model.NewCustomer(newID, name)

	r.mapMu.Lock()
	r.byName[name] = fresh
	r.mapMu.Unlock()

	r.slotsMu.Lock()
	err = r.slots.Set(i, name)
	r.slotsMu.Unlock()
	if err != nil {
		panic(fmt.Sprintf("registry: writing slot %d: %v", i, err))
	}

	return fresh
}
