package registry

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

type registrySnapshot struct {
	slots    *arraylet.Arraylet[string]
	maxChunk int
	byName   map[string]*model.Customer
}

func (s *registrySnapshot) clone() *registrySnapshot {
	slots, err := arraylet.New[string](s.maxChunk, s.slots.Len())
	if err != nil {
		panic(fmt.Sprintf("registry: cloning slot arraylet: %v", err))
	}
	for i := 0; i < s.slots.Len(); i++ {
		name, err := s.slots.Get(i)
		if err != nil {
			panic(fmt.Sprintf("registry: reading slot %d during clone: %v", i, err))
		}
		if err := slots.Set(i, name); err != nil {
			panic(fmt.Sprintf("registry: writing slot %d during clone: %v", i, err))
		}
	}
	out := &registrySnapshot{
		slots:    slots,
		maxChunk: s.maxChunk,
		byName:   make(map[string]*model.Customer, len(s.byName)),
	}
	for n, c := range s.byName {
		out.byName[n] = c
	}
	return out
}

type registryChange struct {
	slot     int
	customer *model.Customer
	retired  []*model.BrowsingHistory
}

// phasedRegistry mirrors internal/catalogue's phased mode: writers append
// to a change log and a Rebuild call (driven externally on
// PhasedUpdateInterval) folds it into a fresh snapshot.
type phasedRegistry struct {
	current atomic.Pointer[registrySnapshot]

	logMu sync.Mutex
	log   *list.List

	publishMu sync.Mutex

	gen *idGenerator
}

// NewPhased builds a phased-updates-mode Registry. maxChunk is the
// Arraylet chunk ceiling backing the slot sequence; 0 requests a flat
// allocation.
func NewPhased(numCustomers int, rng *rand.Rand, dict dictionary.Dictionary, maxChunk int) Registry {
	return NewPhasedFromCustomers(seedCustomers(numCustomers, rng, dict), maxChunk)
}

// NewPhasedFromCustomers builds a phased-updates-mode Registry from an
// explicit customer set.
func NewPhasedFromCustomers(customers []*model.Customer, maxChunk int) Registry {
	slots, err := arraylet.New[string](maxChunk, len(customers))
	if err != nil {
		panic(fmt.Sprintf("registry: building slot arraylet: %v", err))
	}
	snap := &registrySnapshot{
		slots:    slots,
		maxChunk: maxChunk,
		byName:   make(map[string]*model.Customer, len(customers)),
	}
	var maxID model.CustomerID
	for i, c := range customers {
		if err := snap.slots.Set(i, c.Name); err != nil {
			panic(fmt.Sprintf("registry: seeding slot %d: %v", i, err))
		}
		snap.byName[c.Name] = c
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	r := &phasedRegistry{log: list.New(), gen: newIDGenerator(maxID)}
	r.current.Store(snap)
	return r
}

func (r *phasedRegistry) Len() int {
	return r.current.Load().slots.Len()
}

func (r *phasedRegistry) SelectRandom(rng *rand.Rand) (*model.Customer, bool) {
	s := r.current.Load()
	if s.slots.Len() == 0 {
		return nil, false
	}
	name, err := s.slots.Get(rng.Intn(s.slots.Len()))
	if err != nil {
		panic(fmt.Sprintf("registry: reading random slot: %v", err))
	}
	c, ok := s.byName[name]
	return c, ok
}

// AddSaveForLater mutates the Customer value in place; customers are
// shared across snapshots by pointer (only the slot/map shell is
// versioned), so this is visible immediately without waiting for a
// rebuild.
func (r *phasedRegistry) AddSaveForLater(c *model.Customer, h *model.BrowsingHistory) {
	c.AddSaveForLater(h)
}

func (r *phasedRegistry) ReplaceRandom(rng *rand.Rand, dict dictionary.Dictionary, onRetire OnRetire) *model.Customer {
	s := r.current.Load()
	i := rng.Intn(s.slots.Len())

	occupant, err := s.slots.Get(i)
	if err != nil {
		panic(fmt.Sprintf("registry: reading slot %d: %v", i, err))
	}
	var retired []*model.BrowsingHistory
	if old, ok := s.byName[occupant]; ok {
		retired = old.SaveForLater()
	}

	newID := r.gen.next_()
	name := generateName(rng, dict, func(n string) bool {
		_, taken := s.byName[n]
		return taken
	})
	fresh := model.NewCustomer(newID, name)

	r.logMu.Lock()
	r.log.PushBack(registryChange{slot: i, customer: fresh, retired: retired})
	r.logMu.Unlock()

	return fresh
}

// Rebuild drains the change log against the current snapshot and
// publishes a new snapshot if anything applied. Retired customers'
// save-for-later entries are handed to onRetire at rebuild time, once
// the replacement is actually committed.
func (r *phasedRegistry) Rebuild(onRetire OnRetire) {
	r.logMu.Lock()
	if r.log.Len() == 0 {
		r.logMu.Unlock()
		return
	}
	pending := r.log
	r.log = list.New()
	r.logMu.Unlock()

	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	base := r.current.Load()
	next := base.clone()

	applied := false
	for e := pending.Front(); e != nil; e = e.Next() {
		rec := e.Value.(registryChange)
		if _, dup := next.byName[rec.customer.Name]; dup {
			continue
		}
		oldName, err := next.slots.Get(rec.slot)
		if err != nil {
			panic(fmt.Sprintf("registry: reading slot %d during rebuild: %v", rec.slot, err))
		}
		delete(next.byName, oldName)
		next.byName[rec.customer.Name] = rec.customer
		if err := next.slots.Set(rec.slot, rec.customer.Name); err != nil {
			panic(fmt.Sprintf("registry: writing slot %d during rebuild: %v", rec.slot, err))
		}
		applied = true

		if onRetire != nil {
			for _, h := range rec.retired {
				onRetire(h)
			}
		}
	}

	if applied {
		r.current.Store(next)
	}
}

// Rebuilder returns the type-specific rebuild function bound to onRetire,
// for internal/sim to drive on a PhasedUpdateInterval ticker.
func Rebuilder(r Registry, onRetire OnRetire) (func(), bool) {
	p, ok := r.(*phasedRegistry)
	if !ok {
		return nil, false
	}
	return func() { p.Rebuild(onRetire) }, true
}
