package registry

import (
	"fmt"
	"math/rand"

	"github.com/corretto/heapothesys-go/internal/arraylet"
	"github.com/corretto/heapothesys-go/internal/dictionary"
	"github.com/corretto/heapothesys-go/internal/latency"
	"github.com/corretto/heapothesys-go/internal/model"
	"github.com/corretto/heapothesys-go/internal/rwstat"
)

// coarseRegistry serializes every access through a single fair
// reader/writer controller, mirroring internal/catalogue's coarse mode.
type coarseRegistry struct {
	rw *rwstat.Controller

	slots  *arraylet.Arraylet[string]
	byName map[string]*model.Customer

	gen *idGenerator
}

// NewCoarse builds a coarse-mode Registry with numCustomers freshly
// minted customers. maxChunk is the Arraylet chunk ceiling backing the
// slot sequence; 0 requests a flat allocation.
func NewCoarse(numCustomers int, rng *rand.Rand, dict dictionary.Dictionary, maxChunk int) Registry {
	return NewCoarseFromCustomers(seedCustomers(numCustomers, rng, dict), maxChunk)
}

// NewCoarseFromCustomers builds a coarse-mode Registry from an explicit
// customer set, one slot per customer in order given.
func NewCoarseFromCustomers(customers []*model.Customer, maxChunk int) Registry {
	slots, err := arraylet.New[string](maxChunk, len(customers))
	if err != nil {
		panic(fmt.Sprintf("registry: building slot arraylet: %v", err))
	}
	r := &coarseRegistry{
		rw:     rwstat.New(),
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

func (r *coarseRegistry) Len() int { return r.slots.Len() }

func (r *coarseRegistry) SelectRandom(rng *rand.Rand) (*model.Customer, bool) {
	var out *model.Customer
	var ok bool
	r.rw.ActAsReader(func() {
		if r.slots.Len() == 0 {
			return
		}
		name, err := r.slots.Get(rng.Intn(r.slots.Len()))
		if err != nil {
			panic(fmt.Sprintf("registry: reading random slot: %v", err))
		}
		out, ok = r.byName[name]
	})
	return out, ok
}

func (r *coarseRegistry) AddSaveForLater(c *model.Customer, h *model.BrowsingHistory) {
	r.rw.ActAsWriter(func() {
		c.AddSaveForLater(h)
	})
}

func (r *coarseRegistry) ReplaceRandom(rng *rand.Rand, dict dictionary.Dictionary, onRetire OnRetire) *model.Customer {
	var fresh *model.Customer
	r.rw.ActAsWriter(func() {
		i := rng.Intn(r.slots.Len())
		oldName, err := r.slots.Get(i)
		if err != nil {
			panic(fmt.Sprintf("registry: reading slot %d: %v", i, err))
		}
		if old, ok := r.byName[oldName]; ok {
			drainSaveForLater(old, onRetire)
			delete(r.byName, oldName)
		}

		newID := r.gen.next_()
		name := generateName(rng, dict, func(n string) bool {
			_, taken := r.byName[n]
			return taken
		})
		fresh = model.NewCustomer(newID, name)
		r.byName[name] = fresh
		if err := r.slots.Set(i, name); err != nil {
			panic(fmt.Sprintf("registry: writing slot %d: %v", i, err))
		}
	})
	return fresh
}

// WaitLogs returns r's reader/writer contention logs if r is running in
// coarse mode, for a caller (internal/sim) that wants to mirror them into
// external observability. Returns (nil, nil, false) for the other modes.
func WaitLogs(r Registry) (readWait, writeWait *latency.Log, ok bool) {
	cr, ok := r.(*coarseRegistry)
	if !ok {
		return nil, nil, false
	}
	return cr.rw.ReadWaitLog(), cr.rw.WriteWaitLog(), true
}
