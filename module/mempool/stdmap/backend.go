// Package stdmap implements the in-memory pools of the chunk pipeline on
// top of a generic, bounded, recency-evicting backend.
package stdmap

import (
	"container/list"
	"sync"

	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/module/mempool"
)

// Sized is implemented by entities that account their own byte footprint.
// Entities without it only count against the entry limit.
type Sized interface {
	ByteSize() uint64
}

// Backend is a generic memory pool backed by a Go map, bounded by an entry
// limit and a byte budget. Every successful access touches a recency index;
// once a bound is exceeded, least-recently-touched unpinned entries are
// ejected until both bounds hold again.
type Backend struct {
	sync.RWMutex
	entities          map[lattice.Identifier]lattice.Entity
	order             *list.List // front = least recently touched
	index             map[lattice.Identifier]*list.Element
	pinned            map[lattice.Identifier]struct{}
	limit             uint
	byteBudget        uint64
	bytes             uint64
	sizes             map[lattice.Identifier]uint64
	ejectionCallbacks []mempool.OnEjection
}

type OptionFunc func(*Backend)

// WithLimit bounds the number of entries in the pool.
func WithLimit(limit uint) OptionFunc {
	return func(b *Backend) {
		b.limit = limit
	}
}

// WithByteBudget bounds the total byte footprint of the pool.
func WithByteBudget(budget uint64) OptionFunc {
	return func(b *Backend) {
		b.byteBudget = budget
	}
}

// NewBackend creates a new memory pool backend. Without options the pool is
// unbounded.
func NewBackend(options ...OptionFunc) *Backend {
	b := &Backend{
		entities: make(map[lattice.Identifier]lattice.Entity),
		order:    list.New(),
		index:    make(map[lattice.Identifier]*list.Element),
		pinned:   make(map[lattice.Identifier]struct{}),
		sizes:    make(map[lattice.Identifier]uint64),
	}
	for _, option := range options {
		option(b)
	}
	return b
}

// Has checks if the pool contains an entity with the given ID.
func (b *Backend) Has(entityID lattice.Identifier) bool {
	b.RLock()
	defer b.RUnlock()
	_, exists := b.entities[entityID]
	return exists
}

// Add adds the given entity to the pool. It returns false if an entity with
// the same ID already exists.
func (b *Backend) Add(entity lattice.Entity) bool {
	b.Lock()
	defer b.Unlock()

	entityID := entity.ID()
	_, exists := b.entities[entityID]
	if exists {
		return false
	}
	b.entities[entityID] = entity
	b.index[entityID] = b.order.PushBack(entityID)
	b.account(entityID, entity)
	b.eject()
	return true
}

// Get returns the entity with the given ID and touches its recency.
func (b *Backend) Get(entityID lattice.Identifier) (lattice.Entity, bool) {
	b.Lock()
	defer b.Unlock()

	entity, exists := b.entities[entityID]
	if !exists {
		return nil, false
	}
	b.touch(entityID)
	return entity, true
}

// Upsert looks up the entity with the given ID, creating it with the given
// constructor if absent, and runs the mutator on it while holding the pool
// lock. Byte accounting and recency are refreshed afterwards and the
// eviction policy is applied. This is the one mutation primitive all pools
// build on, which serializes all mutation per entity.
func (b *Backend) Upsert(entityID lattice.Identifier, create func() lattice.Entity, mutate func(lattice.Entity)) {
	b.Lock()
	defer b.Unlock()

	entity, exists := b.entities[entityID]
	if !exists {
		entity = create()
		b.entities[entityID] = entity
		b.index[entityID] = b.order.PushBack(entityID)
	}
	mutate(entity)
	b.account(entityID, entity)
	b.touch(entityID)
	b.eject()
}

// Adjust runs the mutator on the entity with the given ID, if it exists,
// refreshing byte accounting and recency.
func (b *Backend) Adjust(entityID lattice.Identifier, mutate func(lattice.Entity)) bool {
	b.Lock()
	defer b.Unlock()

	entity, exists := b.entities[entityID]
	if !exists {
		return false
	}
	mutate(entity)
	b.account(entityID, entity)
	b.touch(entityID)
	b.eject()
	return true
}

// View runs the read callback on the entity with the given ID without
// touching its recency.
func (b *Backend) View(entityID lattice.Identifier, read func(lattice.Entity)) bool {
	b.RLock()
	defer b.RUnlock()

	entity, exists := b.entities[entityID]
	if !exists {
		return false
	}
	read(entity)
	return true
}

// Rem removes the entity with the given ID, returning whether it existed.
// Removal does not trigger ejection callbacks.
func (b *Backend) Rem(entityID lattice.Identifier) bool {
	b.Lock()
	defer b.Unlock()
	return b.remove(entityID)
}

// Pin excludes the entity from eviction until unpinned.
func (b *Backend) Pin(entityID lattice.Identifier) {
	b.Lock()
	defer b.Unlock()
	b.pinned[entityID] = struct{}{}
}

// Unpin lifts the eviction exclusion and applies the eviction policy, since
// the pool may have grown past its bounds while the entity was pinned.
func (b *Backend) Unpin(entityID lattice.Identifier) {
	b.Lock()
	defer b.Unlock()
	delete(b.pinned, entityID)
	b.eject()
}

// Size returns the number of entities in the pool.
func (b *Backend) Size() uint {
	b.RLock()
	defer b.RUnlock()
	return uint(len(b.entities))
}

// Bytes returns the accounted byte footprint of the pool.
func (b *Backend) Bytes() uint64 {
	b.RLock()
	defer b.RUnlock()
	return b.bytes
}

// All returns all entities in the pool, in no particular order.
func (b *Backend) All() []lattice.Entity {
	b.RLock()
	defer b.RUnlock()
	entities := make([]lattice.Entity, 0, len(b.entities))
	for _, entity := range b.entities {
		entities = append(entities, entity)
	}
	return entities
}

// Identifiers returns the IDs of all entities in the pool.
func (b *Backend) Identifiers() lattice.IdentifierList {
	b.RLock()
	defer b.RUnlock()
	ids := make(lattice.IdentifierList, 0, len(b.entities))
	for entityID := range b.entities {
		ids = append(ids, entityID)
	}
	return ids
}

// OnEjection registers a callback invoked for every ejected entity.
func (b *Backend) OnEjection(callback mempool.OnEjection) {
	b.Lock()
	defer b.Unlock()
	b.ejectionCallbacks = append(b.ejectionCallbacks, callback)
}

// account must be called with the lock held.
func (b *Backend) account(entityID lattice.Identifier, entity lattice.Entity) {
	old := b.sizes[entityID]
	var size uint64
	if sized, ok := entity.(Sized); ok {
		size = sized.ByteSize()
	}
	b.sizes[entityID] = size
	b.bytes += size - old
}

// touch must be called with the lock held.
func (b *Backend) touch(entityID lattice.Identifier) {
	if elem, ok := b.index[entityID]; ok {
		b.order.MoveToBack(elem)
	}
}

// remove must be called with the lock held.
func (b *Backend) remove(entityID lattice.Identifier) bool {
	_, exists := b.entities[entityID]
	if !exists {
		return false
	}
	delete(b.entities, entityID)
	delete(b.pinned, entityID)
	b.bytes -= b.sizes[entityID]
	delete(b.sizes, entityID)
	if elem, ok := b.index[entityID]; ok {
		b.order.Remove(elem)
		delete(b.index, entityID)
	}
	return true
}

// eject must be called with the lock held. It walks the recency order from
// the least recently touched entry, skipping pinned entries, until both
// bounds are satisfied or only pinned entries remain.
func (b *Backend) eject() {
	if !b.overBudget() {
		return
	}
	for elem := b.order.Front(); elem != nil && b.overBudget(); {
		entityID := elem.Value.(lattice.Identifier)
		next := elem.Next()
		if _, isPinned := b.pinned[entityID]; !isPinned {
			b.remove(entityID)
			for _, callback := range b.ejectionCallbacks {
				callback(entityID)
			}
		}
		elem = next
	}
}

func (b *Backend) overBudget() bool {
	if b.limit > 0 && uint(len(b.entities)) > b.limit {
		return true
	}
	if b.byteBudget > 0 && b.bytes > b.byteBudget {
		return true
	}
	return false
}
