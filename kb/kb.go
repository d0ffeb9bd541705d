package kb

import (
	"fmt"
	"sync"

	"github.com/signalsfoundry/orbit-sonifier/model"
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventEntityAdded EventType = iota
	EventCatalogReset
)

// Event is emitted to subscribers when the catalog changes.
type Event struct {
	Type   EventType
	Entity model.Entity
}

// Catalog is an in-memory, thread-safe arena of tracked entities.
// IDs are sequential integer indices assigned at load time; names are
// display-only and never used as keys. Entities are immutable once
// added and are destroyed only by Reset.
type Catalog struct {
	mu sync.RWMutex

	entities []*model.Entity

	subs []func(Event)
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Add registers a new entity and returns it with its assigned ID.
// Names are display-only, so duplicates are allowed; empty names are not.
func (c *Catalog) Add(name string, category model.Category, elements model.ElementHandle) (*model.Entity, error) {
	if name == "" {
		return nil, fmt.Errorf("entity name must not be empty")
	}

	c.mu.Lock()
	e := &model.Entity{
		ID:       len(c.entities),
		Name:     name,
		Category: category,
		Elements: elements,
	}
	c.entities = append(c.entities, e)
	event := Event{Type: EventEntityAdded, Entity: *e} // copy for safety
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return e, nil
}

// Get returns the entity with the given ID, or nil if out of range.
func (c *Catalog) Get(id int) *model.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id < 0 || id >= len(c.entities) {
		return nil
	}
	return c.entities[id]
}

// List returns a snapshot slice of all entities in ID order.
func (c *Catalog) List() []*model.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]*model.Entity, len(c.entities))
	copy(res, c.entities)
	return res
}

// Len returns the number of loaded entities.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}

// Reset destroys all entities. This is the only deletion path; IDs
// restart from zero afterwards.
func (c *Catalog) Reset() {
	c.mu.Lock()
	c.entities = nil
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	for _, sub := range subs {
		sub(Event{Type: EventCatalogReset})
	}
}

// Subscribe registers a callback for catalog events. It returns an
// unsubscribe function.
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
	idx := len(c.subs) - 1

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if idx < 0 || idx >= len(c.subs) {
			return
		}
		c.subs = append(c.subs[:idx], c.subs[idx+1:]...)
		idx = -1
	}
}
