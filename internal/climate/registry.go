package climate

import (
	"sort"
	"sync"
)

// Registry tracks the entities registered by each integration entry.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]Entity
	owner    map[string]string
	byEntry  map[string][]string
}

func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]Entity),
		owner:    make(map[string]string),
		byEntry:  make(map[string][]string),
	}
}

// Add returns a registration callback bound to entryID. Entities whose unique
// id is already registered replace the previous instance and move to entryID.
func (r *Registry) Add(entryID string) AddEntitiesFunc {
	return func(entities []Entity) {
		r.mu.Lock()
		defer r.mu.Unlock()

		for _, entity := range entities {
			id := entity.UniqueID()
			if prev, exists := r.owner[id]; !exists || prev != entryID {
				if exists {
					r.byEntry[prev] = without(r.byEntry[prev], id)
					if len(r.byEntry[prev]) == 0 {
						delete(r.byEntry, prev)
					}
				}
				r.byEntry[entryID] = append(r.byEntry[entryID], id)
				r.owner[id] = entryID
			}
			r.entities[id] = entity
		}
	}
}

// Remove drops every entity owned by entryID and reports how many were removed.
func (r *Registry) Remove(entryID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.byEntry[entryID]
	for _, id := range ids {
		delete(r.entities, id)
		delete(r.owner, id)
	}
	delete(r.byEntry, entryID)
	return len(ids)
}

func (r *Registry) Get(uniqueID string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, ok := r.entities[uniqueID]
	return entity, ok
}

// List returns all entities ordered by unique id.
func (r *Registry) List() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entity, 0, len(r.entities))
	for _, entity := range r.entities {
		out = append(out, entity)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UniqueID() < out[j].UniqueID()
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
