package core

import "sync"

// Registry is C4: the in-memory table of live collections, keyed by name.
// It is rebuilt from disk on startup (one Collection per subdirectory of
// <storage>/collections) and mutated only through consensus-applied operations
// thereafter. The map+RWMutex shape mirrors integration_registry.go's
// RegisterAPI/RemoveAPI/ListAPIs pattern.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{collections: make(map[string]*Collection)}
}

// Get returns the collection registered under name, if any.
func (r *Registry) Get(name string) (*Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[name]
	return c, ok
}

// Lock and Unlock expose the registry's write lock directly to callers
// that must hold it across a sequence of registry/alias operations (e.g.
// a multi-action alias swap) so no concurrent Resolve can observe a
// half-applied state. Pair with GetLocked, never with Get/Insert/Remove,
// which would re-lock and deadlock.
func (r *Registry) Lock()   { r.mu.Lock() }
func (r *Registry) Unlock() { r.mu.Unlock() }

// RLock and RUnlock expose the registry's read lock directly, for callers
// that must hold it across a lookup spanning more than this registry
// alone (e.g. Resolve's alias-then-registry check).
func (r *Registry) RLock() { r.mu.RLock() }
func (r *Registry) RUnlock() { r.mu.RUnlock() }

// GetLocked is Get without acquiring the lock, for callers already
// holding it via Lock or RLock.
func (r *Registry) GetLocked(name string) (*Collection, bool) {
	c, ok := r.collections[name]
	return c, ok
}

// Insert registers col under name, failing if the name is already taken.
// The existence check and the insert happen under the same write lock so
// two concurrent CreateCollection operations for the same name can never
// both succeed.
func (r *Registry) Insert(name string, col *Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.collections[name]; exists {
		return errCollectionAlreadyExists(name)
	}
	r.collections[name] = col
	return nil
}

// Remove drops name from the registry and returns the removed collection,
// if it was present.
func (r *Registry) Remove(name string) (*Collection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.collections[name]
	if !ok {
		return nil, false
	}
	delete(r.collections, name)
	return c, true
}

// Names returns every registered collection name, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.collections))
	for name := range r.collections {
		out = append(out, name)
	}
	return out
}

// Len reports how many collections are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collections)
}

// Snapshot returns a copy of the name -> collection map, for callers that
// need to iterate without holding the registry lock (e.g. ToC.Snapshot and
// ToC.Close).
func (r *Registry) Snapshot() map[string]*Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Collection, len(r.collections))
	for name, c := range r.collections {
		out[name] = c
	}
	return out
}

// ApplySnapshot reconciles the registry against target under one write
// lock, so a concurrent CreateCollection can never interleave with a
// snapshot apply (§4.8 "The entire sequence runs on the management
// executor" — ApplySnapshot additionally needs it to run under one lock).
// For a name present in target: if already registered, differs invokes the
// diff check and, if it reports a difference, applyDiff mutates it in
// place; if absent, ensure builds and returns a new Collection to insert.
// Any registered name absent from target is removed and returned to the
// caller for directory cleanup.
func (r *Registry) ApplySnapshot(
	target map[string]CollectionState,
	ensure func(name string, state CollectionState) (*Collection, error),
	differs func(c *Collection, state CollectionState) bool,
	applyDiff func(c *Collection, state CollectionState) error,
) (removed []*Collection, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, state := range target {
		if existing, ok := r.collections[name]; ok {
			if differs(existing, state) {
				if err := applyDiff(existing, state); err != nil {
					return nil, err
				}
			}
			continue
		}
		col, err := ensure(name, state)
		if err != nil {
			return nil, err
		}
		r.collections[name] = col
	}

	for name, col := range r.collections {
		if _, ok := target[name]; !ok {
			removed = append(removed, col)
			delete(r.collections, name)
		}
	}
	return removed, nil
}
