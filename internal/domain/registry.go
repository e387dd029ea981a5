package domain

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2"
)

// Registry is the process-wide, read-mostly domain-name -> Map mapping
// (spec.md §9 design notes): written only during startup on receipt of the
// first Domain/Mask messages, so a single lock around it is sufficient.
// Lookups are additionally cached in a small LRU (SPEC_FULL.md §10) since
// the aggregation action re-resolves the same handful of domain names on
// every incoming Field message.
type Registry struct {
	mu              sync.Mutex
	maps            map[string]*Map
	expectedClients int
	cache           *lru.Cache[string, *Map]
}

// NewRegistry creates an empty registry. expectedClients is the number of
// distinct client peers each domain must hear from before it's complete.
func NewRegistry(expectedClients int) *Registry {
	cache, _ := lru.New[string, *Map](64)
	return &Registry{
		maps:            make(map[string]*Map),
		expectedClients: expectedClients,
		cache:           cache,
	}
}

// GetOrCreate returns the Map for the named domain, lazily creating it on
// first use (the first Domain message for that domain).
func (r *Registry) GetOrCreate(name string) *Map {
	if m, ok := r.cache.Get(name); ok {
		return m
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.maps[name]
	if !ok {
		m = NewMap(name, r.expectedClients)
		r.maps[name] = m
	}
	r.cache.Add(name, m)
	return m
}

// Get returns the Map for the named domain without creating it.
func (r *Registry) Get(name string) (*Map, bool) {
	if m, ok := r.cache.Get(name); ok {
		return m, true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.maps[name]
	return m, ok
}
