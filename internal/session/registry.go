package session

import "sync"

// Registry is a concurrency-safe id-keyed table of sessions. It is
// used both by the master (its ToClient/ToPrisoner session tables) and
// by the worker (a document's session-id-to-runner map, spec §3).
type Registry struct {
	mu sync.RWMutex
	m  map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]*Session)}
}

// Add inserts s keyed by s.ID, overwriting any existing entry.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.m[s.ID] = s
	r.mu.Unlock()
}

// Get returns the session for id, or nil if absent.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.m[id]
}

// Remove deletes the entry for id, if present.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.m, id)
	r.mu.Unlock()
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// Each calls fn for every registered session. fn must not mutate the
// registry.
func (r *Registry) Each(fn func(*Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.m {
		fn(s)
	}
}

// All returns a snapshot slice of every registered session.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.m))
	for _, s := range r.m {
		out = append(out, s)
	}
	return out
}
