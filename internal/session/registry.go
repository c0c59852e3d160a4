// Package session tracks browser sessions and their latest classification.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/v0xg/jobfill/internal/classifier"
)

// ID identifies one session (one browser tab).
type ID string

// NewID returns a random session ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID validates s as a session ID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return ID(u.String()), nil
}

// Registry maps sessions to their most recent classification result.
type Registry struct {
	mu      sync.RWMutex
	results map[ID]classifier.Result
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{results: make(map[ID]classifier.Result)}
}

// Record stores res as the latest result for id, replacing any earlier one.
func (r *Registry) Record(id ID, res classifier.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[id] = res
}

// Get returns the latest result for id.
func (r *Registry) Get(id ID) (classifier.Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[id]
	return res, ok
}

// Forget drops id.
func (r *Registry) Forget(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.results, id)
}

// Len returns the number of recorded sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.results)
}
