// Package handle implements the process-wide table that maps opaque integer
// handles to session state. The engine only ever holds the integer; a handle
// that has been unregistered can never resolve again, so a stale callback
// fails instead of touching freed state.
package handle

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

var ErrNotFound = errors.New("handle not registered")

// Registry issues handles and resolves them back to their bound value. All
// operations are serialized by one lock held only for the table operation,
// never across a callback into the bound value.
type Registry struct {
	mu      sync.Mutex
	rng     *rand.Rand
	entries map[int64]interface{}
}

func NewRegistry() *Registry {
	return &Registry{
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[int64]interface{}),
	}
}

// Register binds v to a fresh handle and returns it. Handles are random
// 63-bit non-negative integers so a leaked callback cannot guess an
// unrelated session's handle; generation retries on collision with a live
// handle. They are not cryptographically hardened - handles do not cross a
// trust boundary here.
func (r *Registry) Register(v interface{}) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		h := r.rng.Int63()
		if _, ok := r.entries[h]; ok {
			continue
		}
		r.entries[h] = v
		return h
	}
}

// Lookup resolves a handle. The second return is false if the handle was
// never issued or has been unregistered; callers must treat that as fatal
// for the handle, never retry.
func (r *Registry) Lookup(h int64) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[h]
	return v, ok
}

// Unregister removes a handle. Returns ErrNotFound if it is not live.
func (r *Registry) Unregister(h int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[h]; !ok {
		return ErrNotFound
	}
	delete(r.entries, h)
	return nil
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
