// Package correlation maps outbound requests to their asynchronous responses.
package correlation

import (
	"fmt"
	"sync"
)

// Kind distinguishes the request families that own correlation entries.
type Kind string

const (
	KindMarketData Kind = "market_data"
	KindDepth      Kind = "depth"
	KindHistory    Kind = "history"
	KindLookup     Kind = "lookup"
	KindExecutions Kind = "executions"
)

// Key is the structural identity of a logical subscription or lookup.
// Discriminator separates otherwise-identical requests that differ only by a
// secondary parameter (bar size, depth rows).
type Key struct {
	Kind          Kind
	Security      string
	Discriminator string
}

func (k Key) String() string {
	if k.Discriminator == "" {
		return fmt.Sprintf("%s/%s", k.Kind, k.Security)
	}
	return fmt.Sprintf("%s/%s/%s", k.Kind, k.Security, k.Discriminator)
}

// Registry allocates transaction ids and resolves them back to keys. It is
// the single place that understands "this wire response id maps back to that
// logical subscription"; every handler that needs the association goes
// through it exactly once.
//
// Misuse (double-allocate, release of an absent key) indicates an upstream
// bookkeeping bug that would corrupt the registry, so both panic instead of
// failing silently.
type Registry struct {
	mu   sync.Mutex
	next int64
	byKey map[Key]int64
	byID  map[int64]Key
}

// NewRegistry returns a registry whose ids start at start (ids must be
// process-wide unique for the adapter's lifetime, so callers normally share
// one registry per adapter).
func NewRegistry(start int64) *Registry {
	if start < 1 {
		start = 1
	}
	return &Registry{
		next:  start,
		byKey: make(map[Key]int64),
		byID:  make(map[int64]Key),
	}
}

// Allocate assigns a fresh transaction id to key. At most one live id may
// exist per key; allocating twice without a release panics.
func (r *Registry) Allocate(key Key) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byKey[key]; ok {
		panic(fmt.Sprintf("correlation: duplicate allocate for %s (live id %d)", key, id))
	}
	id := r.next
	r.next++
	r.byKey[key] = id
	r.byID[id] = key
	return id
}

// Resolve returns the key a response id belongs to.
func (r *Registry) Resolve(id int64) (Key, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.byID[id]
	return key, ok
}

// Lookup returns the live id for a key without releasing it.
func (r *Registry) Lookup(key Key) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	return id, ok
}

// Release removes the entry for key and returns its id so the unsubscribe
// request can carry it. Releasing an absent key panics: it means subscribe
// and unsubscribe bookkeeping diverged upstream.
func (r *Registry) Release(key Key) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		panic(fmt.Sprintf("correlation: release of unknown key %s", key))
	}
	delete(r.byKey, key)
	delete(r.byID, id)
	return id
}

// Drop removes the entry for an id if present, for subscriptions terminated
// by the terminal rather than by an unsubscribe.
func (r *Registry) Drop(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key, ok := r.byID[id]; ok {
		delete(r.byKey, key)
		delete(r.byID, id)
	}
}

// Reset clears every live association while preserving the id counter.
// Sessions die with their subscriptions; the ids they used stay burned so a
// late response from the old session can never alias a new request.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey = make(map[Key]int64)
	r.byID = make(map[int64]Key)
}
