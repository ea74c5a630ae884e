// Package registry provides the thread-safe, trie-backed key/value store
// shared by the client and channel indexes: one global mutex, with
// compound find-then-act primitives so callers never have to expose the
// lock guard itself.
package registry

import (
	"sync"

	"github.com/fenag/yaIRCd-sub000/internal/trie"
)

// Registry is a mutex-guarded trie. V is expected to be a pointer type
// (*client.Client, *channel.Channel): once returned from a lookup the
// pointer stays valid for the lifetime of the underlying object, which
// is owned elsewhere (the connection supervisor, the channel engine) —
// only the registry's bookkeeping needs the lock, not the pointee.
type Registry[V any] struct {
	mu sync.Mutex
	t  *trie.Trie[V]
}

// New builds an empty registry over the given alphabet.
func New[V any](alphabet trie.Alphabet, destroy func(V)) *Registry[V] {
	return &Registry[V]{t: trie.New[V](alphabet, destroy)}
}

// Find locks, resolves key, and returns its value.
func (r *Registry[V]) Find(key string) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.Lookup(key)
}

// FindAndAct locks globally, resolves key, and invokes f on the
// associated value while still holding the lock, then unlocks. f must
// not acquire this registry's lock again or block unboundedly — the
// lock span is exactly f's running time. It reports whether key was
// found.
func (r *Registry[V]) FindAndAct(key string, f func(V)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.t.Lookup(key)
	if !ok {
		return false
	}
	f(v)
	return true
}

// FindOrInsert resolves key under the global lock: if present, onFound
// runs against the existing value; otherwise onMissing builds a new
// value which is inserted before the lock releases. Both callbacks run
// while the lock is held, so the whole "look up or create" sequence is
// atomic. created reports whether onMissing ran.
func (r *Registry[V]) FindOrInsert(key string, onFound func(V), onMissing func() V) (value V, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.t.Lookup(key); ok {
		onFound(v)
		return v, false
	}
	v := onMissing()
	r.t.Insert(key, v)
	return v, true
}

// InsertIfAbsent locks then delegates to the trie's InsertIfAbsent.
func (r *Registry[V]) InsertIfAbsent(key string, value V) trie.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.InsertIfAbsent(key, value)
}

// Remove locks then deletes key, returning its prior value if present.
func (r *Registry[V]) Remove(key string) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.Remove(key)
}

// Len reports the number of entries currently registered.
func (r *Registry[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.Len()
}

// ForEach visits every entry in key order while holding the lock for
// the whole traversal; fn must obey the same no-reentry contract as
// FindAndAct's callback.
func (r *Registry[V]) ForEach(fn func(key string, value V)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.t.ForEach(fn)
}

// FindAndMaybeRemove locks, resolves key, runs act against the value
// (e.g. removing a departing member from a channel's membership set),
// then — still under the same lock — removes the entry entirely if
// cond now reports true (e.g. membership dropped to zero). This is the
// PART/QUIT-leave primitive: "mutate, then atomically self-destruct if
// now empty" without ever re-entering the lock. Reports whether key was
// found.
func (r *Registry[V]) FindAndMaybeRemove(key string, act func(V), cond func(V) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.t.Lookup(key)
	if !ok {
		return false
	}
	act(v)
	if cond(v) {
		r.t.Remove(key)
	}
	return true
}
