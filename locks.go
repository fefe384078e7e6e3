// The in-process lock registry: a process-global map from
// (scope, name) to a reader/writer lock.
//
// Lookups are striped across a fixed table of shards, each guarded by its
// own mutex, so that acquiring the registry entry for one collection
// doesn't serialize against acquiring the entry for an unrelated one.
// Shard selection hashes "scope:name" with blake2b, fixed as the one
// algorithm this internal, non-configurable table needs.
package folio

import (
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Scope is the kind of resource a lock guards. Lock ordering to prevent
// deadlock is ScopeDatabase < ScopeCollection < ScopeIndex; within one
// scope, locks are acquired in lexicographic order of name.
type Scope int

const (
	ScopeDatabase Scope = iota
	ScopeCollection
	ScopeIndex
)

const lockShardCount = 64

type registryShard struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// LockRegistry is the process-wide named-lock table. One instance is
// shared by every Client in the process.
type LockRegistry struct {
	shards [lockShardCount]*registryShard
}

// NewLockRegistry constructs an empty registry. Every Client uses the
// single package-level registry built with it; further registries are
// independent of that one.
func NewLockRegistry() *LockRegistry {
	r := &LockRegistry{}
	for i := range r.shards {
		r.shards[i] = &registryShard{locks: make(map[string]*sync.RWMutex)}
	}
	return r
}

func shardIndex(key string) int {
	sum := blake2b.Sum256([]byte(key))
	var h uint32
	for _, b := range sum[:4] {
		h = h<<8 | uint32(b)
	}
	return int(h % lockShardCount)
}

func lockKey(scope Scope, name string) string {
	switch scope {
	case ScopeDatabase:
		return "D:" + name
	case ScopeCollection:
		return "C:" + name
	default:
		return "I:" + name
	}
}

func (r *LockRegistry) entry(scope Scope, name string) *sync.RWMutex {
	key := lockKey(scope, name)
	shard := r.shards[shardIndex(key)]

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if lk, ok := shard.locks[key]; ok {
		return lk
	}
	lk := &sync.RWMutex{}
	shard.locks[key] = lk
	return lk
}

// RLock acquires the reader lock for (scope, name) and returns the
// matching unlock function.
func (r *LockRegistry) RLock(scope Scope, name string) func() {
	lk := r.entry(scope, name)
	lk.RLock()
	return lk.RUnlock
}

// Lock acquires the writer lock for (scope, name) and returns the
// matching unlock function.
func (r *LockRegistry) Lock(scope Scope, name string) func() {
	lk := r.entry(scope, name)
	lk.Lock()
	return lk.Unlock
}

// WithCollectionWrite acquires a collection's writer lock for the
// duration of fn. CreateIndex additionally takes the index lock (within
// the same writer section) so that readers of the index are blocked
// during initial build, per the DATABASE < COLLECTION < INDEX ordering.
func (r *LockRegistry) WithCollectionWrite(name string, fn func() error) error {
	unlock := r.Lock(ScopeCollection, name)
	defer unlock()
	return fn()
}

// WithCollectionRead acquires a collection's reader lock for the
// duration of fn.
func (r *LockRegistry) WithCollectionRead(name string, fn func() error) error {
	unlock := r.RLock(ScopeCollection, name)
	defer unlock()
	return fn()
}

// WithIndexWrite acquires an index's writer lock nested inside an
// already-held collection writer lock, preserving the COLLECTION < INDEX
// ordering required by CreateIndex's initial-scan block.
func (r *LockRegistry) WithIndexWrite(collection, index string, fn func() error) error {
	unlock := r.Lock(ScopeIndex, collection+"."+index)
	defer unlock()
	return fn()
}
