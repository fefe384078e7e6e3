// The document cache: a map from (collection, document id) to a
// decoded document plus the storage token it was decoded under.
//
// get re-checks the backend's Touch token before trusting the cached
// decode; a mismatch means the blob was rewritten since caching (by this
// process or, on the filesystem backend, by a cooperating one editing
// files directly) and triggers a reload. The cache is unbounded by
// default; Config.CacheLimit enables a simple hard cap that evicts the
// least-recently-stored entry (Lookup does not refresh an entry's age).
package folio

import "sync"

type cacheEntry struct {
	doc   Document
	token Token
	seq   uint64 // monotonically increasing store order, used for eviction
}

// DocumentCache is safe for concurrent use. Individual Get/Put/Invalidate
// calls are atomic; staleness checks still race benignly against a
// concurrent writer holding the collection lock, since the backend Touch
// token is authoritative and a stale read is simply treated as a miss.
type DocumentCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	limit   int
	clock   uint64
}

// NewDocumentCache constructs a cache. limit <= 0 means unbounded.
func NewDocumentCache(limit int) *DocumentCache {
	return &DocumentCache{entries: make(map[string]*cacheEntry), limit: limit}
}

func cacheKey(collection string, id ID) string {
	return collection + "\x00" + string(id)
}

// Lookup returns a deep copy of the cached document if token matches the
// cached token, else reports a miss so the caller reloads from storage.
func (c *DocumentCache) Lookup(collection string, id ID, token Token) (Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[cacheKey(collection, id)]
	if !ok || entry.token != token {
		return nil, false
	}
	return deepCopyDocument(entry.doc), true
}

// Store caches doc under token, evicting the least-recently-stored entry
// first if the cache is at its limit.
func (c *DocumentCache) Store(collection string, id ID, doc Document, token Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(collection, id)
	c.clock++
	if _, exists := c.entries[key]; !exists && c.limit > 0 && len(c.entries) >= c.limit {
		c.evictOldestLocked()
	}
	c.entries[key] = &cacheEntry{doc: deepCopyDocument(doc), token: token, seq: c.clock}
}

func (c *DocumentCache) evictOldestLocked() {
	var oldestKey string
	var oldestSeq uint64
	first := true
	for k, e := range c.entries {
		if first || e.seq < oldestSeq {
			oldestKey, oldestSeq, first = k, e.seq, false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// Invalidate drops the cached entry for id, forcing the next Lookup to
// miss regardless of token.
func (c *DocumentCache) Invalidate(collection string, id ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(collection, id))
}

// InvalidateCollection drops every cached entry for collection, used by
// DropCollection.
func (c *DocumentCache) InvalidateCollection(collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := collection + "\x00"
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
}
