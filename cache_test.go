// Document cache tests: token-gated hits/misses and bounded
// eviction.
package folio

import "testing"

func TestDocumentCacheHitAndTokenMiss(t *testing.T) {
	c := NewDocumentCache(0)
	c.Store("coll", "a", Document{"v": 1}, 1)

	doc, ok := c.Lookup("coll", "a", 1)
	if !ok || doc["v"] != 1 {
		t.Fatalf("Lookup with matching token = (%v, %v)", doc, ok)
	}

	if _, ok := c.Lookup("coll", "a", 2); ok {
		t.Fatalf("Lookup with a stale token should miss")
	}
}

func TestDocumentCacheReturnsIndependentCopy(t *testing.T) {
	c := NewDocumentCache(0)
	c.Store("coll", "a", Document{"nested": map[string]interface{}{"x": 1}}, 1)

	doc, _ := c.Lookup("coll", "a", 1)
	doc["nested"].(map[string]interface{})["x"] = 99

	again, _ := c.Lookup("coll", "a", 1)
	if again["nested"].(map[string]interface{})["x"] != 1 {
		t.Fatalf("mutating a looked-up document should not affect the cached copy")
	}
}

func TestDocumentCacheEvictsOldestWhenAtLimit(t *testing.T) {
	c := NewDocumentCache(2)
	c.Store("coll", "a", Document{"v": 1}, 1)
	c.Store("coll", "b", Document{"v": 2}, 1)
	c.Store("coll", "c", Document{"v": 3}, 1)

	if _, ok := c.Lookup("coll", "a", 1); ok {
		t.Fatalf("the oldest entry should have been evicted")
	}
	if _, ok := c.Lookup("coll", "c", 1); !ok {
		t.Fatalf("the newest entry should still be cached")
	}
}

func TestDocumentCacheInvalidate(t *testing.T) {
	c := NewDocumentCache(0)
	c.Store("coll", "a", Document{"v": 1}, 1)
	c.Invalidate("coll", "a")
	if _, ok := c.Lookup("coll", "a", 1); ok {
		t.Fatalf("Lookup after Invalidate should miss")
	}
}

func TestDocumentCacheInvalidateCollection(t *testing.T) {
	c := NewDocumentCache(0)
	c.Store("db.coll1", "a", Document{"v": 1}, 1)
	c.Store("db.coll2", "a", Document{"v": 1}, 1)

	c.InvalidateCollection("db.coll1")

	if _, ok := c.Lookup("db.coll1", "a", 1); ok {
		t.Fatalf("coll1 entries should be invalidated")
	}
	if _, ok := c.Lookup("db.coll2", "a", 1); !ok {
		t.Fatalf("coll2 entries should be untouched")
	}
}
