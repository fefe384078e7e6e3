// The cursor: a lazy, ordered sequence over candidate ids with
// sort/limit/skip.
//
// Order of application is filter -> sort -> skip -> limit. Sorting
// requires full materialization of the surviving ids (every candidate
// must be loaded and compared before the first result can be returned);
// with no sort spec, documents stream one at a time in the order the
// planner's candidate list already provides — manifest insertion order
// for a full scan, index order for an index scan (ids that share one
// indexed value come in no defined order).
package folio

import "sort"

// SortKey orders results by one dotted path, ascending (+1) or
// descending (-1).
type SortKey struct {
	Path      string
	Direction int
}

type loader func(ID) (Document, error)

// Cursor is returned by Collection.Find. It is not safe for concurrent
// use by multiple goroutines, matching the single-threaded-per-cursor
// contract of the PyMongo surface it mirrors.
type Cursor struct {
	load     loader
	initial  []ID // ids as constructed, before skip/limit; used by Clone
	ids      []ID
	sortSpec []SortKey
	limitN   int
	skipN    int

	started   bool
	docs      []Document // populated once materialized (sorted path)
	pos       int
	exhausted bool
	closed    bool
}

func newCursor(load loader, ids []ID) *Cursor {
	out := make([]ID, len(ids))
	copy(out, ids)
	return &Cursor{load: load, initial: out, ids: out}
}

func (c *Cursor) checkOpen() error {
	if c.closed {
		return newOperationError(ErrInvalidOperation, "", "cursor reused after close")
	}
	return nil
}

// Sort establishes a total order by key-tuple, applied before consumption
// begins. Calling it after the first Next returns an ErrInvalidOperation
// error, matching "adjustments applied before consumption begins."
func (c *Cursor) Sort(keys ...SortKey) (*Cursor, error) {
	if err := c.checkOpen(); err != nil {
		return c, err
	}
	if c.started {
		return c, newOperationError(ErrInvalidOperation, "", "cannot Sort a cursor after consumption has begun")
	}
	c.sortSpec = keys
	return c, nil
}

// Limit caps the number of documents Next will yield.
func (c *Cursor) Limit(n int) (*Cursor, error) {
	if err := c.checkOpen(); err != nil {
		return c, err
	}
	if c.started {
		return c, newOperationError(ErrInvalidOperation, "", "cannot Limit a cursor after consumption has begun")
	}
	c.limitN = n
	return c, nil
}

// Skip discards the first n documents from the result.
func (c *Cursor) Skip(n int) (*Cursor, error) {
	if err := c.checkOpen(); err != nil {
		return c, err
	}
	if c.started {
		return c, newOperationError(ErrInvalidOperation, "", "cannot Skip a cursor after consumption has begun")
	}
	c.skipN = n
	return c, nil
}

func (c *Cursor) materialize() error {
	ids := c.ids
	if len(c.sortSpec) > 0 {
		docs := make([]Document, 0, len(ids))
		keepIDs := make([]ID, 0, len(ids))
		for _, id := range ids {
			doc, err := c.load(id)
			if err != nil {
				if err == ErrNotFound {
					continue
				}
				return err
			}
			docs = append(docs, doc)
			keepIDs = append(keepIDs, id)
		}
		sortDocuments(docs, c.sortSpec)
		c.docs = docs
		c.ids = keepIDs
	}

	if c.skipN > 0 {
		if c.skipN >= len(c.ids) {
			c.ids, c.docs = nil, nil
		} else {
			if c.docs != nil {
				c.docs = c.docs[c.skipN:]
			}
			c.ids = c.ids[c.skipN:]
		}
	}
	if c.limitN > 0 {
		if c.docs != nil && len(c.docs) > c.limitN {
			c.docs = c.docs[:c.limitN]
		}
		if len(c.ids) > c.limitN {
			c.ids = c.ids[:c.limitN]
		}
	}
	return nil
}

// Next advances the cursor by one. ok is false once the cursor is
// exhausted; calling Next again afterward returns ErrInvalidOperation.
func (c *Cursor) Next() (doc Document, ok bool, err error) {
	if err := c.checkOpen(); err != nil {
		return nil, false, err
	}
	if c.exhausted {
		return nil, false, newOperationError(ErrInvalidOperation, "", "next() called past end of cursor")
	}

	if !c.started {
		c.started = true
		if err := c.materialize(); err != nil {
			return nil, false, err
		}
	}

	if c.docs != nil {
		if c.pos >= len(c.docs) {
			c.exhausted = true
			return nil, false, nil
		}
		d := c.docs[c.pos]
		c.pos++
		return deepCopyDocument(d), true, nil
	}

	for c.pos < len(c.ids) {
		id := c.ids[c.pos]
		c.pos++
		d, err := c.load(id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return deepCopyDocument(d), true, nil
	}
	c.exhausted = true
	return nil, false, nil
}

// Clone returns an independent cursor at the initial position with the
// same configuration.
func (c *Cursor) Clone() *Cursor {
	clone := newCursor(c.load, c.initial)
	clone.sortSpec = append([]SortKey(nil), c.sortSpec...)
	clone.limitN = c.limitN
	clone.skipN = c.skipN
	return clone
}

// Close is idempotent and releases the cursor's held id list.
func (c *Cursor) Close() error {
	c.closed = true
	c.docs = nil
	c.ids = nil
	return nil
}

// sortDocuments orders docs in place by the key-tuple in keys, using the
// value total order; a missing field at any key sorts as null. The sort
// is stable so documents tying on every key keep their relative position
// in the candidate list, the default order.
func sortDocuments(docs []Document, keys []SortKey) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			vi, _ := getPath(docs[i], k.Path)
			vj, _ := getPath(docs[j], k.Path)
			c := compare(vi, vj)
			if k.Direction < 0 {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}
