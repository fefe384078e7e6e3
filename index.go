// The index subsystem: a sorted multimap from value to document-id set.
// Storage is two layers: a sorted slice of entries (for ordered range
// iteration) plus a hash set of ids per entry (for membership, insertion,
// removal, and union). Entries
// whose key path is missing on the document are stored under the
// sentinel nil, matching "missing fields sort as null".
package folio

import "sort"

type multimapEntry struct {
	Value interface{} `json:"v"`
	IDs   map[ID]bool `json:"-"`
	IDRaw []ID        `json:"ids"`
}

// Index is one secondary index: its descriptor plus the live sorted
// multimap. Entries are always stored in ascending compare() order
// regardless of the descriptor's Direction; lookups and range scans ignore
// Direction, which only appears in the index name and descriptor.
type Index struct {
	Descriptor IndexDescriptor
	entries    []*multimapEntry
}

func newIndex(d IndexDescriptor) *Index {
	return &Index{Descriptor: d}
}

// search returns the position of value's entry (or the insertion point)
// via binary search over the ascending-sorted entries.
func (idx *Index) search(value interface{}) (pos int, found bool) {
	n := len(idx.entries)
	pos = sort.Search(n, func(i int) bool {
		return compare(idx.entries[i].Value, value) >= 0
	})
	if pos < n && compare(idx.entries[pos].Value, value) == 0 {
		return pos, true
	}
	return pos, false
}

// Insert records that document id carries value at the indexed path.
func (idx *Index) Insert(value interface{}, id ID) {
	pos, found := idx.search(value)
	if found {
		idx.entries[pos].IDs[id] = true
		return
	}
	entry := &multimapEntry{Value: value, IDs: map[ID]bool{id: true}}
	idx.entries = append(idx.entries, nil)
	copy(idx.entries[pos+1:], idx.entries[pos:])
	idx.entries[pos] = entry
}

// Remove drops the (value, id) entry. If it was the last id for value,
// the entry itself is dropped to keep entries free of empty buckets.
func (idx *Index) Remove(value interface{}, id ID) {
	pos, found := idx.search(value)
	if !found {
		return
	}
	delete(idx.entries[pos].IDs, id)
	if len(idx.entries[pos].IDs) == 0 {
		idx.entries = append(idx.entries[:pos], idx.entries[pos+1:]...)
	}
}

// Exact returns the id set for an exact value match.
func (idx *Index) Exact(value interface{}) []ID {
	pos, found := idx.search(value)
	if !found {
		return nil
	}
	return idsOf(idx.entries[pos])
}

// Cardinality estimates the id-set size for an exact value match, used
// by the planner to pick the smallest driving index without materializing
// the full id list.
func (idx *Index) Cardinality(value interface{}) int {
	pos, found := idx.search(value)
	if !found {
		return 0
	}
	return len(idx.entries[pos].IDs)
}

// rangeBound describes one side of a range query clause.
type rangeBound struct {
	Value     interface{}
	Inclusive bool
	Set       bool
}

// Range returns the union of id sets for entries within [min, max] (or
// half-open, depending on inclusivity/whether each bound is set).
func (idx *Index) Range(min, max rangeBound) []ID {
	lo := 0
	if min.Set {
		lo = sort.Search(len(idx.entries), func(i int) bool {
			c := compare(idx.entries[i].Value, min.Value)
			if min.Inclusive {
				return c >= 0
			}
			return c > 0
		})
	}
	hi := len(idx.entries)
	if max.Set {
		hi = sort.Search(len(idx.entries), func(i int) bool {
			c := compare(idx.entries[i].Value, max.Value)
			if max.Inclusive {
				return c > 0
			}
			return c >= 0
		})
	}

	seen := make(map[ID]bool)
	var out []ID
	for i := lo; i < hi && i < len(idx.entries); i++ {
		for id := range idx.entries[i].IDs {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func idsOf(e *multimapEntry) []ID {
	out := make([]ID, 0, len(e.IDs))
	for id := range e.IDs {
		out = append(out, id)
	}
	return out
}

// Rebuild clears and repopulates the index from scratch by scanning every
// document's value at the key path, clearing the descriptor's dirty flag.
func (idx *Index) Rebuild(docs map[ID]Document) {
	idx.entries = nil
	for id, doc := range docs {
		value, present := getPath(doc, idx.Descriptor.KeyPath)
		if !present {
			value = nil
		}
		idx.Insert(value, id)
	}
	idx.Descriptor.Dirty = false
}

// Reconcile updates the index for a single document whose key_path value
// changed from oldDoc to newDoc (either may be nil, for insert/delete).
func (idx *Index) Reconcile(id ID, oldDoc, newDoc Document) {
	if oldDoc != nil {
		if v, present := getPath(oldDoc, idx.Descriptor.KeyPath); present {
			idx.Remove(v, id)
		} else {
			idx.Remove(nil, id)
		}
	}
	if newDoc != nil {
		if v, present := getPath(newDoc, idx.Descriptor.KeyPath); present {
			idx.Insert(v, id)
		} else {
			idx.Insert(nil, id)
		}
	}
}

// snapshotEntries prepares entries for serialization: IDRaw must be
// populated from the IDs set, since the set itself isn't stably ordered.
func (idx *Index) snapshotEntries() []*multimapEntry {
	out := make([]*multimapEntry, len(idx.entries))
	for i, e := range idx.entries {
		ids := idsOf(e)
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		out[i] = &multimapEntry{Value: e.Value, IDRaw: ids}
	}
	return out
}

func indexFromEntries(d IndexDescriptor, entries []*multimapEntry) *Index {
	idx := newIndex(d)
	idx.entries = make([]*multimapEntry, len(entries))
	for i, e := range entries {
		ids := make(map[ID]bool, len(e.IDRaw))
		for _, id := range e.IDRaw {
			ids[id] = true
		}
		idx.entries[i] = &multimapEntry{Value: e.Value, IDs: ids}
	}
	return idx
}
