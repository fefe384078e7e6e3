// Collection is the public entry point: a named set of documents within
// a database, identified by (database, collection). It wires together
// the catalog, cache, index subsystem, matcher, update executor, and
// lock registry.
package folio

import (
	"fmt"
)

// Collection operates on documents within one (database, collection)
// pair. Obtain one via Client.Database(name).Collection(name).
type Collection struct {
	client *Client
	db     string
	name   string

	indexes map[string]*Index
}

func (c *Collection) lockName() string { return c.db + "." + c.name }

func (c *Collection) docPath(id ID) StoragePath {
	return StoragePath{c.db, c.name, string(id)}
}

// loadManifest loads the collection's manifest without taking any lock;
// callers hold the collection lock already.
func (c *Collection) loadManifest() (*Manifest, error) {
	return c.client.catalog.Load(c.db, c.name)
}

func (c *Collection) saveManifest(m *Manifest) error {
	return c.client.catalog.Save(c.db, c.name, m)
}

// loadDocument fetches a document by id through the cache, falling back
// to the backend on a miss or stale token.
func (c *Collection) loadDocument(id ID) (Document, error) {
	path := c.docPath(id)
	token, err := c.client.backend.Touch(path)
	if err != nil {
		return nil, err
	}
	if doc, ok := c.client.cache.Lookup(c.lockName(), id, token); ok {
		return doc, nil
	}

	data, err := c.client.backend.Get(path)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	c.client.cache.Store(c.lockName(), id, doc, token)
	return doc, nil
}

func (c *Collection) storeDocument(id ID, doc Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return newOperationError(ErrStorageIO, c.name, "encode document: %v", err)
	}
	path := c.docPath(id)
	if err := c.client.backend.Put(path, data); err != nil {
		return err
	}
	token, err := c.client.backend.Touch(path)
	if err != nil {
		return err
	}
	c.client.cache.Store(c.lockName(), id, doc, token)
	return nil
}

func (c *Collection) deleteDocumentBlob(id ID) error {
	if _, err := c.client.backend.Delete(c.docPath(id)); err != nil {
		return err
	}
	c.client.cache.Invalidate(c.lockName(), id)
	return nil
}

// ensureIndexesLoaded loads every index named in the manifest that isn't
// already resident in c.indexes, rebuilding from scratch any marked dirty.
func (c *Collection) ensureIndexesLoaded(m *Manifest) error {
	if c.indexes == nil {
		c.indexes = make(map[string]*Index)
	}
	for _, d := range m.Indexes {
		if _, ok := c.indexes[d.Name]; ok {
			continue
		}
		if d.Dirty {
			if err := c.rebuildIndexLocked(d, m); err != nil {
				return err
			}
			continue
		}
		data, err := c.client.backend.Get(indexBlobPath(c.db, c.name, d.Name))
		if err == ErrNotFound {
			if err := c.rebuildIndexLocked(d, m); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		idx, err := decodeIndex(data)
		if err != nil {
			return err
		}
		c.indexes[d.Name] = idx
	}
	return nil
}

// rebuildIndexLocked rebuilds and persists an index under its own index
// lock, so a rebuild triggered by a reader (ensureIndexesLoaded can run
// under either the collection read or write lock) never races a
// concurrent reader's rebuild of the same index.
func (c *Collection) rebuildIndexLocked(d IndexDescriptor, m *Manifest) error {
	return c.client.locks.WithIndexWrite(c.lockName(), d.Name, func() error {
		if _, ok := c.indexes[d.Name]; ok {
			return nil
		}
		idx, err := c.rebuildIndex(d, m)
		if err != nil {
			return err
		}
		c.indexes[d.Name] = idx
		return nil
	})
}

func (c *Collection) rebuildIndex(d IndexDescriptor, m *Manifest) (*Index, error) {
	docs := make(map[ID]Document, len(m.DocumentIDs))
	for _, id := range m.DocumentIDs {
		doc, err := c.loadDocument(id)
		if err != nil {
			return nil, err
		}
		docs[id] = doc
	}
	idx := newIndex(d)
	idx.Rebuild(docs)
	return idx, c.persistIndex(idx)
}

func (c *Collection) persistIndex(idx *Index) error {
	data, err := encodeIndex(idx)
	if err != nil {
		return err
	}
	return c.client.backend.Put(indexBlobPath(c.db, c.name, idx.Descriptor.Name), data)
}

// reconcileIndexes updates every built index whose key path may have been
// touched, then persists the touched indexes. touchedPaths == nil means
// "reconcile every index" (insert/delete of a whole document).
//
// A touched path reconciles an index whenever the two overlap on
// "."-segment boundaries, not just on exact equality: writing "a.b"
// changes the value read at an index on "a" (an ancestor of the written
// path), and writing "a" changes the value read at an index on "a.b" (a
// descendant of it), since getPath re-resolves from the document root
// every time.
func (c *Collection) reconcileIndexes(id ID, oldDoc, newDoc Document, touchedPaths map[string]bool) error {
	for _, idx := range c.indexes {
		if touchedPaths != nil && !anyPathOverlaps(touchedPaths, idx.Descriptor.KeyPath) {
			continue
		}
		idx.Reconcile(id, oldDoc, newDoc)
		if err := c.persistIndex(idx); err != nil {
			return err
		}
	}
	return nil
}

func anyPathOverlaps(touchedPaths map[string]bool, keyPath string) bool {
	for written := range touchedPaths {
		if pathsOverlap(written, keyPath) {
			return true
		}
	}
	return false
}

// --- Inserts ---

// InsertOne inserts a single document, minting an _id if absent.
func (c *Collection) InsertOne(doc Document) (InsertOneResult, error) {
	if err := c.client.checkOpen(); err != nil {
		return InsertOneResult{}, err
	}
	var result InsertOneResult
	err := c.client.locks.WithCollectionWrite(c.lockName(), func() error {
		m, err := c.loadManifest()
		if err != nil {
			return err
		}
		if err := c.ensureIndexesLoaded(m); err != nil {
			return err
		}

		fresh := deepCopyDocument(doc)
		id, err := ensureID(fresh, c.client.minter)
		if err != nil {
			return err
		}
		if m.HasDocumentID(id) {
			return newOperationError(ErrDuplicateKey, "_id", "document with _id %q already exists", id)
		}

		if err := c.storeDocument(id, fresh); err != nil {
			return err
		}
		m.AddDocumentID(id)
		if err := c.reconcileIndexes(id, nil, fresh, nil); err != nil {
			return err
		}
		if err := c.saveManifest(m); err != nil {
			return err
		}
		result = InsertOneResult{InsertedID: id}
		return nil
	})
	return result, err
}

// InsertMany inserts multiple documents. With ordered=true, insertion
// stops at the first failure; with ordered=false, every document is
// attempted and every failure reported.
func (c *Collection) InsertMany(docs []Document, ordered bool) (InsertManyResult, error) {
	if err := c.client.checkOpen(); err != nil {
		return InsertManyResult{}, err
	}
	var result InsertManyResult
	err := c.client.locks.WithCollectionWrite(c.lockName(), func() error {
		m, err := c.loadManifest()
		if err != nil {
			return err
		}
		if err := c.ensureIndexesLoaded(m); err != nil {
			return err
		}

		for _, doc := range docs {
			fresh := deepCopyDocument(doc)
			id, idErr := ensureID(fresh, c.client.minter)
			if idErr == nil && m.HasDocumentID(id) {
				idErr = newOperationError(ErrDuplicateKey, "_id", "document with _id %q already exists", id)
			}
			if idErr == nil {
				idErr = c.storeDocument(id, fresh)
			}
			if idErr == nil {
				m.AddDocumentID(id)
				idErr = c.reconcileIndexes(id, nil, fresh, nil)
			}

			if idErr != nil {
				result.Errors = append(result.Errors, idErr)
				if ordered {
					c.saveManifest(m)
					return fmt.Errorf("insert_many: %w", idErr)
				}
				continue
			}
			result.InsertedIDs = append(result.InsertedIDs, id)
		}
		return c.saveManifest(m)
	})
	return result, err
}

func ensureID(doc Document, minter Minter) (ID, error) {
	raw, present := doc["_id"]
	if !present {
		id := minter.Mint()
		doc["_id"] = id
		return id, nil
	}
	switch v := raw.(type) {
	case ID:
		return v, nil
	case string:
		id := ID(v)
		doc["_id"] = id
		return id, nil
	default:
		return "", newOperationError(ErrInvalidArgument, "_id", "_id must be a string or ID value")
	}
}

// --- Reads ---

// candidateSnapshot holds the result of planning + matching a filter
// under the collection's reader lock: the surviving ids, in plan order,
// each paired with the document it was loaded as (so the cursor never
// needs to re-touch storage for these ids).
type candidateSnapshot struct {
	ids  []ID
	docs map[ID]Document
}

func (c *Collection) snapshot(filter Filter) (candidateSnapshot, error) {
	if err := c.client.checkOpen(); err != nil {
		return candidateSnapshot{}, err
	}
	var snap candidateSnapshot
	err := c.client.locks.WithCollectionRead(c.lockName(), func() error {
		m, err := c.loadManifest()
		if err != nil {
			return err
		}
		if err := c.ensureIndexesLoaded(m); err != nil {
			return err
		}

		p := selectPlan(filter, m.DocumentIDs, c.indexes)
		candidates := p.Candidates
		if candidates == nil {
			candidates = m.DocumentIDs
		}

		snap.docs = make(map[ID]Document, len(candidates))
		for _, id := range candidates {
			doc, err := c.loadDocument(id)
			if err == ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			ok, err := matchDocument(doc, filter)
			if err != nil {
				return err
			}
			if ok {
				snap.ids = append(snap.ids, id)
				snap.docs[id] = doc
			}
		}
		return nil
	})
	return snap, err
}

func (c *Collection) snapshotLoader(snap candidateSnapshot) loader {
	return func(id ID) (Document, error) {
		doc, ok := snap.docs[id]
		if !ok {
			return nil, ErrNotFound
		}
		return doc, nil
	}
}

// Find returns a Cursor over every document matching filter.
func (c *Collection) Find(filter Filter, sortSpec []SortKey, limit, skip int) (*Cursor, error) {
	snap, err := c.snapshot(filter)
	if err != nil {
		return nil, err
	}
	cur := newCursor(c.snapshotLoader(snap), snap.ids)
	if _, err := cur.Sort(sortSpec...); err != nil {
		return nil, err
	}
	if _, err := cur.Limit(limit); err != nil {
		return nil, err
	}
	if _, err := cur.Skip(skip); err != nil {
		return nil, err
	}
	return cur, nil
}

// FindOne returns the first document matching filter, or nil if none do.
func (c *Collection) FindOne(filter Filter, sortSpec []SortKey) (Document, error) {
	cur, err := c.Find(filter, sortSpec, 1, 0)
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	doc, ok, err := cur.Next()
	if err != nil || !ok {
		return nil, err
	}
	return doc, nil
}

// CountDocuments returns the number of documents matching filter.
func (c *Collection) CountDocuments(filter Filter) (int64, error) {
	snap, err := c.snapshot(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(snap.ids)), nil
}

// Distinct returns the sorted set of distinct values at key across every
// document matching filter.
func (c *Collection) Distinct(key string, filter Filter) ([]interface{}, error) {
	snap, err := c.snapshot(filter)
	if err != nil {
		return nil, err
	}

	var values []interface{}
	for _, id := range snap.ids {
		v, present := getPath(snap.docs[id], key)
		if !present {
			continue
		}
		duplicate := false
		for _, existing := range values {
			if valueEqual(existing, v) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			values = append(values, v)
		}
	}

	sortValues(values)
	return values, nil
}

func sortValues(values []interface{}) {
	for i := 1; i < len(values); i++ {
		for j := i; j > 0 && compare(values[j], values[j-1]) < 0; j-- {
			values[j], values[j-1] = values[j-1], values[j]
		}
	}
}

// --- Replace / Update ---

// ReplaceOne replaces the first document matching filter with replacement,
// preserving its _id. If upsert is true and nothing matches, replacement
// is inserted (minting an _id if it has none).
func (c *Collection) ReplaceOne(filter Filter, replacement Document, upsert bool) (UpdateResult, error) {
	if err := c.client.checkOpen(); err != nil {
		return UpdateResult{}, err
	}
	var result UpdateResult
	err := c.client.locks.WithCollectionWrite(c.lockName(), func() error {
		m, err := c.loadManifest()
		if err != nil {
			return err
		}
		if err := c.ensureIndexesLoaded(m); err != nil {
			return err
		}

		id, oldDoc, found, err := c.firstMatchLocked(filter, m)
		if err != nil {
			return err
		}

		if !found {
			if !upsert {
				return c.saveManifest(m)
			}
			fresh := deepCopyDocument(replacement)
			newID, idErr := ensureID(fresh, c.client.minter)
			if idErr != nil {
				return idErr
			}
			if err := c.storeDocument(newID, fresh); err != nil {
				return err
			}
			m.AddDocumentID(newID)
			if err := c.reconcileIndexes(newID, nil, fresh, nil); err != nil {
				return err
			}
			result = UpdateResult{UpsertedID: &newID}
			return c.saveManifest(m)
		}

		result.MatchedCount = 1
		fresh := deepCopyDocument(replacement)
		fresh["_id"] = id
		if err := c.storeDocument(id, fresh); err != nil {
			return err
		}
		if err := c.reconcileIndexes(id, oldDoc, fresh, nil); err != nil {
			return err
		}
		result.ModifiedCount = 1
		return c.saveManifest(m)
	})
	return result, err
}

// firstMatchLocked scans the manifest for the first document satisfying
// filter. Callers must already hold the collection's write lock.
func (c *Collection) firstMatchLocked(filter Filter, m *Manifest) (ID, Document, bool, error) {
	p := selectPlan(filter, m.DocumentIDs, c.indexes)
	candidates := p.Candidates
	if candidates == nil {
		candidates = m.DocumentIDs
	}
	for _, id := range candidates {
		doc, err := c.loadDocument(id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return "", nil, false, err
		}
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return "", nil, false, err
		}
		if ok {
			return id, doc, true, nil
		}
	}
	return "", nil, false, nil
}

// allMatchesLocked returns every (id, doc) satisfying filter. Callers must
// already hold the collection's write lock.
func (c *Collection) allMatchesLocked(filter Filter, m *Manifest) ([]ID, map[ID]Document, error) {
	p := selectPlan(filter, m.DocumentIDs, c.indexes)
	candidates := p.Candidates
	if candidates == nil {
		candidates = m.DocumentIDs
	}
	var ids []ID
	docs := make(map[ID]Document)
	for _, id := range candidates {
		doc, err := c.loadDocument(id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			ids = append(ids, id)
			docs[id] = doc
		}
	}
	return ids, docs, nil
}

// UpdateOne applies update to the first document matching filter. If
// upsert is true and nothing matches, a new document is synthesized from
// filter's equality clauses, with every operator in update applied on top.
func (c *Collection) UpdateOne(filter Filter, update Update, upsert bool) (UpdateResult, error) {
	return c.update(filter, update, upsert, false)
}

// UpdateMany applies update to every document matching filter.
func (c *Collection) UpdateMany(filter Filter, update Update, upsert bool) (UpdateResult, error) {
	return c.update(filter, update, upsert, true)
}

func (c *Collection) update(filter Filter, upd Update, upsert, many bool) (UpdateResult, error) {
	if err := c.client.checkOpen(); err != nil {
		return UpdateResult{}, err
	}
	var result UpdateResult
	err := c.client.locks.WithCollectionWrite(c.lockName(), func() error {
		m, err := c.loadManifest()
		if err != nil {
			return err
		}
		if err := c.ensureIndexesLoaded(m); err != nil {
			return err
		}

		var ids []ID
		var docs map[ID]Document
		if many {
			ids, docs, err = c.allMatchesLocked(filter, m)
		} else {
			var id ID
			var doc Document
			var found bool
			id, doc, found, err = c.firstMatchLocked(filter, m)
			if found {
				ids = []ID{id}
				docs = map[ID]Document{id: doc}
			}
		}
		if err != nil {
			return err
		}

		if len(ids) == 0 {
			if !upsert {
				return c.saveManifest(m)
			}
			fresh := seedFromFilter(filter)
			newID, idErr := ensureID(fresh, c.client.minter)
			if idErr != nil {
				return idErr
			}
			if _, err := applyUpdate(fresh, upd); err != nil {
				return err
			}
			if err := c.storeDocument(newID, fresh); err != nil {
				return err
			}
			m.AddDocumentID(newID)
			if err := c.reconcileIndexes(newID, nil, fresh, nil); err != nil {
				return err
			}
			result.UpsertedID = &newID
			return c.saveManifest(m)
		}

		result.MatchedCount = int64(len(ids))
		for _, id := range ids {
			oldDoc := docs[id]
			fresh := deepCopyDocument(oldDoc)
			touched, err := applyUpdate(fresh, upd)
			if err != nil {
				return err
			}
			if err := c.storeDocument(id, fresh); err != nil {
				return err
			}
			if err := c.reconcileIndexes(id, oldDoc, fresh, touched); err != nil {
				return err
			}
			result.ModifiedCount++
		}
		return c.saveManifest(m)
	})
	return result, err
}

// seedFromFilter builds the starting document for an upsert that matched
// nothing: every top-level equality clause in filter becomes a field.
func seedFromFilter(filter Filter) Document {
	doc := make(Document)
	for path, operand := range filter {
		if _, isOpDoc := asOperatorDocument(operand); isOpDoc {
			continue
		}
		setPath(doc, path, deepCopyValue(operand))
	}
	return doc
}

// --- Deletes ---

// DeleteOne removes the first document matching filter.
func (c *Collection) DeleteOne(filter Filter) (DeleteResult, error) {
	return c.delete(filter, false)
}

// DeleteMany removes every document matching filter.
func (c *Collection) DeleteMany(filter Filter) (DeleteResult, error) {
	return c.delete(filter, true)
}

func (c *Collection) delete(filter Filter, many bool) (DeleteResult, error) {
	if err := c.client.checkOpen(); err != nil {
		return DeleteResult{}, err
	}
	var result DeleteResult
	err := c.client.locks.WithCollectionWrite(c.lockName(), func() error {
		m, err := c.loadManifest()
		if err != nil {
			return err
		}
		if err := c.ensureIndexesLoaded(m); err != nil {
			return err
		}

		var ids []ID
		var docs map[ID]Document
		if many {
			ids, docs, err = c.allMatchesLocked(filter, m)
		} else {
			var id ID
			var doc Document
			var found bool
			id, doc, found, err = c.firstMatchLocked(filter, m)
			if found {
				ids = []ID{id}
				docs = map[ID]Document{id: doc}
			}
		}
		if err != nil {
			return err
		}

		for _, id := range ids {
			if err := c.deleteDocumentBlob(id); err != nil {
				return err
			}
			m.RemoveDocumentID(id)
			if err := c.reconcileIndexes(id, docs[id], nil, nil); err != nil {
				return err
			}
			result.DeletedCount++
		}
		return c.saveManifest(m)
	})
	return result, err
}

// --- Index administration ---

// CreateIndex builds and persists a new secondary index over keyPath in
// the given direction (+1 ascending, -1 descending), returning its name.
// A second call with the same (keyPath, direction) is a no-op that
// returns the existing name.
func (c *Collection) CreateIndex(keyPath string, direction int) (string, error) {
	if err := c.client.checkOpen(); err != nil {
		return "", err
	}
	if direction != 1 && direction != -1 {
		return "", newOperationError(ErrInvalidArgument, keyPath, "index direction must be 1 or -1, got %d", direction)
	}
	var name string
	err := c.client.locks.WithCollectionWrite(c.lockName(), func() error {
		m, err := c.loadManifest()
		if err != nil {
			return err
		}
		if err := c.ensureIndexesLoaded(m); err != nil {
			return err
		}

		if existing := m.IndexDescriptorFor(keyPath, direction); existing != nil {
			name = existing.Name
			return nil
		}

		name = indexName(keyPath, direction)
		d := IndexDescriptor{Name: name, KeyPath: keyPath, Direction: direction}

		return c.client.locks.WithIndexWrite(c.lockName(), name, func() error {
			idx, err := c.rebuildIndex(d, m)
			if err != nil {
				return err
			}
			c.indexes[name] = idx
			m.AddIndexDescriptor(idx.Descriptor)
			return c.saveManifest(m)
		})
	})
	return name, err
}

func indexName(keyPath string, direction int) string {
	suffix := "1"
	if direction < 0 {
		suffix = "-1"
	}
	return keyPath + "_" + suffix
}

// DropIndex removes a previously created secondary index by name.
// Dropping "_id_" is not permitted.
func (c *Collection) DropIndex(name string) error {
	if err := c.client.checkOpen(); err != nil {
		return err
	}
	if name == "_id_" {
		return newOperationError(ErrInvalidOperation, name, "the _id_ index cannot be dropped")
	}
	return c.client.locks.WithCollectionWrite(c.lockName(), func() error {
		m, err := c.loadManifest()
		if err != nil {
			return err
		}
		if !m.RemoveIndexDescriptor(name) {
			return newOperationError(ErrInvalidOperation, name, "no such index")
		}
		delete(c.indexes, name)
		if _, err := c.client.backend.Delete(indexBlobPath(c.db, c.name, name)); err != nil && err != ErrNotFound {
			return err
		}
		return c.saveManifest(m)
	})
}

// IndexInformation describes every index on the collection, with the
// implicit _id_ index always listed first.
func (c *Collection) IndexInformation() ([]IndexDescriptor, error) {
	if err := c.client.checkOpen(); err != nil {
		return nil, err
	}
	var out []IndexDescriptor
	err := c.client.locks.WithCollectionRead(c.lockName(), func() error {
		m, err := c.loadManifest()
		if err != nil {
			return err
		}
		out = append(out, IndexDescriptor{Name: "_id_", KeyPath: "_id", Direction: 1})
		out = append(out, m.Indexes...)
		return nil
	})
	return out, err
}
