// The metadata catalog: persists and loads the per-collection
// manifest, the single source of truth for which documents and indexes
// exist. Every mutation writes a complete new manifest blob — copy on
// write — rather than patching fields in place, so a torn write can never
// leave a half-updated manifest (the filesystem backend's atomic rename
// guarantees the blob the next reader sees is either the old manifest or
// the new one, never a mix).
package folio

const manifestBlobName = "$.metadata"

// IndexDescriptor names one secondary index: its key path, sort
// direction, and whether it needs a rebuild before it can be trusted.
// A descriptor loaded with Dirty set is rebuilt before use; nothing in
// this package sets Dirty.
type IndexDescriptor struct {
	Name      string `json:"name"`
	KeyPath   string `json:"key_path"`
	Direction int    `json:"direction"` // +1 or -1
	Dirty     bool   `json:"dirty"`
}

// Manifest is the per-collection metadata record.
type Manifest struct {
	CollectionID  string            `json:"collection_id"`
	DocumentIDs   []ID              `json:"document_ids"`
	Indexes       []IndexDescriptor `json:"indexes"`
	SchemaVersion int               `json:"schema_version"`
}

const currentSchemaVersion = 1

func newManifest(collectionID string) *Manifest {
	return &Manifest{CollectionID: collectionID, SchemaVersion: currentSchemaVersion}
}

// Catalog loads and persists manifests through a Backend.
type Catalog struct {
	backend Backend
}

func newCatalog(backend Backend) *Catalog {
	return &Catalog{backend: backend}
}

func manifestPath(db, coll string) StoragePath {
	return StoragePath{db, coll, manifestBlobName}
}

// Load returns the manifest for (db, coll), creating an empty one on
// first access — the manifest's lifecycle begins at first access to the
// collection, not at some separate creation step.
func (c *Catalog) Load(db, coll string) (*Manifest, error) {
	data, err := c.backend.Get(manifestPath(db, coll))
	if err == ErrNotFound {
		return newManifest(coll), nil
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := decodeAny(data, &m); err != nil {
		return nil, newOperationError(ErrStorageIO, coll, "corrupt manifest: %v", err)
	}
	return &m, nil
}

// Save atomically rewrites the manifest blob for (db, coll).
func (c *Catalog) Save(db, coll string, m *Manifest) error {
	data, err := encodeAny(m)
	if err != nil {
		return newOperationError(ErrStorageIO, coll, "encode manifest: %v", err)
	}
	return c.backend.Put(manifestPath(db, coll), data)
}

// AddDocumentID appends id to the manifest's id list if not already
// present, returning whether it was added.
func (m *Manifest) AddDocumentID(id ID) bool {
	for _, existing := range m.DocumentIDs {
		if existing == id {
			return false
		}
	}
	m.DocumentIDs = append(m.DocumentIDs, id)
	return true
}

// RemoveDocumentID removes id from the manifest's id list, returning
// whether it was present.
func (m *Manifest) RemoveDocumentID(id ID) bool {
	for i, existing := range m.DocumentIDs {
		if existing == id {
			m.DocumentIDs = append(m.DocumentIDs[:i], m.DocumentIDs[i+1:]...)
			return true
		}
	}
	return false
}

// HasDocumentID reports whether id is tracked by the manifest.
func (m *Manifest) HasDocumentID(id ID) bool {
	for _, existing := range m.DocumentIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// IndexDescriptorFor returns the descriptor for (keyPath, direction), if
// any — a collection has at most one index per (key_path, direction) pair.
func (m *Manifest) IndexDescriptorFor(keyPath string, direction int) *IndexDescriptor {
	for i := range m.Indexes {
		if m.Indexes[i].KeyPath == keyPath && m.Indexes[i].Direction == direction {
			return &m.Indexes[i]
		}
	}
	return nil
}

// IndexDescriptorByName returns the descriptor with the given name.
func (m *Manifest) IndexDescriptorByName(name string) *IndexDescriptor {
	for i := range m.Indexes {
		if m.Indexes[i].Name == name {
			return &m.Indexes[i]
		}
	}
	return nil
}

// AddIndexDescriptor appends a new index descriptor.
func (m *Manifest) AddIndexDescriptor(d IndexDescriptor) {
	m.Indexes = append(m.Indexes, d)
}

// RemoveIndexDescriptor removes the descriptor with the given name,
// returning whether it was present.
func (m *Manifest) RemoveIndexDescriptor(name string) bool {
	for i, d := range m.Indexes {
		if d.Name == name {
			m.Indexes = append(m.Indexes[:i], m.Indexes[i+1:]...)
			return true
		}
	}
	return false
}
