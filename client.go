// Client lifecycle and database/collection namespace administration.
//
// A Client owns one Backend plus the process-local cache that every
// Collection obtained through it shares, and uses the process-wide lock
// registry that every Client shares. There is no
// server process to connect to: opening a Client opens (or creates) the
// storage root directly, using the same Open(dir, name, config) shape
// but at the root-directory granularity a multi-database library needs
// instead of one named file.
package folio

import (
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
)

// Config holds Client configuration options.
type Config struct {
	// Dir is the filesystem root to store data under. Ignored when
	// InMemory is true. When empty, the FOLIO_DATA_DIR environment
	// variable is used if set, else "<user home>/.folio".
	Dir string

	// InMemory selects the in-memory backend instead of the filesystem
	// one, losing durability across process restarts in exchange for
	// needing no disk access at all — useful for tests and ephemeral
	// caches.
	InMemory bool

	// CacheLimit caps the number of decoded documents the document cache
	// retains per process; <= 0 means unbounded.
	CacheLimit int

	// Minter overrides document id generation. Defaults to NewMinter().
	Minter Minter
}

// dataDirEnv replaces the default root when Config.Dir is empty (an
// explicit Config.Dir still takes precedence), primarily for tests that
// want every Client in a process to share one throwaway root without
// threading it through every call site.
const dataDirEnv = "FOLIO_DATA_DIR"

func (cfg Config) resolveDir() (string, error) {
	if cfg.Dir != "" {
		return cfg.Dir, nil
	}
	if env := os.Getenv(dataDirEnv); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", newOperationError(ErrStorageIO, "", "resolve home directory: %v", err)
	}
	return filepath.Join(home, ".folio"), nil
}

// processLocks is the lock registry shared by every Client in the process.
var processLocks = NewLockRegistry()

// Client is the top-level handle onto a storage root. It is safe for
// concurrent use by multiple goroutines; every Collection obtained from
// it shares the same backend, cache, and lock registry.
type Client struct {
	backend Backend
	catalog *Catalog
	cache   *DocumentCache
	locks   *LockRegistry
	minter  Minter
	closed  atomic.Bool
}

// NewClient opens (creating if necessary) a storage root per cfg.
func NewClient(cfg Config) (*Client, error) {
	var backend Backend
	if cfg.InMemory {
		backend = NewMemoryBackend()
	} else {
		dir, err := cfg.resolveDir()
		if err != nil {
			return nil, err
		}
		fsBackend, err := OpenFSBackend(dir)
		if err != nil {
			return nil, err
		}
		backend = fsBackend
	}

	minter := cfg.Minter
	if minter == nil {
		minter = NewMinter()
	}

	return &Client{
		backend: backend,
		catalog: newCatalog(backend),
		cache:   NewDocumentCache(cfg.CacheLimit),
		locks:   processLocks,
		minter:  minter,
	}, nil
}

// Close releases the underlying backend's resources, including the
// filesystem backend's exclusive root lock. It is idempotent; every
// operation on the Client or on a Collection obtained from it fails with
// ErrClosed afterward.
func (cl *Client) Close() error {
	if cl.closed.Swap(true) {
		return nil
	}
	return cl.backend.Close()
}

// checkOpen rejects an operation with ErrClosed once Close has been
// called, matching the single-owner, process-lifetime-exclusive model
// §5 assumes: a closed Client's backend (and, for the filesystem
// backend, its root lock) may already be gone.
func (cl *Client) checkOpen() error {
	if cl.closed.Load() {
		return newOperationError(ErrClosed, "", "client is closed")
	}
	return nil
}

// Collection returns a handle for (db, name). Handles are cheap; the
// collection's manifest and indexes are loaded lazily on first use.
func (cl *Client) Collection(db, name string) *Collection {
	return &Collection{client: cl, db: db, name: name}
}

// ListDatabaseNames returns every database name with at least one
// collection, sorted. A database exists only by virtue of having data
// under it — there is no separate "create database" operation.
func (cl *Client) ListDatabaseNames() ([]string, error) {
	if err := cl.checkOpen(); err != nil {
		return nil, err
	}
	paths, err := cl.backend.List(nil)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		if len(p) == 0 {
			continue
		}
		if !seen[p[0]] {
			seen[p[0]] = true
			out = append(out, p[0])
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListCollectionNames returns every collection name within db, sorted.
func (cl *Client) ListCollectionNames(db string) ([]string, error) {
	if err := cl.checkOpen(); err != nil {
		return nil, err
	}
	paths, err := cl.backend.List(StoragePath{db})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		if len(p) < 2 {
			continue
		}
		if !seen[p[1]] {
			seen[p[1]] = true
			out = append(out, p[1])
		}
	}
	sort.Strings(out)
	return out, nil
}

// DropCollection deletes every blob belonging to (db, name): the
// manifest, every document, and every index blob, plus any cached
// entries for the collection.
func (cl *Client) DropCollection(db, name string) error {
	if err := cl.checkOpen(); err != nil {
		return err
	}
	lockName := db + "." + name
	return cl.locks.WithCollectionWrite(lockName, func() error {
		paths, err := cl.backend.List(StoragePath{db, name})
		if err != nil {
			return err
		}
		for _, p := range paths {
			if _, err := cl.backend.Delete(p); err != nil && err != ErrNotFound {
				return err
			}
		}
		cl.cache.InvalidateCollection(lockName)
		return nil
	})
}

// DropDatabase deletes every collection within db.
func (cl *Client) DropDatabase(db string) error {
	names, err := cl.ListCollectionNames(db)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := cl.DropCollection(db, name); err != nil {
			return err
		}
	}
	return nil
}

// Database is a thin namespace handle bundling a Client with one
// database name, mirroring the client.Database(name).Collection(name)
// chaining of the PyMongo-style surface this library imitates.
type Database struct {
	client *Client
	name   string
}

// Database returns a namespace handle for db within cl.
func (cl *Client) Database(db string) *Database {
	return &Database{client: cl, name: db}
}

// Collection returns a handle for name within this database.
func (d *Database) Collection(name string) *Collection {
	return d.client.Collection(d.name, name)
}

// ListCollectionNames returns every collection name within this database.
func (d *Database) ListCollectionNames() ([]string, error) {
	return d.client.ListCollectionNames(d.name)
}

// DropCollection deletes a collection within this database.
func (d *Database) DropCollection(name string) error {
	return d.client.DropCollection(d.name, name)
}

// Drop deletes every collection within this database.
func (d *Database) Drop() error {
	return d.client.DropDatabase(d.name)
}
