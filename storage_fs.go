// The filesystem storage backend.
//
// Each blob is one file under a root directory; path segments become
// directory components, URL-safe-encoded per segment so that arbitrary
// database/collection/blob names can't escape their directory or collide
// with path separators. put writes to a uuid-suffixed temp sibling and
// renames over the target, which is atomic on the host filesystem: write
// new, then retire old, applied to a whole file rather than a patch of
// bytes in a shared one, since blobs here are independently addressed
// rather than lines in one log.
package folio

import (
	"encoding/base32"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var pathEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

func encodeSegment(seg string) string {
	return strings.ToLower(pathEncoding.EncodeToString([]byte(seg)))
}

func decodeSegment(enc string) (string, error) {
	b, err := pathEncoding.DecodeString(strings.ToUpper(enc))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FSBackend persists blobs as files under a root directory using os.Root
// for sandboxed access — no operation can escape the configured root via
// ".." segments or symlink tricks, and the library never leaves a partial
// file at a canonical path.
type FSBackend struct {
	root *os.Root
	lock *fileLock
}

// OpenFSBackend opens (creating if necessary) a filesystem-backed store
// rooted at dir. It takes an exclusive advisory lock on a root sentinel
// file for the lifetime of the backend, enforcing single-process
// exclusivity: if another process already holds the root, the call blocks
// until that lock is released rather than sharing the root.
func OpenFSBackend(dir string) (*FSBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, newOperationError(ErrStorageIO, dir, "create root dir: %v", err)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, newOperationError(ErrStorageIO, dir, "open root: %v", err)
	}

	sentinelName := ".folio.lock"
	if _, err := root.Stat(sentinelName); os.IsNotExist(err) {
		f, err := root.Create(sentinelName)
		if err != nil {
			root.Close()
			return nil, newOperationError(ErrStorageIO, dir, "create lock sentinel: %v", err)
		}
		f.Close()
	}

	sentinel, err := root.OpenFile(sentinelName, os.O_RDWR, 0o644)
	if err != nil {
		root.Close()
		return nil, newOperationError(ErrStorageIO, dir, "open lock sentinel: %v", err)
	}

	lock := &fileLock{f: sentinel}
	if err := lock.Lock(LockExclusive); err != nil {
		sentinel.Close()
		root.Close()
		return nil, newOperationError(ErrStorageIO, dir, "acquire root lock: %v", err)
	}

	return &FSBackend{root: root, lock: lock}, nil
}

func (b *FSBackend) blobPath(path StoragePath) (dir, file string) {
	encoded := make([]string, len(path))
	for i, seg := range path {
		encoded[i] = encodeSegment(seg)
	}
	if len(encoded) == 0 {
		return "", ""
	}
	return filepath.Join(encoded[:len(encoded)-1]...), encoded[len(encoded)-1]
}

func (b *FSBackend) fullName(path StoragePath) string {
	dir, file := b.blobPath(path)
	if dir == "" {
		return file
	}
	return filepath.Join(dir, file)
}

func (b *FSBackend) Get(path StoragePath) ([]byte, error) {
	name := b.fullName(path)
	f, err := b.root.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, newOperationError(ErrStorageIO, name, "open: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, newOperationError(ErrStorageIO, name, "read: %v", err)
	}
	return data, nil
}

// mkdirAll creates dir and any missing parents under the root, one
// component at a time — os.Root exposes a single-level Mkdir, not a
// recursive variant, so this mirrors os.MkdirAll's component walk.
func (b *FSBackend) mkdirAll(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	var built string
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == "" {
			continue
		}
		built = filepath.Join(built, part)
		if err := b.root.Mkdir(built, 0o755); err != nil && !os.IsExist(err) {
			return err
		}
	}
	return nil
}

func (b *FSBackend) Put(path StoragePath, data []byte) error {
	dir, file := b.blobPath(path)
	if dir != "" {
		if err := b.mkdirAll(dir); err != nil {
			return newOperationError(ErrStorageIO, dir, "mkdir: %v", err)
		}
	}

	tmpName := filepath.Join(dir, file+"."+uuid.NewString()+".tmp")
	finalName := filepath.Join(dir, file)

	f, err := b.root.Create(tmpName)
	if err != nil {
		return newOperationError(ErrStorageIO, finalName, "create temp: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		b.root.Remove(tmpName)
		return newOperationError(ErrStorageIO, finalName, "write temp: %v", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		b.root.Remove(tmpName)
		return newOperationError(ErrStorageIO, finalName, "sync temp: %v", err)
	}
	if err := f.Close(); err != nil {
		b.root.Remove(tmpName)
		return newOperationError(ErrStorageIO, finalName, "close temp: %v", err)
	}

	if err := b.root.Rename(tmpName, finalName); err != nil {
		b.root.Remove(tmpName)
		return newOperationError(ErrStorageIO, finalName, "rename: %v", err)
	}
	return nil
}

func (b *FSBackend) Delete(path StoragePath) (bool, error) {
	name := b.fullName(path)
	err := b.root.Remove(name)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, newOperationError(ErrStorageIO, name, "remove: %v", err)
	}
	return true, nil
}

func (b *FSBackend) List(prefix StoragePath) ([]StoragePath, error) {
	dir := filepath.Join(func() []string {
		enc := make([]string, len(prefix))
		for i, seg := range prefix {
			enc[i] = encodeSegment(seg)
		}
		return enc
	}()...)

	var out []StoragePath
	walkErr := fs.WalkDir(rootFS{b.root}, dirOrDot(dir), func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(p, ".tmp") {
			return nil
		}
		segments := strings.Split(filepath.ToSlash(p), "/")
		decoded := make(StoragePath, len(segments))
		for i, seg := range segments {
			d, derr := decodeSegment(seg)
			if derr != nil {
				return nil
			}
			decoded[i] = d
		}
		out = append(out, decoded)
		return nil
	})
	if walkErr != nil {
		return nil, newOperationError(ErrStorageIO, dir, "list: %v", walkErr)
	}
	return out, nil
}

func dirOrDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

// rootFS adapts *os.Root to fs.FS/fs.ReadDirFS for fs.WalkDir.
type rootFS struct{ root *os.Root }

func (r rootFS) Open(name string) (fs.File, error) { return r.root.Open(name) }

// fsTouchToken is Touch's token for the filesystem backend: mtime and
// size, which together change iff the blob's content changed, even across
// cooperating processes editing the files directly.
type fsTouchToken struct {
	ModNanos int64
	Size     int64
}

func (b *FSBackend) Touch(path StoragePath) (Token, error) {
	name := b.fullName(path)
	info, err := fs.Stat(rootFS{b.root}, name)
	if err != nil {
		if os.IsNotExist(err) {
			return fsTouchToken{}, nil
		}
		return nil, newOperationError(ErrStorageIO, name, "stat: %v", err)
	}
	return fsTouchToken{ModNanos: info.ModTime().UnixNano(), Size: info.Size()}, nil
}

func (b *FSBackend) Close() error {
	b.lock.Unlock()
	if err := b.lock.f.Close(); err != nil {
		b.root.Close()
		return newOperationError(ErrStorageIO, "", "close lock sentinel: %v", err)
	}
	return b.root.Close()
}
