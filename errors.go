// Package folio is an embedded, MongoDB-like document database. It is a
// library, not a server: callers open a Client backed by either an
// in-memory or filesystem storage engine, then work with Collections
// through a PyMongo-shaped surface — insert/find/update/replace/delete,
// secondary indexes, and cursors with sort/limit/skip.
package folio

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by database operations. Each names a distinct
// failure mode; callers distinguish them with errors.Is rather than string
// matching.
var (
	// ErrInvalidArgument is returned for a malformed filter/update document,
	// an unknown operator, a non-string collection name, or a bad index
	// direction.
	ErrInvalidArgument = errors.New("folio: invalid argument")

	// ErrDuplicateKey is returned when inserting a document whose _id is
	// already present in the collection.
	ErrDuplicateKey = errors.New("folio: duplicate key")

	// ErrInvalidOperation is returned for operations invalid in the current
	// state: a cursor reused after Close, drop_index on a missing index,
	// or Next past exhaustion.
	ErrInvalidOperation = errors.New("folio: invalid operation")

	// ErrInvalidUpdate is returned when an update operator cannot apply:
	// $inc on a non-numeric value, $push on a non-sequence, or $set
	// through a non-container intermediate path segment.
	ErrInvalidUpdate = errors.New("folio: invalid update")

	// ErrStorageIO is returned when the underlying storage backend fails.
	ErrStorageIO = errors.New("folio: storage I/O error")

	// ErrNotImplemented is returned for a recognized but unsupported
	// operator or keyword parameter. It is always returned loudly — never
	// silently ignored.
	ErrNotImplemented = errors.New("folio: not implemented")

	// ErrNotFound is returned by the storage layer when a blob does not
	// exist at the requested path.
	ErrNotFound = errors.New("folio: not found")

	// ErrClosed is returned when operating on a closed Client.
	ErrClosed = errors.New("folio: client is closed")
)

// OperationError wraps one of the sentinel errors above with the path or
// key it was raised for, so callers debugging a rejected filter or update
// document don't have to re-derive which clause failed.
type OperationError struct {
	Err  error
	Path string
	msg  string
}

func (e *OperationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.msg)
	}
	return fmt.Sprintf("%v: %s (path %q)", e.Err, e.msg, e.Path)
}

func (e *OperationError) Unwrap() error { return e.Err }

func newOperationError(kind error, path, format string, args ...interface{}) error {
	return &OperationError{Err: kind, Path: path, msg: fmt.Sprintf(format, args...)}
}
