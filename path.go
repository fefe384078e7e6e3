// Dotted-path traversal over documents and sequences.
//
// A path segment descends a document by key or a sequence by integer
// index. Traversal never errors on a missing step — it yields "missing",
// represented here as (nil, false) — because the matcher treats missing
// distinctly from an explicit null.
package folio

import (
	"strconv"
	"strings"
)

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// pathsOverlap reports whether a write at written could have changed the
// value read at indexed: true if the paths are equal, or one is an
// ancestor of the other on "."-segment boundaries (writing "a.b" changes
// what's read at "a", and writing "a" changes what's read at "a.b").
// A plain string-prefix check would wrongly match "ab" against "a".
func pathsOverlap(written, indexed string) bool {
	w, idx := splitPath(written), splitPath(indexed)
	n := len(w)
	if len(idx) < n {
		n = len(idx)
	}
	for i := 0; i < n; i++ {
		if w[i] != idx[i] {
			return false
		}
	}
	return true
}

// getPath resolves a dotted path against doc. ok is false if any
// intermediate step is missing.
func getPath(doc Document, path string) (interface{}, bool) {
	segments := splitPath(path)
	var cur interface{} = doc
	for _, seg := range segments {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, exists := node[seg]
			if !exists {
				return nil, false
			}
			cur = v
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// setPath creates or replaces the value at a dotted path, creating
// intermediate documents as needed. It fails with INVALID_UPDATE if an
// intermediate step addresses any value other than a document; sequences
// are not descended, so a path through a sequence fails the same way.
func setPath(doc Document, path string, value interface{}) error {
	segments := splitPath(path)
	cur := doc
	for i, seg := range segments {
		last := i == len(segments)-1
		if last {
			cur[seg] = value
			return nil
		}

		next, exists := cur[seg]
		if !exists {
			fresh := make(map[string]interface{})
			cur[seg] = fresh
			cur = fresh
			continue
		}

		switch n := next.(type) {
		case map[string]interface{}:
			cur = n
		default:
			return newOperationError(ErrInvalidUpdate, path,
				"cannot descend through non-document value at %q", seg)
		}
	}
	return nil
}
