// The document value domain and its total order.
//
// Values are represented as plain Go interface{} rather than a hand-rolled
// tagged-sum type: documents arrive from and return to callers as
// map[string]interface{} (the same shape goccy/go-json decodes JSON into),
// so introducing a parallel Value wrapper type would just add a conversion
// layer at every API boundary. Dynamic dispatch is avoided at the one place
// it matters for query performance — comparison and equality — by routing
// through compare/valueEqual, a single switch over the concrete dynamic
// types rather than per-type interface methods.
package folio

import (
	"bytes"
	"sort"
)

// Document is a schemaless record: a string-keyed map whose values are
// drawn from the recursive domain in rank order below.
type Document = map[string]interface{}

// rank assigns each value kind its position in the total order:
// null < bool < number < string < binary < sequence < document.
func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case string:
		return 3
	case []byte:
		return 4
	case []interface{}:
		return 5
	case map[string]interface{}:
		return 6
	case ID:
		// ids compare as strings; an _id value is never compared against
		// a different kind in practice, but the rank keeps the order
		// total if it ever is.
		return 3
	default:
		return 7
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case ID:
		return string(s), true
	default:
		return "", false
	}
}

// compare implements the  total order. Missing values are represented by
// nil at the call site (traversal resolves "missing" to nil before
// comparison), matching "missing fields sort as null".
func compare(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}

	switch ra {
	case 0: // both null
		return 0
	case 1:
		ab, bb := a.(bool), b.(bool)
		if ab == bb {
			return 0
		}
		if !ab {
			return -1
		}
		return 1
	case 2:
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case 3:
		as, _ := asString(a)
		bs, _ := asString(b)
		return bytesCompareString(as, bs)
	case 4:
		return bytes.Compare(a.([]byte), b.([]byte))
	case 5:
		return compareSeq(a.([]interface{}), b.([]interface{}))
	case 6:
		return compareDoc(a.(map[string]interface{}), b.(map[string]interface{}))
	default:
		return 0
	}
}

func bytesCompareString(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func compareSeq(a, b []interface{}) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// compareDoc compares documents lexicographically over sorted key/value
// pairs: keys are sorted ascending, then compared key-by-key, then
// value-by-value for equal keys.
func compareDoc(a, b map[string]interface{}) int {
	ak := sortedKeys(a)
	bk := sortedKeys(b)
	n := len(ak)
	if len(bk) < n {
		n = len(bk)
	}
	for i := 0; i < n; i++ {
		if c := bytesCompareString(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := compare(a[ak[i]], b[bk[i]]); c != 0 {
			return c
		}
	}
	return len(ak) - len(bk)
}

func sortedKeys(d map[string]interface{}) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// valueEqual reports whether two values are equal under the total order.
func valueEqual(a, b interface{}) bool {
	return compare(a, b) == 0
}

// deepCopyValue recursively copies a value so that neither the caller's nor
// the store's reference can alias the other's mutations. This is the
// mechanism behind the by-value API boundary required everywhere a document
// crosses into or out of the database.
func deepCopyValue(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			out[k] = deepCopyValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, val := range x {
			out[i] = deepCopyValue(val)
		}
		return out
	case []byte:
		out := make([]byte, len(x))
		copy(out, x)
		return out
	default:
		// null, bool, numbers, strings, and ID are immutable by value.
		return x
	}
}

// deepCopyDocument returns an independent copy of doc, safe to hand across
// an API boundary in either direction.
func deepCopyDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	return deepCopyValue(doc).(map[string]interface{})
}
