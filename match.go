// The filter matcher: recursive predicate evaluation over dotted paths
// and comparison operators.
//
// A filter is itself a Document: top-level keys combine with logical AND,
// each key is a dotted path, and each value is either a scalar (implicit
// $eq) or an operator document. Type mismatches between an operand and the
// path's actual value are never errors — they resolve through the same
// total order compare() uses everywhere else.
package folio

// Filter is a predicate document. Its shape is validated lazily, clause by
// clause, as matchDocument walks it — there is no separate parse step.
type Filter = Document

var comparisonOps = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true,
	"$lt": true, "$lte": true, "$in": true, "$nin": true,
}

// matchDocument reports whether doc satisfies filter.
func matchDocument(doc Document, filter Filter) (bool, error) {
	for path, operand := range filter {
		if len(path) == 0 {
			return false, newOperationError(ErrInvalidArgument, path, "empty filter key")
		}
		ok, err := matchClause(doc, path, operand)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchClause(doc Document, path string, operand interface{}) (bool, error) {
	opDoc, isOpDoc := asOperatorDocument(operand)
	if !isOpDoc {
		return matchEq(doc, path, operand), nil
	}

	value, present := getPath(doc, path)
	for op, arg := range opDoc {
		var ok bool
		var err error
		switch op {
		case "$eq":
			ok = matchEq(doc, path, arg)
		case "$ne":
			ok = !matchEq(doc, path, arg)
		case "$gt":
			ok = present && compare(value, arg) > 0
		case "$gte":
			ok = present && compare(value, arg) >= 0
		case "$lt":
			ok = present && compare(value, arg) < 0
		case "$lte":
			ok = present && compare(value, arg) <= 0
		case "$in":
			ok, err = matchIn(doc, path, arg)
		case "$nin":
			var in bool
			in, err = matchIn(doc, path, arg)
			ok = !in
		default:
			return false, newOperationError(ErrInvalidArgument, path, "unknown operator %q", op)
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// asOperatorDocument reports whether operand is an operator document
// (every key is a recognized comparison operator) as opposed to a scalar
// or nested-document literal to compare by $eq.
func asOperatorDocument(operand interface{}) (Document, bool) {
	d, ok := operand.(map[string]interface{})
	if !ok || len(d) == 0 {
		return nil, false
	}
	for k := range d {
		if len(k) == 0 || k[0] != '$' {
			return nil, false
		}
		if !comparisonOps[k] {
			return nil, false
		}
	}
	return d, true
}

// matchEq implements $eq, including in-list equality: a sequence-valued
// path matches if any element equals the operand.
func matchEq(doc Document, path string, want interface{}) bool {
	value, present := getPath(doc, path)
	if !present {
		return want == nil
	}
	if valueEqual(value, want) {
		return true
	}
	if seq, ok := value.([]interface{}); ok {
		for _, elem := range seq {
			if valueEqual(elem, want) {
				return true
			}
		}
	}
	return false
}

func matchIn(doc Document, path string, arg interface{}) (bool, error) {
	options, ok := arg.([]interface{})
	if !ok {
		return false, newOperationError(ErrInvalidArgument, path, "$in/$nin requires a list operand")
	}
	for _, opt := range options {
		if matchEq(doc, path, opt) {
			return true, nil
		}
	}
	return false, nil
}
