// The update executor: path-addressed in-place field mutation.
//
// applyUpdate operates on a deep copy of the stored document (the caller
// in collection.go is responsible for handing it one) so that a failure
// partway through never leaves the stored document partially mutated —
// the copy is discarded and the original blob is never touched.
package folio

// Update is an update document of the form {$op: {path: value, ...}, ...}.
type Update = Document

var updateOps = map[string]bool{"$set": true, "$inc": true, "$push": true}

// applyUpdate mutates doc in place per the operators in update and returns
// the set of dotted paths that were written, so the caller can reconcile
// only the indexes that were actually touched.
func applyUpdate(doc Document, update Update) (map[string]bool, error) {
	if len(update) == 0 {
		return nil, newOperationError(ErrInvalidArgument, "", "update document has no operators")
	}

	touched := make(map[string]bool)
	for op, fields := range update {
		if !updateOps[op] {
			if len(op) > 0 && op[0] == '$' {
				return nil, newOperationError(ErrNotImplemented, op, "unsupported update operator")
			}
			return nil, newOperationError(ErrInvalidArgument, op, "update document keys must be operators")
		}

		fieldDoc, ok := fields.(map[string]interface{})
		if !ok {
			return nil, newOperationError(ErrInvalidArgument, op, "operator operand must be a document of path:value pairs")
		}

		for path, value := range fieldDoc {
			var err error
			switch op {
			case "$set":
				err = applySet(doc, path, value)
			case "$inc":
				err = applyInc(doc, path, value)
			case "$push":
				err = applyPush(doc, path, value)
			}
			if err != nil {
				return nil, err
			}
			touched[path] = true
		}
	}
	return touched, nil
}

func applySet(doc Document, path string, value interface{}) error {
	return setPath(doc, path, deepCopyValue(value))
}

func applyInc(doc Document, path string, delta interface{}) error {
	deltaF, ok := asFloat(delta)
	if !ok {
		return newOperationError(ErrInvalidUpdate, path, "$inc delta must be numeric")
	}

	existing, present := getPath(doc, path)
	if !present {
		return setPath(doc, path, delta)
	}

	existingF, ok := asFloat(existing)
	if !ok {
		return newOperationError(ErrInvalidUpdate, path, "$inc target is non-numeric")
	}

	sum := existingF + deltaF
	// Preserve integer representation when both operands were integral,
	// so repeated $inc on a freshly-created counter doesn't silently turn
	// it into a float the caller never asked for.
	if isIntegral(existing) && isIntegral(delta) {
		return setPath(doc, path, int64(sum))
	}
	return setPath(doc, path, sum)
}

func isIntegral(v interface{}) bool {
	switch v.(type) {
	case int, int32, int64:
		return true
	default:
		return false
	}
}

func applyPush(doc Document, path string, value interface{}) error {
	existing, present := getPath(doc, path)
	if !present {
		return setPath(doc, path, []interface{}{deepCopyValue(value)})
	}

	seq, ok := existing.([]interface{})
	if !ok {
		return newOperationError(ErrInvalidUpdate, path, "$push target is not a sequence")
	}

	updated := make([]interface{}, len(seq)+1)
	copy(updated, seq)
	updated[len(seq)] = deepCopyValue(value)
	return setPath(doc, path, updated)
}
