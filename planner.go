// The query planner: given a filter and the indexes available on a
// collection, decides between an index scan and a full collection scan.
//
// The baseline never intersects multiple indexes — it picks one driving
// index per the rules below and lets the matcher re-check every remaining
// clause against each candidate.
package folio

// clauseKind classifies a single filter clause for planning purposes.
type clauseKind int

const (
	clauseNone clauseKind = iota
	clauseEq
	clauseRange
)

type clausePlan struct {
	path   string
	kind   clauseKind
	values []interface{} // for clauseEq: the value(s) to union (1 for $eq, N for $in)
	min    rangeBound
	max    rangeBound
}

// analyzeClause classifies one filter clause (path -> operand).
func analyzeClause(path string, operand interface{}) clausePlan {
	opDoc, isOpDoc := asOperatorDocument(operand)
	if !isOpDoc {
		return clausePlan{path: path, kind: clauseEq, values: []interface{}{operand}}
	}

	if v, ok := opDoc["$eq"]; ok {
		return clausePlan{path: path, kind: clauseEq, values: []interface{}{v}}
	}
	if in, ok := opDoc["$in"].([]interface{}); ok {
		return clausePlan{path: path, kind: clauseEq, values: in}
	}

	var min, max rangeBound
	if v, ok := opDoc["$gte"]; ok {
		min = rangeBound{Value: v, Inclusive: true, Set: true}
	} else if v, ok := opDoc["$gt"]; ok {
		min = rangeBound{Value: v, Inclusive: false, Set: true}
	}
	if v, ok := opDoc["$lte"]; ok {
		max = rangeBound{Value: v, Inclusive: true, Set: true}
	} else if v, ok := opDoc["$lt"]; ok {
		max = rangeBound{Value: v, Inclusive: false, Set: true}
	}
	if min.Set || max.Set {
		return clausePlan{path: path, kind: clauseRange, min: min, max: max}
	}

	// Only $ne/$nin present: not servable by an index in the baseline.
	return clausePlan{path: path, kind: clauseNone}
}

// plan is the planner's decision: Candidates nil means full scan.
type plan struct {
	Candidates []ID
	DrivingIdx string // index name, "_id_" for the implicit _id index, "" for full scan
}

// selectPlan inspects filter against the manifest's document ids and the
// collection's built indexes, returning the candidate id set the matcher
// should re-check clause-by-clause.
func selectPlan(filter Filter, manifestIDs []ID, indexes map[string]*Index) plan {
	var bestEq *clausePlan
	var bestEqIdx *Index
	bestEqCard := -1

	var bestRange *clausePlan
	var bestRangeIdx *Index

	for path, operand := range filter {
		cp := analyzeClause(path, operand)
		if cp.kind == clauseNone {
			continue
		}

		if path == "_id" && cp.kind == clauseEq {
			// The implicit _id index: values are already unique keys, so
			// the candidate set is just the values themselves intersected
			// against what the manifest actually holds.
			present := make(map[ID]bool, len(manifestIDs))
			for _, id := range manifestIDs {
				present[id] = true
			}
			var ids []ID
			for _, v := range cp.values {
				if s, ok := asString(v); ok && present[ID(s)] {
					ids = append(ids, ID(s))
				}
			}
			return plan{Candidates: ids, DrivingIdx: "_id_"}
		}

		idx := indexForPath(indexes, path)
		if idx == nil {
			continue
		}

		switch cp.kind {
		case clauseEq:
			card := 0
			for _, v := range cp.values {
				card += idx.Cardinality(v)
			}
			if bestEq == nil || card < bestEqCard {
				cpCopy := cp
				bestEq, bestEqIdx, bestEqCard = &cpCopy, idx, card
			}
		case clauseRange:
			if bestRange == nil {
				cpCopy := cp
				bestRange, bestRangeIdx = &cpCopy, idx
			}
		}
	}

	if bestEq != nil {
		seen := make(map[ID]bool)
		var out []ID
		for _, v := range bestEq.values {
			for _, id := range bestEqIdx.Exact(v) {
				if !seen[id] {
					seen[id] = true
					out = append(out, id)
				}
			}
		}
		return plan{Candidates: out, DrivingIdx: bestEqIdx.Descriptor.Name}
	}

	if bestRange != nil {
		return plan{Candidates: bestRangeIdx.Range(bestRange.min, bestRange.max), DrivingIdx: bestRangeIdx.Descriptor.Name}
	}

	return plan{Candidates: nil, DrivingIdx: ""}
}

// indexForPath returns any index covering path, preferring an ascending
// direction if both directions exist (cardinality/range results are
// identical either way).
func indexForPath(indexes map[string]*Index, path string) *Index {
	var ascending, any *Index
	for _, idx := range indexes {
		if idx.Descriptor.KeyPath != path {
			continue
		}
		any = idx
		if idx.Descriptor.Direction == 1 {
			ascending = idx
		}
	}
	if ascending != nil {
		return ascending
	}
	return any
}
