// End-to-end Collection tests, run against an in-memory Client
// so they exercise the full insert/find/update/index/lock wiring without
// touching a real filesystem.
package folio

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestCollection(t *testing.T) *Collection {
	t.Helper()
	cl, err := NewClient(Config{InMemory: true})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { cl.Close() })
	return cl.Collection("testdb", "items")
}

func TestInsertOneMintsIDAndFindsIt(t *testing.T) {
	c := newTestCollection(t)
	res, err := c.InsertOne(Document{"name": "ada"})
	if err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if res.InsertedID == "" {
		t.Fatalf("InsertOne should mint a non-empty _id")
	}

	doc, err := c.FindOne(Filter{"_id": string(res.InsertedID)}, nil)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if doc == nil || doc["name"] != "ada" {
		t.Fatalf("FindOne returned %v, want the inserted document", doc)
	}
}

// Round-trip law: insert_one(d); find_one({_id: d._id}) == d, modulo the
// generated _id. go-cmp's nested-document diffing pinpoints exactly which
// field regressed instead of a single opaque "not equal" failure.
func TestInsertOneFindOneRoundTripEqualsInput(t *testing.T) {
	c := newTestCollection(t)
	input := Document{
		"name": "ada",
		"tags": []interface{}{"math", "computing"},
		"address": map[string]interface{}{
			"city": "london",
			"zip":  "w1",
		},
	}

	res, err := c.InsertOne(input)
	if err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	got, err := c.FindOne(Filter{"_id": string(res.InsertedID)}, nil)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}

	want := deepCopyDocument(input)
	want["_id"] = res.InsertedID
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip differs from input (-want +got):\n%s", diff)
	}
}

func TestInsertOneDuplicateIDFails(t *testing.T) {
	c := newTestCollection(t)
	if _, err := c.InsertOne(Document{"_id": "fixed", "v": 1}); err != nil {
		t.Fatalf("first InsertOne: %v", err)
	}
	_, err := c.InsertOne(Document{"_id": "fixed", "v": 2})
	if err == nil {
		t.Fatalf("second InsertOne with the same _id should fail")
	}
	opErr, ok := err.(*OperationError)
	if !ok || opErr.Err != ErrDuplicateKey {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestInsertManyOrderedStopsAtFirstFailure(t *testing.T) {
	c := newTestCollection(t)
	_, err := c.InsertMany([]Document{
		{"_id": "a"}, {"_id": "a"}, {"_id": "b"},
	}, true)
	if err == nil {
		t.Fatalf("ordered InsertMany should fail on the duplicate")
	}
	if doc, err := c.FindOne(Filter{"_id": "b"}, nil); err != nil || doc != nil {
		t.Fatalf("InsertMany should not have reached the document after the failure")
	}
}

func TestInsertManyUnorderedContinuesPastFailures(t *testing.T) {
	c := newTestCollection(t)
	result, err := c.InsertMany([]Document{
		{"_id": "a"}, {"_id": "a"}, {"_id": "b"},
	}, false)
	if err != nil {
		t.Fatalf("unordered InsertMany should not return a top-level error: %v", err)
	}
	if len(result.InsertedIDs) != 2 {
		t.Fatalf("InsertedIDs = %v, want 2 successes", result.InsertedIDs)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly 1 failure", result.Errors)
	}
}

func TestFindWithSortLimitAndGt(t *testing.T) {
	c := newTestCollection(t)
	for i, name := range []string{"a", "b", "c", "d"} {
		c.InsertOne(Document{"_id": name, "rank": i})
	}

	cur, err := c.Find(Filter{"rank": Document{"$gt": 0}}, []SortKey{{Path: "rank", Direction: -1}}, 2, 0)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	defer cur.Close()

	var got []interface{}
	for {
		doc, ok, err := cur.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, doc["_id"])
	}
	if len(got) != 2 || got[0] != "d" || got[1] != "c" {
		t.Fatalf("got %v, want [d c] (rank>0, descending, limited to 2)", got)
	}
}

func TestCountDocuments(t *testing.T) {
	c := newTestCollection(t)
	c.InsertOne(Document{"status": "active"})
	c.InsertOne(Document{"status": "active"})
	c.InsertOne(Document{"status": "closed"})

	n, err := c.CountDocuments(Filter{"status": "active"})
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if n != 2 {
		t.Fatalf("CountDocuments = %d, want 2", n)
	}
}

func TestDistinctDedupesAndSorts(t *testing.T) {
	c := newTestCollection(t)
	c.InsertOne(Document{"tag": "b"})
	c.InsertOne(Document{"tag": "a"})
	c.InsertOne(Document{"tag": "a"})
	c.InsertOne(Document{}) // no tag: excluded

	values, err := c.Distinct("tag", Filter{})
	if err != nil {
		t.Fatalf("Distinct: %v", err)
	}
	if len(values) != 2 || values[0] != "a" || values[1] != "b" {
		t.Fatalf("Distinct = %v, want [a b]", values)
	}
}

func TestReplaceOnePreservesID(t *testing.T) {
	c := newTestCollection(t)
	res, _ := c.InsertOne(Document{"name": "ada", "v": 1})

	_, err := c.ReplaceOne(Filter{"_id": string(res.InsertedID)}, Document{"name": "grace"}, false)
	if err != nil {
		t.Fatalf("ReplaceOne: %v", err)
	}

	doc, _ := c.FindOne(Filter{"_id": string(res.InsertedID)}, nil)
	if doc["name"] != "grace" {
		t.Fatalf("name = %v, want grace", doc["name"])
	}
	if _, hasV := doc["v"]; hasV {
		t.Fatalf("ReplaceOne should fully replace the document, v should be gone")
	}
}

func TestReplaceOneUpsertInserts(t *testing.T) {
	c := newTestCollection(t)
	result, err := c.ReplaceOne(Filter{"_id": "missing"}, Document{"name": "new"}, true)
	if err != nil {
		t.Fatalf("ReplaceOne upsert: %v", err)
	}
	if result.UpsertedID == nil {
		t.Fatalf("expected an UpsertedID")
	}
	doc, _ := c.FindOne(Filter{"_id": string(*result.UpsertedID)}, nil)
	if doc["name"] != "new" {
		t.Fatalf("upserted document not found with name = %v", doc["name"])
	}
}

func TestUpdateOneIncAccumulatesAcrossCalls(t *testing.T) {
	c := newTestCollection(t)
	res, _ := c.InsertOne(Document{"count": 0})
	filter := Filter{"_id": string(res.InsertedID)}

	for i := 0; i < 3; i++ {
		if _, err := c.UpdateOne(filter, Update{"$inc": Document{"count": 1}}, false); err != nil {
			t.Fatalf("UpdateOne: %v", err)
		}
	}
	doc, _ := c.FindOne(filter, nil)
	if doc["count"] != int64(3) {
		t.Fatalf("count = %v, want 3", doc["count"])
	}
}

func TestUpdateManyTouchesEveryMatch(t *testing.T) {
	c := newTestCollection(t)
	c.InsertOne(Document{"status": "pending"})
	c.InsertOne(Document{"status": "pending"})
	c.InsertOne(Document{"status": "done"})

	result, err := c.UpdateMany(Filter{"status": "pending"}, Update{"$set": Document{"status": "active"}}, false)
	if err != nil {
		t.Fatalf("UpdateMany: %v", err)
	}
	if result.MatchedCount != 2 || result.ModifiedCount != 2 {
		t.Fatalf("result = %+v, want 2 matched and 2 modified", result)
	}

	n, _ := c.CountDocuments(Filter{"status": "active"})
	if n != 2 {
		t.Fatalf("CountDocuments(active) = %d, want 2", n)
	}
}

func TestUpdateSetIntoMissingPathCreatesIt(t *testing.T) {
	c := newTestCollection(t)
	res, _ := c.InsertOne(Document{})
	filter := Filter{"_id": string(res.InsertedID)}

	if _, err := c.UpdateOne(filter, Update{"$set": Document{"a.b": 1}}, false); err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}
	doc, _ := c.FindOne(filter, nil)
	v, ok := getPath(doc, "a.b")
	if !ok || compare(v, 1) != 0 {
		t.Fatalf("a.b = (%v, %v), want (1, true)", v, ok)
	}
}

func TestUpdateSetThroughNonContainerFails(t *testing.T) {
	c := newTestCollection(t)
	res, _ := c.InsertOne(Document{"a": "scalar"})
	filter := Filter{"_id": string(res.InsertedID)}

	_, err := c.UpdateOne(filter, Update{"$set": Document{"a.b": 1}}, false)
	if err == nil {
		t.Fatalf("expected an error when $set descends through a scalar")
	}
}

func TestDeleteOneAndDeleteMany(t *testing.T) {
	c := newTestCollection(t)
	c.InsertOne(Document{"group": "x"})
	c.InsertOne(Document{"group": "x"})
	c.InsertOne(Document{"group": "y"})

	one, err := c.DeleteOne(Filter{"group": "x"})
	if err != nil || one.DeletedCount != 1 {
		t.Fatalf("DeleteOne = (%+v, %v)", one, err)
	}

	many, err := c.DeleteMany(Filter{"group": "x"})
	if err != nil || many.DeletedCount != 1 {
		t.Fatalf("DeleteMany = (%+v, %v)", many, err)
	}

	n, _ := c.CountDocuments(Filter{})
	if n != 1 {
		t.Fatalf("CountDocuments = %d, want 1 remaining", n)
	}
}

func TestCreateIndexAndQueryEquivalence(t *testing.T) {
	withIndex := newTestCollection(t)
	plain := newTestCollection(t)
	for i := 0; i < 20; i++ {
		withIndex.InsertOne(Document{"score": i % 5})
		plain.InsertOne(Document{"score": i % 5})
	}

	name, err := withIndex.CreateIndex("score", 1)
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if name != "score_1" {
		t.Fatalf("CreateIndex name = %q, want score_1", name)
	}

	indexed, err := withIndex.CountDocuments(Filter{"score": 3})
	if err != nil {
		t.Fatalf("CountDocuments (indexed): %v", err)
	}
	scanned, err := plain.CountDocuments(Filter{"score": 3})
	if err != nil {
		t.Fatalf("CountDocuments (full scan): %v", err)
	}
	if indexed != scanned {
		t.Fatalf("index scan found %d, full scan found %d, want equal", indexed, scanned)
	}
}

func TestCreateIndexIsIdempotent(t *testing.T) {
	c := newTestCollection(t)
	first, err := c.CreateIndex("x", 1)
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	second, err := c.CreateIndex("x", 1)
	if err != nil {
		t.Fatalf("CreateIndex (again): %v", err)
	}
	if first != second {
		t.Fatalf("repeated CreateIndex on the same (path, direction) should return the same name")
	}
}

func TestDropIndexRemovesItAndRejectsIdIndex(t *testing.T) {
	c := newTestCollection(t)
	name, _ := c.CreateIndex("x", 1)

	if err := c.DropIndex(name); err != nil {
		t.Fatalf("DropIndex: %v", err)
	}
	if err := c.DropIndex(name); err == nil {
		t.Fatalf("dropping an already-dropped index should fail")
	}
	if err := c.DropIndex("_id_"); err == nil {
		t.Fatalf("dropping the implicit _id_ index should fail")
	}
}

func TestIndexInformationListsIDIndexFirst(t *testing.T) {
	c := newTestCollection(t)
	c.CreateIndex("x", 1)

	infos, err := c.IndexInformation()
	if err != nil {
		t.Fatalf("IndexInformation: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "_id_" {
		t.Fatalf("IndexInformation = %+v, want _id_ listed first", infos)
	}
}

func TestIndexReconciliationAfterUpdate(t *testing.T) {
	c := newTestCollection(t)
	c.CreateIndex("score", 1)
	res, _ := c.InsertOne(Document{"score": 1})

	if _, err := c.UpdateOne(Filter{"_id": string(res.InsertedID)}, Update{"$set": Document{"score": 9}}, false); err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}

	n, err := c.CountDocuments(Filter{"score": 9})
	if err != nil || n != 1 {
		t.Fatalf("CountDocuments(score=9) = (%d, %v), want (1, nil) after the index was reconciled", n, err)
	}
	n, _ = c.CountDocuments(Filter{"score": 1})
	if n != 0 {
		t.Fatalf("CountDocuments(score=1) = %d, want 0 — the old index entry should be gone", n)
	}
}

// An index on an ancestor of the written path ($set "a.b" with an index
// on "a") must still be reconciled, since the value read at "a" changed
// even though "a" itself was never the literal touched path.
func TestIndexReconciliationAfterUpdateToDescendantPath(t *testing.T) {
	c := newTestCollection(t)
	c.CreateIndex("a", 1)
	res, _ := c.InsertOne(Document{"a": Document{"b": 1}})

	if _, err := c.UpdateOne(Filter{"_id": string(res.InsertedID)}, Update{"$set": Document{"a.b": 9}}, false); err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}

	n, err := c.CountDocuments(Filter{"a": Document{"b": 9}})
	if err != nil || n != 1 {
		t.Fatalf("CountDocuments(a={b:9}) = (%d, %v), want (1, nil) — the ancestor index should have reconciled", n, err)
	}
	n, _ = c.CountDocuments(Filter{"a": Document{"b": 1}})
	if n != 0 {
		t.Fatalf("CountDocuments(a={b:1}) = %d, want 0 — the stale ancestor index entry should be gone", n)
	}
}

// An index on a descendant of the written path ($set "a" with an index
// on "a.b") must also be reconciled, since overwriting "a" changes
// whatever "a.b" reads as.
func TestIndexReconciliationAfterUpdateToAncestorPath(t *testing.T) {
	c := newTestCollection(t)
	c.CreateIndex("a.b", 1)
	res, _ := c.InsertOne(Document{"a": Document{"b": 1}})

	if _, err := c.UpdateOne(Filter{"_id": string(res.InsertedID)}, Update{"$set": Document{"a": Document{"b": 9}}}, false); err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}

	n, err := c.CountDocuments(Filter{"a.b": 9})
	if err != nil || n != 1 {
		t.Fatalf("CountDocuments(a.b=9) = (%d, %v), want (1, nil) — the descendant index should have reconciled", n, err)
	}
	n, _ = c.CountDocuments(Filter{"a.b": 1})
	if n != 0 {
		t.Fatalf("CountDocuments(a.b=1) = %d, want 0 — the stale descendant index entry should be gone", n)
	}
}
