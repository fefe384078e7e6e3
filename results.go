// Result objects mirroring a PyMongo-style CRUD surface. These are plain
// data, not wrapped in any wire-compatible result object — serialization
// for network transport is left to callers who need it.
package folio

// InsertOneResult is returned by Collection.InsertOne.
type InsertOneResult struct {
	InsertedID ID
}

// InsertManyResult is returned by Collection.InsertMany. With
// Ordered=false, InsertedIDs may be shorter than the input and Errors
// carries one entry per failed document; with Ordered=true, insertion
// stops at the first failure and Errors has at most one entry.
type InsertManyResult struct {
	InsertedIDs []ID
	Errors      []error
}

// UpdateResult is returned by ReplaceOne, UpdateOne, and UpdateMany.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedID    *ID
}

// DeleteResult is returned by DeleteOne and DeleteMany.
type DeleteResult struct {
	DeletedCount int64
}
