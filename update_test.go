// Update executor tests: $set/$inc/$push semantics and the
// touched-paths tracking collection.go uses for index reconciliation.
package folio

import "testing"

func TestApplySetCreatesIntermediatePath(t *testing.T) {
	doc := Document{}
	touched, err := applyUpdate(doc, Update{"$set": Document{"a.b": 5}})
	if err != nil {
		t.Fatalf("applyUpdate: %v", err)
	}
	if v, ok := getPath(doc, "a.b"); !ok || v != 5 {
		t.Fatalf("a.b = (%v, %v), want (5, true)", v, ok)
	}
	if !touched["a.b"] {
		t.Errorf("touched paths should include a.b")
	}
}

func TestApplyIncOnMissingFieldCreatesIt(t *testing.T) {
	doc := Document{}
	if _, err := applyUpdate(doc, Update{"$inc": Document{"count": 3}}); err != nil {
		t.Fatalf("applyUpdate: %v", err)
	}
	if v, _ := getPath(doc, "count"); v != 3 {
		t.Errorf("count = %v, want 3", v)
	}
}

func TestApplyIncPreservesIntegerType(t *testing.T) {
	doc := Document{"count": int64(1)}
	if _, err := applyUpdate(doc, Update{"$inc": Document{"count": 2}}); err != nil {
		t.Fatalf("applyUpdate: %v", err)
	}
	v, _ := getPath(doc, "count")
	if _, ok := v.(int64); !ok {
		t.Errorf("count should remain integral after an integral $inc, got %T", v)
	}
	if v != int64(3) {
		t.Errorf("count = %v, want 3", v)
	}
}

func TestApplyIncOnNonNumericFails(t *testing.T) {
	doc := Document{"x": "not a number"}
	_, err := applyUpdate(doc, Update{"$inc": Document{"x": 1}})
	if !isInvalidUpdate(err) {
		t.Fatalf("expected ErrInvalidUpdate, got %v", err)
	}
}

func TestApplyPushAppendsAndCreates(t *testing.T) {
	doc := Document{}
	if _, err := applyUpdate(doc, Update{"$push": Document{"tags": "a"}}); err != nil {
		t.Fatalf("applyUpdate: %v", err)
	}
	if _, err := applyUpdate(doc, Update{"$push": Document{"tags": "b"}}); err != nil {
		t.Fatalf("applyUpdate: %v", err)
	}
	v, _ := getPath(doc, "tags")
	seq, ok := v.([]interface{})
	if !ok || len(seq) != 2 || seq[0] != "a" || seq[1] != "b" {
		t.Fatalf("tags = %v, want [a b]", v)
	}
}

func TestApplyPushOnNonSequenceFails(t *testing.T) {
	doc := Document{"tags": "scalar"}
	_, err := applyUpdate(doc, Update{"$push": Document{"tags": "x"}})
	if !isInvalidUpdate(err) {
		t.Fatalf("expected ErrInvalidUpdate, got %v", err)
	}
}

func TestApplyUpdateRejectsNonOperatorKeys(t *testing.T) {
	_, err := applyUpdate(Document{}, Update{"name": "ada"})
	if err == nil {
		t.Fatalf("expected an error for a non-operator top-level key")
	}
}

func TestApplyUpdateEmptyDocumentErrors(t *testing.T) {
	_, err := applyUpdate(Document{}, Update{})
	if err == nil {
		t.Fatalf("expected an error for an empty update document")
	}
}

func TestApplyUpdateUnsupportedOperator(t *testing.T) {
	_, err := applyUpdate(Document{}, Update{"$pull": Document{"tags": "a"}})
	if oe, ok := err.(*OperationError); !ok || oe.Err != ErrNotImplemented {
		t.Fatalf("expected ErrNotImplemented for $pull")
	}
}
