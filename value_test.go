// Total order tests: null < bool < number < string < binary <
// sequence < document, verified pairwise, plus deep-copy isolation.
package folio

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCompareAcrossRanks(t *testing.T) {
	ladder := []interface{}{
		nil,
		false,
		true,
		0,
		1.5,
		"",
		"z",
		[]byte{0},
		[]interface{}{},
		[]interface{}{1},
		map[string]interface{}{"a": 1},
	}

	for i := range ladder {
		for j := range ladder {
			got := compare(ladder[i], ladder[j])
			switch {
			case i < j && got >= 0:
				t.Errorf("compare(%v, %v) = %d, want < 0", ladder[i], ladder[j], got)
			case i > j && got <= 0:
				t.Errorf("compare(%v, %v) = %d, want > 0", ladder[i], ladder[j], got)
			}
		}
	}
}

func TestCompareNumericCrossType(t *testing.T) {
	if compare(int(3), float64(3.0)) != 0 {
		t.Errorf("int(3) and float64(3.0) should compare equal")
	}
	if compare(int64(2), 3.5) >= 0 {
		t.Errorf("int64(2) should be less than 3.5")
	}
}

func TestCompareDocumentsLexicographic(t *testing.T) {
	a := map[string]interface{}{"a": 1, "b": 2}
	b := map[string]interface{}{"a": 1, "b": 3}
	if compare(a, b) >= 0 {
		t.Errorf("document with smaller b should sort first")
	}

	shorter := map[string]interface{}{"a": 1}
	longer := map[string]interface{}{"a": 1, "b": 0}
	if compare(shorter, longer) >= 0 {
		t.Errorf("document with fewer keys should sort first when prefix is equal")
	}
}

func TestValueEqualIgnoresNumericType(t *testing.T) {
	if !valueEqual(int(5), float64(5)) {
		t.Errorf("valueEqual should treat int(5) and float64(5) as equal")
	}
}

func TestDeepCopyDocumentIsIndependent(t *testing.T) {
	original := Document{"nested": map[string]interface{}{"x": 1}, "list": []interface{}{1, 2}}
	copy := deepCopyDocument(original)

	copy["nested"].(map[string]interface{})["x"] = 99
	copy["list"].([]interface{})[0] = 99

	if original["nested"].(map[string]interface{})["x"] != 1 {
		t.Errorf("mutating the copy's nested map affected the original")
	}
	if original["list"].([]interface{})[0] != 1 {
		t.Errorf("mutating the copy's slice affected the original")
	}
}

func TestDeepCopyDocumentNil(t *testing.T) {
	if deepCopyDocument(nil) != nil {
		t.Errorf("deepCopyDocument(nil) should return nil")
	}
}

// Before either side is mutated, a deep copy must be structurally
// indistinguishable from its original — a case go-cmp's nested-value
// diffing is a better fit for than a hand-rolled field-by-field check.
func TestDeepCopyDocumentStructurallyEqualBeforeMutation(t *testing.T) {
	original := Document{
		"nested": map[string]interface{}{"x": 1, "y": []interface{}{"a", "b"}},
		"list":   []interface{}{1, 2, map[string]interface{}{"z": true}},
	}
	got := deepCopyDocument(original)
	if diff := cmp.Diff(original, got); diff != "" {
		t.Errorf("deep copy differs from original before any mutation (-want +got):\n%s", diff)
	}
}
