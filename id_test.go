// Id minter tests.
package folio

import "testing"

func TestMintProducesDistinctHexIDs(t *testing.T) {
	m := NewMinter()
	seen := make(map[ID]bool)
	for i := 0; i < 1000; i++ {
		id := m.Mint()
		if len(id) != 24 {
			t.Fatalf("Mint() produced id of length %d, want 24", len(id))
		}
		if seen[id] {
			t.Fatalf("Mint() produced a duplicate id: %v", id)
		}
		seen[id] = true
	}
}

func TestMintIsHex(t *testing.T) {
	id := NewMinter().Mint()
	for _, r := range id.String() {
		isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
		if !isHex {
			t.Fatalf("Mint() produced a non-hex character %q in %v", r, id)
		}
	}
}
