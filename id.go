// Opaque document identifiers.
//
// Every stored document carries an _id key with a globally unique value.
// The default minter produces a 96-bit id: the first 64 bits are
// crypto/rand entropy carried verbatim, and the last 32 bits are that
// same entropy folded with a process-local monotonic counter through
// xxh3, rendered as 24 lowercase hex characters. Folding the counter
// through the hash avoids publishing an incrementing suffix verbatim
// (which would leak insertion order to anything that stores ids outside
// the database) while remaining cheap enough to call on every insert.
package folio

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/zeebo/xxh3"
)

// ID is the caller-opaque identifier type. It is comparable and orders
// lexicographically, which is sufficient for the total order in the _id
// index: ids are never compared for anything but equality and ascending
// sort by the implicit index.
type ID string

// String implements fmt.Stringer for error messages and logging-adjacent
// call sites (test failure output, %v formatting).
func (id ID) String() string { return string(id) }

// Minter generates new document ids. Callers may supply their own
// implementation (e.g. to make ids deterministic in tests); Client.Config
// defaults to NewMinter() when none is set.
type Minter interface {
	Mint() ID
}

// defaultMinter is the built-in 96-bit random-hex minter.
type defaultMinter struct {
	counter atomic.Uint64
}

// NewMinter returns the default opaque-id minter.
func NewMinter() Minter {
	return &defaultMinter{}
}

func (m *defaultMinter) Mint() ID {
	var entropy [8]byte
	if _, err := rand.Read(entropy[:]); err != nil {
		// crypto/rand failing is a platform emergency, not a recoverable
		// error this API surfaces; panic matches the stdlib's own stance
		// (crypto/rand.Read never returns an error on supported platforms).
		panic(fmt.Sprintf("folio: crypto/rand unavailable: %v", err))
	}

	seq := m.counter.Add(1)
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	mixed := xxh3.Hash(append(entropy[:8:8], seqBuf[:]...))

	var out [12]byte
	copy(out[:8], entropy[:8])
	binary.BigEndian.PutUint32(out[8:], uint32(mixed))
	return ID(hex.EncodeToString(out[:]))
}
