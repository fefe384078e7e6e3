// Index blob serialization.
//
// An index is persisted as its descriptor plus the sorted entry list,
// JSON-encoded via goccy/go-json like every other blob in this database.
// Past indexCompressThreshold bytes the encoded entries are zstd-compressed
// before being written: compress the part of the record that can get
// large, applied here to the one artifact in this system (a fully
// populated secondary index) that plausibly reaches megabytes. Below the
// threshold the cost of spinning up compression isn't worth it, so the
// envelope just carries the plain bytes.
package folio

import (
	"github.com/klauspost/compress/zstd"
)

const indexCompressThreshold = 64 * 1024

var (
	indexZstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	indexZstdDecoder, _ = zstd.NewReader(nil)
)

type indexEnvelope struct {
	Descriptor IndexDescriptor  `json:"descriptor"`
	Compressed bool             `json:"compressed"`
	Entries    []*multimapEntry `json:"entries,omitempty"`
	Packed     []byte           `json:"packed,omitempty"`
}

func indexBlobPath(db, coll, name string) StoragePath {
	return StoragePath{db, coll, "$.index." + name}
}

func encodeIndex(idx *Index) ([]byte, error) {
	entries := idx.snapshotEntries()

	env := indexEnvelope{Descriptor: idx.Descriptor}

	raw, err := encodeAny(entries)
	if err != nil {
		return nil, newOperationError(ErrStorageIO, idx.Descriptor.Name, "encode index entries: %v", err)
	}

	if len(raw) > indexCompressThreshold {
		env.Compressed = true
		env.Packed = indexZstdEncoder.EncodeAll(raw, nil)
	} else {
		env.Entries = entries
	}

	return encodeAny(env)
}

func decodeIndex(data []byte) (*Index, error) {
	var env indexEnvelope
	if err := decodeAny(data, &env); err != nil {
		return nil, newOperationError(ErrStorageIO, "", "corrupt index blob: %v", err)
	}

	entries := env.Entries
	if env.Compressed {
		raw, err := indexZstdDecoder.DecodeAll(env.Packed, nil)
		if err != nil {
			return nil, newOperationError(ErrStorageIO, env.Descriptor.Name, "decompress index: %v", err)
		}
		if err := decodeAny(raw, &entries); err != nil {
			return nil, newOperationError(ErrStorageIO, env.Descriptor.Name, "decode compressed index: %v", err)
		}
	}

	return indexFromEntries(env.Descriptor, entries), nil
}
