// Self-describing byte encoding for documents and manifests.
//
// BSON encoding is out of scope: callers of the public surface supply
// and receive Documents, and the storage layer needs some self-describing
// byte representation to persist them. goccy/go-json is used in place of
// encoding/json here: a drop-in faster encoder/decoder with the same json
// struct-tag semantics, and every blob this database writes crosses the
// encode/decode boundary at least twice per operation (cache miss, index
// rebuild).
package folio

import (
	json "github.com/goccy/go-json"
)

func encodeDocument(doc Document) ([]byte, error) {
	return json.Marshal(doc)
}

func decodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, newOperationError(ErrStorageIO, "", "corrupt document blob: %v", err)
	}
	return doc, nil
}

func encodeAny(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func decodeAny(data []byte, out interface{}) error {
	return json.Unmarshal(data, out)
}
