package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SerializeCanonical renders v as JSON with object keys sorted at every
// depth and without HTML escaping. Numbers keep their literal text.
//
// The output is the byte input of every signing hash, so two values that
// marshal to the same JSON object always produce the same bytes regardless
// of struct field order or map iteration.
func SerializeCanonical(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return CanonicalizeJSON(raw)
}

// CanonicalizeJSON re-encodes an existing JSON document in canonical form.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// maps are emitted with sorted keys by encoding/json
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("failed to encode canonical json: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
