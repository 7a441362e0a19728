package document

import (
	"encoding/json"
	"fmt"
)

// Encode serializes the tree to its canonical JSON form, the shape
// persisted in version records.
func Encode(n *Node) (string, error) {
	if n == nil {
		n = NewDoc()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("failed to encode content tree: %w", err)
	}
	return string(data), nil
}

// Decode parses a serialized content tree. An empty string decodes to
// an empty document; corrupt input is an error, callers that need the
// tolerant behavior fall back to NewDoc themselves.
func Decode(raw string) (*Node, error) {
	if raw == "" {
		return NewDoc(), nil
	}
	var n Node
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return nil, fmt.Errorf("failed to decode content tree: %w", err)
	}
	if n.Type == "" {
		n.Type = TypeDoc
	}
	return &n, nil
}

// Equal compares two trees after normalizing their serialization, so
// nil and empty collections compare equal.
func Equal(a, b *Node) bool {
	ea, err := Encode(a)
	if err != nil {
		return false
	}
	eb, err := Encode(b)
	if err != nil {
		return false
	}
	return ea == eb
}
