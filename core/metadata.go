package core

import "encoding/json"

// Metadata is a schema-less key to value mapping attached to documents and
// chunks. Values must survive a JSON round trip; the storage layer persists
// Metadata as jsonb.
type Metadata map[string]any

// Clone returns a deep copy of the metadata via a JSON round trip.
// Returns nil for nil metadata.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		// Non-serializable values violate the Metadata contract; fall back
		// to an empty map rather than aliasing the original.
		return Metadata{}
	}
	var out Metadata
	if err := json.Unmarshal(raw, &out); err != nil {
		return Metadata{}
	}
	return out
}

// Equal reports whether two metadata maps serialize to the same JSON value.
func (m Metadata) Equal(other Metadata) bool {
	a, err := json.Marshal(m)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}
