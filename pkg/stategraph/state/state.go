// Package state provides the shared record threaded through a graph run.
//
// A State is a partially-populated mapping from field name to value. Nodes
// receive a read-only view and return an Update containing only the fields
// they added or changed; the scheduler folds those updates back in with
// Merge. A State is never mutated in place.
package state

import (
	"encoding/json"
	"fmt"
	"sort"
)

// State is an immutable, partially-populated record of named fields.
// Values are anything JSON-serializable: scalars, slices, nested maps.
//
// The zero value is usable and behaves as an empty record.
type State struct {
	fields map[string]any
}

// Update is a partial update: only the fields a node added or changed.
// An empty or nil Update is valid and means "nothing changed".
type Update map[string]any

// New creates an empty State.
func New() State {
	return State{fields: map[string]any{}}
}

// FromMap creates a State seeded with the given fields.
// The map is copied; the caller keeps ownership of the original.
func FromMap(seed map[string]any) State {
	fields := make(map[string]any, len(seed))
	for k, v := range seed {
		fields[k] = v
	}
	return State{fields: fields}
}

// Get returns the value for a field and whether it is present.
// Absent fields are normal in a partial record; callers should treat
// absence as default/empty rather than an error.
func (s State) Get(field string) (any, bool) {
	v, ok := s.fields[field]
	return v, ok
}

// GetDefault returns the value for a field, or def if absent.
func (s State) GetDefault(field string, def any) any {
	if v, ok := s.fields[field]; ok {
		return v
	}
	return def
}

// Int returns the field as an int, or def if absent or not numeric.
// JSON round-trips turn ints into float64, so both are accepted.
func (s State) Int(field string, def int) int {
	switch v := s.fields[field].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Float returns the field as a float64, or def if absent or not numeric.
func (s State) Float(field string, def float64) float64 {
	switch v := s.fields[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// String returns the field as a string, or def if absent or not a string.
func (s State) String(field, def string) string {
	if v, ok := s.fields[field].(string); ok {
		return v
	}
	return def
}

// Strings returns the field as a []string, or nil if absent.
// Accepts both []string and []any (the shape JSON decoding produces).
func (s State) Strings(field string) []string {
	switch v := s.fields[field].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Has returns true if the field is present.
func (s State) Has(field string) bool {
	_, ok := s.fields[field]
	return ok
}

// Len returns the number of populated fields.
func (s State) Len() int {
	return len(s.fields)
}

// Keys returns the populated field names in sorted order, giving the
// record a stable iteration order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.fields))
	for k := range s.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a shallow copy of the record as a plain map.
func (s State) Map() map[string]any {
	out := make(map[string]any, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

// Snapshot returns a deep copy of the record via a JSON round-trip.
// Used when a copy must not share any nested structure with the
// original, e.g. state handed to checkpoint stores or error reports.
func (s State) Snapshot() (State, error) {
	data, err := json.Marshal(s.fields)
	if err != nil {
		return State{}, fmt.Errorf("snapshot state: marshal: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return State{}, fmt.Errorf("snapshot state: unmarshal: %w", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return State{fields: fields}, nil
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	if s.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.fields)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *State) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	s.fields = fields
	return nil
}
