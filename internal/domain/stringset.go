package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// StringSet is an unordered set of strings.
// It serializes as a sorted JSON array so saved documents are stable.
type StringSet map[string]struct{}

// NewStringSet builds a set from the given items.
func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Add inserts items into the set.
func (s StringSet) Add(items ...string) {
	for _, it := range items {
		s[it] = struct{}{}
	}
}

// AddAll inserts every member of other.
func (s StringSet) AddAll(other StringSet) {
	for it := range other {
		s[it] = struct{}{}
	}
}

// Remove deletes items from the set.
func (s StringSet) Remove(items ...string) {
	for _, it := range items {
		delete(s, it)
	}
}

// Has reports membership.
func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Sorted returns the members in ascending order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for it := range s {
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s StringSet) Clone() StringSet {
	out := make(StringSet, len(s))
	for it := range s {
		out[it] = struct{}{}
	}
	return out
}

// Lowered returns a copy with every member trimmed and lowercased.
func (s StringSet) Lowered() StringSet {
	out := make(StringSet, len(s))
	for it := range s {
		if v := strings.ToLower(strings.TrimSpace(it)); v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array (null yields an empty set).
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewStringSet(items...)
	return nil
}
