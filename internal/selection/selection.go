// Package selection holds the set of active species keys for a viewer.
package selection

import (
	"sort"

	"github.com/joeblew999/greenery-map/internal/species"
)

// Store is a set of selected keys. It performs no validation; callers insert
// known keys and the reserved sentinels only.
//
// Store is not safe for concurrent use. Its owner serializes access.
type Store struct {
	keys map[species.Key]struct{}
}

// New creates a store holding the given keys.
func New(keys ...species.Key) *Store {
	s := &Store{keys: make(map[species.Key]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

// Add makes key a member.
func (s *Store) Add(key species.Key) {
	s.keys[key] = struct{}{}
}

// Remove drops key. Absent keys are ignored.
func (s *Store) Remove(key species.Key) {
	delete(s.keys, key)
}

// SetAll adds every key when active is true and removes every key otherwise.
func (s *Store) SetAll(keys []species.Key, active bool) {
	for _, k := range keys {
		if active {
			s.Add(k)
		} else {
			s.Remove(k)
		}
	}
}

// Contains reports membership.
func (s *Store) Contains(key species.Key) bool {
	_, ok := s.keys[key]
	return ok
}

// ContainsAll reports whether every key is a member.
func (s *Store) ContainsAll(keys []species.Key) bool {
	for _, k := range keys {
		if !s.Contains(k) {
			return false
		}
	}
	return true
}

// Len returns the number of members.
func (s *Store) Len() int {
	return len(s.keys)
}

// Keys returns a sorted snapshot of the members.
func (s *Store) Keys() []species.Key {
	keys := make([]species.Key, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
