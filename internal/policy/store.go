// Package policy holds the access-control allow-list for identity tags.
//
// The Store is built once at startup from configuration and is immutable
// afterwards. Tag comparison is case-insensitive: every tag is normalised
// to upper-case on load and every lookup normalises its input the same way,
// so "a1b2c3d4" and "A1B2C3D4" are the same tag.
//
// Thread Safety: the Store is read-only after construction and safe for
// concurrent use without locking.
package policy

import "strings"

// Store is an immutable set of authorized identity-tag values.
type Store struct {
	tags map[string]struct{}
}

// New creates a Store from the configured allow-list.
//
// Tags are normalised to upper-case and surrounding whitespace is removed.
// Empty entries are ignored. Duplicates collapse to one entry.
func New(tags []string) *Store {
	s := &Store{tags: make(map[string]struct{}, len(tags))}
	for _, t := range tags {
		norm := Normalize(t)
		if norm == "" {
			continue
		}
		s.tags[norm] = struct{}{}
	}
	return s
}

// Normalize returns the canonical form of an identity tag:
// upper-case, whitespace trimmed.
func Normalize(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

// Authorized reports whether the tag is in the allow-list.
// The input is normalised before the lookup.
func (s *Store) Authorized(tag string) bool {
	_, ok := s.tags[Normalize(tag)]
	return ok
}

// Size returns the number of distinct authorized tags.
func (s *Store) Size() int {
	return len(s.tags)
}
