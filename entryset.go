// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipcore

import (
	"fmt"
	"path"
	"strings"
)

// EntrySet is an insertion-ordered collection of entries, name-indexed for
// O(1) lookup. A trailing "/" is significant to lookup: "a" and "a/" are
// distinct keys.
type EntrySet struct {
	order []*Entry
	index map[string]int
}

// NewEntrySet returns an empty EntrySet.
func NewEntrySet() *EntrySet {
	return &EntrySet{index: make(map[string]int)}
}

// Len returns the number of entries in the set.
func (s *EntrySet) Len() int { return len(s.order) }

// Insert adds e to the set. Returns ErrEntryExists if an entry with the
// same name is already present; callers that want replace-on-conflict
// semantics should Delete first.
func (s *EntrySet) Insert(e *Entry) error {
	if _, ok := s.index[e.name]; ok {
		return fmt.Errorf("%w: %q", ErrEntryExists, e.name)
	}
	s.index[e.name] = len(s.order)
	s.order = append(s.order, e)
	return nil
}

// Delete removes the entry named name, if present.
func (s *EntrySet) Delete(name string) {
	pos, ok := s.index[name]
	if !ok {
		return
	}
	s.order = append(s.order[:pos], s.order[pos+1:]...)
	delete(s.index, name)
	for i := pos; i < len(s.order); i++ {
		s.index[s.order[i].name] = i
	}
}

// Include reports whether name is present in the set.
func (s *EntrySet) Include(name string) bool {
	_, ok := s.index[name]
	return ok
}

// FindEntry returns the entry named name, or ErrNotFound.
func (s *EntrySet) FindEntry(name string) (*Entry, error) {
	pos, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s.order[pos], nil
}

// Entries returns the set's entries in insertion order. The returned
// slice is owned by the caller but its Entry pointers are shared; mutate
// entry fields, not the slice, to change the set's content.
func (s *EntrySet) Entries() []*Entry {
	out := make([]*Entry, len(s.order))
	copy(out, s.order)
	return out
}

// Dup returns a shallow copy of the set: a new EntrySet with the same
// Entry pointers in the same order.
func (s *EntrySet) Dup() *EntrySet {
	dup := NewEntrySet()
	dup.order = append(dup.order, s.order...)
	for name, pos := range s.index {
		dup.index[name] = pos
	}
	return dup
}

// Equal reports whether two EntrySets compare equal: same length, with
// entries pairwise equal in insertion order.
func (s *EntrySet) Equal(other *EntrySet) bool {
	if other == nil || len(s.order) != len(other.order) {
		return false
	}
	for i, e := range s.order {
		if !e.Equal(other.order[i]) {
			return false
		}
	}
	return true
}

// Glob returns every entry whose name matches pattern under shell-style
// semantics: "*", "?", and character classes as defined by [path.Match],
// plus a "**" segment that spans path separators (matching zero or more
// whole path segments), which path.Match alone does not support.
func (s *EntrySet) Glob(pattern string) ([]*Entry, error) {
	pattern = strings.ReplaceAll(pattern, "\\", "/")
	if _, err := path.Match(stripDoubleStar(pattern), ""); err != nil {
		return nil, err
	}

	var matches []*Entry
	for _, e := range s.order {
		ok, err := globMatch(pattern, e.name)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// stripDoubleStar replaces "**" runs with "*" so path.Match can validate
// the rest of the pattern's syntax without choking on the extension.
func stripDoubleStar(pattern string) string {
	return strings.ReplaceAll(pattern, "**", "*")
}

// globMatch matches pattern against name segment-by-segment, treating a
// "**" path segment as "zero or more whole segments" (recursive glob),
// and every other segment via [path.Match].
func globMatch(pattern, name string) (bool, error) {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, name []string) (bool, error) {
	if len(pat) == 0 {
		return len(name) == 0, nil
	}
	if pat[0] == "**" {
		if len(pat) == 1 {
			return true, nil
		}
		for i := 0; i <= len(name); i++ {
			ok, err := matchSegments(pat[1:], name[i:])
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	if len(name) == 0 {
		return false, nil
	}
	ok, err := path.Match(pat[0], name[0])
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return matchSegments(pat[1:], name[1:])
}
