package collector

import (
	"github.com/bits-and-blooms/bloom/v3"
)

// SeenSet is the exact set of processed match IDs. Not safe for
// concurrent use.
type SeenSet struct {
	ids map[string]struct{}
}

// NewSeenSet returns a set with room for about expected entries.
func NewSeenSet(expected uint) *SeenSet {
	return &SeenSet{ids: make(map[string]struct{}, expected)}
}

// Has reports whether id was added.
func (s *SeenSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Add records id.
func (s *SeenSet) Add(id string) {
	s.ids[id] = struct{}{}
}

// AddAll records every key of ids.
func (s *SeenSet) AddAll(ids map[string]struct{}) {
	for id := range ids {
		s.Add(id)
	}
}

// Len is the number of distinct IDs added.
func (s *SeenSet) Len() int {
	return len(s.ids)
}

// FailedSet remembers matches that could not be fetched this run so later
// passes skip them. It is a bloom filter: a false positive skips a match
// that never failed, it never causes a second fetch, and memory stays flat
// however many matches fail over a long run. Not safe for concurrent use.
type FailedSet struct {
	filter *bloom.BloomFilter
	n      int
}

// NewFailedSet sizes the filter for about expected entries.
func NewFailedSet(expected uint) *FailedSet {
	if expected < 1000 {
		expected = 1000
	}
	return &FailedSet{filter: bloom.NewWithEstimates(expected, 0.001)}
}

// Has reports whether id was probably added. It never misses an added id.
func (f *FailedSet) Has(id string) bool {
	return f.filter.TestString(id)
}

// Add records id.
func (f *FailedSet) Add(id string) {
	if !f.filter.TestOrAddString(id) {
		f.n++
	}
}

// Len is the number of adds that were new to the filter.
func (f *FailedSet) Len() int {
	return f.n
}
