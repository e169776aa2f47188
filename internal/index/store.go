package index

import "sync/atomic"

// Store holds the index currently served to queries. Readers take a snapshot
// with Current; writers build a complete replacement and Swap it in. An
// *Index is never mutated after construction.
type Store struct {
	current atomic.Pointer[Index]
}

// NewStore returns a Store serving ix, which may be nil (absent).
func NewStore(ix *Index) *Store {
	s := &Store{}
	s.Swap(ix)
	return s
}

// Current returns the served index, or nil when absent.
func (s *Store) Current() *Index {
	return s.current.Load()
}

// Swap replaces the served index and returns the previous one.
func (s *Store) Swap(ix *Index) *Index {
	old := s.current.Swap(ix)
	chunksGauge.Set(float64(ix.Len()))
	if ix == nil {
		absentGauge.Set(1)
	} else {
		absentGauge.Set(0)
	}
	return old
}
