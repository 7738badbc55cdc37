package result

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicate is returned when a key is appended twice.
var ErrDuplicate = errors.New("duplicate study result")

// Set is an append-only, insertion-ordered collection of results keyed by
// (study_id, series_id). It is safe for concurrent use.
type Set struct {
	mu    sync.Mutex
	items []StudyResult
	index map[Key]int
}

func NewSet() *Set {
	return &Set{index: make(map[Key]int)}
}

// Append adds r. Existing entries are never replaced.
func (s *Set) Append(r StudyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := r.Key()
	if _, ok := s.index[k]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, k)
	}
	s.index[k] = len(s.items)
	s.items = append(s.items, r)
	return nil
}

func (s *Set) Get(k Key) (StudyResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[k]
	if !ok {
		return StudyResult{}, false
	}
	return s.items[i], true
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// All returns a copy of the results in insertion order.
func (s *Set) All() []StudyResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StudyResult, len(s.items))
	copy(out, s.items)
	return out
}
