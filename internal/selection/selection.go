// internal/selection/selection.go
package selection

import "slices"

// Set is a selection keyed by row identity. Membership never depends on a
// row's position in any view, so it survives re-sorting and filtering.
// It is not safe for concurrent use; the owning engine mutates it from a
// single goroutine.
type Set[K comparable] struct {
	members map[K]uint64 // identity to the sequence number of its selection
	order   []entry[K]   // insertion order, including stale entries
	stale   int
	seq     uint64
}

// entry is live while members still maps id to seq. Deselecting leaves the
// entry behind; it is dropped when stale entries outnumber live ones.
type entry[K comparable] struct {
	id  K
	seq uint64
}

// New returns an empty selection.
func New[K comparable]() *Set[K] {
	return &Set[K]{members: make(map[K]uint64)}
}

// IsSelected reports membership of id.
func (s *Set[K]) IsSelected(id K) bool {
	_, ok := s.members[id]
	return ok
}

// Len returns the number of selected identities.
func (s *Set[K]) Len() int { return len(s.members) }

// IDs returns the selected identities in the order they were selected.
func (s *Set[K]) IDs() []K {
	out := make([]K, 0, len(s.members))
	for _, e := range s.order {
		if s.live(e) {
			out = append(out, e.id)
		}
	}
	return out
}

func (s *Set[K]) live(e entry[K]) bool {
	seq, ok := s.members[e.id]
	return ok && seq == e.seq
}

// Select adds id. It reports whether membership changed.
func (s *Set[K]) Select(id K) bool {
	if s.IsSelected(id) {
		return false
	}
	s.seq++
	s.members[id] = s.seq
	s.order = append(s.order, entry[K]{id: id, seq: s.seq})
	return true
}

// Deselect removes id. It reports whether membership changed. It runs in
// amortized constant time.
func (s *Set[K]) Deselect(id K) bool {
	if !s.IsSelected(id) {
		return false
	}
	delete(s.members, id)
	s.stale++
	if s.stale > len(s.members) {
		s.compact()
	}
	return true
}

func (s *Set[K]) compact() {
	s.order = slices.DeleteFunc(s.order, func(e entry[K]) bool { return !s.live(e) })
	s.stale = 0
}

// Toggle flips membership of id and returns the new state.
func (s *Set[K]) Toggle(id K) bool {
	if s.Deselect(id) {
		return false
	}
	s.Select(id)
	return true
}

// SelectAll adds every identity of the current view. Callers pass the
// derived view's identities, so rows hidden by a filter are not touched.
// It reports whether membership changed.
func (s *Set[K]) SelectAll(viewIDs []K) bool {
	changed := false
	for _, id := range viewIDs {
		if s.Select(id) {
			changed = true
		}
	}
	return changed
}

// Clear empties the selection. It reports whether anything was removed.
func (s *Set[K]) Clear() bool {
	if len(s.members) == 0 {
		return false
	}
	clear(s.members)
	s.order = s.order[:0]
	s.stale = 0
	return true
}

// Retain keeps only the identities for which keep returns true. It is used to
// prune rows that left the dataset and, when opted in, rows hidden by a
// filter. It reports whether membership changed.
func (s *Set[K]) Retain(keep func(K) bool) bool {
	before := len(s.members)
	for id := range s.members {
		if !keep(id) {
			delete(s.members, id)
		}
	}
	if len(s.members) == before {
		return false
	}
	s.compact()
	return true
}
