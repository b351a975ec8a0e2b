// Package selection tracks which visible dies a caller has chosen for
// side-by-side comparison.
package selection

import "github.com/atinyakov/diecompare/internal/models"

// State is the selector's coarse state.
type State int

const (
	// Idle means nothing is selected.
	Idle State = iota
	// Comparing means at least one die is selected.
	Comparing
)

func (s State) String() string {
	if s == Comparing {
		return "comparing"
	}
	return "idle"
}

// Membership answers whether an id is currently visible to the caller.
type Membership interface {
	Contains(id string) bool
}

// Selector is an insertion-ordered id set. It is not safe for concurrent
// use; the owning session serializes access.
type Selector struct {
	order  []string
	member map[string]struct{}
}

// New returns an empty Selector in the Idle state.
func New() *Selector {
	return &Selector{member: make(map[string]struct{})}
}

// Toggle removes id when selected, otherwise adds it if visible contains it.
// It reports whether id is selected afterwards.
func (s *Selector) Toggle(id string, visible Membership) bool {
	if _, ok := s.member[id]; ok {
		s.remove(id)
		return false
	}
	if visible == nil || !visible.Contains(id) {
		return false
	}
	s.member[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Clear empties the selection unconditionally.
func (s *Selector) Clear() {
	s.order = nil
	clear(s.member)
}

// Retain drops every selected id that visible no longer contains and
// returns how many were dropped.
func (s *Selector) Retain(visible Membership) int {
	kept := s.order[:0]
	dropped := 0
	for _, id := range s.order {
		if visible != nil && visible.Contains(id) {
			kept = append(kept, id)
			continue
		}
		delete(s.member, id)
		dropped++
	}
	s.order = kept
	return dropped
}

// State reports Idle or Comparing.
func (s *Selector) State() State {
	if len(s.order) == 0 {
		return Idle
	}
	return Comparing
}

// Contains reports whether id is selected.
func (s *Selector) Contains(id string) bool {
	_, ok := s.member[id]
	return ok
}

// Len returns the number of selected ids.
func (s *Selector) Len() int { return len(s.order) }

// IDs returns a copy of the selected ids in insertion order.
func (s *Selector) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Pick returns the dies whose ids appear in ids, in ids order.
// Ids missing from dies are skipped.
func Pick(ids []string, dies []models.Die) []models.Die {
	byID := make(map[string]models.Die, len(dies))
	for _, d := range dies {
		byID[d.ID] = d
	}
	out := make([]models.Die, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

func (s *Selector) remove(id string) {
	delete(s.member, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
