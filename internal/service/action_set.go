package service

import (
	"github.com/vitals-triage-server/internal/domain"
)

// actionSuppression maps a stronger action to the weaker actions it replaces.
var actionSuppression = map[domain.ActionCode][]domain.ActionCode{
	domain.ActionReduceSaltImmediately: {domain.ActionReduceSalt, domain.ActionWatchSalt},
	domain.ActionReduceSalt:            {domain.ActionWatchSalt},
	domain.ActionReduceCarbs:           {domain.ActionWatchCarbs},
}

// ActionSet is an insertion-ordered set of action codes. Adding a code that is already present,
// or that a present code suppresses, is a no-op. Adding a stronger code evicts the weaker codes
// it suppresses.
type ActionSet struct {
	order []domain.ActionCode
	index map[domain.ActionCode]struct{}
}

// NewActionSet creates an empty set.
func NewActionSet() *ActionSet {
	return &ActionSet{index: make(map[domain.ActionCode]struct{})}
}

// Add inserts codes in order, applying the suppression table against the set as built so far.
func (s *ActionSet) Add(codes ...domain.ActionCode) {
	for _, code := range codes {
		s.add(code)
	}
}

func (s *ActionSet) add(code domain.ActionCode) {
	if s.Has(code) || s.suppressed(code) {
		return
	}
	for _, weaker := range actionSuppression[code] {
		s.remove(weaker)
	}
	s.index[code] = struct{}{}
	s.order = append(s.order, code)
}

// Has reports whether code is in the set.
func (s *ActionSet) Has(code domain.ActionCode) bool {
	_, ok := s.index[code]
	return ok
}

// Len returns the number of codes in the set.
func (s *ActionSet) Len() int {
	return len(s.order)
}

// Codes returns a copy of the codes in insertion order.
func (s *ActionSet) Codes() []domain.ActionCode {
	out := make([]domain.ActionCode, len(s.order))
	copy(out, s.order)
	return out
}

func (s *ActionSet) suppressed(code domain.ActionCode) bool {
	for present := range s.index {
		for _, weaker := range actionSuppression[present] {
			if weaker == code {
				return true
			}
		}
	}
	return false
}

func (s *ActionSet) remove(code domain.ActionCode) {
	if !s.Has(code) {
		return
	}
	delete(s.index, code)
	for i, existing := range s.order {
		if existing == code {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
