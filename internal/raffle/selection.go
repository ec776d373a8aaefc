package raffle

import (
	"sort"
	"sync"
)

// Selection is the set of numbers picked for a batch operation.
type Selection struct {
	mu      sync.Mutex
	numbers map[int]struct{}
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{numbers: make(map[int]struct{})}
}

// Toggle flips n and reports whether it is selected afterwards.
func (s *Selection) Toggle(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.numbers[n]; ok {
		delete(s.numbers, n)
		return false
	}
	s.numbers[n] = struct{}{}
	return true
}

// ToggleAll is the select-all / deselect-all action over the eligible set.
// When the selection already equals that set it is emptied, otherwise it
// becomes exactly that set, so two calls in a row always invert.
func (s *Selection) ToggleAll(eligible []int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make(map[int]struct{}, len(eligible))
	for _, n := range eligible {
		all[n] = struct{}{}
	}

	if len(all) > 0 && sameSet(s.numbers, all) {
		s.numbers = make(map[int]struct{})
		return
	}
	s.numbers = all
}

func sameSet(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if _, ok := b[n]; !ok {
			return false
		}
	}
	return true
}

// Has reports whether n is selected.
func (s *Selection) Has(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.numbers[n]
	return ok
}

// Len returns the number of selected numbers.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.numbers)
}

// Numbers returns the selection in ascending order.
func (s *Selection) Numbers() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int, 0, len(s.numbers))
	for n := range s.numbers {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Remove drops the given numbers.
func (s *Selection) Remove(numbers ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range numbers {
		delete(s.numbers, n)
	}
}

// Retain keeps only numbers that are still eligible.
func (s *Selection) Retain(eligible []int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[int]struct{}, len(eligible))
	for _, n := range eligible {
		if _, ok := s.numbers[n]; ok {
			keep[n] = struct{}{}
		}
	}
	s.numbers = keep
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numbers = make(map[int]struct{})
}
