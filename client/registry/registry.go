// Package registry tracks file names with a transfer in flight.
package registry

import "sync"

// Set is a concurrency safe set of in-flight file names
type Set struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// New returns an empty set
func New() *Set {
	return &Set{names: make(map[string]struct{})}
}

// Add registers name and reports false if it was already present
func (s *Set) Add(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[name]; ok {
		return false
	}
	s.names[name] = struct{}{}
	return true
}

// Remove drops name from the set
func (s *Set) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.names, name)
}

// Contains reports whether name is in flight
func (s *Set) Contains(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.names[name]
	return ok
}

// Len returns the number of names in flight
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}
