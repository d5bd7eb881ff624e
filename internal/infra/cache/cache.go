// Package cache is a small in-process TTL cache. The storefront uses it
// for the menu, which changes rarely and is read on every visit.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e entry[T]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Store is a thread-safe in-memory cache. Entries share one TTL.
type Store[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	ttl     time.Duration
}

// New creates a cache and starts its sweep goroutine.
func New[T any](ttl time.Duration) *Store[T] {
	s := &Store[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
	}
	go s.sweep()
	return s
}

// Get returns the value for key, or false when absent or expired.
// An expired entry is dropped on sight rather than left for the sweeper.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		var zero T
		return zero, false
	}
	if e.expired(time.Now()) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache's TTL.
func (s *Store[T]) Set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(s.ttl),
	}
}

// Delete removes key.
func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len reports the number of live entries, counting not-yet-swept
// expired ones.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store[T]) sweep() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		s.mu.Lock()
		for k, e := range s.entries {
			if e.expired(now) {
				delete(s.entries, k)
			}
		}
		s.mu.Unlock()
	}
}
