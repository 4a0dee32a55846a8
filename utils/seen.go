package utils

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// SeenSet is a bounded, thread-safe set for deduplicating listing keys
// within a run. Backed by an LRU so a long run over many models cannot
// grow memory without limit.
type SeenSet struct {
	cache *lru.Cache[string, struct{}]
}

// NewSeenSet creates a SeenSet holding at most size keys.
func NewSeenSet(size int) *SeenSet {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &SeenSet{cache: cache}
}

// Add returns true if the key was newly added, false if already present.
func (s *SeenSet) Add(key string) bool {
	present, _ := s.cache.ContainsOrAdd(key, struct{}{})
	return !present
}

// Contains returns true if the key has already been seen.
func (s *SeenSet) Contains(key string) bool {
	return s.cache.Contains(key)
}

// Len returns the number of unique keys currently tracked.
func (s *SeenSet) Len() int {
	return s.cache.Len()
}
