package utils

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSeenSetNoDuplicates(t *testing.T) {
	s := NewSeenSet(16)

	added := s.Add("cars.com|abc123")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("cars.com|abc123")
	if added {
		t.Error("second Add of same key should return false")
	}

	if s.Len() != 1 {
		t.Errorf("len: got %d, want 1", s.Len())
	}
}

func TestSeenSetConcurrency(t *testing.T) {
	s := NewSeenSet(128)
	var added int64
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add("cars.com|same") {
				atomic.AddInt64(&added, 1)
			}
		}()
	}
	wg.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestSeenSetBounded(t *testing.T) {
	s := NewSeenSet(8)
	for i := 0; i < 100; i++ {
		s.Add(fmt.Sprintf("key-%d", i))
	}
	if s.Len() > 8 {
		t.Errorf("len: got %d, want at most 8", s.Len())
	}
	if !s.Contains("key-99") {
		t.Error("most recent key should still be tracked")
	}
}
