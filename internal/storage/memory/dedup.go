package memory

import (
	"context"
	"sync"
	"time"
)

// DedupStore is an in-process webhook dedup window: a map of event id to
// expiry. Suitable for tests and single-replica deployments only; replicas
// do not share it.
type DedupStore struct {
	mu      sync.Mutex
	applied map[string]time.Time
	now     func() time.Time
}

// NewDedupStore creates an empty store.
func NewDedupStore() *DedupStore {
	return &DedupStore{
		applied: make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkApplied claims the event id for the window, returning false when a
// non-expired claim already exists. Expired entries are pruned lazily.
func (s *DedupStore) MarkApplied(_ context.Context, eventID string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, ok := s.applied[eventID]; ok && now.Before(expiry) {
		return false, nil
	}

	// Prune opportunistically so the map stays bounded by the window.
	for id, expiry := range s.applied {
		if now.After(expiry) {
			delete(s.applied, id)
		}
	}

	s.applied[eventID] = now.Add(window)
	return true, nil
}
