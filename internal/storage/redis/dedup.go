// Package redis implements the webhook dedup window on Redis, shared across
// API replicas.
package redis

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	rd "github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "checkout:webhook:event:"

// bloom sizing: gateways retry in bursts, so the filter only needs to cover
// the ids this replica marked within the window.
const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
)

// DedupStore remembers applied webhook event ids with a TTL. SET NX is the
// atomic claim; a local bloom filter short-circuits the round trip for ids
// this replica already marked.
type DedupStore struct {
	client *rd.Client

	mu   sync.Mutex
	seen *bloom.BloomFilter
}

// NewDedupStore creates a DedupStore on the given client.
func NewDedupStore(client *rd.Client) *DedupStore {
	return &DedupStore{
		client: client,
		seen:   bloom.NewWithEstimates(bloomCapacity, bloomFPR),
	}
}

// MarkApplied claims an event id for the given window. It returns first=true
// exactly once per id per window across all replicas.
func (s *DedupStore) MarkApplied(ctx context.Context, eventID string, window time.Duration) (bool, error) {
	// Bloom positives can be false, so a hit still needs Redis to confirm;
	// but this replica never marked an id the filter misses, making the
	// filter a cheap pre-check only when it says "maybe seen".
	s.mu.Lock()
	maybeSeen := s.seen.TestString(eventID)
	s.mu.Unlock()

	key := dedupKeyPrefix + eventID
	if maybeSeen {
		exists, err := s.client.Exists(ctx, key).Result()
		if err != nil {
			return false, errors.Wrap(err, "dedup exists")
		}
		if exists > 0 {
			return false, nil
		}
	}

	ok, err := s.client.SetNX(ctx, key, 1, window).Result()
	if err != nil {
		return false, errors.Wrap(err, "dedup setnx")
	}
	if ok {
		s.mu.Lock()
		s.seen.AddString(eventID)
		s.mu.Unlock()
	}
	return ok, nil
}
