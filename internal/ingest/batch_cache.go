package ingest

import (
	"sync"

	"github.com/tsesc/tw-homedog/internal/dedup"
)

// batchCache holds listings inserted during the current run, keyed by entity
// fingerprint. Stored candidates only cover earlier runs; two near-identical
// listings arriving in the same batch must still see each other.
type batchCache struct {
	mu      sync.Mutex
	buckets map[string][]dedup.Listing
}

func newBatchCache() *batchCache {
	return &batchCache{buckets: make(map[string][]dedup.Listing)}
}

func (c *batchCache) add(l dedup.Listing) {
	if l.Fingerprint == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets[l.Fingerprint] = append(c.buckets[l.Fingerprint], l)
}

func (c *batchCache) candidates(fingerprint string) []dedup.Listing {
	if fingerprint == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	bucket := c.buckets[fingerprint]
	out := make([]dedup.Listing, len(bucket))
	copy(out, bucket)
	return out
}
