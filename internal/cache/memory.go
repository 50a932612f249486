package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vitals-triage-server/internal/domain"
)

const (
	defaultMemoryItems = 1000
	defaultMemoryTTL   = 5 * time.Minute
)

// MemoryCache is a size-bounded LRU whose entries also expire after a fixed TTL.
type MemoryCache struct {
	lru    *expirable.LRU[string, *domain.PatientProfile]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates a cache holding at most maxItems profiles for ttl each.
// Non-positive arguments fall back to defaults.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = defaultMemoryItems
	}
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, *domain.PatientProfile](maxItems, nil, ttl),
	}
}

// Get returns a copy of the cached profile.
func (c *MemoryCache) Get(_ context.Context, patientID string) (*domain.PatientProfile, bool, error) {
	profile, ok := c.lru.Get(patientID)
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)
	return cloneProfile(profile), true, nil
}

// Set stores a copy of profile.
func (c *MemoryCache) Set(_ context.Context, profile *domain.PatientProfile) error {
	c.lru.Add(profile.PatientID, cloneProfile(profile))
	return nil
}

// Delete evicts patientID.
func (c *MemoryCache) Delete(_ context.Context, patientID string) error {
	c.lru.Remove(patientID)
	return nil
}

// Purge evicts everything.
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}

// Stats returns hit, miss and size counters.
func (c *MemoryCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.lru.Len(),
	}
}
