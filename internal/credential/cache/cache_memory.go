package cache

import (
	"context"
	"sync"
	"time"

	id "didlab/pkg/domain"
	"didlab/pkg/fingerprint"
)

// DefaultSweepInterval is how often Run removes expired entries.
const DefaultSweepInterval = time.Minute

// InMemoryCache keeps verification results in process with TTL expiration.
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[fingerprint.Fingerprint]map[id.Address]time.Time
	epoch   uint64
	ttl     time.Duration
	now     func() time.Time
}

type MemoryOption func(*InMemoryCache)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *InMemoryCache) { c.now = now }
}

// NewInMemoryCache creates an empty cache. Entries expire after ttl.
func NewInMemoryCache(ttl time.Duration, opts ...MemoryOption) *InMemoryCache {
	c := &InMemoryCache{
		entries: make(map[fingerprint.Fingerprint]map[id.Address]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup evicts the entry it finds expired.
func (c *InMemoryCache) Lookup(_ context.Context, subject id.Address, fp fingerprint.Fingerprint) (bool, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subjects := c.entries[fp]
	storedAt, ok := subjects[subject]
	if !ok {
		return false, c.epoch, nil
	}
	if c.now().Sub(storedAt) >= c.ttl {
		delete(subjects, subject)
		if len(subjects) == 0 {
			delete(c.entries, fp)
		}
		return false, c.epoch, nil
	}
	return true, c.epoch, nil
}

func (c *InMemoryCache) MarkVerified(_ context.Context, subject id.Address, fp fingerprint.Fingerprint, epoch uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return false, nil
	}
	subjects, ok := c.entries[fp]
	if !ok {
		subjects = make(map[id.Address]time.Time)
		c.entries[fp] = subjects
	}
	subjects[subject] = c.now()
	return true, nil
}

func (c *InMemoryCache) Invalidate(_ context.Context, fp fingerprint.Fingerprint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fp)
	c.epoch++
	return nil
}

// Len reports how many (fingerprint, subject) entries are held.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, subjects := range c.entries {
		n += len(subjects)
	}
	return n
}

// Sweep removes expired entries and returns how many were dropped.
func (c *InMemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	now := c.now()
	for fp, subjects := range c.entries {
		for subject, storedAt := range subjects {
			if now.Sub(storedAt) >= c.ttl {
				delete(subjects, subject)
				removed++
			}
		}
		if len(subjects) == 0 {
			delete(c.entries, fp)
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (c *InMemoryCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
