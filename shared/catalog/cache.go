package catalog

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	ids       []uint
	expiresAt time.Time
}

// MemoryCache is an in-process expiring map. Expired entries are ignored on
// read and removed by a single periodic sweeper.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[uint]cacheEntry
	ttl     time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates a cache whose entries live for ttl. When sweep is
// positive a background goroutine purges expired entries at that interval
// until Close is called.
func NewMemoryCache(ttl, sweep time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultDescendantTTL
	}
	c := &MemoryCache{
		entries: make(map[uint]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if sweep > 0 {
		go c.sweepLoop(sweep)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, id uint) ([]uint, bool) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return append([]uint(nil), entry.ids...), true
}

func (c *MemoryCache) Set(_ context.Context, id uint, ids []uint) {
	entry := cacheEntry{
		ids:       append([]uint(nil), ids...),
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Lock()
	c.entries[id] = entry
	c.mu.Unlock()
}

func (c *MemoryCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	c.entries = make(map[uint]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge removes expired entries
func (c *MemoryCache) Purge() {
	now := c.now()
	c.mu.Lock()
	for id, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, id)
		}
	}
	c.mu.Unlock()
}

// Close stops the sweeper
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Purge()
		case <-c.stop:
			return
		}
	}
}

// NoopCache never stores anything
type NoopCache struct{}

func (NoopCache) Get(context.Context, uint) ([]uint, bool) { return nil, false }
func (NoopCache) Set(context.Context, uint, []uint)        {}
func (NoopCache) Invalidate(context.Context)               {}
