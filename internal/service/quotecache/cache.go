// Package quotecache is a short-TTL store of the latest MarketSnapshot per
// symbol. It collapses redundant upstream requests when several timeframes
// need the same symbol within one refresh window. Expiry is lazy, checked on
// read; the symbol universe is fixed and small, so no background sweep runs.
package quotecache

import (
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
)

type entry struct {
	snap models.MarketSnapshot
	exp  time.Time
}

type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time
	m   map[string]entry
}

// New creates a cache with the given TTL per entry.
func New(ttl time.Duration) *Cache {
	return newWithClock(ttl, time.Now)
}

func newWithClock(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{ttl: ttl, now: now, m: make(map[string]entry)}
}

// Get returns the cached snapshot for symbol, with Source rewritten to cache.
func (c *Cache) Get(symbol string) (models.MarketSnapshot, bool) {
	c.mu.RLock()
	e, ok := c.m[symbol]
	c.mu.RUnlock()
	if !ok {
		return models.MarketSnapshot{}, false
	}
	if c.now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, symbol)
		c.mu.Unlock()
		return models.MarketSnapshot{}, false
	}
	snap := e.snap
	snap.Source = models.SourceCache
	return snap, true
}

// Put stores the latest snapshot for symbol.
func (c *Cache) Put(symbol string, snap models.MarketSnapshot) {
	c.mu.Lock()
	c.m[symbol] = entry{snap: snap, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
