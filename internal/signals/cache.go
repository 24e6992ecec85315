package signals

import (
	"sync"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// cached pairs a signal with its insertion time and TTL.
type cached struct {
	signal    *types.TechnicalSignals
	timestamp time.Time
	ttl       time.Duration
}

// Cache bounds per-ticker technical recomputation within a cycle.
//
// Invalidation policy: the engine clears the cache at the start of every
// cycle; the TTL is a second bound inside long cycles. Both are
// intentional (see DESIGN.md).
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]cached
	defaultTTL time.Duration
}

func NewCache(defaultTTL time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]cached),
		defaultTTL: defaultTTL,
	}
}

// Get returns the cached signal for ticker if still fresh at now.
func (c *Cache) Get(ticker string, now time.Time) (*types.TechnicalSignals, bool) {
	c.mu.RLock()
	entry, ok := c.entries[ticker]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if now.Sub(entry.timestamp) > entry.ttl {
		c.mu.Lock()
		delete(c.entries, ticker)
		c.mu.Unlock()
		return nil, false
	}
	return entry.signal, true
}

// Set stores a signal with the default TTL.
func (c *Cache) Set(ticker string, sig *types.TechnicalSignals, now time.Time) {
	c.SetTTL(ticker, sig, now, c.defaultTTL)
}

// SetTTL stores a signal with an explicit TTL.
func (c *Cache) SetTTL(ticker string, sig *types.TechnicalSignals, now time.Time, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ticker] = cached{signal: sig, timestamp: now, ttl: ttl}
}

// Clear drops all entries. Called at each cycle boundary.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cached)
}

// PruneExpired drops stale entries and returns how many were removed.
func (c *Cache) PruneExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for ticker, entry := range c.entries {
		if now.Sub(entry.timestamp) > entry.ttl {
			delete(c.entries, ticker)
			removed++
		}
	}
	return removed
}

// Size returns the number of cached entries, fresh or not.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
