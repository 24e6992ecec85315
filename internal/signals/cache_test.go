package signals

import (
	"testing"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

func sig(ticker string) *types.TechnicalSignals {
	return &types.TechnicalSignals{Symbol: ticker, Price: 100, AsOf: time.Now().UTC()}
}

func TestCacheFreshnessWindow(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Now().UTC()
	c.Set("AAPL", sig("AAPL"), now)

	if _, ok := c.Get("AAPL", now.Add(30*time.Second)); !ok {
		t.Error("expected hit inside TTL")
	}
	if _, ok := c.Get("AAPL", now.Add(2*time.Minute)); ok {
		t.Error("expected miss past TTL")
	}
	// The expired entry was evicted on read.
	if c.Size() != 0 {
		t.Errorf("expected lazy eviction, size=%d", c.Size())
	}
}

func TestCacheExplicitTTL(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Now().UTC()
	c.SetTTL("AAPL", sig("AAPL"), now, time.Hour)

	if _, ok := c.Get("AAPL", now.Add(30*time.Minute)); !ok {
		t.Error("expected hit inside explicit TTL")
	}
}

func TestCacheClearAtCycleBoundary(t *testing.T) {
	c := NewCache(time.Hour)
	now := time.Now().UTC()
	c.Set("AAPL", sig("AAPL"), now)
	c.Set("MSFT", sig("MSFT"), now)

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("expected empty cache after clear, size=%d", c.Size())
	}
	if _, ok := c.Get("AAPL", now); ok {
		t.Error("expected miss after clear")
	}
}

func TestCachePruneExpired(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Now().UTC()
	c.SetTTL("OLD", sig("OLD"), now.Add(-time.Hour), time.Minute)
	c.Set("NEW", sig("NEW"), now)

	if n := c.PruneExpired(now); n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
	if _, ok := c.Get("NEW", now); !ok {
		t.Error("fresh entry must survive prune")
	}
}
