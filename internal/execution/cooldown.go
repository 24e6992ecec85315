package execution

import (
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// DefaultCooldown is applied when no duration is configured.
const DefaultCooldown = 3 * time.Hour

// CooldownManager tracks per-ticker trading prohibitions. It is owned
// by the engine loop (single writer) and needs no locking.
type CooldownManager struct {
	cooldowns map[string]types.Cooldown
}

func NewCooldownManager() *CooldownManager {
	return &CooldownManager{cooldowns: make(map[string]types.Cooldown)}
}

// Add places or extends a cooldown. Extension is monotonic: a new
// expiry earlier than the active one is a no-op. It returns the
// effective cooldown and whether the call changed anything.
func (m *CooldownManager) Add(ticker string, duration time.Duration, reason, source string) (types.Cooldown, bool) {
	if duration <= 0 {
		duration = DefaultCooldown
	}
	now := time.Now().UTC()
	until := now.Add(duration)

	if existing, ok := m.cooldowns[ticker]; ok && existing.Active(now) && !until.After(existing.Until) {
		return existing, false
	}

	cd := types.Cooldown{Ticker: ticker, Until: until, Reason: reason, Source: source}
	m.cooldowns[ticker] = cd
	return cd, true
}

// Contains reports whether ticker has an unexpired cooldown at now.
func (m *CooldownManager) Contains(ticker string, now time.Time) bool {
	cd, ok := m.cooldowns[ticker]
	return ok && cd.Active(now)
}

// Get returns the cooldown for ticker if one is recorded.
func (m *CooldownManager) Get(ticker string) (types.Cooldown, bool) {
	cd, ok := m.cooldowns[ticker]
	return cd, ok
}

// AllActive returns the set of tickers with unexpired cooldowns.
func (m *CooldownManager) AllActive(now time.Time) map[string]struct{} {
	active := make(map[string]struct{})
	for ticker, cd := range m.cooldowns {
		if cd.Active(now) {
			active[ticker] = struct{}{}
		}
	}
	return active
}

// Prune drops expired cooldowns and returns the count removed.
func (m *CooldownManager) Prune(now time.Time) int {
	removed := 0
	for ticker, cd := range m.cooldowns {
		if !cd.Active(now) {
			delete(m.cooldowns, ticker)
			removed++
		}
	}
	return removed
}

// Remove drops the cooldown for ticker, expired or not.
func (m *CooldownManager) Remove(ticker string) {
	delete(m.cooldowns, ticker)
}

// Count returns the number of recorded cooldowns, expired included.
func (m *CooldownManager) Count() int {
	return len(m.cooldowns)
}

// Snapshot returns all recorded cooldowns for persistence.
func (m *CooldownManager) Snapshot() []types.Cooldown {
	out := make([]types.Cooldown, 0, len(m.cooldowns))
	for _, cd := range m.cooldowns {
		out = append(out, cd)
	}
	return out
}

// Restore replaces the cooldown set from persisted state.
func (m *CooldownManager) Restore(cooldowns []types.Cooldown) {
	m.cooldowns = make(map[string]types.Cooldown, len(cooldowns))
	for _, cd := range cooldowns {
		m.cooldowns[cd.Ticker] = cd
	}
}
