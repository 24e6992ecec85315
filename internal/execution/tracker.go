package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// SyncResult summarizes one reconciliation pass against the broker.
type SyncResult struct {
	Added   []string
	Updated []string
	Removed []types.TrackedPosition
}

// PositionTracker mirrors broker positions enriched with local
// metadata. The broker is authoritative for quantity and entry price;
// the tracker is authoritative for strategy name, bracket levels and
// order ids. Owned by the engine loop (single writer).
type PositionTracker struct {
	positions   map[string]*types.TrackedPosition
	closed      []types.TrackedPosition
	closedLimit int
}

func NewPositionTracker(closedLimit int) *PositionTracker {
	if closedLimit <= 0 {
		closedLimit = 100
	}
	return &PositionTracker{
		positions:   make(map[string]*types.TrackedPosition),
		closedLimit: closedLimit,
	}
}

// SyncFromBroker reconciles tracked positions against the broker's
// authoritative list. New tickers are admitted with unknown metadata,
// existing ones are re-marked at the broker price, and tickers the
// broker no longer reports are moved to the closed history.
func (t *PositionTracker) SyncFromBroker(ctx context.Context, b broker.Broker) (SyncResult, error) {
	brokerPositions, err := b.ListPositions(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("position sync: %w", err)
	}

	var result SyncResult
	seen := make(map[string]struct{}, len(brokerPositions))

	for _, bp := range brokerPositions {
		seen[bp.Ticker] = struct{}{}

		existing, ok := t.positions[bp.Ticker]
		if !ok {
			pos := &types.TrackedPosition{
				Ticker:        bp.Ticker,
				Side:          bp.Side,
				Quantity:      bp.Quantity,
				AvgEntryPrice: bp.AvgEntryPrice,
				StrategyName:  "unknown",
				OpenedAt:      time.Now().UTC(),
			}
			pos.MarkPrice(bp.CurrentPrice)
			t.positions[bp.Ticker] = pos
			result.Added = append(result.Added, bp.Ticker)
			continue
		}

		existing.Side = bp.Side
		existing.Quantity = bp.Quantity
		existing.AvgEntryPrice = bp.AvgEntryPrice
		existing.MarkPrice(bp.CurrentPrice)
		result.Updated = append(result.Updated, bp.Ticker)
	}

	for ticker, pos := range t.positions {
		if _, ok := seen[ticker]; ok {
			continue
		}
		t.recordClosed(*pos)
		result.Removed = append(result.Removed, *pos)
		delete(t.positions, ticker)
	}

	return result, nil
}

func (t *PositionTracker) recordClosed(pos types.TrackedPosition) {
	t.closed = append(t.closed, pos)
	if len(t.closed) > t.closedLimit {
		t.closed = t.closed[len(t.closed)-t.closedLimit:]
	}
}

// AddPosition records a newly opened position after a successful entry
// submission.
func (t *PositionTracker) AddPosition(ticker string, side types.Side, qty int, entryPrice float64,
	strategyName string, stopLoss, target float64, entryOrderID string) *types.TrackedPosition {

	pos := &types.TrackedPosition{
		Ticker:          ticker,
		Side:            side,
		Quantity:        qty,
		AvgEntryPrice:   entryPrice,
		StrategyName:    strategyName,
		OpenedAt:        time.Now().UTC(),
		EntryOrderID:    entryOrderID,
		HasBracketOrder: true,
	}
	if stopLoss > 0 {
		pos.StopLoss = &stopLoss
	}
	if target > 0 {
		pos.Target = &target
	}
	pos.MarkPrice(entryPrice)
	t.positions[ticker] = pos
	return pos
}

// Get returns the tracked position for ticker.
func (t *PositionTracker) Get(ticker string) (*types.TrackedPosition, bool) {
	pos, ok := t.positions[ticker]
	return pos, ok
}

// Has reports whether ticker is tracked.
func (t *PositionTracker) Has(ticker string) bool {
	_, ok := t.positions[ticker]
	return ok
}

// All returns the tracked positions. The pointers are live; only the
// engine loop may mutate them.
func (t *PositionTracker) All() []*types.TrackedPosition {
	out := make([]*types.TrackedPosition, 0, len(t.positions))
	for _, pos := range t.positions {
		out = append(out, pos)
	}
	return out
}

// Tickers returns the set of currently tracked tickers.
func (t *PositionTracker) Tickers() map[string]struct{} {
	out := make(map[string]struct{}, len(t.positions))
	for ticker := range t.positions {
		out[ticker] = struct{}{}
	}
	return out
}

// Count returns the number of open tracked positions.
func (t *PositionTracker) Count() int {
	return len(t.positions)
}

// TotalValue sums market value across open positions.
func (t *PositionTracker) TotalValue() float64 {
	total := 0.0
	for _, pos := range t.positions {
		total += pos.MarketValue
	}
	return total
}

// TotalPnL sums unrealized P&L across open positions.
func (t *PositionTracker) TotalPnL() float64 {
	total := 0.0
	for _, pos := range t.positions {
		total += pos.UnrealizedPnL
	}
	return total
}

// UpdatePrice re-marks a position at price.
func (t *PositionTracker) UpdatePrice(ticker string, price float64) bool {
	pos, ok := t.positions[ticker]
	if !ok {
		return false
	}
	pos.MarkPrice(price)
	return true
}

// Remove drops a position and records it in the closed history (used
// when a close order confirms within the same cycle).
func (t *PositionTracker) Remove(ticker string) bool {
	pos, ok := t.positions[ticker]
	if !ok {
		return false
	}
	t.recordClosed(*pos)
	delete(t.positions, ticker)
	return true
}

// ClosedHistory returns the bounded list of recently closed positions.
func (t *PositionTracker) ClosedHistory() []types.TrackedPosition {
	out := make([]types.TrackedPosition, len(t.closed))
	copy(out, t.closed)
	return out
}

// Snapshot returns open positions by value for persistence.
func (t *PositionTracker) Snapshot() []types.TrackedPosition {
	out := make([]types.TrackedPosition, 0, len(t.positions))
	for _, pos := range t.positions {
		out = append(out, *pos)
	}
	return out
}

// Restore replaces tracked positions from persisted state.
func (t *PositionTracker) Restore(positions []types.TrackedPosition) {
	t.positions = make(map[string]*types.TrackedPosition, len(positions))
	for i := range positions {
		pos := positions[i]
		t.positions[pos.Ticker] = &pos
	}
}
