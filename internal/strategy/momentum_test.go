package strategy

import (
	"testing"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

func openContext() *types.MarketContext {
	return &types.MarketContext{
		VIX:               18,
		MarketStatus:      types.MarketOpen,
		AccountEquity:     100_000,
		BuyingPower:       50_000,
		ExistingPositions: map[string]struct{}{},
		CooldownTickers:   map[string]struct{}{},
	}
}

func strongSignals(ticker string) *types.TechnicalSignals {
	return &types.TechnicalSignals{
		Symbol:   ticker,
		Price:    150,
		ATR:      2.5,
		Momentum: 5.0,
		Score:    0.75,
		Signals:  []string{"TA: Strong momentum (5.0%)"},
		Weak:     false,
		AsOf:     time.Now().UTC(),
	}
}

func longAgent() *types.AgentRecommendation {
	return &types.AgentRecommendation{
		EntryPrice: 150,
		StopLoss:   145,
		Target:     165,
		Quantity:   100,
		TradeType:  types.SideLong,
	}
}

func TestMomentumEntryUsesAgentValuesVerbatim(t *testing.T) {
	m := NewMomentum(nil)
	d := m.EvaluateEntry(strongSignals("AAPL"), openContext(), longAgent())

	if !d.ShouldEnter {
		t.Fatalf("expected entry, got rejection: %s", d.Reason)
	}
	if d.EntryPrice != 150 || d.StopLoss != 145 || d.Target != 165 || d.SuggestedSize != 100 {
		t.Errorf("agent values must pass through unchanged, got %+v", d)
	}
	if err := d.CheckSafety(); err != nil {
		t.Errorf("accepted entry violates safety invariant: %v", err)
	}
}

func TestMomentumEntryRequiresAgentRecommendation(t *testing.T) {
	m := NewMomentum(nil)
	d := m.EvaluateEntry(strongSignals("AAPL"), openContext(), nil)
	if d.ShouldEnter {
		t.Error("validate-mode strategy must reject without an agent recommendation")
	}
}

func TestMomentumEntryPreFilters(t *testing.T) {
	m := NewMomentum(nil)

	mc := openContext()
	mc.MarketStatus = types.MarketClosed
	if d := m.EvaluateEntry(strongSignals("AAPL"), mc, longAgent()); d.ShouldEnter {
		t.Error("must reject when market closed")
	}

	mc = openContext()
	mc.ExistingPositions["AAPL"] = struct{}{}
	if d := m.EvaluateEntry(strongSignals("AAPL"), mc, longAgent()); d.ShouldEnter {
		t.Error("must reject with existing position")
	}

	mc = openContext()
	mc.CooldownTickers["AAPL"] = struct{}{}
	if d := m.EvaluateEntry(strongSignals("AAPL"), mc, longAgent()); d.ShouldEnter {
		t.Error("must reject ticker in cooldown")
	}
}

func TestMomentumEntryRejectsWeakTechnicals(t *testing.T) {
	m := NewMomentum(nil)

	sig := strongSignals("AAPL")
	sig.Weak = true
	if d := m.EvaluateEntry(sig, openContext(), longAgent()); d.ShouldEnter {
		t.Error("must reject weak technicals")
	}

	sig = strongSignals("AAPL")
	sig.Momentum = -10
	if d := m.EvaluateEntry(sig, openContext(), longAgent()); d.ShouldEnter {
		t.Error("must reject negative momentum below threshold")
	}

	sig = strongSignals("AAPL")
	sig.Score = 0.5
	if d := m.EvaluateEntry(sig, openContext(), longAgent()); d.ShouldEnter {
		t.Error("must reject weak score")
	}
}

func TestMomentumScoreThresholdRisesWithoutPattern(t *testing.T) {
	m := NewMomentum(nil)

	// 0.65 passes the base 0.6 threshold only when a pattern is present.
	sig := strongSignals("AAPL")
	sig.Score = 0.65
	if d := m.EvaluateEntry(sig, openContext(), longAgent()); !d.ShouldEnter {
		t.Errorf("expected entry with pattern at score 0.65: %s", d.Reason)
	}

	sig = strongSignals("AAPL")
	sig.Score = 0.65
	sig.Signals = nil
	if d := m.EvaluateEntry(sig, openContext(), longAgent()); d.ShouldEnter {
		t.Error("expected rejection without pattern at score 0.65")
	}
}

func exitPosition(side types.Side, pnlPct float64) *types.TrackedPosition {
	pos := &types.TrackedPosition{
		Ticker:        "AAPL",
		Side:          side,
		Quantity:      100,
		AvgEntryPrice: 150,
		OpenedAt:      time.Now().UTC().Add(-2 * time.Hour),
	}
	pos.UnrealizedPnLPct = pnlPct
	return pos
}

func TestMomentumExitCatastrophicIsImmediate(t *testing.T) {
	m := NewMomentum(nil)
	sig := strongSignals("AAPL")
	sig.Momentum = -30

	d := m.EvaluateExit(exitPosition(types.SideLong, 0.05), sig, openContext())
	if !d.ShouldExit {
		t.Fatal("expected exit on catastrophic momentum")
	}
	if d.Urgency != types.UrgencyImmediate {
		t.Errorf("expected immediate urgency, got %s", d.Urgency)
	}
}

func TestMomentumExitProfitableHoldsOnMinorWeakness(t *testing.T) {
	m := NewMomentum(nil)
	sig := strongSignals("AAPL")
	sig.Momentum = -8 // below entry threshold but above exit threshold
	sig.Score = 0.5

	d := m.EvaluateExit(exitPosition(types.SideLong, 0.04), sig, openContext())
	if d.ShouldExit {
		t.Errorf("profitable position should hold through minor weakness: %s", d.Reason)
	}
}

func TestMomentumExitProfitableMajorReversalIsUrgent(t *testing.T) {
	m := NewMomentum(nil)
	sig := strongSignals("AAPL")
	sig.Momentum = -18

	d := m.EvaluateExit(exitPosition(types.SideLong, 0.04), sig, openContext())
	if !d.ShouldExit {
		t.Fatal("expected exit on major reversal")
	}
	if d.Urgency != types.UrgencyUrgent {
		t.Errorf("expected urgent urgency, got %s", d.Urgency)
	}
}

func TestMomentumExitLosingNeedsConfirmedWeakness(t *testing.T) {
	m := NewMomentum(nil)

	// Momentum breach alone does not exit a loser.
	sig := strongSignals("AAPL")
	sig.Momentum = -18
	sig.Weak = false
	if d := m.EvaluateExit(exitPosition(types.SideLong, -0.03), sig, openContext()); d.ShouldExit {
		t.Errorf("losing exit requires weak technicals: %s", d.Reason)
	}

	sig.Weak = true
	if d := m.EvaluateExit(exitPosition(types.SideLong, -0.03), sig, openContext()); !d.ShouldExit {
		t.Error("expected exit on confirmed weakness")
	}
}

func TestMomentumExitShortSideInverted(t *testing.T) {
	m := NewMomentum(nil)

	// A strong rally is catastrophic for a short.
	sig := strongSignals("AAPL")
	sig.Momentum = 30
	d := m.EvaluateExit(exitPosition(types.SideShort, -0.02), sig, openContext())
	if !d.ShouldExit || d.Urgency != types.UrgencyImmediate {
		t.Errorf("expected immediate short exit on rally, got %+v", d)
	}

	// A falling tape is healthy for a short.
	sig.Momentum = -10
	sig.Score = 0.3 // inverted to 0.7 for shorts
	d = m.EvaluateExit(exitPosition(types.SideShort, 0.03), sig, openContext())
	if d.ShouldExit {
		t.Errorf("short should hold while price falls: %s", d.Reason)
	}
}

func TestMomentumPositionSizeFormula(t *testing.T) {
	m := NewMomentum(nil)
	mc := openContext()

	sig := strongSignals("AAPL") // price 150
	// min(0.05 * 100k, 3000) / 150 = 20 shares
	if got := m.CalculatePositionSize(sig, mc, 3000); got != 20 {
		t.Errorf("expected 20 shares, got %d", got)
	}
	// min(5000, 60000) / 150 = 33
	if got := m.CalculatePositionSize(sig, mc, 60_000); got != 33 {
		t.Errorf("expected 33 shares, got %d", got)
	}
	// Budget below min position value yields zero.
	if got := m.CalculatePositionSize(sig, mc, 50); got != 0 {
		t.Errorf("expected 0 shares under min position value, got %d", got)
	}
}
