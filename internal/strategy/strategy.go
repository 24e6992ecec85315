package strategy

import (
	"fmt"
	"math"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// Strategy evaluates entries and exits for the execution engine.
//
// Authority model: a strategy either validates an agent-supplied setup
// (using the agent's entry/stop/target/quantity verbatim on accept) or
// detects its own setup and computes those values itself. Which mode
// applies is a property of the concrete strategy and its inputs, not a
// separate interface.
//
// State and Restore let stateful strategies (false-breakout counts,
// entry times) survive restarts; stateless strategies return nil.
type Strategy interface {
	Name() string
	Config() *Config

	EvaluateEntry(sig *types.TechnicalSignals, mc *types.MarketContext, agent *types.AgentRecommendation) types.EntryDecision
	EvaluateExit(pos *types.TrackedPosition, sig *types.TechnicalSignals, mc *types.MarketContext) types.ExitDecision
	CalculatePositionSize(sig *types.TechnicalSignals, mc *types.MarketContext, maxAmount float64) int

	State() map[string]any
	Restore(state map[string]any)
}

// base carries shared filter and sizing logic for concrete strategies.
type base struct {
	cfg *Config
}

// checkBasicFilters applies the entry pre-filters common to all
// strategies: market open, no existing position, not cooling down.
func (b *base) checkBasicFilters(sig *types.TechnicalSignals, mc *types.MarketContext) (bool, string) {
	if mc.MarketStatus != types.MarketOpen {
		return false, fmt.Sprintf("Market is %s", mc.MarketStatus)
	}
	if mc.InCooldown(sig.Symbol) {
		return false, fmt.Sprintf("Ticker %s is in cooldown", sig.Symbol)
	}
	if mc.HasPosition(sig.Symbol) {
		return false, fmt.Sprintf("Already have position in %s", sig.Symbol)
	}
	return true, "Basic filters passed"
}

// calculatePositionSize returns min(max_position_pct * equity,
// max_amount) / price, floored to whole shares.
func (b *base) calculatePositionSize(sig *types.TechnicalSignals, mc *types.MarketContext, maxAmount float64) int {
	if sig == nil || sig.Price <= 0 {
		return 0
	}
	budget := math.Min(b.cfg.MaxPositionPct*mc.AccountEquity, maxAmount)
	if budget < b.cfg.MinPositionValue {
		return 0
	}
	shares := int(budget / sig.Price)
	if shares < 0 {
		return 0
	}
	return shares
}

// reject builds a structured rejection decision.
func reject(reason string) types.EntryDecision {
	return types.EntryDecision{ShouldEnter: false, Reason: reason}
}

// hold builds a structured hold decision.
func hold(reason string) types.ExitDecision {
	return types.ExitDecision{ShouldExit: false, Reason: reason, Urgency: types.UrgencyNormal}
}
