package strategy

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// Momentum is a validate-mode strategy: the signal must carry an agent
// recommendation, and the strategy only verifies technical alignment.
// On accept it uses the agent's entry/stop/target/quantity verbatim.
type Momentum struct {
	base
}

var _ Strategy = (*Momentum)(nil)

func NewMomentum(cfg *Config) *Momentum {
	if cfg == nil {
		cfg = DefaultConfig()
		cfg.Name = "momentum"
		cfg.Description = "Momentum swing trading with TA confirmation"
	}
	return &Momentum{base: base{cfg: cfg}}
}

func (m *Momentum) Name() string    { return "momentum" }
func (m *Momentum) Config() *Config { return m.cfg }

func (m *Momentum) EvaluateEntry(sig *types.TechnicalSignals, mc *types.MarketContext, agent *types.AgentRecommendation) types.EntryDecision {
	if passed, reason := m.checkBasicFilters(sig, mc); !passed {
		return reject(reason)
	}

	if agent == nil {
		return reject("No agent recommendation provided for trade setup")
	}

	isLong := agent.TradeType == types.SideLong

	momentum := sig.Momentum
	if !isLong {
		momentum = -momentum
	}
	if momentum < m.cfg.MinMomentum {
		return reject(fmt.Sprintf("Momentum %.1f%% below threshold %.1f%%", sig.Momentum, m.cfg.MinMomentum))
	}

	required := m.cfg.MinTAScore
	if !m.hasBreakoutPattern(sig) {
		// No pattern confirmation: demand a stronger composite score.
		required += 0.1
	}
	score := sig.Score
	if !isLong {
		score = 1 - score
	}
	if score < required {
		return reject(fmt.Sprintf("TA score %.2f below required %.2f", score, required))
	}

	if sig.Weak {
		return reject("Technicals marked weak")
	}

	// Agent values pass through untouched: the strategy validates the
	// setup, it never recomputes it.
	return types.EntryDecision{
		ShouldEnter:   true,
		Reason:        fmt.Sprintf("Momentum %.1f%% and score %.2f confirm %s setup", sig.Momentum, sig.Score, agent.TradeType),
		SuggestedSize: agent.Quantity,
		EntryPrice:    agent.EntryPrice,
		StopLoss:      agent.StopLoss,
		Target:        agent.Target,
	}
}

// hasBreakoutPattern reports whether the provider flagged pattern-like
// strength in its signal annotations.
func (m *Momentum) hasBreakoutPattern(sig *types.TechnicalSignals) bool {
	return lo.SomeBy(sig.Signals, func(s string) bool {
		lower := strings.ToLower(s)
		return strings.Contains(lower, "breakout") || strings.Contains(lower, "strong momentum")
	})
}

func (m *Momentum) EvaluateExit(pos *types.TrackedPosition, sig *types.TechnicalSignals, mc *types.MarketContext) types.ExitDecision {
	isLong := pos.Side == types.SideLong

	// Directional momentum: positive means the position is moving our way.
	momentum := sig.Momentum
	score := sig.Score
	if !isLong {
		momentum = -momentum
		score = 1 - score
	}

	// Catastrophic collapse exits immediately, profitable or not.
	if momentum < m.cfg.CatastrophicMomentum {
		return types.ExitDecision{
			ShouldExit: true,
			Reason:     fmt.Sprintf("Catastrophic momentum drop: %.1f%%", sig.Momentum),
			Urgency:    types.UrgencyImmediate,
		}
	}

	profitable := pos.UnrealizedPnLPct > 0

	var reasons []string
	urgency := types.UrgencyNormal

	if profitable {
		// Let winners run; exit only on a major reversal.
		if momentum < m.cfg.ExitMomentumThreshold {
			reasons = append(reasons, fmt.Sprintf("Major momentum reversal: %.1f%%", sig.Momentum))
			urgency = types.UrgencyUrgent
		}
		if score < m.cfg.ExitScoreThreshold {
			reasons = append(reasons, fmt.Sprintf("Technical score collapse: %.2f", sig.Score))
		}
	} else {
		// Cut losses only on confirmed weakness.
		if momentum < m.cfg.ExitMomentumThreshold && sig.Weak {
			reasons = append(reasons, fmt.Sprintf("Momentum drop %.1f%% with weak technicals", sig.Momentum))
			urgency = types.UrgencyUrgent
		} else if score < m.cfg.ExitScoreThreshold && sig.Weak {
			reasons = append(reasons, fmt.Sprintf("Score collapse %.2f with weak technicals", sig.Score))
		}
	}

	if len(reasons) == 0 {
		return hold("Exit conditions not met")
	}
	return types.ExitDecision{
		ShouldExit: true,
		Reason:     strings.Join(reasons, ", "),
		Urgency:    urgency,
	}
}

func (m *Momentum) CalculatePositionSize(sig *types.TechnicalSignals, mc *types.MarketContext, maxAmount float64) int {
	return m.calculatePositionSize(sig, mc, maxAmount)
}

// State: momentum keeps no cross-cycle state.
func (m *Momentum) State() map[string]any { return nil }

func (m *Momentum) Restore(map[string]any) {}
