package strategy

import (
	"fmt"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// breakoutPosition is the bracket geometry recorded at entry, needed
// for exit evaluation and persisted across restarts.
type breakoutPosition struct {
	EntryPrice float64    `json:"entry_price"`
	StopLoss   float64    `json:"stop_loss"`
	Target     float64    `json:"target"`
	Side       types.Side `json:"side"`
}

// Breakout is an autonomous strategy: it detects consolidation and
// enters on a volume-confirmed range break, computing its own stop and
// target from the pattern height and ATR. When an agent recommendation
// is present it validates the direction and uses the agent's values.
type Breakout struct {
	base
	falseBreakouts map[string]int
	positions      map[string]breakoutPosition
}

var _ Strategy = (*Breakout)(nil)

func NewBreakout(cfg *Config) *Breakout {
	if cfg == nil {
		cfg = DefaultConfig()
		cfg.Name = "breakout"
		cfg.Description = "Breakout trading with consolidation detection"
	}
	return &Breakout{
		base:           base{cfg: cfg},
		falseBreakouts: make(map[string]int),
		positions:      make(map[string]breakoutPosition),
	}
}

func (b *Breakout) Name() string    { return "breakout" }
func (b *Breakout) Config() *Config { return b.cfg }

func (b *Breakout) EvaluateEntry(sig *types.TechnicalSignals, mc *types.MarketContext, agent *types.AgentRecommendation) types.EntryDecision {
	if passed, reason := b.checkBasicFilters(sig, mc); !passed {
		return reject(reason)
	}

	bc := &b.cfg.Breakout
	symbol := sig.Symbol
	price := sig.Price
	if price <= 0 {
		return reject("Invalid price")
	}
	if len(sig.Candles) < bc.ConsolidationPeriods+10 {
		return reject("Insufficient data for analysis")
	}

	// Consolidation window excludes the current bar so the breakout bar
	// itself does not widen the range it is breaking out of.
	n := len(sig.Candles)
	window := sig.Candles[n-1-bc.ConsolidationPeriods : n-1]
	latest := sig.Candles[n-1]

	resistance := window[0].High
	support := window[0].Low
	for _, c := range window[1:] {
		if c.High > resistance {
			resistance = c.High
		}
		if c.Low < support {
			support = c.Low
		}
	}

	rangePct := 1.0
	if support > 0 {
		rangePct = (resistance - support) / support
	}
	if rangePct > bc.ConsolidationRangePct {
		return reject(fmt.Sprintf("Price not in consolidation (range %.1f%%, max %.1f%%)",
			rangePct*100, bc.ConsolidationRangePct*100))
	}

	volumeRatio := volumeRatio(sig.Candles)
	if volumeRatio < bc.MinVolumeRatio {
		return reject(fmt.Sprintf("Volume too low (%.1fx vs %.1fx required)", volumeRatio, bc.MinVolumeRatio))
	}

	if sig.ATR < bc.MinATR {
		return reject(fmt.Sprintf("ATR too low (%.2f vs %.2f minimum)", sig.ATR, bc.MinATR))
	}

	if b.falseBreakouts[symbol] >= bc.MaxFalseBreakouts {
		return reject(fmt.Sprintf("Too many recent false breakouts (%d)", b.falseBreakouts[symbol]))
	}

	buffer := price * bc.BreakoutBufferPct

	if latest.Close > resistance+buffer {
		return b.enter(sig, mc, agent, types.SideLong, resistance, support, volumeRatio)
	}
	if latest.Close < support-buffer {
		return b.enter(sig, mc, agent, types.SideShort, resistance, support, volumeRatio)
	}
	return reject("No breakout detected")
}

func (b *Breakout) enter(sig *types.TechnicalSignals, mc *types.MarketContext, agent *types.AgentRecommendation,
	side types.Side, resistance, support, volumeRatio float64) types.EntryDecision {

	bc := &b.cfg.Breakout
	price := sig.Price

	var entry, stop, target float64
	var size int

	if agent != nil {
		if agent.TradeType != side {
			return reject(fmt.Sprintf("Agent trade_type mismatch: agent proposed %s but breakout is %s",
				agent.TradeType, side))
		}
		entry = agent.EntryPrice
		stop = agent.StopLoss
		target = agent.Target
		size = agent.Quantity
	} else {
		entry = price
		if side == types.SideLong {
			stop = support - sig.ATR
			target = price + (price-support)*bc.TargetMultiple
		} else {
			stop = resistance + sig.ATR
			target = price - (resistance-price)*bc.TargetMultiple
		}
		size = b.CalculatePositionSize(sig, mc, mc.BuyingPower)
	}

	if size <= 0 {
		return reject("Position size rounds to zero")
	}

	b.positions[sig.Symbol] = breakoutPosition{
		EntryPrice: entry,
		StopLoss:   stop,
		Target:     target,
		Side:       side,
	}

	direction := "above"
	level := resistance
	if side == types.SideShort {
		direction = "below"
		level = support
	}
	return types.EntryDecision{
		ShouldEnter:   true,
		Reason:        fmt.Sprintf("%s breakout %s %.2f with %.1fx volume", sideWord(side), direction, level, volumeRatio),
		SuggestedSize: size,
		EntryPrice:    entry,
		StopLoss:      stop,
		Target:        target,
	}
}

func sideWord(side types.Side) string {
	if side == types.SideShort {
		return "Bearish"
	}
	return "Bullish"
}

// volumeRatio compares the latest bar's volume to the 50-bar average.
func volumeRatio(candles []types.Candle) float64 {
	n := len(candles)
	tail := candles
	if n > 50 {
		tail = candles[n-50:]
	}
	sum := 0.0
	for _, c := range tail {
		sum += c.Vol
	}
	avg := sum / float64(len(tail))
	if avg <= 0 {
		return 0
	}
	return candles[n-1].Vol / avg
}

func (b *Breakout) EvaluateExit(pos *types.TrackedPosition, sig *types.TechnicalSignals, mc *types.MarketContext) types.ExitDecision {
	symbol := pos.Ticker
	price := sig.Price
	if price <= 0 {
		return hold("Invalid price")
	}

	data, ok := b.positions[symbol]
	if !ok {
		return hold("No position data found")
	}

	isLong := data.Side == types.SideLong

	stopHit := (isLong && price <= data.StopLoss && data.StopLoss > 0) ||
		(!isLong && price >= data.StopLoss && data.StopLoss > 0)
	if stopHit {
		b.falseBreakouts[symbol]++
		delete(b.positions, symbol)
		return types.ExitDecision{ShouldExit: true, Reason: "stop_loss", Urgency: types.UrgencyImmediate}
	}

	targetHit := (isLong && price >= data.Target && data.Target > 0) ||
		(!isLong && price <= data.Target && data.Target > 0)
	if targetHit {
		b.falseBreakouts[symbol] = 0
		delete(b.positions, symbol)
		return types.ExitDecision{ShouldExit: true, Reason: "target_reached", Urgency: types.UrgencyNormal}
	}

	// Failed breakout: price fell back inside the consolidation range.
	bc := &b.cfg.Breakout
	if len(sig.Candles) >= bc.ConsolidationPeriods+1 {
		n := len(sig.Candles)
		window := sig.Candles[n-1-bc.ConsolidationPeriods : n-1]
		resistance := window[0].High
		support := window[0].Low
		for _, c := range window[1:] {
			if c.High > resistance {
				resistance = c.High
			}
			if c.Low < support {
				support = c.Low
			}
		}
		if (isLong && price < resistance) || (!isLong && price > support) {
			delete(b.positions, symbol)
			return types.ExitDecision{ShouldExit: true, Reason: "breakout_failed", Urgency: types.UrgencyUrgent}
		}
	}

	return hold("Exit conditions not met")
}

func (b *Breakout) CalculatePositionSize(sig *types.TechnicalSignals, mc *types.MarketContext, maxAmount float64) int {
	return b.calculatePositionSize(sig, mc, maxAmount)
}

func (b *Breakout) State() map[string]any {
	positions := make(map[string]any, len(b.positions))
	for ticker, data := range b.positions {
		positions[ticker] = map[string]any{
			"entry_price": data.EntryPrice,
			"stop_loss":   data.StopLoss,
			"target":      data.Target,
			"side":        string(data.Side),
		}
	}
	counts := make(map[string]any, len(b.falseBreakouts))
	for ticker, count := range b.falseBreakouts {
		counts[ticker] = count
	}
	return map[string]any{
		"position_data":        positions,
		"false_breakout_count": counts,
	}
}

func (b *Breakout) Restore(state map[string]any) {
	b.positions = make(map[string]breakoutPosition)
	b.falseBreakouts = make(map[string]int)
	if state == nil {
		return
	}

	if raw, ok := state["position_data"].(map[string]any); ok {
		for ticker, v := range raw {
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			b.positions[ticker] = breakoutPosition{
				EntryPrice: asFloat(m["entry_price"]),
				StopLoss:   asFloat(m["stop_loss"]),
				Target:     asFloat(m["target"]),
				Side:       types.Side(asString(m["side"])),
			}
		}
	}
	if raw, ok := state["false_breakout_count"].(map[string]any); ok {
		for ticker, v := range raw {
			b.falseBreakouts[ticker] = int(asFloat(v))
		}
	}
}

// asFloat coerces JSON-roundtripped numbers.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
