package strategy

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// MeanReversion is an autonomous strategy: it enters long on oversold
// extremes below the lower Bollinger band and short on overbought
// extremes above the upper band, targeting reversion to the mean.
type MeanReversion struct {
	base
	entryTimes map[string]time.Time
}

var _ Strategy = (*MeanReversion)(nil)

func NewMeanReversion(cfg *Config) *MeanReversion {
	if cfg == nil {
		cfg = DefaultConfig()
		cfg.Name = "mean_reversion"
		cfg.Description = "Mean reversion with RSI and Bollinger Bands"
	}
	return &MeanReversion{
		base:       base{cfg: cfg},
		entryTimes: make(map[string]time.Time),
	}
}

func (m *MeanReversion) Name() string    { return "mean_reversion" }
func (m *MeanReversion) Config() *Config { return m.cfg }

func (m *MeanReversion) EvaluateEntry(sig *types.TechnicalSignals, mc *types.MarketContext, agent *types.AgentRecommendation) types.EntryDecision {
	if passed, reason := m.checkBasicFilters(sig, mc); !passed {
		return reject(reason)
	}

	mr := &m.cfg.MeanReversion
	price := sig.Price
	if price <= 0 {
		return reject("Invalid price")
	}
	required := mr.TrendFilterPeriod + 10
	if len(sig.Candles) < required {
		return reject(fmt.Sprintf("Insufficient data: need %d bars, have %d", required, len(sig.Candles)))
	}

	vr := volumeRatio(sig.Candles)
	if vr < mr.MinVolumeRatio {
		return reject(fmt.Sprintf("Insufficient volume: ratio %.2f < %.2f", vr, mr.MinVolumeRatio))
	}

	zScore := m.zScore(sig.Candles)
	trendStrength := m.trendStrength(sig.Candles)

	// One standard deviation in price units (band half-width over
	// bb_std); the stop sits stop_loss_std
	// standard deviations beyond the entry extreme.
	std := (sig.BBUpper - sig.BBMiddle) / mr.BBStd

	oversold := sig.RSI < mr.RSIOversold && price < sig.BBLower &&
		zScore < -mr.DeviationThreshold && trendStrength > -0.10
	overbought := sig.RSI > mr.RSIOverbought && price > sig.BBUpper &&
		zScore > mr.DeviationThreshold && trendStrength < 0.10

	switch {
	case oversold:
		stop := price - std*mr.StopLossStd
		size := m.CalculatePositionSize(sig, mc, mc.BuyingPower*mr.RiskPctPerTrade)
		if size <= 0 {
			return reject("Position size rounds to zero")
		}
		m.entryTimes[sig.Symbol] = time.Now().UTC()
		return types.EntryDecision{
			ShouldEnter:   true,
			Reason:        fmt.Sprintf("Oversold: RSI=%.1f, Z-score=%.2f, below lower band", sig.RSI, zScore),
			SuggestedSize: size,
			EntryPrice:    price,
			StopLoss:      stop,
			Target:        sig.BBMiddle,
		}
	case overbought:
		stop := price + std*mr.StopLossStd
		size := m.CalculatePositionSize(sig, mc, mc.BuyingPower*mr.RiskPctPerTrade)
		if size <= 0 {
			return reject("Position size rounds to zero")
		}
		m.entryTimes[sig.Symbol] = time.Now().UTC()
		return types.EntryDecision{
			ShouldEnter:   true,
			Reason:        fmt.Sprintf("Overbought: RSI=%.1f, Z-score=%.2f, above upper band", sig.RSI, zScore),
			SuggestedSize: size,
			EntryPrice:    price,
			StopLoss:      stop,
			Target:        sig.BBMiddle,
		}
	}

	var reasons []string
	if sig.RSI >= mr.RSIOversold && sig.RSI <= mr.RSIOverbought {
		reasons = append(reasons, fmt.Sprintf("RSI neutral (%.1f)", sig.RSI))
	}
	if price >= sig.BBLower && price <= sig.BBUpper {
		reasons = append(reasons, "Price within Bollinger Bands")
	}
	if math.Abs(zScore) <= mr.DeviationThreshold {
		reasons = append(reasons, fmt.Sprintf("Z-score within threshold (%.2f)", zScore))
	}
	if trendStrength <= -0.10 {
		reasons = append(reasons, fmt.Sprintf("Strong downtrend (%.1f%%)", trendStrength*100))
	}
	if trendStrength >= 0.10 {
		reasons = append(reasons, fmt.Sprintf("Strong uptrend (%.1f%%)", trendStrength*100))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "No mean reversion setup")
	}
	return reject(strings.Join(reasons, "; "))
}

func (m *MeanReversion) EvaluateExit(pos *types.TrackedPosition, sig *types.TechnicalSignals, mc *types.MarketContext) types.ExitDecision {
	mr := &m.cfg.MeanReversion
	price := sig.Price
	if price <= 0 {
		return hold("Invalid price")
	}

	std := (sig.BBUpper - sig.BBMiddle) / mr.BBStd
	isLong := pos.Side == types.SideLong

	stopLong := pos.AvgEntryPrice - std*mr.StopLossStd
	stopShort := pos.AvgEntryPrice + std*mr.StopLossStd
	if (isLong && price <= stopLong) || (!isLong && price >= stopShort) {
		delete(m.entryTimes, pos.Ticker)
		return types.ExitDecision{ShouldExit: true, Reason: "stop_loss", Urgency: types.UrgencyImmediate}
	}

	target := sig.BBMiddle
	if (isLong && price >= target) || (!isLong && price <= target) {
		delete(m.entryTimes, pos.Ticker)
		return types.ExitDecision{ShouldExit: true, Reason: "target_reached", Urgency: types.UrgencyNormal}
	}

	rsiNormalized := sig.RSI > mr.RSIOversold && sig.RSI < mr.RSIOverbought
	crossedMiddle := math.Abs(sig.RSI-mr.RSIExitThreshold) < 5
	if rsiNormalized && crossedMiddle {
		delete(m.entryTimes, pos.Ticker)
		return types.ExitDecision{ShouldExit: true, Reason: "rsi_normalized", Urgency: types.UrgencyNormal}
	}

	entered, ok := m.entryTimes[pos.Ticker]
	if !ok {
		entered = pos.OpenedAt
	}
	if time.Since(entered) > time.Duration(mr.MaxHoldHours)*time.Hour {
		delete(m.entryTimes, pos.Ticker)
		return types.ExitDecision{
			ShouldExit: true,
			Reason:     fmt.Sprintf("max_hold: held over %dh without reversion", mr.MaxHoldHours),
			Urgency:    types.UrgencyNormal,
		}
	}

	return hold("Exit conditions not met")
}

func (m *MeanReversion) zScore(candles []types.Candle) float64 {
	mr := &m.cfg.MeanReversion
	n := len(candles)
	period := mr.MeanPeriod
	if n < period {
		return 0
	}
	tail := candles[n-period:]
	mean := 0.0
	for _, c := range tail {
		mean += c.Close
	}
	mean /= float64(period)

	variance := 0.0
	for _, c := range tail {
		d := c.Close - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))
	if std == 0 {
		return 0
	}
	return (candles[n-1].Close - mean) / std
}

// trendStrength compares the 20-bar mean to the trend-filter mean;
// strongly trending tapes are not reversion candidates.
func (m *MeanReversion) trendStrength(candles []types.Candle) float64 {
	mr := &m.cfg.MeanReversion
	n := len(candles)
	if n < mr.TrendFilterPeriod {
		return 0
	}

	smaLong := 0.0
	for _, c := range candles[n-mr.TrendFilterPeriod:] {
		smaLong += c.Close
	}
	smaLong /= float64(mr.TrendFilterPeriod)

	smaShort := 0.0
	for _, c := range candles[n-20:] {
		smaShort += c.Close
	}
	smaShort /= 20

	if smaLong == 0 {
		return 0
	}
	return (smaShort - smaLong) / smaLong
}

func (m *MeanReversion) CalculatePositionSize(sig *types.TechnicalSignals, mc *types.MarketContext, maxAmount float64) int {
	return m.calculatePositionSize(sig, mc, maxAmount)
}

func (m *MeanReversion) State() map[string]any {
	times := make(map[string]any, len(m.entryTimes))
	for ticker, t := range m.entryTimes {
		times[ticker] = t.UTC().Format(time.RFC3339)
	}
	return map[string]any{"entry_times": times}
}

func (m *MeanReversion) Restore(state map[string]any) {
	m.entryTimes = make(map[string]time.Time)
	if state == nil {
		return
	}
	raw, ok := state["entry_times"].(map[string]any)
	if !ok {
		return
	}
	for ticker, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			m.entryTimes[ticker] = t
		}
	}
}
