package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/cinar/indicator"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// Provider computes technical signals for a ticker with bounded latency.
type Provider interface {
	FetchSignals(ctx context.Context, ticker string) (*types.TechnicalSignals, error)
}

// VIXSource supplies a recent volatility index reading. Implementations
// may cache; a nil or failing source degrades to the neutral sentinel.
type VIXSource interface {
	VIX(ctx context.Context) (float64, error)
}

// CandleSource supplies recent daily bars for a symbol.
type CandleSource interface {
	RecentCandles(ctx context.Context, symbol string, n int) ([]types.Candle, error)
}

// minBars is the history needed for the slowest indicator (SMA 50) plus
// warmup for ATR and RSI.
const minBars = 60

// IndicatorProvider derives TechnicalSignals from daily candles.
type IndicatorProvider struct {
	candles CandleSource
}

var _ Provider = (*IndicatorProvider)(nil)

func NewIndicatorProvider(candles CandleSource) *IndicatorProvider {
	return &IndicatorProvider{candles: candles}
}

func (p *IndicatorProvider) FetchSignals(ctx context.Context, ticker string) (*types.TechnicalSignals, error) {
	candles, err := p.candles.RecentCandles(ctx, ticker, 250)
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s: %w", ticker, err)
	}
	if len(candles) < minBars {
		return nil, fmt.Errorf("%s: %d bars, need %d", ticker, len(candles), minBars)
	}

	closing := make([]float64, len(candles))
	high := make([]float64, len(candles))
	low := make([]float64, len(candles))
	for i, c := range candles {
		closing[i] = c.Close
		high[i] = c.High
		low[i] = c.Low
	}
	last := len(candles) - 1
	price := closing[last]

	sma20 := indicator.Sma(20, closing)
	sma50 := indicator.Sma(50, closing)
	_, rsi := indicator.Rsi(closing)
	bbMiddle, bbUpper, bbLower := indicator.BollingerBands(closing)
	_, atr := indicator.Atr(14, high, low, closing)

	momentum := 0.0
	if closing[last-1] != 0 {
		momentum = (price/closing[last-1] - 1) * 100
	}

	sig := &types.TechnicalSignals{
		Symbol:   ticker,
		Price:    price,
		ATR:      atr[last],
		Momentum: momentum,
		RSI:      rsi[last],
		SMA20:    sma20[last],
		SMA50:    sma50[last],
		BBUpper:  bbUpper[last],
		BBMiddle: bbMiddle[last],
		BBLower:  bbLower[last],
		Candles:  candles,
		AsOf:     time.Now().UTC(),
	}
	score(sig)
	return sig, nil
}

// score accumulates a raw technical score and normalizes it to 0..1,
// mirroring the moving-average / RSI / momentum weighting the analyst
// pipeline uses upstream.
func score(sig *types.TechnicalSignals) {
	raw := 0

	switch {
	case sig.Price > sig.SMA20 && sig.Price > sig.SMA50:
		raw += 40
		sig.Signals = append(sig.Signals,
			fmt.Sprintf("TA: Price above both MAs (%.2f > %.2f & %.2f)", sig.Price, sig.SMA20, sig.SMA50))
	case sig.Price > sig.SMA20 || sig.Price > sig.SMA50:
		raw += 10
	case sig.Price < sig.SMA20 && sig.Price < sig.SMA50:
		raw -= 30
		sig.Signals = append(sig.Signals,
			fmt.Sprintf("TA: Price below both MAs (%.2f < %.2f & %.2f)", sig.Price, sig.SMA20, sig.SMA50))
	default:
		raw -= 10
	}

	switch {
	case sig.RSI < 30:
		raw += 15
		sig.Signals = append(sig.Signals, fmt.Sprintf("TA: RSI oversold (%.1f)", sig.RSI))
	case sig.RSI > 70:
		raw -= 15
		sig.Signals = append(sig.Signals, fmt.Sprintf("TA: RSI overbought (%.1f)", sig.RSI))
	}

	switch {
	case sig.Momentum > 3:
		raw += 20
		sig.Signals = append(sig.Signals, fmt.Sprintf("TA: Strong momentum (%.1f%%)", sig.Momentum))
	case sig.Momentum < -3:
		raw -= 20
		sig.Signals = append(sig.Signals, fmt.Sprintf("TA: Negative momentum (%.1f%%)", sig.Momentum))
	}

	if sig.Price < sig.BBLower {
		sig.Signals = append(sig.Signals, "TA: Price below lower Bollinger band")
	} else if sig.Price > sig.BBUpper {
		sig.Signals = append(sig.Signals, "TA: Price above upper Bollinger band")
	}

	sig.RawScore = raw
	normalized := (float64(raw) + 75.0) / 150.0
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}
	sig.Score = normalized
	sig.Weak = normalized < 0.4 || (sig.Momentum < -3 && sig.Price < sig.SMA20)
}
