package alpaca

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/signals"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// CandleSource serves daily bars from the Alpaca market data API.
type CandleSource struct {
	md *marketdata.Client
}

var _ signals.CandleSource = (*CandleSource)(nil)

// NewCandleSource builds a candle source sharing the trading client's
// credentials.
func NewCandleSource(apiKey, apiSecret string) *CandleSource {
	return &CandleSource{
		md: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
	}
}

func (c *CandleSource) RecentCandles(ctx context.Context, symbol string, n int) ([]types.Candle, error) {
	// Request a calendar window wide enough to cover n trading days.
	start := time.Now().AddDate(0, 0, -(n*7/5 + 10))

	bars, err := c.md.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      start,
		TotalLimit: n,
		Adjustment: marketdata.Split,
	})
	if err != nil {
		return nil, fmt.Errorf("get bars %s: %w", symbol, err)
	}

	out := make([]types.Candle, 0, len(bars))
	for _, b := range bars {
		out = append(out, types.Candle{
			Ts:    b.Timestamp.Unix(),
			Open:  b.Open,
			High:  b.High,
			Low:   b.Low,
			Close: b.Close,
			Vol:   float64(b.Volume),
		})
	}
	return out, nil
}
