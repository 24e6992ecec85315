package paper

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/signals"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// CandleSource generates deterministic synthetic daily bars so DRY_RUN
// sessions work without market-data credentials. The series is a
// seeded sine-drift walk: the same symbol always yields the same data.
type CandleSource struct{}

var _ signals.CandleSource = (*CandleSource)(nil)

func NewCandleSource() *CandleSource {
	return &CandleSource{}
}

func (s *CandleSource) RecentCandles(ctx context.Context, symbol string, n int) ([]types.Candle, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	seed := float64(h.Sum32()%1000)/10.0 + 20.0 // base price 20..120

	day := time.Now().UTC().Truncate(24 * time.Hour)
	out := make([]types.Candle, n)
	price := seed
	for i := 0; i < n; i++ {
		phase := float64(i) * 0.21
		drift := math.Sin(phase)*seed*0.01 + math.Sin(phase*0.37)*seed*0.004
		open := price
		closing := seed + drift
		high := math.Max(open, closing) * 1.008
		low := math.Min(open, closing) * 0.992
		vol := 1_000_000 + 400_000*math.Abs(math.Sin(phase*1.7))

		ts := day.AddDate(0, 0, -(n - 1 - i))
		out[i] = types.Candle{
			Ts:    ts.Unix(),
			Open:  open,
			High:  high,
			Low:   low,
			Close: closing,
			Vol:   vol,
		}
		price = closing
	}
	return out, nil
}
