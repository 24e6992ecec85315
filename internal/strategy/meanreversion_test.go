package strategy

import (
	"strings"
	"testing"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// capitulationCandles builds a flat 100-close series ending in one
// high-volume flush down to lastClose.
func capitulationCandles(n int, lastClose float64) []types.Candle {
	out := make([]types.Candle, 0, n)
	ts := time.Now().UTC().AddDate(0, 0, -n)
	for i := 0; i < n-1; i++ {
		out = append(out, types.Candle{
			Ts:    ts.AddDate(0, 0, i).Unix(),
			Open:  100,
			High:  101,
			Low:   99,
			Close: 100,
			Vol:   1_000_000,
		})
	}
	out = append(out, types.Candle{
		Ts:    ts.AddDate(0, 0, n-1).Unix(),
		Open:  100,
		High:  100,
		Low:   lastClose - 1,
		Close: lastClose,
		Vol:   2_000_000,
	})
	return out
}

func oversoldSignals(ticker string) *types.TechnicalSignals {
	return &types.TechnicalSignals{
		Symbol:   ticker,
		Price:    90,
		ATR:      2.0,
		RSI:      25,
		BBUpper:  108,
		BBMiddle: 100,
		BBLower:  92,
		Candles:  capitulationCandles(70, 90),
		AsOf:     time.Now().UTC(),
	}
}

func TestMeanReversionOversoldLongEntry(t *testing.T) {
	m := NewMeanReversion(nil)
	d := m.EvaluateEntry(oversoldSignals("AAPL"), openContext(), nil)

	if !d.ShouldEnter {
		t.Fatalf("expected oversold entry: %s", d.Reason)
	}
	if !strings.Contains(d.Reason, "Oversold") {
		t.Errorf("unexpected reason: %s", d.Reason)
	}
	if d.EntryPrice != 90 {
		t.Errorf("expected entry at price, got %f", d.EntryPrice)
	}
	// std = (108-100)/2 = 4; stop = 90 - 4*3 = 78.
	if d.StopLoss != 78 {
		t.Errorf("expected stop 78, got %f", d.StopLoss)
	}
	if d.Target != 100 {
		t.Errorf("expected target at the middle band, got %f", d.Target)
	}
	if err := d.CheckSafety(); err != nil {
		t.Errorf("entry violates safety invariant: %v", err)
	}
}

func TestMeanReversionRejectsNeutralTape(t *testing.T) {
	m := NewMeanReversion(nil)
	sig := oversoldSignals("AAPL")
	sig.RSI = 50
	sig.Price = 100
	sig.Candles = capitulationCandles(70, 100)

	d := m.EvaluateEntry(sig, openContext(), nil)
	if d.ShouldEnter {
		t.Error("neutral conditions must not enter")
	}
	if !strings.Contains(d.Reason, "RSI neutral") {
		t.Errorf("expected structured rejection, got %s", d.Reason)
	}
}

func TestMeanReversionRejectsLowVolume(t *testing.T) {
	m := NewMeanReversion(nil)
	sig := oversoldSignals("AAPL")
	sig.Candles[len(sig.Candles)-1].Vol = 1_000_000

	d := m.EvaluateEntry(sig, openContext(), nil)
	if d.ShouldEnter {
		t.Error("expected rejection without capitulation volume")
	}
}

func mrPosition(side types.Side, entry float64, openedAt time.Time) *types.TrackedPosition {
	return &types.TrackedPosition{
		Ticker:        "AAPL",
		Side:          side,
		Quantity:      50,
		AvgEntryPrice: entry,
		OpenedAt:      openedAt,
	}
}

func TestMeanReversionExitStopLoss(t *testing.T) {
	m := NewMeanReversion(nil)
	sig := oversoldSignals("AAPL")
	sig.Price = 77 // below entry 90 - 12

	d := m.EvaluateExit(mrPosition(types.SideLong, 90, time.Now().UTC()), sig, openContext())
	if !d.ShouldExit || d.Reason != "stop_loss" || d.Urgency != types.UrgencyImmediate {
		t.Errorf("expected immediate stop_loss, got %+v", d)
	}
}

func TestMeanReversionExitOnReversionToMean(t *testing.T) {
	m := NewMeanReversion(nil)
	sig := oversoldSignals("AAPL")
	sig.Price = 100.5 // at/above the middle band
	sig.RSI = 45

	d := m.EvaluateExit(mrPosition(types.SideLong, 90, time.Now().UTC()), sig, openContext())
	if !d.ShouldExit || d.Reason != "target_reached" {
		t.Errorf("expected target_reached, got %+v", d)
	}
}

func TestMeanReversionExitOnRSINormalization(t *testing.T) {
	m := NewMeanReversion(nil)
	sig := oversoldSignals("AAPL")
	sig.Price = 95
	sig.RSI = 52

	d := m.EvaluateExit(mrPosition(types.SideLong, 90, time.Now().UTC()), sig, openContext())
	if !d.ShouldExit || d.Reason != "rsi_normalized" {
		t.Errorf("expected rsi_normalized, got %+v", d)
	}
}

func TestMeanReversionExitOnMaxHold(t *testing.T) {
	m := NewMeanReversion(nil)
	sig := oversoldSignals("AAPL")
	sig.Price = 95
	sig.RSI = 65 // normalized but not near the exit threshold

	stale := time.Now().UTC().Add(-50 * time.Hour)
	d := m.EvaluateExit(mrPosition(types.SideLong, 90, stale), sig, openContext())
	if !d.ShouldExit || !strings.Contains(d.Reason, "max_hold") {
		t.Errorf("expected max_hold exit, got %+v", d)
	}
}

func TestMeanReversionExitHoldsInsideBand(t *testing.T) {
	m := NewMeanReversion(nil)
	sig := oversoldSignals("AAPL")
	sig.Price = 95
	sig.RSI = 65

	d := m.EvaluateExit(mrPosition(types.SideLong, 90, time.Now().UTC()), sig, openContext())
	if d.ShouldExit {
		t.Errorf("expected hold, got %+v", d)
	}
}

func TestMeanReversionShortExits(t *testing.T) {
	m := NewMeanReversion(nil)
	sig := oversoldSignals("AAPL")

	// Short from 110: stop at 110 + 12 = 122.
	sig.Price = 123
	sig.RSI = 75
	d := m.EvaluateExit(mrPosition(types.SideShort, 110, time.Now().UTC()), sig, openContext())
	if !d.ShouldExit || d.Reason != "stop_loss" {
		t.Errorf("expected short stop_loss, got %+v", d)
	}

	// Reversion down through the mean takes profit.
	sig.Price = 99
	sig.RSI = 65
	d = m.EvaluateExit(mrPosition(types.SideShort, 110, time.Now().UTC()), sig, openContext())
	if !d.ShouldExit || d.Reason != "target_reached" {
		t.Errorf("expected short target_reached, got %+v", d)
	}
}

func TestMeanReversionStateRoundTrip(t *testing.T) {
	m := NewMeanReversion(nil)
	entered := time.Now().UTC().Truncate(time.Second)
	m.entryTimes["AAPL"] = entered

	state := m.State()

	restored := NewMeanReversion(nil)
	restored.Restore(state)
	got, ok := restored.entryTimes["AAPL"]
	if !ok {
		t.Fatal("entry time lost")
	}
	if !got.Equal(entered) {
		t.Errorf("entry time mismatch: %v vs %v", got, entered)
	}
}
