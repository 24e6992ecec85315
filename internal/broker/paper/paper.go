package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// Broker is an in-memory trading venue. Bracket entries fill instantly
// at the requested entry price; the stop and target legs stay open until
// the position is closed. Used for DRY_RUN runs.
type Broker struct {
	mu        sync.Mutex
	seq       int
	equity    float64
	positions map[string]*broker.Position
	// open bracket leg ids per ticker
	openOrders map[string][]string
	pending    []types.OrderEvent
	clock      broker.Clock
	prices     map[string]float64
}

var _ broker.Broker = (*Broker)(nil)

func New(equity float64) *Broker {
	return &Broker{
		equity:     equity,
		positions:  make(map[string]*broker.Position),
		openOrders: make(map[string][]string),
		prices:     make(map[string]float64),
		clock: broker.Clock{
			Status:    types.MarketOpen,
			NextClose: time.Now().Add(4 * time.Hour),
		},
	}
}

// SetClock overrides the simulated market session.
func (b *Broker) SetClock(c broker.Clock) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = c
}

// SetPrice moves the simulated market price for ticker.
func (b *Broker) SetPrice(ticker string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[ticker] = price
	if p, ok := b.positions[ticker]; ok {
		p.CurrentPrice = price
	}
}

func (b *Broker) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s-%06d", prefix, b.seq)
}

func (b *Broker) ListPositions(ctx context.Context) ([]broker.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broker.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	return out, nil
}

func (b *Broker) SubmitBracket(ctx context.Context, req broker.BracketRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	side := types.SideLong
	if req.Side == types.ActionShort {
		side = types.SideShort
	}

	entryID := b.nextID("entry")
	b.positions[req.Ticker] = &broker.Position{
		Ticker:        req.Ticker,
		Side:          side,
		Quantity:      req.Quantity,
		AvgEntryPrice: req.EntryPrice,
		CurrentPrice:  req.EntryPrice,
	}
	b.prices[req.Ticker] = req.EntryPrice

	// Stop and target legs remain open until the position is closed.
	stopID := b.nextID("stop")
	targetID := b.nextID("target")
	b.openOrders[req.Ticker] = []string{stopID, targetID}

	b.pending = append(b.pending, types.OrderEvent{
		OrderID:   entryID,
		Ticker:    req.Ticker,
		Kind:      types.OrderFilled,
		FillPrice: req.EntryPrice,
		At:        time.Now().UTC(),
	})
	return entryID, nil
}

func (b *Broker) ClosePosition(ctx context.Context, ticker string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[ticker]
	if !ok {
		return "", &broker.RejectionError{Reason: "no open position in " + ticker}
	}
	price := b.prices[ticker]
	if price == 0 {
		price = p.AvgEntryPrice
	}
	delete(b.positions, ticker)
	delete(b.openOrders, ticker)

	closeID := b.nextID("close")
	b.pending = append(b.pending, types.OrderEvent{
		OrderID:   closeID,
		Ticker:    ticker,
		Kind:      types.OrderFilled,
		FillPrice: price,
		At:        time.Now().UTC(),
	})
	return closeID, nil
}

func (b *Broker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ticker, ids := range b.openOrders {
		for i, id := range ids {
			if id == orderID {
				b.openOrders[ticker] = append(ids[:i], ids[i+1:]...)
				b.pending = append(b.pending, types.OrderEvent{
					OrderID: orderID,
					Ticker:  ticker,
					Kind:    types.OrderCanceled,
					At:      time.Now().UTC(),
				})
				return nil
			}
		}
	}
	return nil
}

func (b *Broker) OpenOrders(ctx context.Context, ticker string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := b.openOrders[ticker]
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

func (b *Broker) PollOrderUpdates(ctx context.Context, since time.Time) ([]types.OrderEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out, nil
}

func (b *Broker) Account(ctx context.Context) (broker.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return broker.Account{
		Equity:                b.equity,
		BuyingPower:           b.equity * 2,
		DayTradingBuyingPower: b.equity * 4,
		MarginRequirement:     0.5,
	}, nil
}

func (b *Broker) MarketClock(ctx context.Context) (broker.Clock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clock, nil
}

func (b *Broker) ValidateAsset(ctx context.Context, ticker string, side types.Action) error {
	return nil
}
