package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// fakeBroker is a scriptable broker for engine and order tests.
type fakeBroker struct {
	mu sync.Mutex

	positions []broker.Position
	listErrs  []error // consumed one per ListPositions call

	submitted []broker.BracketRequest
	submitErr error

	closed   []string
	closeErr error

	canceled []string
	open     map[string][]string

	updates []types.OrderEvent

	account broker.Account
	clock   broker.Clock

	validateErr error
	seq         int
}

var _ broker.Broker = (*fakeBroker)(nil)

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		open: make(map[string][]string),
		account: broker.Account{
			Equity:      100_000,
			BuyingPower: 50_000,
		},
		clock: broker.Clock{
			Status:    types.MarketOpen,
			NextClose: time.Now().Add(4 * time.Hour),
		},
	}
}

func (b *fakeBroker) ListPositions(ctx context.Context) ([]broker.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.listErrs) > 0 {
		err := b.listErrs[0]
		b.listErrs = b.listErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	out := make([]broker.Position, len(b.positions))
	copy(out, b.positions)
	return out, nil
}

func (b *fakeBroker) SubmitBracket(ctx context.Context, req broker.BracketRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return "", b.submitErr
	}
	b.submitted = append(b.submitted, req)
	b.seq++
	return fmt.Sprintf("order-%d", b.seq), nil
}

func (b *fakeBroker) ClosePosition(ctx context.Context, ticker string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return "", b.closeErr
	}
	b.closed = append(b.closed, ticker)
	for i, p := range b.positions {
		if p.Ticker == ticker {
			b.positions = append(b.positions[:i], b.positions[i+1:]...)
			break
		}
	}
	b.seq++
	return fmt.Sprintf("close-%d", b.seq), nil
}

func (b *fakeBroker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.canceled = append(b.canceled, orderID)
	for ticker, ids := range b.open {
		for i, id := range ids {
			if id == orderID {
				b.open[ticker] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (b *fakeBroker) OpenOrders(ctx context.Context, ticker string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := b.open[ticker]
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

func (b *fakeBroker) PollOrderUpdates(ctx context.Context, since time.Time) ([]types.OrderEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.updates
	b.updates = nil
	return out, nil
}

func (b *fakeBroker) Account(ctx context.Context) (broker.Account, error) {
	return b.account, nil
}

func (b *fakeBroker) MarketClock(ctx context.Context) (broker.Clock, error) {
	return b.clock, nil
}

func (b *fakeBroker) ValidateAsset(ctx context.Context, ticker string, side types.Action) error {
	return b.validateErr
}

func (b *fakeBroker) submittedFor(ticker string) []broker.BracketRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []broker.BracketRequest
	for _, req := range b.submitted {
		if req.Ticker == ticker {
			out = append(out, req)
		}
	}
	return out
}
