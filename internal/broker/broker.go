package broker

import (
	"context"
	"errors"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// Position as reported by the broker. Broker state is authoritative for
// quantity and average entry price.
type Position struct {
	Ticker        string
	Side          types.Side
	Quantity      int
	AvgEntryPrice float64
	CurrentPrice  float64
}

// Account is a snapshot of buying capacity.
type Account struct {
	Equity                float64
	BuyingPower           float64
	DayTradingBuyingPower float64
	MarginRequirement     float64
}

// Clock is the market session state.
type Clock struct {
	Status    types.MarketStatus
	NextOpen  time.Time
	NextClose time.Time
}

// BracketRequest is a three-leg order: entry plus linked stop-loss and
// take-profit children.
type BracketRequest struct {
	Ticker        string
	Side          types.Action
	Quantity      int
	EntryPrice    float64
	StopLoss      float64
	Target        float64
	ClientOrderID string
}

// Broker is the trading venue consumed by the execution core. All calls
// may block on the network and honor ctx deadlines.
type Broker interface {
	ListPositions(ctx context.Context) ([]Position, error)
	SubmitBracket(ctx context.Context, req BracketRequest) (orderID string, err error)
	ClosePosition(ctx context.Context, ticker string) (orderID string, err error)
	CancelOrder(ctx context.Context, orderID string) error
	OpenOrders(ctx context.Context, ticker string) ([]string, error)
	PollOrderUpdates(ctx context.Context, since time.Time) ([]types.OrderEvent, error)
	Account(ctx context.Context) (Account, error)
	MarketClock(ctx context.Context) (Clock, error)
	ValidateAsset(ctx context.Context, ticker string, side types.Action) error
}

// RejectionError marks a persistent broker rejection (invalid order,
// insufficient funds, untradable symbol). It is never retried.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return "order rejected: " + e.Reason }

// IsRejection reports whether err is a persistent broker rejection.
func IsRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}
