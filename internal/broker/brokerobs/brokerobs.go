package brokerobs

import (
	"context"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/logger"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/trace"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// observableBroker wraps a Broker with logging and tracing.
type observableBroker struct {
	broker broker.Broker
}

var _ broker.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware.
func Wrap(b broker.Broker) broker.Broker {
	return &observableBroker{broker: b}
}

func (ob *observableBroker) ListPositions(ctx context.Context) ([]broker.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ListPositions")
	defer span.End()

	positions, err := ob.broker.ListPositions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list positions", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Positions listed", "count", len(positions))
	return positions, nil
}

func (ob *observableBroker) SubmitBracket(ctx context.Context, req broker.BracketRequest) (string, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SubmitBracket")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Submitting bracket order",
		"ticker", req.Ticker,
		"side", string(req.Side),
		"qty", req.Quantity,
		"entry", req.EntryPrice,
		"stop", req.StopLoss,
		"target", req.Target,
	)

	orderID, err := ob.broker.SubmitBracket(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to submit bracket order", err,
			"ticker", req.Ticker, "side", string(req.Side), "qty", req.Quantity)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Bracket order submitted", "ticker", req.Ticker, "order_id", orderID)
	return orderID, nil
}

func (ob *observableBroker) ClosePosition(ctx context.Context, ticker string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ClosePosition")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Closing position", "ticker", ticker)
	orderID, err := ob.broker.ClosePosition(ctx, ticker)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to close position", err, "ticker", ticker)
		return "", err
	}
	logger.InfoSkip(ctx, 1, "Close order submitted", "ticker", ticker, "order_id", orderID)
	return orderID, nil
}

func (ob *observableBroker) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := trace.StartSpan(ctx, "broker.CancelOrder")
	defer span.End()

	if err := ob.broker.CancelOrder(ctx, orderID); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel order", err, "order_id", orderID)
		return err
	}
	logger.DebugSkip(ctx, 1, "Order canceled", "order_id", orderID)
	return nil
}

func (ob *observableBroker) OpenOrders(ctx context.Context, ticker string) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OpenOrders")
	defer span.End()

	ids, err := ob.broker.OpenOrders(ctx, ticker)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch open orders", err, "ticker", ticker)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Open orders fetched", "ticker", ticker, "count", len(ids))
	return ids, nil
}

func (ob *observableBroker) PollOrderUpdates(ctx context.Context, since time.Time) ([]types.OrderEvent, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PollOrderUpdates")
	defer span.End()

	updates, err := ob.broker.PollOrderUpdates(ctx, since)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to poll order updates", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Order updates polled", "count", len(updates))
	return updates, nil
}

func (ob *observableBroker) Account(ctx context.Context) (broker.Account, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Account")
	defer span.End()

	acct, err := ob.broker.Account(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account", err)
		return broker.Account{}, err
	}
	logger.DebugSkip(ctx, 1, "Account fetched", "equity", acct.Equity, "buying_power", acct.BuyingPower)
	return acct, nil
}

func (ob *observableBroker) MarketClock(ctx context.Context) (broker.Clock, error) {
	ctx, span := trace.StartSpan(ctx, "broker.MarketClock")
	defer span.End()

	clock, err := ob.broker.MarketClock(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch market clock", err)
		return broker.Clock{}, err
	}
	logger.DebugSkip(ctx, 1, "Market clock fetched", "status", string(clock.Status))
	return clock, nil
}

func (ob *observableBroker) ValidateAsset(ctx context.Context, ticker string, side types.Action) error {
	ctx, span := trace.StartSpan(ctx, "broker.ValidateAsset")
	defer span.End()

	if err := ob.broker.ValidateAsset(ctx, ticker, side); err != nil {
		logger.WarnSkip(ctx, 1, "Asset validation failed", "ticker", ticker, "error", err)
		return err
	}
	return nil
}
