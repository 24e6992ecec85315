package alpaca

import (
	"context"
	"errors"
	"fmt"
	"time"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/logger"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// Params configures the Alpaca adapter.
type Params struct {
	APIKey          string
	APISecret       string
	BaseURL         string // paper or live endpoint
	Timeout         time.Duration
	RateLimitPerMin int
	MaxRetries      int
}

// Client adapts the Alpaca trading API to the broker.Broker interface.
// All calls are rate limited; transient failures retry with exponential
// backoff, persistent rejections surface as *broker.RejectionError.
type Client struct {
	api        *alpacaapi.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
}

var _ broker.Broker = (*Client)(nil)

func New(p Params) *Client {
	if p.Timeout == 0 {
		p.Timeout = 30 * time.Second
	}
	if p.RateLimitPerMin == 0 {
		p.RateLimitPerMin = 200
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}

	api := alpacaapi.NewClient(alpacaapi.ClientOpts{
		APIKey:    p.APIKey,
		APISecret: p.APISecret,
		BaseURL:   p.BaseURL,
	})

	return &Client{
		api:        api,
		limiter:    rate.NewLimiter(rate.Limit(float64(p.RateLimitPerMin)/60.0), 10),
		timeout:    p.Timeout,
		maxRetries: p.MaxRetries,
	}
}

// call runs op under the rate limiter with retry on transient errors.
func (c *Client) call(ctx context.Context, name string, op func() error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	attempt := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		if err := op(); err != nil {
			return classify(err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = c.timeout

	err := backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.maxRetries-1)), ctx))
	if err != nil {
		logger.Debug(ctx, "Broker call failed", "call", name, "error", err)
	}
	return err
}

// classify splits Alpaca API errors: 4xx order problems are permanent
// rejections, rate limits and server errors retry.
func classify(err error) error {
	var apiErr *alpacaapi.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429 || apiErr.StatusCode >= 500:
			return err // transient, retry
		case apiErr.StatusCode >= 400:
			return backoff.Permanent(&broker.RejectionError{Reason: apiErr.Message})
		}
	}
	return err
}

func (c *Client) ListPositions(ctx context.Context) ([]broker.Position, error) {
	var raw []alpacaapi.Position
	err := c.call(ctx, "ListPositions", func() error {
		var e error
		raw, e = c.api.GetPositions()
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	out := make([]broker.Position, 0, len(raw))
	for _, p := range raw {
		side := types.SideLong
		if p.Side == "short" {
			side = types.SideShort
		}
		qty := int(p.Qty.Abs().IntPart())
		current := 0.0
		if p.CurrentPrice != nil {
			current, _ = p.CurrentPrice.Float64()
		}
		entry, _ := p.AvgEntryPrice.Float64()
		out = append(out, broker.Position{
			Ticker:        p.Symbol,
			Side:          side,
			Quantity:      qty,
			AvgEntryPrice: entry,
			CurrentPrice:  current,
		})
	}
	return out, nil
}

func (c *Client) SubmitBracket(ctx context.Context, req broker.BracketRequest) (string, error) {
	qty := decimal.NewFromInt(int64(req.Quantity))
	limit := decimal.NewFromFloat(req.EntryPrice)
	stop := decimal.NewFromFloat(req.StopLoss)
	target := decimal.NewFromFloat(req.Target)

	side := alpacaapi.Buy
	if req.Side == types.ActionShort || req.Side == types.ActionSell {
		side = alpacaapi.Sell
	}

	var order *alpacaapi.Order
	err := c.call(ctx, "SubmitBracket", func() error {
		var e error
		order, e = c.api.PlaceOrder(alpacaapi.PlaceOrderRequest{
			Symbol:        req.Ticker,
			Qty:           &qty,
			Side:          side,
			Type:          alpacaapi.Limit,
			TimeInForce:   alpacaapi.GTC,
			LimitPrice:    &limit,
			OrderClass:    alpacaapi.Bracket,
			TakeProfit:    &alpacaapi.TakeProfit{LimitPrice: &target},
			StopLoss:      &alpacaapi.StopLoss{StopPrice: &stop},
			ClientOrderID: req.ClientOrderID,
		})
		return e
	})
	if err != nil {
		return "", fmt.Errorf("submit bracket %s: %w", req.Ticker, err)
	}
	return order.ID, nil
}

func (c *Client) ClosePosition(ctx context.Context, ticker string) (string, error) {
	var order *alpacaapi.Order
	err := c.call(ctx, "ClosePosition", func() error {
		var e error
		order, e = c.api.ClosePosition(ticker, alpacaapi.ClosePositionRequest{})
		return e
	})
	if err != nil {
		return "", fmt.Errorf("close position %s: %w", ticker, err)
	}
	return order.ID, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	err := c.call(ctx, "CancelOrder", func() error {
		return c.api.CancelOrder(orderID)
	})
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

func (c *Client) OpenOrders(ctx context.Context, ticker string) ([]string, error) {
	var raw []alpacaapi.Order
	err := c.call(ctx, "OpenOrders", func() error {
		var e error
		raw, e = c.api.GetOrders(alpacaapi.GetOrdersRequest{
			Status:  "open",
			Symbols: []string{ticker},
			Limit:   100,
			Nested:  true,
		})
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("open orders %s: %w", ticker, err)
	}
	ids := make([]string, 0, len(raw))
	for _, o := range raw {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (c *Client) PollOrderUpdates(ctx context.Context, since time.Time) ([]types.OrderEvent, error) {
	var raw []alpacaapi.Order
	err := c.call(ctx, "PollOrderUpdates", func() error {
		var e error
		raw, e = c.api.GetOrders(alpacaapi.GetOrdersRequest{
			Status: "closed",
			After:  since,
			Limit:  500,
		})
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("poll order updates: %w", err)
	}

	out := make([]types.OrderEvent, 0, len(raw))
	for _, o := range raw {
		ev := types.OrderEvent{
			OrderID: o.ID,
			Ticker:  o.Symbol,
			At:      o.UpdatedAt,
		}
		switch o.Status {
		case "filled":
			ev.Kind = types.OrderFilled
			if o.FilledAvgPrice != nil {
				ev.FillPrice, _ = o.FilledAvgPrice.Float64()
			}
		case "rejected":
			ev.Kind = types.OrderRejected
			ev.Reason = "rejected by broker"
		case "canceled":
			ev.Kind = types.OrderCanceled
		default:
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (c *Client) Account(ctx context.Context) (broker.Account, error) {
	var acct *alpacaapi.Account
	err := c.call(ctx, "Account", func() error {
		var e error
		acct, e = c.api.GetAccount()
		return e
	})
	if err != nil {
		return broker.Account{}, fmt.Errorf("account: %w", err)
	}

	equity, _ := acct.Equity.Float64()
	bp, _ := acct.BuyingPower.Float64()
	dtbp, _ := acct.DaytradingBuyingPower.Float64()
	margin, _ := acct.InitialMargin.Float64()
	return broker.Account{
		Equity:                equity,
		BuyingPower:           bp,
		DayTradingBuyingPower: dtbp,
		MarginRequirement:     margin,
	}, nil
}

func (c *Client) MarketClock(ctx context.Context) (broker.Clock, error) {
	var clock *alpacaapi.Clock
	err := c.call(ctx, "MarketClock", func() error {
		var e error
		clock, e = c.api.GetClock()
		return e
	})
	if err != nil {
		return broker.Clock{}, fmt.Errorf("market clock: %w", err)
	}

	return broker.Clock{
		Status:    sessionStatus(clock.Timestamp, clock.IsOpen),
		NextOpen:  clock.NextOpen,
		NextClose: clock.NextClose,
	}, nil
}

// sessionStatus maps the clock onto the engine's four-valued market
// status using US equity session boundaries in New York time.
func sessionStatus(now time.Time, isOpen bool) types.MarketStatus {
	if isOpen {
		return types.MarketOpen
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return types.MarketClosed
	}
	ny := now.In(loc)
	minutes := ny.Hour()*60 + ny.Minute()
	switch {
	case minutes >= 4*60 && minutes < 9*60+30:
		return types.MarketPreMarket
	case minutes >= 16*60 && minutes < 20*60:
		return types.MarketAfterHours
	default:
		return types.MarketClosed
	}
}

func (c *Client) ValidateAsset(ctx context.Context, ticker string, side types.Action) error {
	var asset *alpacaapi.Asset
	err := c.call(ctx, "ValidateAsset", func() error {
		var e error
		asset, e = c.api.GetAsset(ticker)
		return e
	})
	if err != nil {
		return fmt.Errorf("validate asset %s: %w", ticker, err)
	}
	if !asset.Tradable {
		return &broker.RejectionError{Reason: ticker + " is not tradable"}
	}
	if side == types.ActionShort && !asset.Shortable {
		return &broker.RejectionError{Reason: ticker + " cannot be shorted"}
	}
	return nil
}
