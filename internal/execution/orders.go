package execution

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/events"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/logger"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/metrics"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// OrderManager drives order submission and lifecycle at the broker.
//
// Analyze mode: submissions and closes return a synthetic would-submit
// result without touching the broker and emit a dry_run event. Owned by
// the engine loop (single writer).
type OrderManager struct {
	broker      broker.Broker
	emitter     *events.Emitter
	analyzeMode bool

	// outstanding order ids per ticker; persisted across restarts
	pending map[string][]string
	// rejection timestamps per ticker for the cooldown threshold
	rejects  map[string][]time.Time
	lastPoll time.Time
}

func NewOrderManager(b broker.Broker, emitter *events.Emitter, analyzeMode bool) *OrderManager {
	return &OrderManager{
		broker:      b,
		emitter:     emitter,
		analyzeMode: analyzeMode,
		pending:     make(map[string][]string),
		rejects:     make(map[string][]time.Time),
		lastPoll:    time.Now().UTC(),
	}
}

// SetAnalyzeMode toggles dry-run behavior.
func (om *OrderManager) SetAnalyzeMode(on bool) { om.analyzeMode = on }

// AnalyzeMode reports whether dry-run mode is active.
func (om *OrderManager) AnalyzeMode() bool { return om.analyzeMode }

// roundPrice rounds to 2 decimals above $1, 4 below.
func roundPrice(price float64) float64 {
	if price > 1 {
		return math.Round(price*100) / 100
	}
	return math.Round(price*10000) / 10000
}

func clientOrderID(params types.OrderParams) string {
	return fmt.Sprintf("%s_%s_%s_%s", params.StrategyName, params.Ticker, params.Side, uuid.NewString()[:8])
}

// SubmitBracketOrder validates and submits a bracket order. In analyze
// mode it emits dry_run and returns a synthetic order id.
func (om *OrderManager) SubmitBracketOrder(ctx context.Context, params types.OrderParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	entry := roundPrice(params.EntryPrice)
	stop := roundPrice(params.StopLoss)
	target := roundPrice(params.Target)

	if om.analyzeMode {
		logger.Info(ctx, "Analyze mode, skipping bracket order",
			"ticker", params.Ticker, "side", string(params.Side), "qty", params.Quantity)
		om.emitter.Emit(events.New(events.DryRun, params.Ticker, map[string]any{
			"action":   "submit_bracket",
			"side":     string(params.Side),
			"quantity": params.Quantity,
			"entry":    entry,
			"stop":     stop,
			"target":   target,
			"strategy": params.StrategyName,
		}))
		return "dry-run-" + uuid.NewString()[:8], nil
	}

	if err := om.broker.ValidateAsset(ctx, params.Ticker, params.Side); err != nil {
		om.recordRejection(params.Ticker, err.Error())
		return "", err
	}

	orderID, err := om.broker.SubmitBracket(ctx, broker.BracketRequest{
		Ticker:        params.Ticker,
		Side:          params.Side,
		Quantity:      params.Quantity,
		EntryPrice:    entry,
		StopLoss:      stop,
		Target:        target,
		ClientOrderID: clientOrderID(params),
	})
	if err != nil {
		if broker.IsRejection(err) {
			om.recordRejection(params.Ticker, err.Error())
		}
		return "", err
	}

	om.pending[params.Ticker] = append(om.pending[params.Ticker], orderID)
	metrics.OrdersSubmitted.WithLabelValues(params.Ticker, string(params.Side)).Inc()
	om.emitter.Emit(events.New(events.OrderSubmitted, params.Ticker, map[string]any{
		"order_id": orderID,
		"side":     string(params.Side),
		"quantity": params.Quantity,
		"entry":    entry,
		"stop":     stop,
		"target":   target,
		"strategy": params.StrategyName,
	}))
	return orderID, nil
}

// ClosePosition cancels open brackets for ticker and submits a closing
// order. When immediate is true the cancel-confirmation wait is skipped.
func (om *OrderManager) ClosePosition(ctx context.Context, ticker string, immediate bool) (string, error) {
	if om.analyzeMode {
		logger.Info(ctx, "Analyze mode, skipping close", "ticker", ticker)
		om.emitter.Emit(events.New(events.DryRun, ticker, map[string]any{
			"action": "close_position",
		}))
		return "dry-run-" + uuid.NewString()[:8], nil
	}

	if err := om.cancelOrdersForTicker(ctx, ticker, !immediate); err != nil {
		logger.Warn(ctx, "Cancel before close failed, attempting close anyway",
			"ticker", ticker, "error", err)
	}

	orderID, err := om.broker.ClosePosition(ctx, ticker)
	if err != nil {
		if broker.IsRejection(err) {
			om.recordRejection(ticker, err.Error())
		}
		return "", err
	}

	delete(om.pending, ticker)
	return orderID, nil
}

// cancelOrdersForTicker cancels all open orders for a ticker. With
// confirm set it polls until the broker reports no open orders.
func (om *OrderManager) cancelOrdersForTicker(ctx context.Context, ticker string, confirm bool) error {
	ids, err := om.broker.OpenOrders(ctx, ticker)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	logger.Info(ctx, "Canceling open orders", "ticker", ticker, "count", len(ids))
	for _, id := range ids {
		if err := om.broker.CancelOrder(ctx, id); err != nil {
			logger.Debug(ctx, "Cancel request failed", "order_id", id, "error", err)
		}
	}

	if !confirm {
		return nil
	}

	ticker2 := time.NewTicker(2 * time.Second)
	defer ticker2.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("order cancellation timed out for %s: %w", ticker, ctx.Err())
		case <-ticker2.C:
			remaining, err := om.broker.OpenOrders(ctx, ticker)
			if err != nil {
				return err
			}
			if len(remaining) == 0 {
				return nil
			}
		}
	}
}

// CancelOrder cancels a single order by id.
func (om *OrderManager) CancelOrder(ctx context.Context, orderID string) error {
	if om.analyzeMode {
		om.emitter.Emit(events.New(events.DryRun, "", map[string]any{
			"action":   "cancel_order",
			"order_id": orderID,
		}))
		return nil
	}
	return om.broker.CancelOrder(ctx, orderID)
}

// PollOrders returns fill and rejection events since the last poll and
// emits the corresponding trading events.
func (om *OrderManager) PollOrders(ctx context.Context) ([]types.OrderEvent, error) {
	since := om.lastPoll
	updates, err := om.broker.PollOrderUpdates(ctx, since)
	if err != nil {
		return nil, err
	}
	om.lastPoll = time.Now().UTC()

	for _, u := range updates {
		switch u.Kind {
		case types.OrderFilled:
			om.removePending(u.Ticker, u.OrderID)
			om.emitter.Emit(events.New(events.OrderFilled, u.Ticker, map[string]any{
				"order_id":   u.OrderID,
				"fill_price": u.FillPrice,
			}))
		case types.OrderRejected:
			om.removePending(u.Ticker, u.OrderID)
			om.recordRejection(u.Ticker, u.Reason)
		case types.OrderCanceled:
			om.removePending(u.Ticker, u.OrderID)
			om.emitter.Emit(events.New(events.OrderCanceled, u.Ticker, map[string]any{
				"order_id": u.OrderID,
			}))
		}
	}
	return updates, nil
}

func (om *OrderManager) removePending(ticker, orderID string) {
	ids := om.pending[ticker]
	for i, id := range ids {
		if id == orderID {
			om.pending[ticker] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(om.pending[ticker]) == 0 {
		delete(om.pending, ticker)
	}
}

func (om *OrderManager) recordRejection(ticker, reason string) {
	now := time.Now().UTC()
	om.rejects[ticker] = append(om.rejects[ticker], now)
	metrics.OrdersRejected.WithLabelValues(ticker).Inc()
	om.emitter.Emit(events.New(events.OrderRejected, ticker, map[string]any{
		"reason": reason,
	}))
}

// RecentRejects counts rejections for ticker within the window ending
// now. Older entries are pruned as a side effect.
func (om *OrderManager) RecentRejects(ticker string, window time.Duration) int {
	now := time.Now().UTC()
	kept := om.rejects[ticker][:0]
	for _, at := range om.rejects[ticker] {
		if now.Sub(at) <= window {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(om.rejects, ticker)
		return 0
	}
	om.rejects[ticker] = kept
	return len(kept)
}

// ClearRejects resets the rejection counter for ticker (after a
// cooldown has been applied).
func (om *OrderManager) ClearRejects(ticker string) {
	delete(om.rejects, ticker)
}

// PendingOrders returns outstanding order ids per ticker.
func (om *OrderManager) PendingOrders() map[string][]string {
	out := make(map[string][]string, len(om.pending))
	for ticker, ids := range om.pending {
		cp := make([]string, len(ids))
		copy(cp, ids)
		out[ticker] = cp
	}
	return out
}

// RestorePending replaces outstanding order ids from persisted state.
func (om *OrderManager) RestorePending(pending map[string][]string) {
	om.pending = make(map[string][]string, len(pending))
	for ticker, ids := range pending {
		cp := make([]string, len(ids))
		copy(cp, ids)
		om.pending[ticker] = cp
	}
}
