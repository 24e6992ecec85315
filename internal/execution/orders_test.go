package execution

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/events"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// eventRecorder captures emitted events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func newEventRecorder(em *events.Emitter) *eventRecorder {
	rec := &eventRecorder{}
	em.Register(func(ev events.Event) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.events = append(rec.events, ev)
	})
	return rec
}

func (r *eventRecorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) ofType(t events.Type) []events.Event {
	var out []events.Event
	for _, ev := range r.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func validParams() types.OrderParams {
	return types.OrderParams{
		Ticker:       "AAPL",
		Side:         types.ActionBuy,
		Quantity:     100,
		EntryPrice:   150,
		StopLoss:     145,
		Target:       165,
		StrategyName: "momentum",
	}
}

func TestOrderParamsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.OrderParams)
		ok     bool
	}{
		{"valid buy", func(p *types.OrderParams) {}, true},
		{"buy stop above entry", func(p *types.OrderParams) { p.StopLoss = 155 }, false},
		{"buy target below entry", func(p *types.OrderParams) { p.Target = 140 }, false},
		{"short valid", func(p *types.OrderParams) {
			p.Side = types.ActionShort
			p.StopLoss = 160
			p.Target = 140
		}, true},
		{"short inverted", func(p *types.OrderParams) {
			p.Side = types.ActionShort
			p.StopLoss = 140
			p.Target = 160
		}, false},
		{"zero quantity", func(p *types.OrderParams) { p.Quantity = 0 }, false},
		{"negative entry", func(p *types.OrderParams) { p.EntryPrice = -1 }, false},
		{"bad ticker", func(p *types.OrderParams) { p.Ticker = "toolong" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, types.ErrInvalidOrderParams) {
					t.Errorf("expected ErrInvalidOrderParams, got %v", err)
				}
			}
		})
	}
}

func TestSubmitBracketOrderRecordsPending(t *testing.T) {
	brk := newFakeBroker()
	emitter := events.NewEmitter()
	rec := newEventRecorder(emitter)
	om := NewOrderManager(brk, emitter, false)

	orderID, err := om.SubmitBracketOrder(context.Background(), validParams())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if orderID == "" {
		t.Fatal("expected order id")
	}

	if len(brk.submitted) != 1 {
		t.Fatalf("expected 1 broker submission, got %d", len(brk.submitted))
	}
	req := brk.submitted[0]
	if req.EntryPrice != 150 || req.StopLoss != 145 || req.Target != 165 || req.Quantity != 100 {
		t.Errorf("broker request mismatch: %+v", req)
	}
	if !strings.HasPrefix(req.ClientOrderID, "momentum_AAPL_buy_") {
		t.Errorf("unexpected client order id %q", req.ClientOrderID)
	}

	if got := om.PendingOrders()["AAPL"]; len(got) != 1 || got[0] != orderID {
		t.Errorf("pending orders mismatch: %v", got)
	}
	if len(rec.ofType(events.OrderSubmitted)) != 1 {
		t.Error("expected order_submitted event")
	}
}

func TestSubmitBracketOrderInvalidParamsRejectedSynchronously(t *testing.T) {
	brk := newFakeBroker()
	om := NewOrderManager(brk, events.NewEmitter(), false)

	p := validParams()
	p.StopLoss = 170 // violates buy geometry
	_, err := om.SubmitBracketOrder(context.Background(), p)
	if !errors.Is(err, types.ErrInvalidOrderParams) {
		t.Fatalf("expected ErrInvalidOrderParams, got %v", err)
	}
	if len(brk.submitted) != 0 {
		t.Error("invalid params must never reach the broker")
	}
}

func TestAnalyzeModeDryRunSkipsBroker(t *testing.T) {
	brk := newFakeBroker()
	emitter := events.NewEmitter()
	rec := newEventRecorder(emitter)
	om := NewOrderManager(brk, emitter, true)

	orderID, err := om.SubmitBracketOrder(context.Background(), validParams())
	if err != nil {
		t.Fatalf("dry-run submit failed: %v", err)
	}
	if !strings.HasPrefix(orderID, "dry-run-") {
		t.Errorf("expected synthetic order id, got %q", orderID)
	}
	if len(brk.submitted) != 0 {
		t.Error("analyze mode must not call the broker")
	}

	dry := rec.ofType(events.DryRun)
	if len(dry) != 1 {
		t.Fatalf("expected 1 dry_run event, got %d", len(dry))
	}
	if dry[0].Fields["action"] != "submit_bracket" {
		t.Errorf("unexpected dry_run payload: %v", dry[0].Fields)
	}

	if _, err := om.ClosePosition(context.Background(), "AAPL", false); err != nil {
		t.Fatalf("dry-run close failed: %v", err)
	}
	if len(brk.closed) != 0 {
		t.Error("analyze mode close must not call the broker")
	}
	if len(rec.ofType(events.DryRun)) != 2 {
		t.Error("expected dry_run event for close")
	}
}

func TestClosePositionCancelsBracketLegs(t *testing.T) {
	brk := newFakeBroker()
	brk.open["MSFT"] = []string{"leg-1", "leg-2"}
	om := NewOrderManager(brk, events.NewEmitter(), false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	orderID, err := om.ClosePosition(ctx, "MSFT", true)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if orderID == "" {
		t.Fatal("expected close order id")
	}
	if len(brk.canceled) != 2 {
		t.Errorf("expected both legs canceled, got %v", brk.canceled)
	}
	if len(brk.closed) != 1 || brk.closed[0] != "MSFT" {
		t.Errorf("expected MSFT closed, got %v", brk.closed)
	}
}

func TestPollOrdersEmitsFillAndRejectEvents(t *testing.T) {
	brk := newFakeBroker()
	emitter := events.NewEmitter()
	rec := newEventRecorder(emitter)
	om := NewOrderManager(brk, emitter, false)

	brk.updates = []types.OrderEvent{
		{OrderID: "o1", Ticker: "AAPL", Kind: types.OrderFilled, FillPrice: 150.2, At: time.Now().UTC()},
		{OrderID: "o2", Ticker: "TSLA", Kind: types.OrderRejected, Reason: "insufficient funds", At: time.Now().UTC()},
	}

	updates, err := om.PollOrders(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if len(rec.ofType(events.OrderFilled)) != 1 {
		t.Error("expected order_filled event")
	}
	if len(rec.ofType(events.OrderRejected)) != 1 {
		t.Error("expected order_rejected event")
	}
	if om.RecentRejects("TSLA", time.Hour) != 1 {
		t.Error("expected rejection counted")
	}
}

func TestRecentRejectsWindowing(t *testing.T) {
	brk := newFakeBroker()
	om := NewOrderManager(brk, events.NewEmitter(), false)

	om.recordRejection("TSLA", "r1")
	om.recordRejection("TSLA", "r2")
	om.recordRejection("TSLA", "r3")

	if n := om.RecentRejects("TSLA", time.Hour); n != 3 {
		t.Errorf("expected 3 recent rejects, got %d", n)
	}
	// A zero-width window prunes everything.
	if n := om.RecentRejects("TSLA", 0); n != 0 {
		t.Errorf("expected 0 rejects in empty window, got %d", n)
	}

	om.recordRejection("TSLA", "r4")
	om.ClearRejects("TSLA")
	if n := om.RecentRejects("TSLA", time.Hour); n != 0 {
		t.Errorf("expected cleared counter, got %d", n)
	}
}
