package events

import (
	"testing"
)

func TestEmitterDeliversInRegistrationOrder(t *testing.T) {
	em := NewEmitter()
	var order []string
	em.Register(func(Event) { order = append(order, "first") })
	em.Register(func(Event) { order = append(order, "second") })

	em.Emit(New(CycleComplete, "", nil))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("unexpected delivery order: %v", order)
	}
}

func TestEmitterContainsPanickingHandler(t *testing.T) {
	em := NewEmitter()
	em.Register(func(Event) { panic("boom") })

	delivered := false
	em.Register(func(Event) { delivered = true })

	// Must not panic, and later handlers still run.
	em.Emit(New(EntryTriggered, "AAPL", map[string]any{"qty": 100}))

	if !delivered {
		t.Error("handler after the panicking one was skipped")
	}
}

func TestEventCarriesUTCTimestamp(t *testing.T) {
	ev := New(OrderFilled, "MSFT", map[string]any{"fill_price": 300.5})
	if ev.Timestamp.IsZero() {
		t.Fatal("expected timestamp")
	}
	if ev.Timestamp.Location() != ev.Timestamp.UTC().Location() {
		t.Error("timestamps must be UTC")
	}
	if ev.Ticker != "MSFT" || ev.Type != OrderFilled {
		t.Errorf("unexpected event: %+v", ev)
	}
}
