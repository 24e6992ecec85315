package events

import (
	"context"
	"sync"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/logger"
)

// Handler receives emitted events. Handlers must not block; slow sinks
// should buffer internally.
type Handler func(Event)

// Emitter fans events out to registered handlers. Registration is
// expected at wiring time; Emit may be called from the engine loop.
type Emitter struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// Register adds a handler. Handlers receive every subsequent event.
func (e *Emitter) Register(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Emit delivers ev to all handlers in registration order. A panicking
// handler is contained so event emission never takes down the cycle.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers
	e.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(context.Background(), "Event handler panicked",
						"event_type", string(ev.Type), "panic", r)
				}
			}()
			h(ev)
		}()
	}
}

// LogHandler returns a handler that writes events to the structured log.
func LogHandler() Handler {
	return func(ev Event) {
		args := []any{"event_type", string(ev.Type)}
		if ev.Ticker != "" {
			args = append(args, "ticker", ev.Ticker)
		}
		for k, v := range ev.Fields {
			args = append(args, k, v)
		}

		ctx := context.Background()
		switch ev.Type {
		case OrderRejected, SyncFailed, PersistenceFailed, StrategyError, InternalError:
			logger.Warn(ctx, "Trading event", args...)
		case CycleComplete, ScanComplete, SignalExpired, CooldownStarted:
			logger.Debug(ctx, "Trading event", args...)
		default:
			logger.Info(ctx, "Trading event", args...)
		}
	}
}
