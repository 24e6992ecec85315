package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/events"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/logger"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/metrics"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/signals"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/strategy"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// RunState is the engine lifecycle state.
type RunState string

const (
	StateStopped  RunState = "stopped"
	StateRunning  RunState = "running"
	StateDraining RunState = "draining"
)

// EngineConfig bounds the execution loop.
type EngineConfig struct {
	CheckInterval           time.Duration
	CycleMargin             time.Duration
	MaxPositions            int
	MaxSignals              int
	DefaultSignalTTL        time.Duration
	Cooldown                time.Duration
	MaxRejectBeforeCooldown int
	RejectWindow            time.Duration
	RequeueOnCapacity       bool
	AnalyzeMode             bool
	SignalCacheTTL          time.Duration
	ClosedHistoryLimit      int
	StatePath               string
}

// DefaultEngineConfig returns the operational defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CheckInterval:           120 * time.Second,
		CycleMargin:             10 * time.Second,
		MaxPositions:            10,
		MaxSignals:              100,
		DefaultSignalTTL:        4 * time.Hour,
		Cooldown:                3 * time.Hour,
		MaxRejectBeforeCooldown: 3,
		RejectWindow:            time.Hour,
		SignalCacheTTL:          5 * time.Minute,
		ClosedHistoryLimit:      100,
		StatePath:               "./engine-state.json",
	}
}

// Deps are the engine's external collaborators.
type Deps struct {
	Strategy strategy.Strategy
	Registry *strategy.Registry
	Broker   broker.Broker
	Provider signals.Provider
	VIX      signals.VIXSource
	Emitter  *events.Emitter
}

// Engine drives the trading cycle: sync positions, process exits,
// process entries, poll orders, persist, emit. Cycles are strictly
// serial; AddSignal is the only concurrent entry point.
type Engine struct {
	cfg EngineConfig

	strat    strategy.Strategy
	registry *strategy.Registry
	brk      broker.Broker
	provider signals.Provider
	vix      signals.VIXSource
	emitter  *events.Emitter

	queue     *SignalQueue
	positions *PositionTracker
	cooldowns *CooldownManager
	orders    *OrderManager
	cache     *signals.Cache
	store     *StateStore

	mu       sync.Mutex
	runState RunState
	stopCh   chan struct{}

	firstCycle bool
	cycleCount int
}

func NewEngine(cfg EngineConfig, deps Deps) *Engine {
	if deps.Emitter == nil {
		deps.Emitter = events.NewEmitter()
	}

	e := &Engine{
		cfg:        cfg,
		strat:      deps.Strategy,
		registry:   deps.Registry,
		brk:        deps.Broker,
		provider:   deps.Provider,
		vix:        deps.VIX,
		emitter:    deps.Emitter,
		positions:  NewPositionTracker(cfg.ClosedHistoryLimit),
		cooldowns:  NewCooldownManager(),
		cache:      signals.NewCache(cfg.SignalCacheTTL),
		store:      NewStateStore(cfg.StatePath),
		runState:   StateStopped,
		stopCh:     make(chan struct{}),
		firstCycle: true,
	}
	e.queue = NewSignalQueue(cfg.MaxSignals, cfg.DefaultSignalTTL, func(sig types.PendingSignal) {
		e.emitter.Emit(events.New(events.SignalExpired, sig.Ticker, map[string]any{
			"created_at": sig.CreatedAt,
			"reason":     "signal_expired",
		}))
	})
	e.orders = NewOrderManager(deps.Broker, e.emitter, cfg.AnalyzeMode)
	return e
}

// Emitter exposes the engine's event emitter for sink registration.
func (e *Engine) Emitter() *events.Emitter { return e.emitter }

// State returns the engine lifecycle state.
func (e *Engine) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runState
}

// SetAnalyzeMode toggles dry-run order submission.
func (e *Engine) SetAnalyzeMode(on bool) {
	e.orders.SetAnalyzeMode(on)
}

// SetStrategy switches the active strategy by registry name.
func (e *Engine) SetStrategy(name string) error {
	if e.registry == nil {
		return fmt.Errorf("%w: no registry configured", types.ErrUnknownStrategy)
	}
	strat, err := e.registry.Get(name, nil)
	if err != nil {
		return err
	}
	e.strat = strat
	return nil
}

// ResetState deletes the persisted state file.
func (e *Engine) ResetState() error {
	return e.store.Reset()
}

// AddSignal is the external admission port. Signals are accepted only
// while the engine is running; admission results are emitted as
// signal_accepted / signal_rejected events.
func (e *Engine) AddSignal(sig types.PendingSignal) error {
	e.mu.Lock()
	state := e.runState
	e.mu.Unlock()
	if state != StateRunning {
		err := fmt.Errorf("%w: engine is %s", types.ErrInvalidSignal, state)
		e.emitSignalRejected(sig, err.Error())
		return err
	}

	if err := e.queue.Add(sig); err != nil {
		e.emitSignalRejected(sig, err.Error())
		return err
	}

	metrics.SignalsAccepted.WithLabelValues(sig.Source).Inc()
	metrics.QueuedSignals.Set(float64(e.queue.Size()))
	e.emitter.Emit(events.New(events.SignalAccepted, sig.Ticker, map[string]any{
		"action":     string(sig.Action),
		"priority":   sig.Priority,
		"confidence": sig.Confidence,
		"source":     sig.Source,
	}))
	return nil
}

func (e *Engine) emitSignalRejected(sig types.PendingSignal, reason string) {
	metrics.SignalsRejected.WithLabelValues("admission").Inc()
	e.emitter.Emit(events.New(events.SignalRejected, sig.Ticker, map[string]any{
		"reason": reason,
		"source": sig.Source,
	}))
}

// Start runs cycles on the configured interval until Stop. It blocks
// until the engine drains, so callers usually run it in a goroutine.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.runState != StateStopped {
		e.mu.Unlock()
		return fmt.Errorf("engine already %s", e.runState)
	}
	e.runState = StateRunning
	e.stopCh = make(chan struct{})
	e.mu.Unlock()

	logger.Info(ctx, "Execution engine started",
		"interval", e.cfg.CheckInterval.String(),
		"max_positions", e.cfg.MaxPositions,
		"analyze_mode", e.orders.AnalyzeMode(),
	)

	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()

	// First cycle runs immediately rather than waiting an interval.
	e.runCycleBounded(ctx)

	for {
		select {
		case <-ticker.C:
			e.runCycleBounded(ctx)
		case <-e.stopCh:
			e.finishStop(ctx)
			return nil
		case <-ctx.Done():
			e.mu.Lock()
			e.runState = StateStopped
			e.mu.Unlock()
			return ctx.Err()
		}
	}
}

// Stop requests a graceful shutdown: the current cycle completes
// (including persistence), then the loop halts.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runState != StateRunning {
		return
	}
	e.runState = StateDraining
	close(e.stopCh)
}

func (e *Engine) finishStop(ctx context.Context) {
	e.mu.Lock()
	e.runState = StateStopped
	e.mu.Unlock()
	logger.Info(ctx, "Execution engine stopped", "cycles", e.cycleCount)
}

func (e *Engine) runCycleBounded(ctx context.Context) {
	deadline := e.cfg.CheckInterval - e.cfg.CycleMargin
	if deadline <= 0 {
		deadline = e.cfg.CheckInterval
	}
	cycleCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	if err := e.RunCycle(cycleCtx); err != nil {
		logger.Warn(ctx, "Cycle aborted", "error", err)
	}
}

// RunCycle performs one serial pass: sync -> exits -> entries -> poll ->
// persist -> emit. Exits are always evaluated before entries.
func (e *Engine) RunCycle(ctx context.Context) error {
	timer := logger.StartOperation(ctx, "engine.RunCycle", "cycle", e.cycleCount)
	ctx = timer.GetContext()
	start := time.Now()

	// Pre-cycle: invalidate the signal cache and, once, load state.
	e.cache.Clear()
	if e.firstCycle {
		e.loadState(ctx)
		e.firstCycle = false
	}

	// Sync positions; a failure aborts the cycle before any decision.
	syncResult, err := e.positions.SyncFromBroker(ctx, e.brk)
	if err != nil {
		metrics.CycleFailures.WithLabelValues("sync").Inc()
		e.emitter.Emit(events.New(events.SyncFailed, "", map[string]any{
			"error": err.Error(),
		}))
		timer.EndWithError(err)
		return err
	}
	for _, closed := range syncResult.Removed {
		e.emitter.Emit(events.New(events.PositionClosed, closed.Ticker, map[string]any{
			"side":     string(closed.Side),
			"quantity": closed.Quantity,
			"entry":    closed.AvgEntryPrice,
			"exit":     closed.CurrentPrice,
			"pnl":      closed.UnrealizedPnL,
			"pnl_pct":  closed.UnrealizedPnLPct,
			"strategy": closed.StrategyName,
		}))
	}
	metrics.OpenPositions.Set(float64(e.positions.Count()))

	mc, mcErr := e.buildMarketContext(ctx)
	if mcErr != nil {
		// Without account and clock state no decision is safe; exits
		// degrade to bracket-only protection and entries are skipped.
		logger.Warn(ctx, "Market context unavailable", "error", mcErr)
	}

	// Exits before entries, every cycle.
	exitsTriggered := e.processExits(ctx, mc, mcErr == nil)

	internalErr := error(nil)
	entriesTriggered := 0
	available := e.cfg.MaxPositions - e.positions.Count()
	if available > 0 && mcErr == nil {
		entriesTriggered, internalErr = e.processEntries(ctx, mc, available)
	}

	// Poll order updates and apply the rejection-cooldown policy.
	e.pollOrders(ctx)

	e.cooldowns.Prune(time.Now().UTC())

	// Persist last: a successful save is the durable commit of this
	// cycle. Failures are tolerated; trading continues.
	if err := e.saveState(); err != nil {
		metrics.CycleFailures.WithLabelValues("persist").Inc()
		e.emitter.Emit(events.New(events.PersistenceFailed, "", map[string]any{
			"error": err.Error(),
		}))
		logger.ErrorWithErr(ctx, "State persistence failed", err)
	}

	e.cycleCount++
	metrics.CyclesTotal.Inc()
	metrics.QueuedSignals.Set(float64(e.queue.Size()))
	metrics.OpenPositions.Set(float64(e.positions.Count()))
	e.emitter.Emit(events.New(events.CycleComplete, "", map[string]any{
		"cycle":             e.cycleCount,
		"positions_open":    e.positions.Count(),
		"signals_pending":   e.queue.Size(),
		"positions_added":   len(syncResult.Added),
		"positions_removed": len(syncResult.Removed),
		"exits_triggered":   exitsTriggered,
		"entries_triggered": entriesTriggered,
		"duration_seconds":  time.Since(start).Seconds(),
	}))

	if internalErr != nil {
		timer.EndWithError(internalErr)
		return internalErr
	}
	timer.End("exits", exitsTriggered, "entries", entriesTriggered)
	return nil
}

// buildMarketContext assembles account and market state for strategy
// decisions. A missing VIX reading degrades to the neutral sentinel.
func (e *Engine) buildMarketContext(ctx context.Context) (*types.MarketContext, error) {
	acct, err := e.brk.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("account fetch: %w", err)
	}
	clock, err := e.brk.MarketClock(ctx)
	if err != nil {
		return nil, fmt.Errorf("clock fetch: %w", err)
	}

	vix := types.NeutralVIX
	if e.vix != nil {
		if v, err := e.vix.VIX(ctx); err == nil && v > 0 {
			vix = v
		}
	}
	if vix > 30.0 {
		logger.Warn(ctx, "Elevated VIX detected", "vix", vix)
	}

	return &types.MarketContext{
		VIX:               vix,
		MarketStatus:      clock.Status,
		AccountEquity:     acct.Equity,
		BuyingPower:       acct.BuyingPower,
		ExistingPositions: e.positions.Tickers(),
		CooldownTickers:   e.cooldowns.AllActive(time.Now().UTC()),
	}, nil
}

// prefetchSignals warms the cache for tickers in parallel. Individual
// failures are tolerated; the consumer treats misses as "no signal".
func (e *Engine) prefetchSignals(ctx context.Context, tickers []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, ticker := range tickers {
		if _, ok := e.cache.Get(ticker, time.Now().UTC()); ok {
			continue
		}
		g.Go(func() error {
			sig, err := e.provider.FetchSignals(gctx, ticker)
			if err != nil {
				logger.Debug(gctx, "Signal prefetch failed", "ticker", ticker, "error", err)
				return nil
			}
			e.cache.Set(ticker, sig, time.Now().UTC())
			return nil
		})
	}
	_ = g.Wait()
}

// fetchSignals returns cached signals for ticker, computing on miss.
func (e *Engine) fetchSignals(ctx context.Context, ticker string) *types.TechnicalSignals {
	now := time.Now().UTC()
	if sig, ok := e.cache.Get(ticker, now); ok {
		return sig
	}
	sig, err := e.provider.FetchSignals(ctx, ticker)
	if err != nil {
		logger.Warn(ctx, "Signal fetch failed", "ticker", ticker, "error", err)
		return nil
	}
	e.cache.Set(ticker, sig, now)
	return sig
}

// processExits evaluates dynamic exits for every tracked position.
// Positions protected by a live bracket order are skipped: the broker
// manages their stop and target. haveContext guards strategy calls when
// the market context could not be built.
func (e *Engine) processExits(ctx context.Context, mc *types.MarketContext, haveContext bool) int {
	positions := e.positions.All()

	var needSignals []string
	for _, pos := range positions {
		if !pos.HasBracketOrder {
			needSignals = append(needSignals, pos.Ticker)
		}
	}
	e.prefetchSignals(ctx, needSignals)

	triggered := 0
	for _, pos := range positions {
		if e.processExit(ctx, pos, mc, haveContext) {
			triggered++
		}
	}
	return triggered
}

func (e *Engine) processExit(ctx context.Context, pos *types.TrackedPosition, mc *types.MarketContext, haveContext bool) (exited bool) {
	defer func() {
		if r := recover(); r != nil {
			e.emitter.Emit(events.New(events.StrategyError, pos.Ticker, map[string]any{
				"stage": "exit",
				"panic": fmt.Sprint(r),
			}))
			exited = false
		}
	}()

	if pos.HasBracketOrder {
		// The bracket may have been canceled externally; re-verify
		// before trusting the flag. If it is gone, fall through to
		// dynamic exit evaluation.
		open, err := e.brk.OpenOrders(ctx, pos.Ticker)
		if err == nil && len(open) == 0 {
			pos.HasBracketOrder = false
			pos.Notes = append(pos.Notes, "bracket order no longer open at broker")
		} else {
			logger.Debug(ctx, "Exit skipped, bracket active",
				"ticker", pos.Ticker, "stop", pos.StopLoss, "target", pos.Target)
			return false
		}
	}

	if !haveContext {
		return false
	}

	sig := e.fetchSignals(ctx, pos.Ticker)
	if sig == nil {
		// Degrade to hold; the bracket (if any) still protects us.
		return false
	}

	decision := e.strat.EvaluateExit(pos, sig, mc)
	if !decision.ShouldExit {
		return false
	}

	now := time.Now().UTC()
	pos.ExitAttempts++
	pos.LastExitAttempt = &now

	immediate := decision.Urgency == types.UrgencyImmediate
	orderID, err := e.orders.ClosePosition(ctx, pos.Ticker, immediate)
	if err != nil {
		logger.ErrorWithErr(ctx, "Dynamic exit close failed", err,
			"ticker", pos.Ticker, "urgency", string(decision.Urgency))
		return false
	}

	metrics.ExitsTriggered.WithLabelValues(pos.Ticker, string(decision.Urgency)).Inc()
	e.emitter.Emit(events.New(events.ExitTriggered, pos.Ticker, map[string]any{
		"side":     string(pos.Side),
		"quantity": pos.Quantity,
		"entry":    pos.AvgEntryPrice,
		"pnl":      pos.UnrealizedPnL,
		"pnl_pct":  pos.UnrealizedPnLPct,
		"reason":   decision.Reason,
		"urgency":  string(decision.Urgency),
		"order_id": orderID,
		"strategy": pos.StrategyName,
	}))

	if !e.orders.AnalyzeMode() {
		e.positions.Remove(pos.Ticker)
		e.addCooldown(pos.Ticker, "exit: "+decision.Reason)
	}
	return true
}

// processEntries pops queued signals up to the available capacity and
// evaluates them in priority order. A safety-invariant violation aborts
// the cycle (persistence still runs afterwards).
func (e *Engine) processEntries(ctx context.Context, mc *types.MarketContext, available int) (int, error) {
	popped := e.queue.PopReady(time.Now().UTC(), available)
	if len(popped) == 0 {
		return 0, nil
	}

	tickers := make([]string, 0, len(popped))
	for _, sig := range popped {
		tickers = append(tickers, sig.Ticker)
	}
	e.prefetchSignals(ctx, tickers)

	triggered := 0
	for _, pending := range popped {
		if e.positions.Count() >= e.cfg.MaxPositions {
			e.handleCapacityOverflow(pending)
			continue
		}

		ok, err := e.processEntry(ctx, pending, mc)
		if err != nil {
			return triggered, err
		}
		if ok {
			triggered++
		}
	}
	return triggered, nil
}

func (e *Engine) handleCapacityOverflow(pending types.PendingSignal) {
	e.emitter.Emit(events.New(events.CapacityReached, pending.Ticker, map[string]any{
		"max_positions": e.cfg.MaxPositions,
	}))
	if e.cfg.RequeueOnCapacity {
		if err := e.queue.Add(pending); err != nil {
			logger.Debug(context.Background(), "Re-enqueue after capacity failed",
				"ticker", pending.Ticker, "error", err)
		}
	}
}

func (e *Engine) processEntry(ctx context.Context, pending types.PendingSignal, mc *types.MarketContext) (entered bool, internalErr error) {
	defer func() {
		if r := recover(); r != nil {
			e.emitter.Emit(events.New(events.StrategyError, pending.Ticker, map[string]any{
				"stage": "entry",
				"panic": fmt.Sprint(r),
			}))
			entered = false
			internalErr = nil
		}
	}()

	sig := e.fetchSignals(ctx, pending.Ticker)
	if sig == nil {
		e.emitter.Emit(events.New(events.SignalRejected, pending.Ticker, map[string]any{
			"reason": "signals_unavailable",
			"source": pending.Source,
		}))
		return false, nil
	}

	decision := e.strat.EvaluateEntry(sig, mc, pending.Agent)
	if !decision.ShouldEnter {
		e.emitter.Emit(events.New(events.SignalRejected, pending.Ticker, map[string]any{
			"reason": decision.Reason,
			"source": pending.Source,
		}))
		return false, nil
	}

	// Safety invariant: an accepted entry must carry a stop loss and a
	// positive size. A violation is an internal error and aborts the
	// cycle so the bad decision is recorded, not traded.
	if err := decision.CheckSafety(); err != nil {
		e.emitter.Emit(events.New(events.InternalError, pending.Ticker, map[string]any{
			"invariant": "entry_safety",
			"error":     err.Error(),
		}))
		return false, err
	}

	params := types.OrderParams{
		Ticker:       pending.Ticker,
		Side:         pending.Action,
		Quantity:     decision.SuggestedSize,
		EntryPrice:   decision.EntryPrice,
		StopLoss:     decision.StopLoss,
		Target:       decision.Target,
		StrategyName: e.strat.Name(),
	}

	orderID, err := e.orders.SubmitBracketOrder(ctx, params)
	if err != nil {
		logger.Warn(ctx, "Entry submission failed",
			"ticker", pending.Ticker, "error", err)
		return false, nil
	}

	e.emitter.Emit(events.New(events.EntryTriggered, pending.Ticker, map[string]any{
		"side":     string(pending.Action),
		"quantity": decision.SuggestedSize,
		"entry":    decision.EntryPrice,
		"stop":     decision.StopLoss,
		"target":   decision.Target,
		"reason":   decision.Reason,
		"order_id": orderID,
		"strategy": e.strat.Name(),
	}))

	if e.orders.AnalyzeMode() {
		// Dry-run submissions are not tracked: the next sync would not
		// find the position and would immediately close it.
		return true, nil
	}

	pos := e.positions.AddPosition(pending.Ticker, params.PositionSide(), decision.SuggestedSize,
		decision.EntryPrice, e.strat.Name(), decision.StopLoss, decision.Target, orderID)
	e.emitter.Emit(events.New(events.PositionOpened, pos.Ticker, map[string]any{
		"side":     string(pos.Side),
		"quantity": pos.Quantity,
		"entry":    pos.AvgEntryPrice,
		"order_id": orderID,
		"strategy": pos.StrategyName,
	}))
	e.addCooldown(pending.Ticker, "entry_filled")
	return true, nil
}

// pollOrders drains broker order updates and applies the repeated-
// rejection cooldown policy.
func (e *Engine) pollOrders(ctx context.Context) {
	updates, err := e.orders.PollOrders(ctx)
	if err != nil {
		logger.Warn(ctx, "Order polling failed", "error", err)
		return
	}

	for _, u := range updates {
		switch u.Kind {
		case types.OrderFilled:
			if pos, ok := e.positions.Get(u.Ticker); ok && u.FillPrice > 0 {
				if pos.EntryOrderID == u.OrderID {
					pos.AvgEntryPrice = u.FillPrice
				}
				pos.MarkPrice(u.FillPrice)
			}
		case types.OrderRejected:
			if e.orders.RecentRejects(u.Ticker, e.cfg.RejectWindow) >= e.cfg.MaxRejectBeforeCooldown {
				e.addCooldown(u.Ticker, "repeated_rejections")
				e.orders.ClearRejects(u.Ticker)
			}
		}
	}
}

func (e *Engine) addCooldown(ticker, reason string) {
	cd, changed := e.cooldowns.Add(ticker, e.cfg.Cooldown, reason, "execution_engine")
	if !changed {
		return
	}
	e.emitter.Emit(events.New(events.CooldownStarted, ticker, map[string]any{
		"until":  cd.Until,
		"reason": cd.Reason,
		"source": cd.Source,
	}))
}

func (e *Engine) saveState() error {
	return e.store.Save(EngineState{
		SignalQueue:   e.queue.Snapshot(),
		Positions:     e.positions.Snapshot(),
		Cooldowns:     e.cooldowns.Snapshot(),
		PendingOrders: e.orders.PendingOrders(),
		StrategyState: e.strat.State(),
	})
}

func (e *Engine) loadState(ctx context.Context) {
	state, loaded, err := e.store.Load()
	if err != nil {
		logger.ErrorWithErr(ctx, "State load failed, starting fresh", err)
		return
	}
	if !loaded {
		logger.Info(ctx, "Starting with fresh state")
		return
	}

	for _, sig := range state.SignalQueue {
		if err := e.queue.Add(sig); err != nil {
			logger.Debug(ctx, "Dropped persisted signal", "ticker", sig.Ticker, "error", err)
		}
	}
	e.positions.Restore(state.Positions)
	e.cooldowns.Restore(state.Cooldowns)
	e.orders.RestorePending(state.PendingOrders)
	e.strat.Restore(state.StrategyState)

	logger.Info(ctx, "State loaded",
		"timestamp", state.Timestamp,
		"signals", len(state.SignalQueue),
		"positions", len(state.Positions),
		"cooldowns", len(state.Cooldowns),
	)
}

// Components below are exposed for tests and the control surface.

// Queue returns the engine's signal queue.
func (e *Engine) Queue() *SignalQueue { return e.queue }

// Positions returns the engine's position tracker.
func (e *Engine) Positions() *PositionTracker { return e.positions }

// Cooldowns returns the engine's cooldown manager.
func (e *Engine) Cooldowns() *CooldownManager { return e.cooldowns }

// Orders returns the engine's order manager.
func (e *Engine) Orders() *OrderManager { return e.orders }

// Store returns the engine's state store.
func (e *Engine) Store() *StateStore { return e.store }
