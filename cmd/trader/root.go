package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/broker"
	alpacabroker "github.com/kimrejstrom/alpacalyzer-algo-trader/internal/broker/alpaca"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/broker/brokerobs"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/broker/paper"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/events"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/execution"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/logger"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/metrics"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/signals"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/store"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/strategy"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/trace"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "trader",
		Short:         "Autonomous equity trading engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newResetStateCmd(&configPath))
	root.AddCommand(newStrategiesCmd())
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		strategyName string
		analyze      bool
		resetState   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the execution engine loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(*configPath, strategyName, analyze, resetState)
		},
	}
	cmd.Flags().StringVar(&strategyName, "strategy", "", "override configured strategy")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "analyze mode: evaluate but never submit orders")
	cmd.Flags().BoolVar(&resetState, "reset-state", false, "discard persisted state before starting")
	return cmd
}

func newResetStateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-state",
		Short: "Delete the persisted engine state file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := store.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := execution.NewStateStore(cfg.State.Path).Reset(); err != nil {
				return err
			}
			fmt.Println("state reset:", cfg.State.Path)
			return nil
		},
	}
}

func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List registered strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range strategy.NewDefaultRegistry().List() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func runEngine(configPath, strategyOverride string, analyze, resetState bool) error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() { _ = trace.Shutdown(context.Background()) }()

	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return err
	}
	if strategyOverride != "" {
		cfg.Strategy = strategyOverride
	}
	if analyze {
		cfg.Execution.AnalyzeMode = true
	}

	registry := strategy.NewDefaultRegistry()
	strat, err := registry.Get(cfg.Strategy, nil)
	if err != nil {
		return err
	}

	brk, candleSource := buildBroker(ctx, cfg)
	brk = brokerobs.Wrap(brk)

	emitter := events.NewEmitter()
	emitter.Register(events.LogHandler())
	journal := events.NewJournal(cfg.Journal.Dir)
	emitter.Register(journal.Handler())
	if err := journal.CompressOlder(cfg.Journal.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old journals", "error", err)
	}

	engineCfg := engineConfigFrom(cfg)

	eng := execution.NewEngine(engineCfg, execution.Deps{
		Strategy: strat,
		Registry: registry,
		Broker:   brk,
		Provider: signals.NewIndicatorProvider(candleSource),
		VIX:      signals.StaticVIX(0), // no live VIX feed wired; engine substitutes the neutral sentinel
		Emitter:  emitter,
	})

	if resetState {
		if err := eng.ResetState(); err != nil {
			logger.Warn(ctx, "State reset failed", "error", err)
		}
	}

	if cfg.Metrics.Enabled {
		metrics.Serve(cfg.Metrics.Addr)
		logger.Info(ctx, "Metrics server listening", "addr", cfg.Metrics.Addr)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info(ctx, "Shutdown requested, draining")
		eng.Stop()
	}()

	logger.Info(ctx, "Trader starting",
		"mode", cfg.Mode,
		"strategy", cfg.Strategy,
		"analyze_mode", cfg.Execution.AnalyzeMode,
	)
	return eng.Start(ctx)
}

// buildBroker wires the trading venue and candle source for the
// configured mode. DRY_RUN trades against the in-memory paper broker;
// both modes read market data from Alpaca when credentials are present.
func buildBroker(ctx context.Context, cfg *store.Config) (broker.Broker, signals.CandleSource) {
	apiKey := os.Getenv("ALPACA_API_KEY")
	apiSecret := os.Getenv("ALPACA_API_SECRET")

	var candles signals.CandleSource
	if apiKey != "" {
		candles = alpacabroker.NewCandleSource(apiKey, apiSecret)
	} else {
		logger.Warn(ctx, "No Alpaca credentials, using synthetic candle data")
		candles = paper.NewCandleSource()
	}

	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode, orders are simulated")
		return paper.New(100_000), candles
	}

	return alpacabroker.New(alpacabroker.Params{
		APIKey:          apiKey,
		APISecret:       apiSecret,
		BaseURL:         cfg.Broker.BaseURL,
		Timeout:         time.Duration(cfg.Broker.TimeoutSeconds) * time.Second,
		RateLimitPerMin: cfg.Broker.RateLimitPerMin,
		MaxRetries:      cfg.Broker.MaxRetryAttempts,
	}), candles
}

func engineConfigFrom(cfg *store.Config) execution.EngineConfig {
	ec := execution.DefaultEngineConfig()
	ec.CheckInterval = time.Duration(cfg.Execution.CheckIntervalSeconds) * time.Second
	ec.CycleMargin = time.Duration(cfg.Execution.CycleMarginSeconds) * time.Second
	ec.MaxPositions = cfg.Execution.MaxPositions
	ec.MaxSignals = cfg.Execution.MaxSignals
	ec.DefaultSignalTTL = time.Duration(cfg.Execution.DefaultSignalTTLHours) * time.Hour
	ec.Cooldown = time.Duration(cfg.Execution.CooldownHours) * time.Hour
	ec.MaxRejectBeforeCooldown = cfg.Execution.MaxRejectBeforeCooldown
	ec.RequeueOnCapacity = cfg.Execution.RequeueOnCapacity
	ec.AnalyzeMode = cfg.Execution.AnalyzeMode
	ec.SignalCacheTTL = time.Duration(cfg.Execution.SignalCacheTTLSeconds * float64(time.Second))
	ec.ClosedHistoryLimit = cfg.Execution.ClosedHistoryLimit
	ec.StatePath = cfg.State.Path
	return ec
}
