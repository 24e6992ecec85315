package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "engine_cycles_total", Help: "Execution cycles completed"},
	)
	CycleFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engine_cycle_failures_total", Help: "Cycles aborted by stage"},
		[]string{"stage"},
	)
	SignalsAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_accepted_total", Help: "Signals admitted to the queue"},
		[]string{"source"},
	)
	SignalsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_rejected_total", Help: "Signals rejected at admission"},
		[]string{"reason"},
	)
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_submitted_total", Help: "Bracket orders submitted"},
		[]string{"ticker", "side"},
	)
	OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_rejected_total", Help: "Orders rejected by the broker"},
		[]string{"ticker"},
	)
	ExitsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exits_triggered_total", Help: "Dynamic exits triggered"},
		[]string{"ticker", "urgency"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "open_positions", Help: "Currently tracked open positions"},
	)
	QueuedSignals = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "queued_signals", Help: "Signals pending in the queue"},
	)
)

func init() {
	prometheus.MustRegister(
		CyclesTotal, CycleFailures,
		SignalsAccepted, SignalsRejected,
		OrdersSubmitted, OrdersRejected, ExitsTriggered,
		OpenPositions, QueuedSignals,
	)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
