// Package metrics provides Prometheus metrics collection for the trading
// dashboard. It tracks analytics computations, trade source failures,
// per-strategy performance gauges and live dashboard connections.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the dashboard.
type Metrics struct {
	// Analytics metrics
	Computations       prometheus.Counter   // Total number of analytics computations
	ComputationErrors  prometheus.Counter   // Computations that failed to load trades
	ComputationLatency prometheus.Histogram // Duration of a full load and compute pass

	// Strategy metrics
	StrategyPnL         *prometheus.GaugeVec // Realised P&L per strategy
	StrategyMaxDrawdown *prometheus.GaugeVec // Max drawdown fraction per strategy
	StrategyWinRate     *prometheus.GaugeVec // Win rate per strategy
	StrategyTrades      *prometheus.GaugeVec // Trade count per strategy

	// Dashboard metrics
	WSClients    prometheus.Gauge   // Connected WebSocket clients
	WSBroadcasts prometheus.Counter // Overview snapshots pushed to clients
	HTTPRequests *prometheus.CounterVec
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	strategyLabels := []string{"strategy"}
	return &Metrics{
		Computations: factory.NewCounter(prometheus.CounterOpts{
			Name: "analytics_computations_total",
			Help: "Total number of analytics computations",
		}),
		ComputationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "analytics_computation_errors_total",
			Help: "Total number of analytics computations that failed",
		}),
		ComputationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "analytics_computation_duration_seconds",
			Help:    "Duration of trade loading and analytics computation in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		StrategyPnL: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strategy_pnl",
			Help: "Realised profit and loss per strategy",
		}, strategyLabels),
		StrategyMaxDrawdown: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strategy_max_drawdown_ratio",
			Help: "Maximum drawdown per strategy as a negative fraction of the peak",
		}, strategyLabels),
		StrategyWinRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strategy_win_rate_ratio",
			Help: "Share of winning trades per strategy",
		}, strategyLabels),
		StrategyTrades: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strategy_trades",
			Help: "Number of trades per strategy in the default view",
		}, strategyLabels),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_ws_clients",
			Help: "Number of connected WebSocket clients",
		}),
		WSBroadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_ws_broadcasts_total",
			Help: "Total number of overview snapshots broadcast to clients",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_http_requests_total",
			Help: "HTTP requests served by route and status code",
		}, []string{"route", "code"}),
	}
}
