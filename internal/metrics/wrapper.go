package metrics

import (
	"strconv"
	"time"

	"trading-dashboard/internal/analytics"
)

// Interfaces for the dashboard so it does not depend on Prometheus types.
type Counter interface {
	Inc()
}

type Gauge interface {
	Set(float64)
	Inc()
	Dec()
}

// Wrapper exposes the metrics to the analytics service and the dashboard.
// It implements analytics.Observer and dashboard.Telemetry.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

var _ analytics.Observer = (*Wrapper)(nil)

// ObserveComputation records one analytics pass.
func (w *Wrapper) ObserveComputation(d time.Duration, err error) {
	w.m.Computations.Inc()
	w.m.ComputationLatency.Observe(d.Seconds())
	if err != nil {
		w.m.ComputationErrors.Inc()
	}
}

// ObserveStrategies publishes the per-strategy figures of the default
// dashboard view. Strategies missing from the latest view are removed.
func (w *Wrapper) ObserveStrategies(strategies []analytics.StrategyMetrics) {
	w.m.StrategyPnL.Reset()
	w.m.StrategyMaxDrawdown.Reset()
	w.m.StrategyWinRate.Reset()
	w.m.StrategyTrades.Reset()

	for _, s := range strategies {
		w.m.StrategyPnL.WithLabelValues(s.StrategyID).Set(s.PnL)
		w.m.StrategyMaxDrawdown.WithLabelValues(s.StrategyID).Set(s.MaxDrawdown.Value)
		w.m.StrategyWinRate.WithLabelValues(s.StrategyID).Set(s.WinRate)
		w.m.StrategyTrades.WithLabelValues(s.StrategyID).Set(float64(s.TotalTrades))
	}
}

func (w *Wrapper) WSClients() Gauge {
	return w.m.WSClients
}

func (w *Wrapper) WSBroadcasts() Counter {
	return w.m.WSBroadcasts
}

// ObserveRequest counts a served HTTP request.
func (w *Wrapper) ObserveRequest(route string, code int) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (w *Wrapper) Metrics() *Metrics {
	return w.m
}
