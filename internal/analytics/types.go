// Package analytics turns raw strategy trade lists into the per-strategy
// and portfolio-level performance figures shown on the dashboard: P&L,
// win rate, best pairs, daily equity curves, maximum drawdown, risk
// ratios and monthly breakdowns.
package analytics

import (
	"fmt"
	"strings"
	"time"

	"trading-dashboard/internal/drawdown"
)

// Side is the direction of a trade.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Trade is a closed trade attributed to a strategy.
type Trade struct {
	ID           string    `json:"id"`
	StrategyID   string    `json:"strategyId"`
	StrategyName string    `json:"strategyName"`
	Date         time.Time `json:"date"`
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	Quantity     float64   `json:"quantity"`
	EntryPrice   float64   `json:"entryPrice"`
	ExitPrice    float64   `json:"exitPrice"`
	PnL          float64   `json:"pnl"`
}

// AllSymbols is the symbol filter value meaning "no symbol filter".
const AllSymbols = "ALL"

// Filter selects trades by time range and symbol. Zero times are open
// bounds and both bounds are inclusive.
type Filter struct {
	From   time.Time
	To     time.Time
	Symbol string
}

// Key returns a canonical representation used for caching.
func (f Filter) Key() string {
	from, to := "-", "-"
	if !f.From.IsZero() {
		from = f.From.UTC().Format(time.RFC3339Nano)
	}
	if !f.To.IsZero() {
		to = f.To.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%s|%s|%s", from, to, f.Asset())
}

// Asset returns the symbol filter, or "" when every symbol is selected.
func (f Filter) Asset() string {
	s := strings.TrimSpace(f.Symbol)
	if s == "" || strings.EqualFold(s, AllSymbols) || strings.EqualFold(s, "All Assets") {
		return ""
	}
	return s
}

// Match reports whether a trade passes the filter.
func (f Filter) Match(t Trade) bool {
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(f.To) {
		return false
	}
	if s := f.Asset(); s != "" && t.Symbol != s {
		return false
	}
	return true
}

// Apply returns the trades that pass the filter. The input is not modified.
func (f Filter) Apply(trades []Trade) []Trade {
	out := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// PairPnL is the realised P&L of one symbol within a strategy.
type PairPnL struct {
	Symbol string  `json:"symbol"`
	PnL    float64 `json:"pnl"`
}

// EquityPoint is one day on a strategy equity curve.
type EquityPoint struct {
	Date     string  `json:"date"`
	Equity   float64 `json:"equity"`
	Drawdown float64 `json:"drawdown"`
}

// RiskMetrics holds the ratios derived from the trade list and equity curve.
type RiskMetrics struct {
	SharpeRatio          float64 `json:"sharpeRatio"`
	ProfitFactor         float64 `json:"profitFactor"`
	RecoveryFactor       float64 `json:"recoveryFactor"`
	UlcerIndex           float64 `json:"ulcerIndex"`
	MaxConsecutiveLosses int     `json:"maxConsecutiveLosses"`
	AvgWin               float64 `json:"avgWin"`
	AvgLoss              float64 `json:"avgLoss"`
	// ValueAtRisk95 is the 5th percentile daily equity change.
	ValueAtRisk95 float64 `json:"valueAtRisk95"`
	// ExpectedShortfall95 averages the daily changes at or below VaR.
	ExpectedShortfall95 float64 `json:"expectedShortfall95"`
	// SterlingRatio is net P&L over the average drawdown depth.
	SterlingRatio float64 `json:"sterlingRatio"`
}

// StrategyMetrics is the computed card/detail view of a strategy.
type StrategyMetrics struct {
	StrategyID   string          `json:"strategyId"`
	StrategyName string          `json:"strategyName"`
	PnL          float64         `json:"pnl"`
	WinRate      float64         `json:"winRate"`
	TotalTrades  int             `json:"totalTrades"`
	BestPairs    []PairPnL       `json:"bestPairs"`
	EquityCurve  []EquityPoint   `json:"equityCurve"`
	MaxDrawdown  drawdown.Result `json:"maxDrawdown"`
	Risk         RiskMetrics     `json:"risk"`
}

// MonthlyStat summarises one calendar month of trading.
type MonthlyStat struct {
	Month    string  `json:"month"`
	Return   float64 `json:"return"`
	Trades   int     `json:"trades"`
	WinRate  float64 `json:"winRate"`
	BestDay  float64 `json:"bestDay"`
	WorstDay float64 `json:"worstDay"`
	// MaxDrawdown is the deepest decline of portfolio equity within the
	// month, measured from the prior month's close.
	MaxDrawdown float64 `json:"maxDrawdown"`
}

// YearlyStat summarises the months of one calendar year.
type YearlyStat struct {
	Year              string  `json:"year"`
	Return            float64 `json:"return"`
	Trades            int     `json:"trades"`
	Months            int     `json:"months"`
	BestMonth         string  `json:"bestMonth"`
	BestMonthReturn   float64 `json:"bestMonthReturn"`
	WorstMonth        string  `json:"worstMonth"`
	WorstMonthReturn  float64 `json:"worstMonthReturn"`
	PositiveMonths    float64 `json:"positiveMonths"`
	AvgMonthlyReturn  float64 `json:"avgMonthlyReturn"`
	MonthlyVolatility float64 `json:"monthlyVolatility"`
}

// DateRange is the span of trade dates available, formatted YYYY-MM-DD.
type DateRange struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// Overview is the portfolio-level view backing the performance page.
type Overview struct {
	GeneratedAt time.Time         `json:"generatedAt"`
	Totals      StrategyMetrics   `json:"totals"`
	Strategies  []StrategyMetrics `json:"strategies"`
	Monthly     []MonthlyStat     `json:"monthly"`
	Yearly      []YearlyStat      `json:"yearly"`
	Assets      []string          `json:"assets"`
	DateRange   DateRange         `json:"dateRange"`
}
