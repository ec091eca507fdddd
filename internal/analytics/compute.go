package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"trading-dashboard/internal/drawdown"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
	yearLayout  = "2006"

	bestPairsLimit = 3

	// TotalsID identifies the synthetic all-strategies entry in an Overview.
	TotalsID   = "all"
	TotalsName = "All Strategies"
)

// ComputeStrategy builds the metrics of one strategy from its trades.
// Equity starts at baseEquity and accumulates trade P&L in date order;
// the curve keeps the last equity of each UTC day.
func ComputeStrategy(id, name string, trades []Trade, baseEquity float64) StrategyMetrics {
	sorted := sortedByDate(trades)

	total := decimal.Zero
	wins := 0
	bySymbol := make(map[string]decimal.Decimal)
	for _, t := range sorted {
		pnl := decimal.NewFromFloat(t.PnL)
		total = total.Add(pnl)
		bySymbol[t.Symbol] = bySymbol[t.Symbol].Add(pnl)
		if t.PnL > 0 {
			wins++
		}
	}

	winRate := 0.0
	if len(sorted) > 0 {
		winRate = float64(wins) / float64(len(sorted))
	}

	series := DailySeries(sorted, baseEquity)
	dd := drawdown.Max(series)
	curve := drawdown.Curve(series)

	equity := make([]EquityPoint, len(series))
	for i, p := range series {
		equity[i] = EquityPoint{Date: p.Date, Equity: p.Value, Drawdown: curve[i]}
	}

	return StrategyMetrics{
		StrategyID:   id,
		StrategyName: name,
		PnL:          toFloat(total.Round(2)),
		WinRate:      winRate,
		TotalTrades:  len(sorted),
		BestPairs:    bestPairs(bySymbol, bestPairsLimit),
		EquityCurve:  equity,
		MaxDrawdown:  dd,
		Risk:         ComputeRisk(sorted, series, dd),
	}
}

// Aggregate groups trades by strategy and computes metrics for each,
// ordered by P&L descending.
func Aggregate(trades []Trade, baseEquity float64) []StrategyMetrics {
	type group struct {
		name   string
		trades []Trade
	}
	groups := make(map[string]*group)
	var order []string
	for _, t := range trades {
		g, ok := groups[t.StrategyID]
		if !ok {
			g = &group{name: t.StrategyName}
			groups[t.StrategyID] = g
			order = append(order, t.StrategyID)
		}
		g.trades = append(g.trades, t)
	}

	out := make([]StrategyMetrics, 0, len(groups))
	for _, id := range order {
		g := groups[id]
		out = append(out, ComputeStrategy(id, g.name, g.trades, baseEquity))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PnL != out[j].PnL {
			return out[i].PnL > out[j].PnL
		}
		return out[i].StrategyID < out[j].StrategyID
	})
	return out
}

// BuildOverview computes the totals, per-strategy metrics and monthly
// breakdown of a filtered trade list.
func BuildOverview(trades []Trade, baseEquity float64, now time.Time) Overview {
	monthly := MonthlyBreakdown(trades, baseEquity)
	return Overview{
		GeneratedAt: now,
		Totals:      ComputeStrategy(TotalsID, TotalsName, trades, baseEquity),
		Strategies:  Aggregate(trades, baseEquity),
		Monthly:     monthly,
		Yearly:      YearlyBreakdown(monthly),
		Assets:      Symbols(trades),
		DateRange:   Range(trades),
	}
}

// DailySeries converts date-sorted trades into a daily cumulative equity
// series, rounded to cents.
func DailySeries(sorted []Trade, baseEquity float64) drawdown.Series {
	series := drawdown.Series{}
	equity := decimal.NewFromFloat(baseEquity)
	for _, t := range sorted {
		equity = equity.Add(decimal.NewFromFloat(t.PnL))
		day := t.Date.UTC().Format(dayLayout)
		value := toFloat(equity.Round(2))

		if n := len(series); n > 0 && series[n-1].Date == day {
			series[n-1].Value = value
			continue
		}
		series = append(series, drawdown.Point{Value: value, Date: day})
	}
	return series
}

// MonthlyBreakdown summarises trades per UTC calendar month, oldest first.
// Monthly drawdowns are taken on the daily equity series starting at
// baseEquity.
func MonthlyBreakdown(trades []Trade, baseEquity float64) []MonthlyStat {
	sorted := sortedByDate(trades)
	drawdowns := monthlyDrawdowns(DailySeries(sorted, baseEquity), baseEquity)

	type acc struct {
		total decimal.Decimal
		count int
		wins  int
		days  map[string]decimal.Decimal
	}
	months := make(map[string]*acc)
	var order []string
	for _, t := range sorted {
		m := t.Date.UTC().Format(monthLayout)
		a, ok := months[m]
		if !ok {
			a = &acc{days: make(map[string]decimal.Decimal)}
			months[m] = a
			order = append(order, m)
		}
		pnl := decimal.NewFromFloat(t.PnL)
		a.total = a.total.Add(pnl)
		a.count++
		if t.PnL > 0 {
			a.wins++
		}
		day := t.Date.UTC().Format(dayLayout)
		a.days[day] = a.days[day].Add(pnl)
	}

	out := make([]MonthlyStat, 0, len(order))
	for _, m := range order {
		a := months[m]
		stat := MonthlyStat{
			Month:   m,
			Return:  toFloat(a.total.Round(2)),
			Trades:  a.count,
			WinRate: float64(a.wins) / float64(a.count),
		}
		first := true
		for _, d := range a.days {
			v := toFloat(d.Round(2))
			if first || v > stat.BestDay {
				stat.BestDay = v
			}
			if first || v < stat.WorstDay {
				stat.WorstDay = v
			}
			first = false
		}
		stat.MaxDrawdown = drawdowns[m]
		out = append(out, stat)
	}
	return out
}

// monthlyDrawdowns returns the max drawdown of each month of a daily
// series. Each month is measured from the previous month's closing
// equity, or from baseEquity for the first month.
func monthlyDrawdowns(series drawdown.Series, baseEquity float64) map[string]float64 {
	out := make(map[string]float64)
	open := baseEquity
	for i := 0; i < len(series); {
		month := series[i].Date[:len(monthLayout)]
		window := drawdown.Series{{Value: open}}
		for ; i < len(series) && series[i].Date[:len(monthLayout)] == month; i++ {
			window = append(window, series[i])
		}
		out[month] = drawdown.Max(window).Value
		open = window[len(window)-1].Value
	}
	return out
}

// YearlyBreakdown rolls monthly stats up into calendar years, oldest first.
// Volatility is the sample standard deviation of monthly returns.
func YearlyBreakdown(monthly []MonthlyStat) []YearlyStat {
	var out []YearlyStat
	var returns []float64
	flush := func() {
		if len(out) == 0 {
			return
		}
		y := &out[len(out)-1]
		var sum, positive float64
		for _, r := range returns {
			sum += r
			if r > 0 {
				positive++
			}
		}
		n := float64(len(returns))
		y.Return = toFloat(decimal.NewFromFloat(sum).Round(2))
		y.PositiveMonths = positive / n
		y.AvgMonthlyReturn = sum / n
		if len(returns) > 1 {
			var variance float64
			for _, r := range returns {
				variance += math.Pow(r-y.AvgMonthlyReturn, 2)
			}
			y.MonthlyVolatility = math.Sqrt(variance / (n - 1))
		}
	}

	for _, m := range monthly {
		year := m.Month[:len(yearLayout)]
		if len(out) == 0 || out[len(out)-1].Year != year {
			flush()
			out = append(out, YearlyStat{
				Year:             year,
				BestMonth:        m.Month,
				BestMonthReturn:  m.Return,
				WorstMonth:       m.Month,
				WorstMonthReturn: m.Return,
			})
			returns = returns[:0]
		}
		y := &out[len(out)-1]
		y.Trades += m.Trades
		y.Months++
		if m.Return > y.BestMonthReturn {
			y.BestMonth, y.BestMonthReturn = m.Month, m.Return
		}
		if m.Return < y.WorstMonthReturn {
			y.WorstMonth, y.WorstMonthReturn = m.Month, m.Return
		}
		returns = append(returns, m.Return)
	}
	flush()
	if out == nil {
		out = []YearlyStat{}
	}
	return out
}

// Symbols returns the distinct traded symbols in ascending order.
func Symbols(trades []Trade) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, t := range trades {
		if _, ok := seen[t.Symbol]; ok {
			continue
		}
		seen[t.Symbol] = struct{}{}
		out = append(out, t.Symbol)
	}
	sort.Strings(out)
	return out
}

// Range returns the first and last trade day.
func Range(trades []Trade) DateRange {
	var r DateRange
	var lo, hi time.Time
	for i, t := range trades {
		if i == 0 || t.Date.Before(lo) {
			lo = t.Date
		}
		if i == 0 || t.Date.After(hi) {
			hi = t.Date
		}
	}
	if len(trades) > 0 {
		r.Min = lo.UTC().Format(dayLayout)
		r.Max = hi.UTC().Format(dayLayout)
	}
	return r
}

func bestPairs(bySymbol map[string]decimal.Decimal, limit int) []PairPnL {
	pairs := make([]PairPnL, 0, len(bySymbol))
	for s, pnl := range bySymbol {
		pairs = append(pairs, PairPnL{Symbol: s, PnL: toFloat(pnl.Round(2))})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].PnL != pairs[j].PnL {
			return pairs[i].PnL > pairs[j].PnL
		}
		return pairs[i].Symbol < pairs[j].Symbol
	})
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

func sortedByDate(trades []Trade) []Trade {
	sorted := make([]Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
