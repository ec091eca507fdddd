package analytics

import (
	"math"
	"sort"

	"trading-dashboard/internal/drawdown"
)

const (
	// tradingDays annualises daily Sharpe ratios.
	tradingDays = 252

	varConfidence = 0.95
)

// ComputeRisk derives risk ratios from date-sorted trades and their
// daily equity series. dd must be drawdown.Max(series).
func ComputeRisk(sorted []Trade, series drawdown.Series, dd drawdown.Result) RiskMetrics {
	var r RiskMetrics

	var grossProfit, grossLoss float64
	var wins, losses int
	streak := 0
	for _, t := range sorted {
		switch {
		case t.PnL > 0:
			grossProfit += t.PnL
			wins++
			streak = 0
		case t.PnL < 0:
			grossLoss += -t.PnL
			losses++
			streak++
			if streak > r.MaxConsecutiveLosses {
				r.MaxConsecutiveLosses = streak
			}
		default:
			streak = 0
		}
	}

	if grossLoss > 0 {
		r.ProfitFactor = grossProfit / grossLoss
	}
	if wins > 0 {
		r.AvgWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		r.AvgLoss = -grossLoss / float64(losses)
	}

	changes := dailyChanges(series)
	r.SharpeRatio = sharpe(changes)
	r.UlcerIndex = ulcer(drawdown.Curve(series))
	r.ValueAtRisk95, r.ExpectedShortfall95 = historicalVaR(changes, varConfidence)
	if avg := averageDrawdown(series); avg > 0 {
		r.SterlingRatio = (grossProfit - grossLoss) / avg
	}

	if dd.HasTrough() {
		amount := series[dd.PeakIndex].Value - series[dd.TroughIndex].Value
		if amount > 0 {
			r.RecoveryFactor = (grossProfit - grossLoss) / amount
		}
	}
	return r
}

func dailyChanges(series drawdown.Series) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		out = append(out, series[i].Value-series[i-1].Value)
	}
	return out
}

// sharpe assumes a zero risk-free rate.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += math.Pow(r-mean, 2)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))
	if stdDev == 0 {
		return 0
	}

	return (mean / stdDev) * math.Sqrt(tradingDays)
}

// ulcer is the root mean square of the drawdown curve, in percent.
func ulcer(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	var sq float64
	for _, d := range curve {
		sq += d * d
	}
	return math.Sqrt(sq/float64(len(curve))) * 100
}

// historicalVaR returns the lower-tail daily change at the given
// confidence and the mean of the changes at or below it. Both are <= 0.
func historicalVaR(changes []float64, confidence float64) (valueAtRisk, shortfall float64) {
	if len(changes) == 0 {
		return 0, 0
	}
	sorted := make([]float64, len(changes))
	copy(sorted, changes)
	sort.Float64s(sorted)

	tail := math.Round((1-confidence)*float64(len(sorted))*1e9) / 1e9
	idx := int(math.Ceil(tail)) - 1
	if idx < 0 {
		idx = 0
	}

	var sum float64
	for _, c := range sorted[:idx+1] {
		sum += c
	}
	return math.Min(sorted[idx], 0), math.Min(sum/float64(idx+1), 0)
}

// averageDrawdown is the mean depth below the running peak, in equity
// units, over the days spent under water. Non-positive peaks count as
// flat, matching drawdown.Max.
func averageDrawdown(series drawdown.Series) float64 {
	peak := math.Inf(-1)
	var sum float64
	var n int
	for _, p := range series {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 && p.Value < peak {
			sum += peak - p.Value
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
