// Package drawdown computes peak-to-trough declines over time-ordered
// equity series.
//
// The functions in this package are pure: they never mutate their input,
// hold no state between calls and are safe for concurrent use.
package drawdown

import "math"

// Point is a single observation of cumulative equity (or P&L).
// Date is a reporting label only and has no effect on the result.
type Point struct {
	Value float64 `json:"value"`
	Date  string  `json:"date,omitempty"`
}

// Series is a sequence of points in ascending time order.
// Callers are responsible for sorting; order changes the result.
type Series []Point

// Result describes the maximum drawdown of a series.
type Result struct {
	// Value is the maximum drawdown as a negative fraction of the peak
	// (-0.18 means an 18% decline). It is 0 when equity never declined.
	Value      float64 `json:"value"`
	PeakDate   string  `json:"peakDate,omitempty"`
	TroughDate string  `json:"troughDate,omitempty"`

	// PeakIndex and TroughIndex are -1 when no drawdown was found.
	PeakIndex   int `json:"peakIndex"`
	TroughIndex int `json:"troughIndex"`
}

// HasTrough reports whether the series declined from a positive peak.
func (r Result) HasTrough() bool {
	return r.TroughIndex >= 0
}

// Percent returns the drawdown as a percentage, e.g. -18.0.
func (r Result) Percent() float64 {
	return r.Value * 100
}

// Max returns the largest relative decline from a running peak to any
// later value in a single pass.
//
// While the running peak is zero or negative the instantaneous drawdown
// is defined as 0, so a series that never rises above zero reports no
// drawdown even if it keeps falling. Declines past zero equity are
// reported as is, so Value may fall below -1.
func Max(series Series) Result {
	peak := math.Inf(-1)
	peakIdx := -1
	troughIdx := -1
	ddPeakIdx := -1
	maxDD := 0.0

	for i, p := range series {
		v := p.Value
		if v > peak {
			peak = v
			peakIdx = i
		}

		if dd := relative(peak, v); dd > maxDD {
			maxDD = dd
			troughIdx = i
			ddPeakIdx = peakIdx
		}
	}

	res := Result{PeakIndex: ddPeakIdx, TroughIndex: troughIdx}
	if ddPeakIdx >= 0 {
		res.PeakDate = series[ddPeakIdx].Date
	}
	if troughIdx >= 0 {
		res.TroughDate = series[troughIdx].Date
	}
	if maxDD > 0 {
		res.Value = -maxDD
	}
	return res
}

// Curve returns the drawdown at every point relative to the running
// peak, using the same non-positive peak rule as Max. Values are <= 0.
func Curve(series Series) []float64 {
	out := make([]float64, len(series))
	peak := math.Inf(-1)
	for i, p := range series {
		if p.Value > peak {
			peak = p.Value
		}
		if dd := relative(peak, p.Value); dd > 0 {
			out[i] = -dd
		}
	}
	return out
}

// FromValues builds a series from parallel value and date slices.
// Missing dates are left empty.
func FromValues(values []float64, dates []string) Series {
	s := make(Series, len(values))
	for i, v := range values {
		s[i].Value = v
		if i < len(dates) {
			s[i].Date = dates[i]
		}
	}
	return s
}

func relative(peak, v float64) float64 {
	if peak <= 0 {
		return 0
	}
	return (peak - v) / peak
}
