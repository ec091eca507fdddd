// Package provider supplies strategy trades to the analytics service from
// a seeded generator, a remote trade API or exported files.
package provider

import (
	"context"
	"sort"

	"trading-dashboard/internal/analytics"
)

// Source supplies trades for a filter.
type Source interface {
	Trades(ctx context.Context, f analytics.Filter) ([]analytics.Trade, error)
}

// Static serves a fixed, in-memory trade list.
type Static struct {
	trades []analytics.Trade
}

var _ Source = (*Static)(nil)

// NewStatic copies trades and orders them by date.
func NewStatic(trades []analytics.Trade) *Static {
	cp := make([]analytics.Trade, len(trades))
	copy(cp, trades)
	sort.SliceStable(cp, func(i, j int) bool {
		return cp[i].Date.Before(cp[j].Date)
	})
	return &Static{trades: cp}
}

// Trades returns the trades passing f.
func (s *Static) Trades(ctx context.Context, f analytics.Filter) ([]analytics.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]analytics.Trade, 0, len(s.trades))
	for _, t := range s.trades {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Len returns the number of trades.
func (s *Static) Len() int { return len(s.trades) }
