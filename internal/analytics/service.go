package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrStrategyNotFound is returned when a strategy has no trades under the
// requested filter.
var ErrStrategyNotFound = errors.New("strategy not found")

// TradeSource supplies raw trades. Implementations may pre-filter using
// the filter, the service filters again regardless.
type TradeSource interface {
	Trades(ctx context.Context, f Filter) ([]Trade, error)
}

// StrategyTradeSource is implemented by sources that can fetch a single
// strategy's trades without a full scan.
type StrategyTradeSource interface {
	StrategyTrades(ctx context.Context, strategyID string, f Filter) ([]Trade, error)
}

// Observer receives computation telemetry.
type Observer interface {
	ObserveComputation(d time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveComputation(time.Duration, error) {}

type cacheEntry struct {
	createdAt time.Time
	trades    []Trade
	overview  Overview
}

// Service computes dashboard analytics for explicit filters. Results are
// memoised per filter for ttl; a zero ttl disables the cache.
type Service struct {
	source     TradeSource
	baseEquity float64
	ttl        time.Duration
	observer   Observer
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
	group singleflight.Group
}

// NewService creates an analytics service over source.
func NewService(source TradeSource, baseEquity float64, ttl time.Duration) *Service {
	return &Service{
		source:     source,
		baseEquity: baseEquity,
		ttl:        ttl,
		observer:   noopObserver{},
		now:        time.Now,
		cache:      make(map[string]cacheEntry),
	}
}

// SetObserver installs a telemetry observer.
func (s *Service) SetObserver(o Observer) {
	if o == nil {
		o = noopObserver{}
	}
	s.observer = o
}

// Invalidate drops every memoised result.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]cacheEntry)
	s.mu.Unlock()
}

// CacheSize returns the number of memoised filters.
func (s *Service) CacheSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// Overview returns the portfolio view for f.
func (s *Service) Overview(ctx context.Context, f Filter) (Overview, error) {
	e, err := s.load(ctx, f)
	if err != nil {
		return Overview{}, err
	}
	return e.overview, nil
}

// Strategies returns per-strategy metrics for f, best P&L first.
func (s *Service) Strategies(ctx context.Context, f Filter) ([]StrategyMetrics, error) {
	e, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return e.overview.Strategies, nil
}

// Strategy returns the metrics of a single strategy.
func (s *Service) Strategy(ctx context.Context, id string, f Filter) (StrategyMetrics, error) {
	e, err := s.load(ctx, f)
	if err != nil {
		return StrategyMetrics{}, err
	}
	for _, m := range e.overview.Strategies {
		if m.StrategyID == id {
			return m, nil
		}
	}
	return StrategyMetrics{}, fmt.Errorf("%w: %s", ErrStrategyNotFound, id)
}

// Trades returns the filtered trades of a strategy, most recent first.
// A memoised result for f is reused; otherwise a StrategyTradeSource is
// asked for the one strategy instead of loading everything.
func (s *Service) Trades(ctx context.Context, id string, f Filter) ([]Trade, error) {
	var out []Trade
	if e, ok := s.cached(f.Key()); ok {
		out = strategyTrades(e.trades, id)
	} else if src, ok := s.source.(StrategyTradeSource); ok {
		raw, err := src.StrategyTrades(ctx, id, f)
		if err != nil {
			return nil, fmt.Errorf("load trades: %w", err)
		}
		out = sortedByDate(strategyTrades(f.Apply(raw), id))
	} else {
		e, err := s.load(ctx, f)
		if err != nil {
			return nil, err
		}
		out = strategyTrades(e.trades, id)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, id)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func strategyTrades(trades []Trade, id string) []Trade {
	var out []Trade
	for _, t := range trades {
		if t.StrategyID == id {
			out = append(out, t)
		}
	}
	return out
}

// cached returns the live cache entry for key, if any.
func (s *Service) cached(key string) (cacheEntry, bool) {
	if s.ttl <= 0 {
		return cacheEntry{}, false
	}
	s.mu.Lock()
	e, ok := s.cache[key]
	s.mu.Unlock()
	if !ok || !s.now().Before(e.createdAt.Add(s.ttl)) {
		return cacheEntry{}, false
	}
	return e, true
}

// load returns the memoised entry for f or computes it. Concurrent misses
// on one key share a single source call.
func (s *Service) load(ctx context.Context, f Filter) (cacheEntry, error) {
	key := f.Key()
	if e, ok := s.cached(key); ok {
		return e, nil
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		if e, ok := s.cached(key); ok {
			return e, nil
		}
		return s.compute(ctx, f, key)
	})
	if err != nil {
		return cacheEntry{}, err
	}
	if shared {
		log.Debug().Str("filter", key).Msg("Joined in-flight computation")
	}
	return v.(cacheEntry), nil
}

func (s *Service) compute(ctx context.Context, f Filter, key string) (cacheEntry, error) {
	now := s.now()
	start := time.Now()
	raw, err := s.source.Trades(ctx, f)
	if err != nil {
		err = fmt.Errorf("load trades: %w", err)
		s.observer.ObserveComputation(time.Since(start), err)
		return cacheEntry{}, err
	}

	trades := sortedByDate(f.Apply(raw))
	e := cacheEntry{
		createdAt: now,
		trades:    trades,
		overview:  BuildOverview(trades, s.baseEquity, now),
	}
	s.observer.ObserveComputation(time.Since(start), nil)

	log.Debug().
		Str("filter", key).
		Int("trades", len(trades)).
		Int("strategies", len(e.overview.Strategies)).
		Dur("took", time.Since(start)).
		Msg("Computed analytics")

	if s.ttl > 0 {
		s.mu.Lock()
		for k, old := range s.cache {
			if !now.Before(old.createdAt.Add(s.ttl)) {
				delete(s.cache, k)
			}
		}
		s.cache[key] = e
		s.mu.Unlock()
	}
	return e, nil
}
