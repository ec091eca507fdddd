// Package storage provides persistent trade storage for the dashboard.
// It uses BoltDB as the underlying storage engine and keeps closed
// strategy trades keyed by strategy and time so that per-strategy
// history can be range-scanned efficiently.
//
// Store satisfies analytics.TradeSource, so it can back the dashboard
// directly.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"trading-dashboard/internal/analytics"
)

const (
	// DBFile is the database file created inside the data directory.
	DBFile = "dashboard-data.db"

	tradesBucket = "trades" // Bucket name for storing trade records
)

// Store provides persistent storage for strategy trades using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

var (
	_ analytics.TradeSource         = (*Store)(nil)
	_ analytics.StrategyTradeSource = (*Store)(nil)
)

// New opens (or creates) the trade database in dataPath and makes sure
// the buckets exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, DBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(tradesBucket)); err != nil {
			return fmt.Errorf("create trades bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// tradeKey orders keys by strategy, then time. The nanosecond timestamp
// is zero padded so byte order matches time order.
func tradeKey(strategyID string, ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s_%020d_%s", strategyID, ts.UnixNano(), id))
}

func strategyPrefix(strategyID string) []byte {
	return []byte(strategyID + "_")
}

// SaveTrade stores a single trade, replacing any trade with the same
// strategy, time and ID.
func (s *Store) SaveTrade(trade analytics.Trade) error {
	return s.SaveTrades([]analytics.Trade{trade})
}

// SaveTrades stores trades in one transaction.
func (s *Store) SaveTrades(trades []analytics.Trade) error {
	if s.db == nil {
		return fmt.Errorf("store is closed")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(tradesBucket))
		for _, trade := range trades {
			if trade.StrategyID == "" {
				return fmt.Errorf("trade %s: missing strategy id", trade.ID)
			}
			if trade.Date.IsZero() {
				return fmt.Errorf("trade %s: missing date", trade.ID)
			}
			data, err := json.Marshal(trade)
			if err != nil {
				return fmt.Errorf("marshal trade %s: %w", trade.ID, err)
			}
			if err := b.Put(tradeKey(trade.StrategyID, trade.Date, trade.ID), data); err != nil {
				return fmt.Errorf("put trade %s: %w", trade.ID, err)
			}
		}
		return nil
	})
}

// Trades returns every stored trade passing the filter, ordered by date.
func (s *Store) Trades(ctx context.Context, f analytics.Filter) ([]analytics.Trade, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store is closed")
	}

	var trades []analytics.Trade
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(tradesBucket)).Cursor()
		n := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			n++
			if n%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			var trade analytics.Trade
			if err := json.Unmarshal(v, &trade); err != nil {
				continue // Skip malformed records
			}
			if f.Match(trade) {
				trades = append(trades, trade)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Date.Before(trades[j].Date)
	})
	return trades, nil
}

// StrategyTrades returns the trades of one strategy matching f, oldest
// first. The time bounds of f drive a cursor range scan over the
// strategy's keys; zero bounds are open.
func (s *Store) StrategyTrades(ctx context.Context, strategyID string, f analytics.Filter) ([]analytics.Trade, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store is closed")
	}

	var startNano, endNano int64 = 0, math.MaxInt64
	if !f.From.IsZero() {
		startNano = f.From.UnixNano()
	}
	if !f.To.IsZero() {
		endNano = f.To.UnixNano()
	}

	var trades []analytics.Trade
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(tradesBucket)).Cursor()

		prefix := strategyPrefix(strategyID)
		startKey := []byte(fmt.Sprintf("%s_%020d", strategyID, startNano))
		endKey := []byte(fmt.Sprintf("%s_%020d_\xff", strategyID, endNano))

		n := 0
		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				break
			}
			n++
			if n%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			var trade analytics.Trade
			if err := json.Unmarshal(v, &trade); err != nil {
				continue
			}
			if f.Match(trade) {
				trades = append(trades, trade)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// Strategies returns the distinct strategy IDs present in the store.
func (s *Store) Strategies() ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store is closed")
	}

	seen := make(map[string]struct{})
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(tradesBucket)).ForEach(func(k, v []byte) error {
			var trade analytics.Trade
			if err := json.Unmarshal(v, &trade); err != nil {
				return nil
			}
			if _, ok := seen[trade.StrategyID]; !ok {
				seen[trade.StrategyID] = struct{}{}
				ids = append(ids, trade.StrategyID)
			}
			return nil
		})
	})
	sort.Strings(ids)
	return ids, err
}

// Count returns the number of stored trades.
func (s *Store) Count() (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("store is closed")
	}
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(tradesBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
