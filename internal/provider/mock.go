package provider

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trading-dashboard/internal/analytics"
)

// Strategy identifies a strategy the mock generator trades.
type Strategy struct {
	ID   string
	Name string
}

// MockStrategies are the strategies produced by NewMock.
var MockStrategies = []Strategy{
	{ID: "mean-reversion", Name: "Mean Reversion"},
	{ID: "trend-following", Name: "Trend Following"},
	{ID: "breakout", Name: "Breakout"},
}

// MockSymbols are the pairs produced by NewMock.
var MockSymbols = []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "AVAX/USDT", "BNB/USDT"}

const maxTradesPerDay = 2

// MockConfig controls the generated history.
type MockConfig struct {
	Seed int64
	Days int
	End  time.Time // last generated day; zero means today
}

// NewMock generates a deterministic trade history: for every day and
// strategy between zero and two trades, skewed slightly towards profit.
func NewMock(cfg MockConfig) *Static {
	return NewStatic(GenerateTrades(cfg))
}

// GenerateTrades returns the mock history for cfg. The same seed, day count
// and end date always produce the same trades.
func GenerateTrades(cfg MockConfig) []analytics.Trade {
	end := cfg.End
	if end.IsZero() {
		end = time.Now()
	}
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	r := rand.New(rand.NewSource(cfg.Seed))
	var trades []analytics.Trade

	for day := cfg.Days - 1; day >= 0; day-- {
		date := end.AddDate(0, 0, -day)
		for _, s := range MockStrategies {
			n := r.Intn(maxTradesPerDay + 1)
			for i := 0; i < n; i++ {
				trades = append(trades, mockTrade(r, s, date))
			}
		}
	}
	return trades
}

func mockTrade(r *rand.Rand, s Strategy, day time.Time) analytics.Trade {
	symbol := MockSymbols[r.Intn(len(MockSymbols))]
	side := analytics.Long
	if r.Float64() >= 0.5 {
		side = analytics.Short
	}

	qty := (r.Float64()*4 + 1) * 10
	entry := r.Float64()*1000 + 10
	pnl, _ := decimal.NewFromFloat((r.Float64() - 0.4) * 50).Round(2).Float64()

	move := pnl / qty
	exit := entry + move
	if side == analytics.Short {
		exit = entry - move
	}

	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		id = uuid.New()
	}

	return analytics.Trade{
		ID:           id.String(),
		StrategyID:   s.ID,
		StrategyName: s.Name,
		Date:         day.Add(time.Duration(r.Intn(24*60*60)) * time.Second),
		Symbol:       symbol,
		Side:         side,
		Quantity:     qty,
		EntryPrice:   entry,
		ExitPrice:    exit,
		PnL:          pnl,
	}
}
