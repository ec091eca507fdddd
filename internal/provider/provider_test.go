package provider

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-dashboard/internal/analytics"
	"trading-dashboard/internal/cfg"
	"trading-dashboard/internal/storage"
)

var mockEnd = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

func TestGenerateTrades_Deterministic(t *testing.T) {
	cfg := MockConfig{Seed: 7, Days: 30, End: mockEnd}

	a := GenerateTrades(cfg)
	b := GenerateTrades(cfg)
	require.NotEmpty(t, a)
	assert.Equal(t, a, b, "same seed must produce the same history")

	c := GenerateTrades(MockConfig{Seed: 8, Days: 30, End: mockEnd})
	assert.NotEqual(t, a[0].ID, c[0].ID)
}

func TestGenerateTrades_Shape(t *testing.T) {
	days := 90
	trades := GenerateTrades(MockConfig{Seed: 1, Days: days, End: mockEnd})

	first := mockEnd.AddDate(0, 0, -(days - 1))
	last := mockEnd.Add(24 * time.Hour)
	assert.LessOrEqual(t, len(trades), days*len(MockStrategies)*maxTradesPerDay)

	perDay := map[string]int{}
	for _, tr := range trades {
		assert.False(t, tr.Date.Before(first), "trade before window: %s", tr.Date)
		assert.True(t, tr.Date.Before(last), "trade after window: %s", tr.Date)
		assert.Contains(t, MockSymbols, tr.Symbol)
		assert.GreaterOrEqual(t, tr.Quantity, 10.0)
		assert.Less(t, tr.Quantity, 50.0)
		assert.GreaterOrEqual(t, tr.PnL, -20.0)
		assert.LessOrEqual(t, tr.PnL, 30.0)

		// exit price reproduces the pnl
		move := tr.ExitPrice - tr.EntryPrice
		if tr.Side == analytics.Short {
			move = -move
		}
		assert.InDelta(t, tr.PnL, move*tr.Quantity, 1e-6)

		assert.InDelta(t, math.Round(tr.PnL*100), tr.PnL*100, 1e-6)

		perDay[tr.StrategyID+tr.Date.Format("2006-01-02")]++
	}
	for key, n := range perDay {
		assert.LessOrEqual(t, n, maxTradesPerDay, key)
	}
}

func TestStatic_Trades(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStatic([]analytics.Trade{
		{ID: "b", StrategyID: "x", Date: base.Add(2 * time.Hour), Symbol: "ETH/USDT"},
		{ID: "a", StrategyID: "x", Date: base, Symbol: "BTC/USDT"},
	})
	assert.Equal(t, 2, s.Len())

	got, err := s.Trades(context.Background(), analytics.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "a", got[0].ID)

	got, err = s.Trades(context.Background(), analytics.Filter{Symbol: "ETH/USDT"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Trades(ctx, analytics.Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestREST_Trades(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/trades", r.URL.Path)
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"1","strategyId":"breakout","strategyName":"Breakout","date":"2024-03-01T10:00:00Z","symbol":"BTC/USDT","side":"LONG","pnl":12.5},
			{"id":"2","strategyId":"breakout","strategyName":"Breakout","date":"2024-03-05T10:00:00Z","symbol":"BTC/USDT","side":"SHORT","pnl":-3}
		]`))
	}))
	defer srv.Close()

	c := NewREST(srv.URL+"/", time.Second)
	got, err := c.Trades(context.Background(), analytics.Filter{
		From:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Symbol: "BTC/USDT",
	})
	require.NoError(t, err)
	require.Len(t, got, 1, "trades outside the range are dropped locally")
	assert.Equal(t, 12.5, got[0].PnL)
	assert.Equal(t, analytics.Long, got[0].Side)

	assert.Contains(t, query, "symbol=BTC%2FUSDT")
	assert.Contains(t, query, "start_date=2024-03-01")
	assert.Contains(t, query, "end_date=2024-03-02")
}

func TestREST_AllAssetsOmitsSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("symbol"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	got, err := NewREST(srv.URL, 0).Trades(context.Background(), analytics.Filter{Symbol: "All Assets"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestREST_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewREST(srv.URL, time.Second).Trades(context.Background(), analytics.Filter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStatus))
	assert.Contains(t, err.Error(), "503")
}

func TestREST_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewREST(url, time.Second).Trades(context.Background(), analytics.Filter{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrStatus))
}

func TestReadCSV(t *testing.T) {
	in := strings.Join([]string{
		"strategy_id,date,symbol,side,quantity,entry_price,exit_price,pnl",
		"breakout,2024-03-01 10:00:00,BTC/USDT,buy,10,100,101,10",
		"breakout,not-a-date,BTC/USDT,LONG,10,100,101,10",
		",2024-03-01,BTC/USDT,LONG,10,100,101,10",
		"trend,2024-03-02,ETH/USDT,SELL,5,50,49,5",
		"trend,2024-03-02,ETH/USDT,SIDEWAYS,5,50,49,5",
	}, "\n")

	trades, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "breakout", trades[0].StrategyName, "name defaults to id")
	assert.NotEmpty(t, trades[0].ID)
	assert.Equal(t, analytics.Long, trades[0].Side)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), trades[0].Date)
	assert.Equal(t, analytics.Short, trades[1].Side)
	assert.Equal(t, 49.0, trades[1].ExitPrice)
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("strategy_id,date\nx,2024-01-01\n"))
	assert.Error(t, err)
}

func TestCSV_RoundTrip(t *testing.T) {
	trades := GenerateTrades(MockConfig{Seed: 3, Days: 5, End: mockEnd})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, trades))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(trades))
	for i := range trades {
		assert.Equal(t, trades[i].ID, got[i].ID)
		assert.True(t, trades[i].Date.Equal(got[i].Date))
		assert.Equal(t, trades[i].PnL, got[i].PnL)
	}
}

func TestReadJSON(t *testing.T) {
	array := `[{"strategyId":"a","date":"2024-01-01T00:00:00Z","pnl":1},{"date":"2024-01-01T00:00:00Z","pnl":2}]`
	got, err := ReadJSON(strings.NewReader("  \n" + array))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, analytics.Long, got[0].Side)
	assert.Equal(t, "a", got[0].StrategyName)

	lines := "{\"strategyId\":\"a\",\"date\":\"2024-01-01T00:00:00Z\",\"pnl\":1}\n{\"strategyId\":\"b\",\"date\":\"2024-01-02T00:00:00Z\",\"pnl\":2}\n"
	got, err = ReadJSON(strings.NewReader(lines))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	undated := `[{"id":"x","strategyId":"a","pnl":1},{"id":"y","strategyId":"a","date":"2024-01-01T00:00:00Z","pnl":2}]`
	got, err = ReadJSON(strings.NewReader(undated))
	require.NoError(t, err)
	require.Len(t, got, 1, "trades without a date are skipped")
	assert.Equal(t, "y", got[0].ID)

	got, err = ReadJSON(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ReadJSON(strings.NewReader("[{"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	trades := GenerateTrades(MockConfig{Seed: 5, Days: 3, End: mockEnd})

	csvPath := filepath.Join(dir, "trades.csv")
	f, err := os.Create(csvPath)
	require.NoError(t, err)
	require.NoError(t, WriteCSV(f, trades))
	require.NoError(t, f.Close())

	src, err := LoadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, len(trades), src.Len())

	jsonPath := filepath.Join(dir, "trades.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"strategyId":"a","date":"2024-01-01T00:00:00Z","pnl":1}]`), 0o644))
	src, err = LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Len())

	_, err = LoadFile(filepath.Join(dir, "trades.xml"))
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	settings := cfg.Settings{Source: "mock", MockSeed: 1, MockDays: 5}
	src, closeFn, err := Open(settings)
	require.NoError(t, err)
	defer closeFn()
	_, ok := src.(*Static)
	assert.True(t, ok)

	dir := t.TempDir()
	src, closeFn, err = Open(cfg.Settings{Source: "boltdb", DataPath: dir})
	require.NoError(t, err)
	_, ok = src.(*storage.Store)
	assert.True(t, ok)
	assert.NoError(t, closeFn())

	src, _, err = Open(cfg.Settings{Source: "rest", APIBaseURL: "http://localhost:1"})
	require.NoError(t, err)
	_, ok = src.(*REST)
	assert.True(t, ok)

	_, _, err = Open(cfg.Settings{Source: "csv", InputPath: filepath.Join(dir, "missing.csv")})
	assert.Error(t, err)

	jsonPath := filepath.Join(dir, "trades.jsonl")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"strategyId":"a","date":"2024-01-01T00:00:00Z","pnl":1}`+"\n"), 0o644))
	src, _, err = Open(cfg.Settings{Source: "file", InputPath: jsonPath})
	require.NoError(t, err)
	static, ok := src.(*Static)
	require.True(t, ok)
	assert.Equal(t, 1, static.Len(), "extension picks the JSON reader")

	_, _, err = Open(cfg.Settings{Source: "file", InputPath: filepath.Join(dir, "trades.xml")})
	assert.Error(t, err)

	_, closeFn, err = Open(cfg.Settings{Source: "carrier-pigeon"})
	assert.Error(t, err)
	assert.NotNil(t, closeFn)
}
