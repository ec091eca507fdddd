package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-dashboard/internal/analytics"
	"trading-dashboard/internal/common"
	"trading-dashboard/internal/drawdown"
	"trading-dashboard/internal/metrics"
	"trading-dashboard/internal/provider"
)

var (
	testBase = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	testNow  = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
)

func testTrades() []analytics.Trade {
	day := 24 * time.Hour
	return []analytics.Trade{
		{ID: "1", StrategyID: "breakout", StrategyName: "Breakout", Date: testBase.Add(10 * time.Hour), Symbol: "BTC/USDT", Side: analytics.Long, PnL: 100},
		{ID: "2", StrategyID: "breakout", StrategyName: "Breakout", Date: testBase.Add(day + 10*time.Hour), Symbol: "ETH/USDT", Side: analytics.Short, PnL: -50},
		{ID: "3", StrategyID: "breakout", StrategyName: "Breakout", Date: testBase.Add(2*day + 10*time.Hour), Symbol: "BTC/USDT", Side: analytics.Long, PnL: 30},
		{ID: "4", StrategyID: "trend-following", StrategyName: "Trend Following", Date: testBase.Add(day + 12*time.Hour), Symbol: "ETH/USDT", Side: analytics.Long, PnL: 20},
	}
}

type countingSource struct {
	provider.Source
	mu    sync.Mutex
	calls int
}

func (c *countingSource) Trades(ctx context.Context, f analytics.Filter) ([]analytics.Trade, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Source.Trades(ctx, f)
}

func (c *countingSource) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type failingSource struct{ err error }

func (f failingSource) Trades(context.Context, analytics.Filter) ([]analytics.Trade, error) {
	return nil, f.err
}

func newTestServer(t *testing.T, source analytics.TradeSource) (*Server, *metrics.Metrics) {
	t.Helper()
	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(registry)
	svc := analytics.NewService(source, 0, time.Minute)
	s := NewServer(svc, metrics.NewWrapper(m), Config{
		RefreshInterval:  time.Hour,
		ChartCacheTTL:    time.Minute,
		DefaultTimeframe: "1M",
		MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
	s.now = func() time.Time { return testNow }
	return s, m
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestPerformance(t *testing.T) {
	s, m := newTestServer(t, provider.NewStatic(testTrades()))

	rec := get(t, s, "/api/performance")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var overview analytics.Overview
	decode(t, rec, &overview)
	assert.Equal(t, 4, overview.Totals.TotalTrades)
	assert.Equal(t, 100.0, overview.Totals.PnL)
	require.Len(t, overview.Strategies, 2)
	assert.Equal(t, "breakout", overview.Strategies[0].StrategyID)
	assert.Equal(t, -0.5, overview.Strategies[0].MaxDrawdown.Value)
	assert.Equal(t, "2024-03-01", overview.Strategies[0].MaxDrawdown.PeakDate)
	assert.Equal(t, "2024-03-02", overview.Strategies[0].MaxDrawdown.TroughDate)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, overview.Assets)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/performance", "200")))
}

func TestPerformance_Filters(t *testing.T) {
	s, _ := newTestServer(t, provider.NewStatic(testTrades()))

	rec := get(t, s, "/api/performance?asset=ETH%2FUSDT&timeframe=ALL")
	require.Equal(t, http.StatusOK, rec.Code)
	var overview analytics.Overview
	decode(t, rec, &overview)
	assert.Equal(t, 2, overview.Totals.TotalTrades)

	rec = get(t, s, "/api/performance?asset=All%20Assets&start_date=2024-03-02&end_date=2024-03-02")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &overview)
	assert.Equal(t, 2, overview.Totals.TotalTrades, "end_date covers the whole day")

	rec = get(t, s, "/api/performance?timeframe=1D")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &overview)
	assert.Equal(t, 0, overview.Totals.TotalTrades)
	assert.Empty(t, overview.Strategies)
}

func TestPerformance_BadRequest(t *testing.T) {
	s, m := newTestServer(t, provider.NewStatic(testTrades()))

	for _, target := range []string{
		"/api/performance?timeframe=2W",
		"/api/performance?start_date=03-01-2024",
		"/api/performance?end_date=yesterday",
		"/api/performance?start_date=2024-03-05&end_date=2024-03-01",
	} {
		rec := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)

		var body errorResponse
		decode(t, rec, &body)
		assert.NotEmpty(t, body.Error, target)
	}
	assert.Equal(t, 4.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/performance", "400")))
}

func TestStrategies(t *testing.T) {
	s, _ := newTestServer(t, provider.NewStatic(testTrades()))

	rec := get(t, s, "/api/strategies?symbol=BTC%2FUSDT")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []analytics.StrategyMetrics
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, 130.0, list[0].PnL)

	rec = get(t, s, "/api/strategies?from=2025-01-01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = get(t, s, "/api/strategies?from=bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStrategy(t *testing.T) {
	s, _ := newTestServer(t, provider.NewStatic(testTrades()))

	rec := get(t, s, "/api/strategies/trend-following")
	require.Equal(t, http.StatusOK, rec.Code)
	var m analytics.StrategyMetrics
	decode(t, rec, &m)
	assert.Equal(t, "Trend Following", m.StrategyName)
	assert.Equal(t, 1, m.TotalTrades)

	rec = get(t, s, "/api/strategies/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStrategyTrades(t *testing.T) {
	s, _ := newTestServer(t, provider.NewStatic(testTrades()))

	rec := get(t, s, "/api/strategies/breakout/trades")
	require.Equal(t, http.StatusOK, rec.Code)
	var trades []analytics.Trade
	decode(t, rec, &trades)
	require.Len(t, trades, 3)
	assert.Equal(t, "3", trades[0].ID, "most recent first")

	rec = get(t, s, "/api/strategies/unknown/trades")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEquityChart(t *testing.T) {
	s, _ := newTestServer(t, provider.NewStatic(testTrades()))

	rec := get(t, s, "/api/strategies/breakout/equity.png")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	assert.Equal(t, 1, s.charts.len())

	again := get(t, s, "/api/strategies/breakout/equity.png")
	assert.Equal(t, rec.Body.Bytes(), again.Body.Bytes())
	assert.Equal(t, 1, s.charts.len())

	// single day curve still renders
	rec = get(t, s, "/api/strategies/trend-following/equity.png")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, s, "/api/strategies/unknown/equity.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChartCache_Expiry(t *testing.T) {
	c := newChartCache(time.Minute)
	now := testNow
	c.now = func() time.Time { return now }

	c.set("k", []byte{1, 2})
	img, ok := c.get("k")
	require.True(t, ok)
	img[0] = 9
	again, _ := c.get("k")
	assert.Equal(t, byte(1), again[0], "callers get a copy")

	now = now.Add(2 * time.Minute)
	_, ok = c.get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.len())

	disabled := newChartCache(0)
	disabled.set("k", []byte{1})
	_, ok = disabled.get("k")
	assert.False(t, ok)
}

func TestDrawdown(t *testing.T) {
	s, _ := newTestServer(t, provider.NewStatic(nil))

	body := `[{"value":100,"date":"a"},{"value":50,"date":"b"},{"value":200,"date":"c"},{"value":180,"date":"d"}]`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drawdown", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var res drawdown.Result
	decode(t, rec, &res)
	assert.Equal(t, -0.5, res.Value)
	assert.Equal(t, "a", res.PeakDate)
	assert.Equal(t, "b", res.TroughDate)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drawdown", strings.NewReader(`[]`)))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &res)
	assert.Equal(t, 0.0, res.Value)
	assert.False(t, res.HasTrough())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drawdown", strings.NewReader(`{"value":1}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, s, "/api/drawdown")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSourceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"upstream status", fmt.Errorf("%w: status 503", provider.ErrStatus), http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, failingSource{err: tt.err})
			rec := get(t, s, "/api/performance")
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, provider.NewStatic(testTrades()))

	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	get(t, s, "/api/strategies")
	rec = get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dashboard_http_requests_total")
}

func TestWebSocket(t *testing.T) {
	s, m := newTestServer(t, provider.NewStatic(testTrades()))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	s.startStreaming()
	defer close(s.stopChannel)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Message {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	initial := read()
	assert.Equal(t, "overview", initial.Type)
	require.NotNil(t, initial.Overview)
	assert.Equal(t, 4, initial.Overview.Totals.TotalTrades)
	assert.Equal(t, 1, s.ClientCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSClients))

	s.Broadcast()
	pushed := read()
	assert.Equal(t, "overview", pushed.Type)

	conn.Close()
	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WSClients))
}

func TestWebSocket_ErrorMessage(t *testing.T) {
	s, _ := newTestServer(t, failingSource{err: io.ErrUnexpectedEOF})

	msg := s.snapshot(context.Background())
	assert.Equal(t, "error", msg.Type)
	assert.Nil(t, msg.Overview)
	assert.NotEmpty(t, msg.Error)
}

func TestStrategyGauges_DefaultViewOnly(t *testing.T) {
	s, m := newTestServer(t, provider.NewStatic(testTrades()))

	rec := get(t, s, "/api/performance?asset=ETH%2FUSDT")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, testutil.CollectAndCount(m.StrategyPnL), "filtered views are not published")

	msg := s.snapshot(context.Background())
	require.Equal(t, "overview", msg.Type)
	assert.Equal(t, 2, testutil.CollectAndCount(m.StrategyPnL))
	assert.Equal(t, 80.0, testutil.ToFloat64(m.StrategyPnL.WithLabelValues("breakout")))

	get(t, s, "/api/strategies?symbol=BTC%2FUSDT")
	assert.Equal(t, 80.0, testutil.ToFloat64(m.StrategyPnL.WithLabelValues("breakout")))
}

func TestEquityChart_ConcurrentRendersOnce(t *testing.T) {
	c := newChartCache(time.Minute)
	var mu sync.Mutex
	renders := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img, err := c.getOrRender("k", func() ([]byte, error) {
				mu.Lock()
				renders++
				mu.Unlock()
				time.Sleep(10 * time.Millisecond)
				return []byte("png"), nil
			})
			assert.NoError(t, err)
			assert.Equal(t, []byte("png"), img)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, renders)

	_, err := c.getOrRender("bad", func() ([]byte, error) { return nil, errNoEquity })
	assert.ErrorIs(t, err, errNoEquity)
	_, ok := c.get("bad")
	assert.False(t, ok, "failures are not cached")
}

func TestStartStop(t *testing.T) {
	s, _ := newTestServer(t, provider.NewStatic(nil))

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(), "second start must fail")

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop(), "stopping twice is a no-op")
}

func TestTimeframeStart(t *testing.T) {
	today := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		tf   string
		want time.Time
	}{
		{"1D", testNow.Add(-24 * time.Hour)},
		{"1W", today.AddDate(0, 0, -7)},
		{"1m", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"3M", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"1Y", time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)},
		{"ALL", time.Time{}},
	}
	for _, tt := range tests {
		got, err := timeframeStart(tt.tf, testNow)
		require.NoError(t, err, tt.tf)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.tf, got)
	}

	_, err := timeframeStart("5Y", testNow)
	assert.Error(t, err)
}

func TestTimeframeStart_StableWithinBucket(t *testing.T) {
	later := testNow.Add(37 * time.Second)
	for _, tf := range common.Timeframes {
		a, err := timeframeStart(tf, testNow)
		require.NoError(t, err)
		b, err := timeframeStart(tf, later.Add(1500*time.Millisecond))
		require.NoError(t, err)
		assert.True(t, a.Equal(b), tf)
	}

	a, _ := timeframeStart("1M", time.Date(2024, 3, 31, 0, 0, 1, 0, time.UTC))
	b, _ := timeframeStart("1M", time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC))
	assert.True(t, a.Equal(b))
}

func TestMonthsBefore(t *testing.T) {
	assert.Equal(t, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), monthsBefore(time.Date(2023, 3, 30, 0, 0, 0, 0, time.UTC), 1))
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), monthsBefore(time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), 3))
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), monthsBefore(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 1))
}

func TestPerformance_MovingClockHitsCache(t *testing.T) {
	src := &countingSource{Source: provider.NewStatic(testTrades())}
	s, _ := newTestServer(t, src)

	clock := testNow
	s.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		rec := get(t, s, "/api/performance")
		require.Equal(t, http.StatusOK, rec.Code)
		clock = clock.Add(1234 * time.Millisecond)
	}
	s.Broadcast()

	assert.Equal(t, 1, src.Calls())
	assert.Equal(t, 1, s.service.CacheSize())
}
