package dashboard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	charts "github.com/vicanso/go-charts/v2"
	"golang.org/x/sync/singleflight"

	"trading-dashboard/internal/analytics"
)

var errNoEquity = errors.New("no equity data")

type chartCacheEntry struct {
	createdAt time.Time
	image     []byte
}

// chartCache memoises rendered PNGs for ttl. A zero ttl disables it.
type chartCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]chartCacheEntry
	renders singleflight.Group
}

func newChartCache(ttl time.Duration) *chartCache {
	return &chartCache{ttl: ttl, now: time.Now, entries: make(map[string]chartCacheEntry)}
}

func (c *chartCache) get(key string) ([]byte, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		if c.now().Before(entry.createdAt.Add(c.ttl)) {
			img := make([]byte, len(entry.image))
			copy(img, entry.image)
			return img, true
		}
		delete(c.entries, key)
	}
	return nil, false
}

func (c *chartCache) set(key string, img []byte) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = chartCacheEntry{createdAt: c.now(), image: img}
	c.mu.Unlock()
}

// getOrRender returns the cached image for key or renders it once for all
// concurrent callers.
func (c *chartCache) getOrRender(key string, render func() ([]byte, error)) ([]byte, error) {
	if img, ok := c.get(key); ok {
		return img, nil
	}
	v, err, _ := c.renders.Do(key, func() (interface{}, error) {
		if img, ok := c.get(key); ok {
			return img, nil
		}
		img, err := render()
		if err != nil {
			return nil, err
		}
		c.set(key, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *chartCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// renderEquityChart draws the daily equity curve of m as a PNG.
func renderEquityChart(m analytics.StrategyMetrics) ([]byte, error) {
	if len(m.EquityCurve) == 0 {
		return nil, errNoEquity
	}

	values := make([]float64, 0, len(m.EquityCurve)+1)
	labels := make([]string, 0, len(m.EquityCurve)+1)
	for _, p := range m.EquityCurve {
		values = append(values, p.Equity)
		labels = append(labels, p.Date)
	}
	// A single day still needs two points to draw a line.
	if len(values) == 1 {
		values = append(values, values[0])
		labels = append(labels, labels[0])
	}

	split := len(labels) - 1
	if split > 10 {
		split = 10
	}

	painter, err := charts.LineRender([][]float64{values},
		charts.TitleTextOptionFunc(m.StrategyName, fmt.Sprintf("Max drawdown %.2f%%", m.MaxDrawdown.Percent())),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: split}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("render equity chart: %w", err)
	}
	img, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode equity chart: %w", err)
	}
	return img, nil
}
