package dashboard

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"trading-dashboard/internal/analytics"
	"trading-dashboard/internal/common"
)

const dateLayout = "2006-01-02"

// timeframeStart returns the inclusive lower bound for tf relative to now.
// A zero time means no lower bound. 1D is aligned to the minute and the
// longer timeframes to the start of the UTC day, so repeated requests
// share a cache key.
func timeframeStart(tf string, now time.Time) (time.Time, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch strings.ToUpper(tf) {
	case common.Timeframe1D:
		return now.Truncate(time.Minute).Add(-24 * time.Hour), nil
	case common.Timeframe1W:
		return today.AddDate(0, 0, -7), nil
	case common.Timeframe1M:
		return monthsBefore(today, 1), nil
	case common.Timeframe3M:
		return monthsBefore(today, 3), nil
	case common.Timeframe1Y:
		return monthsBefore(today, 12), nil
	case common.TimeframeAll:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("invalid timeframe %q, expected one of %v", tf, common.Timeframes)
	}
}

// monthsBefore steps back n calendar months, clamping to the last day of
// the target month (Mar 31 minus one month is Feb 29, not Mar 2).
func monthsBefore(day time.Time, n int) time.Time {
	first := time.Date(day.Year(), day.Month()-time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	d := day.Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// parseDay parses a YYYY-MM-DD date or an RFC3339 timestamp. Plain dates
// used as an upper bound cover the whole day.
func parseDay(v string, endOfDay bool) (time.Time, error) {
	if d, err := time.Parse(dateLayout, v); err == nil {
		if endOfDay {
			return d.Add(24*time.Hour - time.Nanosecond), nil
		}
		return d, nil
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", v)
	}
	return ts.UTC(), nil
}

// performanceFilter builds the filter for /api/performance. Explicit
// start_date and end_date take precedence over the timeframe.
func performanceFilter(q url.Values, defaultTimeframe string, now time.Time) (analytics.Filter, error) {
	f := analytics.Filter{Symbol: q.Get("asset")}

	tf := q.Get("timeframe")
	if tf == "" {
		tf = defaultTimeframe
	}
	from, err := timeframeStart(tf, now)
	if err != nil {
		return f, err
	}
	f.From = from

	if v := q.Get("start_date"); v != "" {
		if f.From, err = parseDay(v, false); err != nil {
			return f, fmt.Errorf("start_date: %w", err)
		}
	}
	if v := q.Get("end_date"); v != "" {
		if f.To, err = parseDay(v, true); err != nil {
			return f, fmt.Errorf("end_date: %w", err)
		}
	}
	return f, checkRange(f)
}

// strategyFilter builds the filter for the /api/strategies routes.
func strategyFilter(q url.Values) (analytics.Filter, error) {
	f := analytics.Filter{Symbol: q.Get("symbol")}
	var err error
	if v := q.Get("from"); v != "" {
		if f.From, err = parseDay(v, false); err != nil {
			return f, fmt.Errorf("from: %w", err)
		}
	}
	if v := q.Get("to"); v != "" {
		if f.To, err = parseDay(v, true); err != nil {
			return f, fmt.Errorf("to: %w", err)
		}
	}
	return f, checkRange(f)
}

func checkRange(f analytics.Filter) error {
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return fmt.Errorf("start %s is after end %s", f.From.Format(dateLayout), f.To.Format(dateLayout))
	}
	return nil
}
