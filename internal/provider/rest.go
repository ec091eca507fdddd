package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"trading-dashboard/internal/analytics"
)

// ErrStatus is returned when the trade API answers with a non-2xx status.
var ErrStatus = errors.New("trade api: unexpected status")

const (
	tradesPath = "/api/trades"
	dateLayout = "2006-01-02"
)

// REST fetches trades from a remote trade API.
type REST struct {
	base string
	rest *resty.Client
}

var _ Source = (*REST)(nil)

// NewREST creates a client for the API at base.
func NewREST(base string, timeout time.Duration) *REST {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	r.SetHeader("Accept", "application/json")
	return &REST{base: strings.TrimRight(base, "/"), rest: r}
}

// Trades requests the trades for f. The API filters by calendar day so the
// response is filtered again locally.
func (c *REST) Trades(ctx context.Context, f analytics.Filter) ([]analytics.Trade, error) {
	params := map[string]string{}
	if s := f.Asset(); s != "" {
		params["symbol"] = s
	}
	if !f.From.IsZero() {
		params["start_date"] = f.From.UTC().Format(dateLayout)
	}
	if !f.To.IsZero() {
		params["end_date"] = f.To.UTC().Format(dateLayout)
	}

	var trades []analytics.Trade
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&trades).
		ForceContentType("application/json").
		Get(c.base + tradesPath)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrStatus, resp.StatusCode(), resp.String())
	}

	out := trades[:0]
	for _, t := range trades {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}
