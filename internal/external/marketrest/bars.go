package marketrest

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
)

const maxAggregatePages = 10

type aggsResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Ticker    string  `json:"T,omitempty"`
		Open      float64 `json:"o"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		Close     float64 `json:"c"`
		Volume    float64 `json:"v"`
		Timestamp int64   `json:"t"`
	} `json:"results"`
	NextURL string `json:"next_url"`
}

// FetchGroupedDaily pulls every symbol's bar for one trading day in a
// single call. The rolling bar refresh walks the lookback window one day
// at a time with this endpoint rather than one fetch per symbol.
func (c *Client) FetchGroupedDaily(ctx context.Context, day time.Time) (map[string]contracts.HistoricalBar, error) {
	path := "/v2/aggs/grouped/locale/us/market/stocks/" + day.Format("2006-01-02")
	query := url.Values{"adjusted": {"true"}}

	var resp aggsResponse
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("fetch grouped daily %s: %w", day.Format("2006-01-02"), err)
	}

	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("grouped daily %s: %w", day.Format("2006-01-02"), contracts.ErrNoData)
	}

	bars := make(map[string]contracts.HistoricalBar, len(resp.Results))
	for _, r := range resp.Results {
		if r.Ticker == "" {
			continue
		}
		bars[r.Ticker] = contracts.HistoricalBar{
			Timestamp: time.UnixMilli(r.Timestamp),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    int64(r.Volume),
		}
	}

	return bars, nil
}

// FetchAggregates pulls one symbol's daily bars over a date range,
// following pagination cursors until the range is complete or the page
// bound is hit.
func (c *Client) FetchAggregates(ctx context.Context, symbol string, from, to time.Time) ([]contracts.HistoricalBar, error) {
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
		symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
	query := url.Values{"adjusted": {"true"}, "sort": {"asc"}, "limit": {"5000"}}

	var bars []contracts.HistoricalBar

	var resp aggsResponse
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("fetch aggregates %s: %w", symbol, err)
	}

	for page := 0; ; page++ {
		for _, r := range resp.Results {
			bars = append(bars, contracts.HistoricalBar{
				Timestamp: time.UnixMilli(r.Timestamp),
				Open:      r.Open,
				High:      r.High,
				Low:       r.Low,
				Close:     r.Close,
				Volume:    int64(r.Volume),
			})
		}

		if resp.NextURL == "" {
			break
		}
		if page >= maxAggregatePages {
			c.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"pages":  page,
			}).Warn("Aggregate pagination bound hit, truncating range")
			break
		}

		next := resp.NextURL
		resp = aggsResponse{}
		if err := c.getURL(ctx, next, &resp); err != nil {
			return nil, fmt.Errorf("fetch aggregates %s page: %w", symbol, err)
		}
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("aggregates %s: %w", symbol, contracts.ErrNoData)
	}

	return bars, nil
}
