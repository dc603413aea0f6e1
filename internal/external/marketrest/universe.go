package marketrest

import (
	"context"
	"fmt"
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
)

// snapshotResponse is the bulk full-market snapshot payload.
type snapshotResponse struct {
	Status  string `json:"status"`
	Count   int    `json:"count"`
	Tickers []struct {
		Ticker           string  `json:"ticker"`
		TodaysChange     float64 `json:"todaysChange"`
		TodaysChangePerc float64 `json:"todaysChangePerc"`
		Day              struct {
			Open   float64 `json:"o"`
			High   float64 `json:"h"`
			Low    float64 `json:"l"`
			Close  float64 `json:"c"`
			Volume float64 `json:"v"`
		} `json:"day"`
		PrevDay struct {
			Close  float64 `json:"c"`
			Volume float64 `json:"v"`
		} `json:"prevDay"`
		LastTrade struct {
			Price float64 `json:"p"`
		} `json:"lastTrade"`
		MarketCap float64 `json:"market_cap"`
	} `json:"tickers"`
}

// FetchUniverse pulls the bulk full-market snapshot in one call. The
// result replaces the universe cache atomically; a partial snapshot is
// never merged.
func (c *Client) FetchUniverse(ctx context.Context) (*contracts.UniverseSnapshot, error) {
	var resp snapshotResponse
	if err := c.get(ctx, "/v2/snapshot/locale/us/markets/stocks/tickers", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch universe snapshot: %w", err)
	}

	if len(resp.Tickers) == 0 {
		return nil, fmt.Errorf("universe snapshot: %w", contracts.ErrNoData)
	}

	now := time.Now()
	entries := make([]contracts.UniverseEntry, 0, len(resp.Tickers))
	for _, t := range resp.Tickers {
		price := t.LastTrade.Price
		if price == 0 {
			price = t.Day.Close
		}
		if price == 0 {
			price = t.PrevDay.Close
		}

		entries = append(entries, contracts.UniverseEntry{
			Ticker:        t.Ticker,
			Price:         price,
			Change:        t.TodaysChange,
			ChangePercent: t.TodaysChangePerc,
			Volume:        int64(t.Day.Volume),
			MarketCap:     t.MarketCap,
			AvgVolume:     int64(t.PrevDay.Volume),
			High:          t.Day.High,
			Low:           t.Day.Low,
			Open:          t.Day.Open,
			Close:         t.Day.Close,
			FetchedAt:     now,
		})
	}

	c.logger.WithField("count", len(entries)).Info("Fetched universe snapshot")

	return &contracts.UniverseSnapshot{Entries: entries, FetchedAt: now}, nil
}

// FetchQuote pulls one symbol's REST snapshot quote, used as the
// cached-REST tier behind the live feed.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	var resp struct {
		Ticker struct {
			Ticker    string `json:"ticker"`
			LastQuote struct {
				Bid float64 `json:"p"`
				Ask float64 `json:"P"`
			} `json:"lastQuote"`
			LastTrade struct {
				Price float64 `json:"p"`
			} `json:"lastTrade"`
			Day struct {
				Volume float64 `json:"v"`
			} `json:"day"`
		} `json:"ticker"`
	}

	path := "/v2/snapshot/locale/us/markets/stocks/tickers/" + symbol
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch quote %s: %w", symbol, err)
	}

	t := resp.Ticker
	if t.LastTrade.Price == 0 && t.LastQuote.Bid == 0 && t.LastQuote.Ask == 0 {
		return nil, fmt.Errorf("quote %s: %w", symbol, contracts.ErrNoData)
	}

	return &contracts.Quote{
		Symbol:    symbol,
		Bid:       t.LastQuote.Bid,
		Ask:       t.LastQuote.Ask,
		Last:      t.LastTrade.Price,
		Volume:    int64(t.Day.Volume),
		Timestamp: time.Now(),
		Source:    contracts.ProvenanceCachedREST,
	}, nil
}
