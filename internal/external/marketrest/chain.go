package marketrest

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
)

type chainResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Details struct {
			Ticker         string  `json:"ticker"`
			StrikePrice    float64 `json:"strike_price"`
			ExpirationDate string  `json:"expiration_date"`
			ContractType   string  `json:"contract_type"`
		} `json:"details"`
		Day struct {
			Volume float64 `json:"volume"`
		} `json:"day"`
		LastQuote struct {
			Bid float64 `json:"bid"`
			Ask float64 `json:"ask"`
		} `json:"last_quote"`
		OpenInterest      float64 `json:"open_interest"`
		ImpliedVolatility float64 `json:"implied_volatility"`
		Greeks            struct {
			Delta float64 `json:"delta"`
			Gamma float64 `json:"gamma"`
			Theta float64 `json:"theta"`
			Vega  float64 `json:"vega"`
		} `json:"greeks"`
	} `json:"results"`
	NextURL string `json:"next_url"`
}

// FetchOptionChain pulls the full option-chain snapshot for an underlying,
// following pagination until exhausted. Contracts are ephemeral: the chain
// is rebuilt on every scan and never persisted.
func (c *Client) FetchOptionChain(ctx context.Context, underlying string) ([]contracts.OptionContract, error) {
	path := "/v3/snapshot/options/" + underlying
	query := url.Values{"limit": {"250"}}

	var out []contracts.OptionContract

	var resp chainResponse
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("fetch option chain %s: %w", underlying, err)
	}

	for page := 0; ; page++ {
		for _, r := range resp.Results {
			expiry, err := time.Parse("2006-01-02", r.Details.ExpirationDate)
			if err != nil {
				c.logger.WithFields(map[string]interface{}{
					"contract": r.Details.Ticker,
					"expiry":   r.Details.ExpirationDate,
				}).Warn("Skipping contract with malformed expiry")
				continue
			}

			right := contracts.Call
			if r.Details.ContractType == "put" {
				right = contracts.Put
			}

			out = append(out, contracts.OptionContract{
				Symbol:            r.Details.Ticker,
				Underlying:        underlying,
				Strike:            r.Details.StrikePrice,
				Expiry:            expiry,
				Right:             right,
				Bid:               r.LastQuote.Bid,
				Ask:               r.LastQuote.Ask,
				Volume:            int64(r.Day.Volume),
				OpenInterest:      int64(r.OpenInterest),
				ImpliedVolatility: r.ImpliedVolatility,
				Greeks: contracts.Greeks{
					Delta: r.Greeks.Delta,
					Gamma: r.Greeks.Gamma,
					Theta: r.Greeks.Theta,
					Vega:  r.Greeks.Vega,
				},
			})
		}

		if resp.NextURL == "" {
			break
		}
		if page >= maxAggregatePages {
			c.logger.WithField("underlying", underlying).Warn("Option chain pagination bound hit")
			break
		}

		next := resp.NextURL
		resp = chainResponse{}
		if err := c.getURL(ctx, next, &resp); err != nil {
			return nil, fmt.Errorf("fetch option chain %s page: %w", underlying, err)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("option chain %s: %w", underlying, contracts.ErrNoData)
	}

	return out, nil
}
