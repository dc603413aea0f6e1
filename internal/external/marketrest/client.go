package marketrest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/pkg/config"
	"github.com/danielhan-dev/strikescan/pkg/httputil"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// Client talks to the snapshot/aggregates REST vendor. All option-chain,
// bar and universe fetches go through here; every call carries a fixed
// timeout and runs behind a circuit breaker so a misbehaving upstream
// degrades to cache-miss handling instead of stalling scans.
type Client struct {
	cfg        config.MarketRESTConfig
	httpClient *httputil.Client
	logger     *logger.Logger
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a new market REST client.
func NewClient(cfg config.MarketRESTConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	settings := gobreaker.Settings{
		Name:        "marketrest",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state change")
		},
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     log,
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

// get fetches one endpoint through the breaker and decodes the body into
// dest. Rate-limit responses surface as RateLimitError, empty payload
// handling is the caller's.
func (c *Client) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	endpoint := c.cfg.BaseURL + path
	if query == nil {
		query = url.Values{}
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &contracts.ConnectionError{Venue: "marketrest", Err: err}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			return nil, &contracts.RateLimitError{Endpoint: path, RetryAfter: retryAfter}
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return nil, &contracts.AuthError{Venue: "marketrest", Reason: resp.Status}
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(body))
		}

		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", path, err)
		}
		return nil, nil
	})

	return err
}

// getURL fetches a fully formed URL (pagination cursors come back as
// complete next-page URLs).
func (c *Client) getURL(ctx context.Context, fullURL string, dest interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &contracts.ConnectionError{Venue: "marketrest", Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &contracts.RateLimitError{Endpoint: fullURL, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("page fetch returned %d: %s", resp.StatusCode, string(body))
		}

		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return nil, fmt.Errorf("decode page response: %w", err)
		}
		return nil, nil
	})

	return err
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}
