// Package rates fetches EUR exchange rates from the external currency API.
package rates

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/goldstream/goldstream/internal/domain"
)

// Client implements domain.RateSource against a frankfurter-style endpoint:
// GET {base}?base=EUR&symbols={counter} returning {"rates": {"RUB": 98.5}}.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New constructs a Client. A zero timeout defaults to 10s.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// Rate returns how many units of counter one EUR buys.
func (c *Client) Rate(ctx domain.Context, counter string) (float64, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return 0, fmt.Errorf("op=rates.url: %w", err)
	}
	q := u.Query()
	q.Set("base", "EUR")
	q.Set("symbols", counter)
	u.RawQuery = q.Encode()

	var body ratesResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("op=rates.request: %w", err))
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("op=rates.do: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("op=rates.status: unexpected status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("op=rates.status: unexpected status %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("op=rates.decode: %w", err)
		}
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return 0, err
	}
	rate, ok := body.Rates[counter]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("op=rates.missing: no rate for %s: %w", counter, domain.ErrNotFound)
	}
	return rate, nil
}
