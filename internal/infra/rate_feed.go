package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// RateFeedResponse is the payload of the treasury FX feed:
// one base currency and the quote for each other currency.
type RateFeedResponse struct {
	Base      string                     `json:"base"`
	Timestamp time.Time                  `json:"timestamp"`
	Rates     map[string]decimal.Decimal `json:"rates"`
}

// RateFeedClient pulls published exchange rates over HTTP.
type RateFeedClient struct {
	feedURL    string
	httpClient *http.Client
}

func NewRateFeedClient(feedURL string) *RateFeedClient {
	return &RateFeedClient{
		feedURL:    feedURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Latest fetches the current rates quoted against base.
func (c *RateFeedClient) Latest(ctx context.Context, base string) (*RateFeedResponse, error) {
	u, err := url.Parse(c.feedURL)
	if err != nil {
		return nil, fmt.Errorf("fx feed: bad url: %w", err)
	}
	q := u.Query()
	q.Set("base", base)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fx feed: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fx feed: unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fx feed: returned %d", resp.StatusCode)
	}

	var result RateFeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("fx feed: decode response: %w", err)
	}
	if result.Base == "" {
		result.Base = base
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}
	return &result, nil
}
