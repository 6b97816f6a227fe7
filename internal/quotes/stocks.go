package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"finreport/internal/cache"
	"finreport/internal/core"
)

// DefaultStocksURL is the Alpha Vantage query endpoint.
const DefaultStocksURL = "https://www.alphavantage.co/query"

// StocksClient looks up the latest price of a ticker.
type StocksClient struct {
	f      *fetcher
	apiKey string
}

// NewStocksClient returns a client for baseURL authenticated with apiKey.
func NewStocksClient(baseURL, apiKey string, opts Options) (*StocksClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultStocksURL
	}
	f, err := newFetcher(baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &StocksClient{f: f, apiKey: apiKey}, nil
}

type globalQuoteResponse struct {
	Quote map[string]string `json:"Global Quote"`
}

// Price returns the ticker's last price rounded to two places. A missing
// or unparseable price is ErrUpstreamData.
func (c *StocksClient) Price(ctx context.Context, ticker string) (core.Money, error) {
	return c.f.lookup("stock:"+ticker, func() (core.Money, error) {
		q := url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {ticker}}
		if c.apiKey != "" {
			q.Set("apikey", c.apiKey)
		}
		body, err := c.f.get(ctx, q, nil)
		if err != nil {
			return core.Money{}, fmt.Errorf("price %s: %w", ticker, err)
		}
		return parsePrice(body, ticker)
	})
}

func parsePrice(body []byte, ticker string) (core.Money, error) {
	var resp globalQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Money{}, fmt.Errorf("price %s: decode: %w: %v", ticker, core.ErrUpstreamData, err)
	}
	raw, ok := resp.Quote["05. price"]
	if !ok {
		return core.Money{}, fmt.Errorf("price %s: no price in response: %w", ticker, core.ErrUpstreamData)
	}
	m, err := core.ParseMoney(raw)
	if err != nil {
		return core.Money{}, fmt.Errorf("price %s: %q: %w", ticker, raw, core.ErrUpstreamData)
	}
	return m.Round2(), nil
}

// Cache returns the memoisation cache, nil when disabled.
func (c *StocksClient) Cache() *cache.LRUCache[core.Money] { return c.f.Cache() }
