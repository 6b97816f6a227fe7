package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"finreport/internal/cache"
	"finreport/internal/core"
)

// DefaultRatesURL is the exchange-rate endpoint used when none is configured.
const DefaultRatesURL = "https://api.apilayer.com/exchangerates_data/latest"

// QuoteCurrency is the currency every rate is expressed in.
const QuoteCurrency = "RUB"

// RatesClient looks up the price of one unit of a currency in roubles.
type RatesClient struct {
	f      *fetcher
	apiKey string
}

// NewRatesClient returns a client for baseURL authenticated with apiKey.
func NewRatesClient(baseURL, apiKey string, opts Options) (*RatesClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultRatesURL
	}
	f, err := newFetcher(baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &RatesClient{f: f, apiKey: apiKey}, nil
}

type ratesResponse struct {
	Rates map[string]json.Number `json:"rates"`
}

// Rate returns the RUB rate for code rounded to two places.
func (c *RatesClient) Rate(ctx context.Context, code string) (core.Money, error) {
	return c.f.lookup("rate:"+code, func() (core.Money, error) {
		header := http.Header{}
		if c.apiKey != "" {
			header.Set("apikey", c.apiKey)
		}
		body, err := c.f.get(ctx, url.Values{"base": {code}, "symbols": {QuoteCurrency}}, header)
		if err != nil {
			return core.Money{}, fmt.Errorf("rate %s: %w", code, err)
		}
		return parseRate(body, code)
	})
}

func parseRate(body []byte, code string) (core.Money, error) {
	var resp ratesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Money{}, fmt.Errorf("rate %s: decode: %w: %v", code, core.ErrUpstreamData, err)
	}
	n, ok := resp.Rates[QuoteCurrency]
	if !ok {
		return core.Money{}, fmt.Errorf("rate %s: no %s in response: %w", code, QuoteCurrency, core.ErrUpstreamData)
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return core.Money{}, fmt.Errorf("rate %s: %q: %w", code, n.String(), core.ErrUpstreamData)
	}
	return core.NewMoney(d).Round2(), nil
}

// Cache returns the memoisation cache, nil when disabled.
func (c *RatesClient) Cache() *cache.LRUCache[core.Money] { return c.f.Cache() }
