package quotes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"finreport/internal/core"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestRate(t *testing.T) {
	var gotBase, gotSymbols, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBase = r.URL.Query().Get("base")
		gotSymbols = r.URL.Query().Get("symbols")
		gotKey = r.Header.Get("apikey")
		_, _ = w.Write([]byte(`{"rates": {"RUB": 91.23456}, "success": true}`))
	}))
	defer srv.Close()

	c, err := NewRatesClient(srv.URL, "secret", Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got, err := c.Rate(context.Background(), "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(core.MustMoney("91.23")) {
		t.Fatalf("expected 91.23, got %s", got)
	}
	if gotBase != "USD" || gotSymbols != "RUB" || gotKey != "secret" {
		t.Fatalf("unexpected request base=%q symbols=%q key=%q", gotBase, gotSymbols, gotKey)
	}
}

func TestRateErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"missing rub", http.StatusOK, `{"rates": {"EUR": 0.9}}`, core.ErrUpstreamData},
		{"no rates", http.StatusOK, `{"success": false}`, core.ErrUpstreamData},
		{"garbage", http.StatusOK, `<html>`, core.ErrUpstreamData},
		{"unauthorized", http.StatusUnauthorized, `{}`, core.ErrUpstreamStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, _ := NewRatesClient(srv.URL, "", Options{})
			if _, err := c.Rate(context.Background(), "USD"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestPrice(t *testing.T) {
	prices := map[string]string{"AAPL": "255.4600", "GOOGL": "246.5400", "TSLA": "440.4000", "MSFT": "255.46789"}
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		q := r.URL.Query()
		if q.Get("function") != "GLOBAL_QUOTE" || q.Get("apikey") != "k" {
			t.Errorf("unexpected query %v", q)
		}
		sym := q.Get("symbol")
		_, _ = w.Write([]byte(`{"Global Quote": {"01. symbol": "` + sym + `", "05. price": "` + prices[sym] + `"}}`))
	}))
	defer srv.Close()

	c, err := NewStocksClient(srv.URL, "k", Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	want := map[string]string{"AAPL": "255.46", "GOOGL": "246.54", "TSLA": "440.4", "MSFT": "255.47"}
	for sym, w := range want {
		got, err := c.Price(context.Background(), sym)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", sym, err)
		}
		if !got.Equal(core.MustMoney(w)) {
			t.Fatalf("%s: expected %s, got %s", sym, w, got)
		}
	}
	if calls != 4 {
		t.Fatalf("expected one call per ticker, got %d", calls)
	}
}

func TestPriceMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`))
	}))
	defer srv.Close()

	c, _ := NewStocksClient(srv.URL, "", Options{})
	if _, err := c.Price(context.Background(), "AAPL"); !errors.Is(err, core.ErrUpstreamData) {
		t.Fatalf("expected ErrUpstreamData, got %v", err)
	}
}

func TestRetryOn5xxOnly(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"rates": {"RUB": 98.45}}`))
	}))
	defer srv.Close()

	c, _ := NewRatesClient(srv.URL, "", Options{Retries: 2})
	c.f.sleep = noSleep
	got, err := c.Rate(context.Background(), "EUR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(core.MustMoney("98.45")) || calls != 3 {
		t.Fatalf("expected success on third attempt, got %s after %d calls", got, calls)
	}

	var notFound int32
	srv404 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&notFound, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv404.Close()

	c404, _ := NewRatesClient(srv404.URL, "", Options{Retries: 3})
	c404.f.sleep = noSleep
	_, err = c404.Rate(context.Background(), "EUR")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if notFound != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", notFound)
	}
}

func TestNoRetryByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewStocksClient(srv.URL, "", Options{})
	if _, err := c.Price(context.Background(), "AAPL"); !errors.Is(err, core.ErrUpstreamStatus) {
		t.Fatalf("expected ErrUpstreamStatus, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, _ := NewRatesClient(srv.URL, "", Options{Timeout: 20 * time.Millisecond})
	if _, err := c.Rate(context.Background(), "USD"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"rates": {"RUB": 115.67}}`))
	}))
	defer srv.Close()

	c, _ := NewRatesClient(srv.URL, "", Options{CacheTTL: time.Minute})
	for i := 0; i < 3; i++ {
		if _, err := c.Rate(context.Background(), "GBP"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected cached lookups, got %d calls", calls)
	}
	if c.Cache() == nil || c.Cache().Size() != 1 {
		t.Fatalf("expected one cached entry")
	}

	uncached, _ := NewRatesClient(srv.URL, "", Options{})
	if uncached.Cache() != nil {
		t.Fatalf("cache should be disabled without a TTL")
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 200 * time.Millisecond},
		{1, 400 * time.Millisecond},
		{2, 800 * time.Millisecond},
		{4, 3200 * time.Millisecond},
		{5, maxBackoff},
		{40, maxBackoff},
	}
	for _, tt := range tests {
		if got := exponentialBackoff(defaultBackoff, tt.attempt); got != tt.expected {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestInvalidBaseURL(t *testing.T) {
	if _, err := NewRatesClient("::not a url", "", Options{}); err == nil {
		t.Fatal("expected error for invalid url")
	}
}
