// Package quotes fetches exchange rates and stock prices from HTTP providers.
//
// With zero Options the clients issue one unguarded request per lookup. The
// timeout, retry and cache settings are opt-in.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"finreport/internal/cache"
	"finreport/internal/core"
	"finreport/internal/log"
)

const (
	defaultBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	cacheSize      = 256
	maxBodyBytes   = 1 << 20
)

// Options tunes the guard layer shared by both clients.
type Options struct {
	HTTPClient *http.Client
	// Timeout bounds each request attempt. Zero means no per-request deadline.
	Timeout time.Duration
	// Retries is the number of extra attempts after a transport error or 5xx.
	Retries int
	// Backoff is the first retry delay; it doubles each attempt.
	Backoff time.Duration
	// CacheTTL enables memoisation of successful lookups.
	CacheTTL time.Duration
	Logger   *log.Logger
}

// StatusError reports a non-2xx response from a provider.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", core.ErrUpstreamStatus, e.Code)
}

func (e *StatusError) Unwrap() error { return core.ErrUpstreamStatus }

// fetcher performs GET requests with the optional guards applied.
type fetcher struct {
	base   *url.URL
	http   *http.Client
	opts   Options
	cache  *cache.LRUCache[core.Money]
	logger *log.Logger
	sleep  func(context.Context, time.Duration) error
}

func newFetcher(baseURL string, opts Options) (*fetcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid provider url %q", baseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	f := &fetcher{
		base:   u,
		http:   hc,
		opts:   opts,
		logger: logger.WithComponent(log.ComponentQuotes),
		sleep:  sleepContext,
	}
	if opts.CacheTTL > 0 {
		f.cache = cache.NewLRUCache[core.Money](cacheSize, opts.CacheTTL)
	}
	return f, nil
}

// Cache exposes the memoisation cache for registration with a sweeper.
// Nil when caching is disabled.
func (f *fetcher) Cache() *cache.LRUCache[core.Money] {
	return f.cache
}

// lookup consults the cache, then calls load, storing successful results.
func (f *fetcher) lookup(key string, load func() (core.Money, error)) (core.Money, error) {
	if f.cache != nil {
		if v, ok := f.cache.Get(key); ok {
			return v, nil
		}
	}
	v, err := load()
	if err != nil {
		return core.Money{}, err
	}
	if f.cache != nil {
		f.cache.Set(key, v)
	}
	return v, nil
}

// get sends a GET to the base URL with query and header, returning the body
// of a 2xx response.
func (f *fetcher) get(ctx context.Context, query url.Values, header http.Header) ([]byte, error) {
	u := *f.base
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 0; attempt <= f.opts.Retries; attempt++ {
		if attempt > 0 {
			if err := f.sleep(ctx, exponentialBackoff(f.opts.Backoff, attempt-1)); err != nil {
				return nil, err
			}
			f.logger.DebugContext(ctx, "Retrying provider request", "attempt", attempt, log.FieldError, lastErr.Error())
		}
		body, err := f.once(ctx, u.String(), header)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (f *fetcher) once(ctx context.Context, target string, header http.Header) ([]byte, error) {
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", f.base.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// retryable reports whether err is a transport failure or a 5xx status.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return !errors.Is(err, core.ErrUpstreamData)
}

// exponentialBackoff returns base * 2^attempt, capped at maxBackoff.
func exponentialBackoff(base time.Duration, attempt int) time.Duration {
	if attempt > 16 {
		return maxBackoff
	}
	d := base << attempt
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
