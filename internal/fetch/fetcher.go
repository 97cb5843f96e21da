// Package fetch downloads document pages in resumable parallel batches.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

const defaultTimeout = 45 * time.Second

// Fetcher retrieves one document body. Implementations must return an
// error for non-success response statuses.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ClientConfig controls the HTTP client used for document downloads.
type ClientConfig struct {
	// UserAgent mirrors the browser session the cookies came from.
	UserAgent string
	// Cookies is the authenticated session cookie set.
	Cookies []*http.Cookie
	// Timeout bounds each request attempt.
	Timeout time.Duration
}

// CollyFetcher implements Fetcher using a Colly collector. Each call
// clones the base collector so concurrent fetches never share mutable
// collector state.
type CollyFetcher struct {
	cfg  ClientConfig
	base *colly.Collector
}

// NewCollyFetcher builds a CollyFetcher.
func NewCollyFetcher(cfg ClientConfig) *CollyFetcher {
	c := colly.NewCollector(colly.Async(false))
	// Documents sit behind an authenticated proxy host; robots rules do
	// not apply to direct document views.
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	return &CollyFetcher{cfg: cfg, base: c}
}

// Fetch executes a single authenticated GET.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)

	if len(f.cfg.Cookies) > 0 {
		if err := collector.SetCookies(rawURL, f.cfg.Cookies); err != nil {
			return nil, fmt.Errorf("set session cookies: %w", err)
		}
	}

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", rawURL, err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
		}
	}
	return body, nil
}
