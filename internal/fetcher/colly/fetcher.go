// Package collyfetcher implements crawler.PageFetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements crawler.PageFetcher using the Colly collector.
type Fetcher struct {
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// outcome is owned by the visiting goroutine and handed back over a channel.
type outcome struct {
	status int
	body   string
	err    error
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())
	// Clones share the base collector's http backend, so its client is
	// configured here and never touched by Fetch.
	c.SetRequestTimeout(cfg.Timeout)
	return &Fetcher{baseCollector: c}
}

// Fetch performs one GET and returns the response body as text. Transport
// failures and non-2xx statuses are reported as *crawler.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &crawler.FetchError{URL: url, Err: err}
	}
	collector := f.baseCollector.Clone()

	done := make(chan outcome, 1)
	go func() {
		var out outcome
		configureCollectorHooks(collector, &out)
		if err := collector.Visit(url); err != nil && out.err == nil {
			out.err = err
		}
		done <- out
	}()

	select {
	case <-ctx.Done():
		return "", &crawler.FetchError{URL: url, Err: fmt.Errorf("colly fetch canceled: %w", ctx.Err())}
	case out := <-done:
		return resultOf(url, out)
	}
}

func configureCollectorHooks(hooks collectorHooks, out *outcome) {
	hooks.OnResponse(func(r *colly.Response) {
		out.status = r.StatusCode
		out.body = string(r.Body)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			out.status = r.StatusCode
		}
		out.err = err
	})
}

func resultOf(url string, out outcome) (string, error) {
	if out.err != nil {
		return "", &crawler.FetchError{URL: url, StatusCode: out.status, Err: out.err}
	}
	if out.status < http.StatusOK || out.status >= http.StatusMultipleChoices {
		return "", &crawler.FetchError{
			URL:        url,
			StatusCode: out.status,
			Err:        errors.New(http.StatusText(out.status)),
		}
	}
	return out.body, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
