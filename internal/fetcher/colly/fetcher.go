// Package collyfetcher fetches pages and probes URLs using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/seo-pilot/internal/httpclient"
)

// DefaultTimeout bounds a single request when Config.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Transport overrides the instrumented pooled transport.
	Transport http.RoundTripper
}

// Page is the result of a GET.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the page returned a 2xx status.
func (p Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Fetcher issues single GET and HEAD requests through a Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = httpclient.NewTransport(httpclient.NewHTTPTransport())
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(transport)
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Collector returns a fresh collector sharing this fetcher's HTTP backend,
// for callers that register their own callbacks.
func (f *Fetcher) Collector() *colly.Collector {
	return f.baseCollector.Clone()
}

// Fetch executes a GET. Non-2xx statuses are returned in Page, not as errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Page, error) {
	return f.do(ctx, func(c *colly.Collector) error { return c.Visit(url) })
}

// Head executes a HEAD and returns the status code.
func (f *Fetcher) Head(ctx context.Context, url string) (int, error) {
	page, err := f.do(ctx, func(c *colly.Collector) error { return c.Head(url) })
	if err != nil {
		return 0, err
	}
	return page.StatusCode, nil
}

// do runs one request on a fresh collector. The page and error live inside
// the request goroutine and are handed back only through Run.
func (f *Fetcher) do(ctx context.Context, visit func(*colly.Collector) error) (Page, error) {
	start := time.Now()
	return Run(ctx, func() (Page, error) {
		var (
			result   Page
			fetchErr error
		)
		collector := f.Collector()
		configureHooks(collector, start, &result, &fetchErr)
		if err := visit(collector); err != nil {
			return Page{}, fmt.Errorf("colly visit failed: %w", err)
		}
		if fetchErr != nil {
			return Page{}, fmt.Errorf("colly response failed: %w", fetchErr)
		}
		return result, nil
	})
}

func configureHooks(hooks collectorHooks, start time.Time, result *Page, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		var headers http.Header
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		*result = Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

// Run calls fn on its own goroutine and returns its result, or ctx's error
// as soon as ctx is done. fn must keep every value its callbacks write local
// to itself: after cancellation it keeps running and its result is dropped.
func Run[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		val, err := fn()
		done <- outcome{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case o := <-done:
		return o.val, o.err
	}
}
