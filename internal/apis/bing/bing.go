// Package bing submits URLs to the Bing Webmaster SubmitUrl API.
package bing

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-pilot/internal/apis"
	"github.com/JakeFAU/seo-pilot/internal/httpclient"
	"github.com/JakeFAU/seo-pilot/internal/metrics"
	"github.com/JakeFAU/seo-pilot/internal/retry"
)

const (
	// Endpoint is the SubmitUrl JSON endpoint; the API key travels as a query parameter.
	Endpoint = "https://ssl.bing.com/webmaster/api.svc/json/SubmitUrl"
	// Concurrency is the number of requests in flight per chunk.
	Concurrency = 5
	// ServiceName labels history entries and metrics.
	ServiceName = "bing"
)

// Client submits URLs one request at a time, Concurrency at once.
type Client struct {
	http     *resty.Client
	logger   *zap.Logger
	endpoint string
	policy   retry.Policy
}

// Option customizes a Client.
type Option func(*Client)

// WithEndpoint overrides the SubmitUrl endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithPolicy overrides the retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// New builds a Client.
func New(httpClient *resty.Client, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		http:     httpClient,
		logger:   logger,
		endpoint: Endpoint,
		policy:   retry.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends every URL. Each chunk of Concurrency URLs runs in parallel;
// URLs rejected with 429 are retried together after a shared backoff while
// accepted URLs are never resent.
func (c *Client) Submit(ctx context.Context, urls []string, apiKey, siteURL string) apis.Result {
	result := apis.Result{Errors: []string{}}
	for _, chunk := range apis.Chunk(urls, Concurrency) {
		accepted, errs := c.submitChunk(ctx, chunk, apiKey, siteURL)
		result.URLCount += accepted
		result.Errors = append(result.Errors, errs...)
		metrics.ObserveSubmission(ServiceName, accepted, len(errs))
	}
	result.Success = len(result.Errors) == 0
	return result
}

func (c *Client) submitChunk(ctx context.Context, chunk []string, apiKey, siteURL string) (int, []string) {
	var errs []string
	accepted := 0
	pending := chunk
	maxRetries := max(c.policy.MaxRetries, 0)
	for attempt := 0; len(pending) > 0 && attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.policy.Backoff(attempt - 1)
			metrics.ObserveRetry(ServiceName)
			c.logger.Info("bing rate limited, backing off chunk",
				zap.Int("attempt", attempt), zap.Int("pending", len(pending)), zap.Duration("delay", delay))
			if err := retry.Sleep(ctx, delay); err != nil {
				for _, u := range pending {
					errs = append(errs, fmt.Sprintf("URL %s: %v", u, err))
				}
				return accepted, errs
			}
		}

		outcomes := make([]error, len(pending))
		var wg sync.WaitGroup
		for i, u := range pending {
			wg.Add(1)
			go func(i int, u string) {
				defer wg.Done()
				outcomes[i] = c.submitOne(ctx, u, apiKey, siteURL)
			}(i, u)
		}
		wg.Wait()

		var stillPending []string
		for i, err := range outcomes {
			switch {
			case err == nil:
				accepted++
			case retry.IsRateLimited(err) && attempt < maxRetries:
				stillPending = append(stillPending, pending[i])
			default:
				errs = append(errs, fmt.Sprintf("URL %s: %v", pending[i], err))
			}
		}
		pending = stillPending
	}
	return accepted, errs
}

func (c *Client) submitOne(ctx context.Context, pageURL, apiKey, siteURL string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("apikey", apiKey).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(map[string]string{"siteUrl": siteURL, "url": pageURL}).
		Post(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to submit URL: %w", err)
	}
	if err := httpclient.CheckStatus(res); err != nil {
		return err
	}
	return nil
}
