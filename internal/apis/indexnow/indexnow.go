// Package indexnow submits URLs through the IndexNow protocol.
package indexnow

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-pilot/internal/apis"
	"github.com/JakeFAU/seo-pilot/internal/httpclient"
	"github.com/JakeFAU/seo-pilot/internal/metrics"
	"github.com/JakeFAU/seo-pilot/internal/retry"
)

const (
	// Endpoint is the shared IndexNow endpoint that fans out to participating engines.
	Endpoint = "https://api.indexnow.org/indexnow"
	// MaxURLsPerBatch is the protocol limit for one submission.
	MaxURLsPerBatch = 10000
	// ServiceName labels history entries and metrics.
	ServiceName = "indexnow"
)

type payload struct {
	Host        string   `json:"host"`
	Key         string   `json:"key"`
	KeyLocation string   `json:"keyLocation"`
	URLList     []string `json:"urlList"`
}

// Client submits URL batches to IndexNow.
type Client struct {
	http     *resty.Client
	logger   *zap.Logger
	endpoint string
	policy   retry.Policy
}

// Option customizes a Client.
type Option func(*Client)

// WithEndpoint overrides the submission endpoint.
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

// KeyLocation returns where IndexNow expects the verification key file for host.
func KeyLocation(host, key string) string {
	return fmt.Sprintf("https://%s/%s.txt", host, key)
}

// Submit posts urls in batches of MaxURLsPerBatch. An empty list succeeds
// without touching the network.
func (c *Client) Submit(ctx context.Context, urls []string, key, siteURL string) (apis.Result, error) {
	if len(urls) == 0 {
		return apis.Result{Success: true, URLCount: 0, Errors: []string{}}, nil
	}
	site, err := url.Parse(siteURL)
	if err != nil || site.Hostname() == "" {
		return apis.Result{}, fmt.Errorf("invalid site url %q", siteURL)
	}
	host := site.Hostname()

	result := apis.Result{Errors: []string{}}
	for i, batch := range apis.Chunk(urls, MaxURLsPerBatch) {
		body := payload{
			Host:        host,
			Key:         key,
			KeyLocation: KeyLocation(host, key),
			URLList:     batch,
		}
		policy := c.policy
		policy.Notify = c.notify
		_, err := retry.Do(ctx, policy, func(ctx context.Context) (*resty.Response, error) {
			res, err := c.http.R().
				SetContext(ctx).
				SetHeader("Content-Type", "application/json; charset=utf-8").
				SetBody(body).
				Post(c.endpoint)
			if err != nil {
				return nil, fmt.Errorf("post batch: %w", err)
			}
			return res, httpclient.CheckStatus(res)
		})
		if err != nil {
			c.logger.Warn("indexnow batch rejected", zap.Int("batch", i+1), zap.Int("urls", len(batch)), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("Batch failed: %v", err))
			metrics.ObserveSubmission(ServiceName, 0, len(batch))
			continue
		}
		result.URLCount += len(batch)
		metrics.ObserveSubmission(ServiceName, len(batch), 0)
	}
	result.Success = result.URLCount == len(urls)
	return result, nil
}

func (c *Client) notify(attempt int, delay time.Duration, err error) {
	metrics.ObserveRetry(ServiceName)
	c.logger.Info("indexnow rate limited, backing off",
		zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
}
