// Package customsearch queries the Google Programmable Search (Custom Search JSON) API.
package customsearch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	cs "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/JakeFAU/seo-pilot/internal/apis"
	"github.com/JakeFAU/seo-pilot/internal/metrics"
	"github.com/JakeFAU/seo-pilot/internal/retry"
)

const (
	// ServiceName labels metrics.
	ServiceName = "customsearch"
	// DefaultNum is the result count when none is requested.
	DefaultNum = 5
	// MaxNum is the API's per-request ceiling.
	MaxNum = 10
)

// Result is one search hit.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Client runs searches against one engine.
type Client struct {
	svc      *cs.Service
	apiKey   string
	engineID string
	logger   *zap.Logger
	policy   retry.Policy
	endpoint string
}

// Option customizes a Client.
type Option func(*Client)

// WithEndpoint overrides the API base URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithPolicy overrides the retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// New builds a Client. The API key is sent as the key query parameter on
// each call.
func New(ctx context.Context, httpClient *http.Client, logger *zap.Logger, apiKey, engineID string, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		apiKey:   apiKey,
		engineID: engineID,
		logger:   logger,
		policy:   retry.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	svcOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(c.endpoint))
	}
	svc, err := cs.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create custom search service: %w", err)
	}
	c.svc = svc
	return c, nil
}

// Search returns up to num results for query. A response without items is
// an empty, non-nil slice.
func (c *Client) Search(ctx context.Context, query string, num int) ([]Result, error) {
	if num <= 0 {
		num = DefaultNum
	}
	num = min(num, MaxNum)

	policy := c.policy
	policy.Notify = c.notify
	return retry.Do(ctx, policy, func(ctx context.Context) ([]Result, error) {
		res, err := c.svc.Cse.List().
			Q(query).
			Cx(c.engineID).
			Num(int64(num)).
			Context(ctx).
			Do(googleapi.QueryParameter("key", c.apiKey))
		if err != nil {
			return nil, fmt.Errorf("Google Custom Search failed: %w", apis.GoogleError(err))
		}
		out := make([]Result, 0, len(res.Items))
		for _, item := range res.Items {
			out = append(out, Result{URL: item.Link, Title: item.Title, Snippet: item.Snippet})
		}
		return out, nil
	})
}

func (c *Client) notify(attempt int, delay time.Duration, err error) {
	metrics.ObserveRetry(ServiceName)
	c.logger.Info("custom search rate limited, backing off",
		zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
}
