// Package googleindexing publishes URL_UPDATED notifications through the
// Google Indexing API batch endpoint.
package googleindexing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-pilot/internal/apis"
	"github.com/JakeFAU/seo-pilot/internal/batch"
	"github.com/JakeFAU/seo-pilot/internal/httpclient"
	"github.com/JakeFAU/seo-pilot/internal/metrics"
	"github.com/JakeFAU/seo-pilot/internal/retry"
)

const (
	// Endpoint is the batch endpoint for the Indexing API.
	Endpoint = "https://indexing.googleapis.com/batch"
	// Scope is the OAuth scope required to publish notifications.
	Scope = "https://www.googleapis.com/auth/indexing"
	// BatchSize is the maximum number of notifications per batch request.
	BatchSize = 100
	// ServiceName labels history entries and metrics.
	ServiceName = "google"

	publishPath = "/v3/urlNotifications:publish"
	boundary    = "batch_boundary"
)

type notification struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Client submits URL batches.
type Client struct {
	http     *resty.Client
	logger   *zap.Logger
	endpoint string
	policy   retry.Policy
}

// Option customizes a Client.
type Option func(*Client)

// WithEndpoint overrides the batch endpoint.
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

type batchOutcome struct {
	accepted int
	errors   []string
}

// Submit publishes urls in batches of BatchSize. Per-URL failures inside a
// batch are reported individually; the rest of the batch still counts.
func (c *Client) Submit(ctx context.Context, urls []string, accessToken string) apis.Result {
	result := apis.Result{Errors: []string{}}
	for _, chunk := range apis.Chunk(urls, BatchSize) {
		policy := c.policy
		policy.Notify = c.notify
		outcome, err := retry.Do(ctx, policy, func(ctx context.Context) (batchOutcome, error) {
			return c.submitBatch(ctx, chunk, accessToken)
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Batch failed: %v", err))
			metrics.ObserveSubmission(ServiceName, 0, len(chunk))
			continue
		}
		result.URLCount += outcome.accepted
		result.Errors = append(result.Errors, outcome.errors...)
		metrics.ObserveSubmission(ServiceName, outcome.accepted, len(chunk)-outcome.accepted)
	}
	result.Success = len(result.Errors) == 0 && result.URLCount == len(urls)
	return result
}

func (c *Client) submitBatch(ctx context.Context, urls []string, accessToken string) (batchOutcome, error) {
	parts := make([]batch.Part, 0, len(urls))
	for _, u := range urls {
		body, err := json.Marshal(notification{URL: u, Type: "URL_UPDATED"})
		if err != nil {
			return batchOutcome{}, fmt.Errorf("encode notification: %w", err)
		}
		parts = append(parts, batch.Part{Path: publishPath, Body: body})
	}
	payload, err := batch.Build(boundary, parts)
	if err != nil {
		return batchOutcome{}, err
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", batch.ContentType(boundary)).
		SetBody(payload).
		Post(c.endpoint)
	if err != nil {
		return batchOutcome{}, fmt.Errorf("post batch: %w", err)
	}
	if err := httpclient.CheckStatus(res); err != nil {
		return batchOutcome{}, err
	}

	items, err := batch.Parse(res.Body(), res.Header().Get("Content-Type"))
	if err != nil {
		return batchOutcome{}, fmt.Errorf("parse batch response: %w", err)
	}
	if len(items) != len(urls) {
		c.logger.Warn("batch response item count mismatch",
			zap.Int("submitted", len(urls)), zap.Int("parsed", len(items)))
	}

	var outcome batchOutcome
	for i, item := range items {
		if i >= len(urls) {
			break
		}
		if item.OK() {
			outcome.accepted++
			continue
		}
		msg := item.Error
		if msg == "" {
			msg = fmt.Sprintf("Status %d", item.StatusCode)
		}
		outcome.errors = append(outcome.errors, fmt.Sprintf("URL %s: %s", urls[i], msg))
	}
	return outcome, nil
}

func (c *Client) notify(attempt int, delay time.Duration, err error) {
	metrics.ObserveRetry(ServiceName)
	c.logger.Info("indexing batch rate limited, backing off",
		zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
}
