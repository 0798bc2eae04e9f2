// Package searchconsole queries Search Console performance data and the URL
// Inspection API.
package searchconsole

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sc "google.golang.org/api/searchconsole/v1"

	"github.com/JakeFAU/seo-pilot/internal/apis"
	"github.com/JakeFAU/seo-pilot/internal/clock/system"
	"github.com/JakeFAU/seo-pilot/internal/metrics"
	"github.com/JakeFAU/seo-pilot/internal/retry"
)

const (
	// ServiceName labels metrics.
	ServiceName = "searchconsole"
	// DefaultDays is the performance window when none is given.
	DefaultDays = 28
	// RowLimit caps rows per performance query.
	RowLimit = 1000
	// Unknown fills inspection fields the API omitted.
	Unknown = "UNKNOWN"
	// NeverCrawled fills a missing last crawl time.
	NeverCrawled = "Never"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Row is one keyword/page performance row.
type Row struct {
	Keyword     string  `json:"keyword"`
	Page        string  `json:"page"`
	Clicks      float64 `json:"clicks"`
	Impressions float64 `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

// Inspection is the subset of a URL Inspection result we report.
type Inspection struct {
	URL             string `json:"url"`
	Verdict         string `json:"verdict"`
	LastCrawlTime   string `json:"lastCrawlTime"`
	IndexingState   string `json:"indexingState"`
	MobileUsability string `json:"mobileUsability"`
}

// Client talks to Search Console for one property.
type Client struct {
	svc      *sc.Service
	siteURL  string
	logger   *zap.Logger
	policy   retry.Policy
	clock    Clock
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

// WithClock overrides the clock used for date ranges.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// New builds a Client. httpClient must already authorize requests with the
// webmasters scope.
func New(ctx context.Context, httpClient *http.Client, logger *zap.Logger, siteURL string, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		siteURL: siteURL,
		logger:  logger,
		policy:  retry.Default(),
		clock:   system.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	svcOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(c.endpoint))
	}
	svc, err := sc.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create search console service: %w", err)
	}
	c.svc = svc
	return c, nil
}

// DateRange returns the YYYY-MM-DD window ending yesterday (UTC) and
// starting days before that.
func DateRange(now time.Time, days int) (start, end string) {
	endDate := now.UTC().AddDate(0, 0, -1)
	startDate := endDate.AddDate(0, 0, -days)
	return startDate.Format(time.DateOnly), endDate.Format(time.DateOnly)
}

// KeywordFilter restricts a query to keywords. One keyword is an exact
// match; several become one anchored regex, since filters within a group
// are ANDed.
func KeywordFilter(keywords []string) []*sc.ApiDimensionFilterGroup {
	switch len(keywords) {
	case 0:
		return nil
	case 1:
		return []*sc.ApiDimensionFilterGroup{{
			Filters: []*sc.ApiDimensionFilter{{Dimension: "query", Operator: "equals", Expression: keywords[0]}},
		}}
	}
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return []*sc.ApiDimensionFilterGroup{{
		Filters: []*sc.ApiDimensionFilter{{
			Dimension:  "query",
			Operator:   "includingRegex",
			Expression: "^(" + strings.Join(quoted, "|") + ")$",
		}},
	}}
}

// Performance returns query/page rows for the last days days, optionally
// filtered to keywords.
func (c *Client) Performance(ctx context.Context, days int, keywords []string) ([]Row, error) {
	if days <= 0 {
		days = DefaultDays
	}
	start, end := DateRange(c.clock.Now(), days)
	req := &sc.SearchAnalyticsQueryRequest{
		StartDate:             start,
		EndDate:               end,
		Dimensions:            []string{"query", "page"},
		RowLimit:              RowLimit,
		DimensionFilterGroups: KeywordFilter(keywords),
	}

	policy := c.policy
	policy.Notify = c.notify
	res, err := retry.Do(ctx, policy, func(ctx context.Context) (*sc.SearchAnalyticsQueryResponse, error) {
		res, err := c.svc.Searchanalytics.Query(c.siteURL, req).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("Failed to query performance: %w", apis.GoogleError(err))
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(res.Rows))
	for _, r := range res.Rows {
		row := Row{Clicks: r.Clicks, Impressions: r.Impressions, CTR: r.Ctr, Position: r.Position}
		if len(r.Keys) > 0 {
			row.Keyword = r.Keys[0]
		}
		if len(r.Keys) > 1 {
			row.Page = r.Keys[1]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Inspect runs the URL Inspection API for pageURL.
func (c *Client) Inspect(ctx context.Context, pageURL string) (Inspection, error) {
	req := &sc.InspectUrlIndexRequest{
		InspectionUrl: pageURL,
		SiteUrl:       c.siteURL,
		LanguageCode:  "en",
	}

	policy := c.policy
	policy.Notify = c.notify
	res, err := retry.Do(ctx, policy, func(ctx context.Context) (*sc.InspectUrlIndexResponse, error) {
		res, err := c.svc.UrlInspection.Index.Inspect(req).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("Failed to inspect URL: %w", apis.GoogleError(err))
		}
		return res, nil
	})
	if err != nil {
		return Inspection{}, err
	}

	out := Inspection{
		URL:             pageURL,
		Verdict:         Unknown,
		LastCrawlTime:   NeverCrawled,
		IndexingState:   Unknown,
		MobileUsability: Unknown,
	}
	result := res.InspectionResult
	if result == nil {
		return out, nil
	}
	if s := result.IndexStatusResult; s != nil {
		out.Verdict = orDefault(s.Verdict, Unknown)
		out.LastCrawlTime = orDefault(s.LastCrawlTime, NeverCrawled)
		out.IndexingState = orDefault(s.IndexingState, Unknown)
	}
	if m := result.MobileUsabilityResult; m != nil {
		out.MobileUsability = orDefault(m.Verdict, Unknown)
	}
	return out, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (c *Client) notify(attempt int, delay time.Duration, err error) {
	metrics.ObserveRetry(ServiceName)
	c.logger.Info("search console rate limited, backing off",
		zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
}
