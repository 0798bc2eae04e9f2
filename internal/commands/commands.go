// Package commands implements the seo-pilot verbs on top of the API clients,
// the history store and the console printer.
package commands

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/JakeFAU/seo-pilot/internal/apis"
	"github.com/JakeFAU/seo-pilot/internal/apis/searchconsole"
	"github.com/JakeFAU/seo-pilot/internal/audit"
	"github.com/JakeFAU/seo-pilot/internal/discover"
	"github.com/JakeFAU/seo-pilot/internal/history"
	"github.com/JakeFAU/seo-pilot/internal/ui"
)

// History persists command results.
type History interface {
	Append(name string, entries ...history.Entry) error
	Read(name string) ([]history.Entry, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator creates run identifiers and IndexNow keys.
type IDGenerator interface {
	NewID() (string, error)
	NewKey() (string, error)
}

// Hasher fingerprints page bodies.
type Hasher interface {
	Short(data []byte, n int) string
}

// SitemapFetcher expands a sitemap into page URLs.
type SitemapFetcher interface {
	Fetch(ctx context.Context, sitemapURL string) ([]string, error)
}

// Tokens issues Google access tokens for a service account.
type Tokens interface {
	AccessToken(ctx context.Context, serviceAccountPath string, scopes []string) (string, error)
	TokenSource(ctx context.Context, serviceAccountPath string, scopes []string) oauth2.TokenSource
}

// Pacer blocks until the next call to rawURL's host is allowed.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// IndexNowSubmitter posts URLs to IndexNow.
type IndexNowSubmitter interface {
	Submit(ctx context.Context, urls []string, key, siteURL string) (apis.Result, error)
}

// GoogleIndexingSubmitter posts URL_UPDATED notifications.
type GoogleIndexingSubmitter interface {
	Submit(ctx context.Context, urls []string, accessToken string) apis.Result
}

// BingSubmitter posts URLs to Bing Webmaster.
type BingSubmitter interface {
	Submit(ctx context.Context, urls []string, apiKey, siteURL string) apis.Result
}

// SearchConsole queries performance data and inspects URLs.
type SearchConsole interface {
	Performance(ctx context.Context, days int, keywords []string) ([]searchconsole.Row, error)
	Inspect(ctx context.Context, pageURL string) (searchconsole.Inspection, error)
}

// SearchConsoleFactory builds a Search Console client for a property.
type SearchConsoleFactory func(ctx context.Context, siteURL string, ts oauth2.TokenSource) (SearchConsole, error)

// SearcherFactory builds a Custom Search client.
type SearcherFactory func(ctx context.Context, apiKey, engineID string) (discover.Searcher, error)

// Deps carries everything the handlers need. The app container fills it in;
// tests swap in fakes.
type Deps struct {
	Printer  *ui.Printer
	Logger   *zap.Logger
	History  History
	Clock    Clock
	IDs      IDGenerator
	Hasher   Hasher
	Sitemaps SitemapFetcher
	Pages    audit.Prober
	Tokens   Tokens
	Pacer    Pacer

	IndexNow       IndexNowSubmitter
	GoogleIndexing GoogleIndexingSubmitter
	Bing           BingSubmitter

	NewSearchConsole SearchConsoleFactory
	NewSearcher      SearcherFactory

	// In feeds the setup wizard.
	In io.Reader
}

func (d *Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d *Deps) now() time.Time {
	if d.Clock == nil {
		return time.Now().UTC()
	}
	return d.Clock.Now()
}

// newEntry stamps a history entry with the time and run ID.
func (d *Deps) newEntry(runID string) history.Entry {
	e := history.NewEntry(d.now())
	if runID != "" {
		e["runId"] = runID
	}
	return e
}

// runID returns a fresh run identifier, or "" when none can be generated.
func (d *Deps) runID() string {
	if d.IDs == nil {
		return ""
	}
	id, err := d.IDs.NewID()
	if err != nil {
		d.logger().Warn("run id unavailable", zap.Error(err))
		return ""
	}
	return id
}

func historyPath(d *Deps, name string) string {
	if s, ok := d.History.(interface{ Dir() string }); ok {
		return filepath.Join(s.Dir(), name)
	}
	return name
}
