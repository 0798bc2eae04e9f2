// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/JakeFAU/seo-pilot/internal/apis/bing"
	"github.com/JakeFAU/seo-pilot/internal/apis/customsearch"
	"github.com/JakeFAU/seo-pilot/internal/apis/googleindexing"
	"github.com/JakeFAU/seo-pilot/internal/apis/indexnow"
	"github.com/JakeFAU/seo-pilot/internal/apis/searchconsole"
	"github.com/JakeFAU/seo-pilot/internal/auth"
	"github.com/JakeFAU/seo-pilot/internal/clock/system"
	"github.com/JakeFAU/seo-pilot/internal/commands"
	"github.com/JakeFAU/seo-pilot/internal/discover"
	collyfetcher "github.com/JakeFAU/seo-pilot/internal/fetcher/colly"
	"github.com/JakeFAU/seo-pilot/internal/hash/sha256"
	"github.com/JakeFAU/seo-pilot/internal/history"
	"github.com/JakeFAU/seo-pilot/internal/httpclient"
	"github.com/JakeFAU/seo-pilot/internal/id/uuid"
	"github.com/JakeFAU/seo-pilot/internal/logging"
	"github.com/JakeFAU/seo-pilot/internal/metrics"
	"github.com/JakeFAU/seo-pilot/internal/policy/ratelimit"
	"github.com/JakeFAU/seo-pilot/internal/sitemap"
	"github.com/JakeFAU/seo-pilot/internal/ui"
	"github.com/JakeFAU/seo-pilot/pkg/config"
)

// Streams are the terminal handles a command talks to.
type Streams struct {
	In    io.Reader
	Out   io.Writer
	Err   io.Writer
	Color bool
}

// App holds the shared services for one command invocation: the logger,
// the HTTP stack, the token cache, the history store and the API clients.
// It is built in the root command's pre-run hook and closed once the command returns.
type App struct {
	settings config.Settings
	logger   *zap.Logger
	http     *resty.Client
	tokens   *auth.Client
	history  *history.Store
	pages    *collyfetcher.Fetcher
	sitemaps *sitemap.Fetcher
	pacer    *ratelimit.Limiter
	printer  *ui.Printer
	in       io.Reader
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetSettings returns the runtime settings the app was built from.
func (a *App) GetSettings() config.Settings {
	return a.settings
}

// GetHistory exposes the state directory store.
func (a *App) GetHistory() *history.Store {
	return a.history
}

// GetPrinter returns the console printer.
func (a *App) GetPrinter() *ui.Printer {
	return a.printer
}

// New creates the App from runtime settings. It fails fast when the logger
// or the state directory cannot be set up.
func New(settings config.Settings, streams Streams) (*App, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	logger, err := logging.New(settings.Log.Development, settings.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Debug("Initializing application services", zap.String("state_dir", settings.StateDir))

	store, err := history.New(history.Config{BaseDir: settings.StateDir})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}

	rc := httpclient.New(httpclient.Config{
		Timeout:   settings.HTTP.Timeout,
		UserAgent: settings.HTTP.UserAgent,
		HostRPS:   settings.HTTP.HostRPS,
	}, logger)
	pages := collyfetcher.New(collyfetcher.Config{
		UserAgent: settings.HTTP.UserAgent,
		Timeout:   settings.HTTP.Timeout,
	})

	return &App{
		settings: settings,
		logger:   logger,
		http:     rc,
		tokens:   auth.New(rc, logger, auth.WithPolicy(settings.RetryPolicy())),
		history:  store,
		pages:    pages,
		sitemaps: sitemap.New(pages),
		pacer:    ratelimit.New(ratelimit.Config{DefaultRPS: settings.Inspect.RPS, DefaultBurst: 1}),
		printer:  ui.New(streams.Out, streams.Err).WithColor(streams.Color),
		in:       streams.In,
	}, nil
}

// Deps wires the services into the handler dependencies.
func (a *App) Deps() *commands.Deps {
	policy := a.settings.RetryPolicy()
	timeout := a.settings.HTTP.Timeout
	logger := a.logger

	return &commands.Deps{
		Printer:  a.printer,
		Logger:   logger,
		History:  a.history,
		Clock:    system.New(),
		IDs:      uuid.New(),
		Hasher:   sha256.New(),
		Sitemaps: a.sitemaps,
		Pages:    a.pages,
		Tokens:   a.tokens,
		Pacer:    a.pacer,

		IndexNow:       indexnow.New(a.http, logger, indexnow.WithPolicy(policy)),
		GoogleIndexing: googleindexing.New(a.http, logger, googleindexing.WithPolicy(policy)),
		Bing:           bing.New(a.http, logger, bing.WithPolicy(policy)),

		NewSearchConsole: func(ctx context.Context, siteURL string, ts oauth2.TokenSource) (commands.SearchConsole, error) {
			c, err := searchconsole.New(ctx, httpclient.NewStdClient(timeout, ts), logger, siteURL,
				searchconsole.WithPolicy(policy))
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		NewSearcher: func(ctx context.Context, apiKey, engineID string) (discover.Searcher, error) {
			c, err := customsearch.New(ctx, httpclient.NewStdClient(timeout, nil), logger, apiKey, engineID,
				customsearch.WithPolicy(policy))
			if err != nil {
				return nil, err
			}
			return c, nil
		},

		In: a.in,
	}
}

// Close flushes the metrics textfile, when configured, and the logger.
// The root command calls it after the subcommand returns, on success and on error.
func (a *App) Close() {
	if path := a.settings.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			a.logger.Warn("Error writing metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
	// Sync on stderr returns EINVAL on some platforms; nothing useful to do with it.
	_ = a.logger.Sync()
}
