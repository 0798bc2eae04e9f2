package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-pilot/internal/apis/searchconsole"
	"github.com/JakeFAU/seo-pilot/internal/auth"
	"github.com/JakeFAU/seo-pilot/internal/config"
	"github.com/JakeFAU/seo-pilot/internal/history"
)

// inspectPaceKey groups inspection calls under one limiter bucket.
const inspectPaceKey = "https://searchconsole.googleapis.com/"

// ErrGoogleNotConfigured is returned by commands that need Google credentials.
var ErrGoogleNotConfigured = errors.New("Google Search Console is not configured") //nolint:staticcheck // user-facing message

// InspectOptions are the inspect command flags.
type InspectOptions struct {
	ConfigPath string
	URL        string
}

// Inspect reports the index status of one URL or every sitemap URL.
func Inspect(ctx context.Context, d *Deps, opts InspectOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	g := cfg.APIs.Google
	if g == nil {
		d.Printer.Info(`Run "seo-pilot setup" to configure Google integration`)
		return ErrGoogleNotConfigured
	}

	d.Printer.Info("Authenticating with Google...")
	scopes := []string{auth.ScopeWebmasters}
	if _, err := d.Tokens.AccessToken(ctx, g.ServiceAccountPath, scopes); err != nil {
		return err
	}
	client, err := d.NewSearchConsole(ctx, g.SiteURL, d.Tokens.TokenSource(ctx, g.ServiceAccountPath, scopes))
	if err != nil {
		return err
	}

	var urls []string
	if opts.URL != "" {
		urls = []string{opts.URL}
		d.Printer.Info("Inspecting single URL: %s", opts.URL)
	} else {
		d.Printer.Info("Fetching URLs from sitemap...")
		urls, err = d.Sitemaps.Fetch(ctx, cfg.Site.Sitemap)
		if err != nil {
			return err
		}
		d.Printer.Info("Found %d URLs to inspect", len(urls))
	}
	if len(urls) == 0 {
		d.Printer.Warn("No URLs to inspect")
		return nil
	}

	var (
		results  []searchconsole.Inspection
		failures []string
	)
	for i, u := range urls {
		if d.Pacer != nil {
			if err := d.Pacer.Wait(ctx, inspectPaceKey); err != nil {
				return err
			}
		}
		d.Printer.Info("Inspecting %d/%d: %s", i+1, len(urls), u)
		res, err := client.Inspect(ctx, u)
		if err != nil {
			d.logger().Warn("inspection failed", zap.String("url", u), zap.Error(err))
			d.Printer.Error("Failed to inspect %s: %v", u, err)
			failures = append(failures, fmt.Sprintf("%s: %v", u, err))
			continue
		}
		results = append(results, res)
	}

	if len(results) > 0 {
		rows := make([][]string, 0, len(results))
		entries := make([]history.Entry, 0, len(results))
		runID := d.runID()
		for _, r := range results {
			rows = append(rows, []string{r.URL, r.Verdict, r.LastCrawlTime, r.IndexingState, r.MobileUsability})
			e := d.newEntry(runID)
			e["url"] = r.URL
			e["verdict"] = r.Verdict
			e["lastCrawlTime"] = r.LastCrawlTime
			e["indexingState"] = r.IndexingState
			e["mobileUsability"] = r.MobileUsability
			entries = append(entries, e)
		}
		d.Printer.Table([]string{"URL", "Verdict", "Last Crawl", "Indexing State", "Mobile OK"}, rows)
		if err := d.History.Append(history.InspectFile, entries...); err != nil {
			return fmt.Errorf("save inspect history: %w", err)
		}
		d.Printer.Success("Inspected %d URLs and saved to %s", len(results), historyPath(d, history.InspectFile))
	}

	if len(failures) > 0 {
		d.Printer.Error("Failed to inspect %d URLs:", len(failures))
		for _, f := range failures {
			d.Printer.Error("  %s", f)
		}
		return fmt.Errorf("%d of %d inspections failed", len(failures), len(urls))
	}
	return nil
}
