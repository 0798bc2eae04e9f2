package commands

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-pilot/internal/audit"
	"github.com/JakeFAU/seo-pilot/internal/config"
	"github.com/JakeFAU/seo-pilot/internal/history"
)

// contentHashLen is the hex length of the body fingerprint stored per audit.
const contentHashLen = 16

// AuditOptions are the audit command flags.
type AuditOptions struct {
	ConfigPath string
	URL        string
	Checks     string
	// BaseURL replaces the configured site, e.g. for a preview deploy.
	BaseURL string
	Sitemap string
}

// auditTargets resolves the sitemap to use from the config and overrides.
func auditTargets(cfg *config.Config, opts AuditOptions) (string, error) {
	if opts.BaseURL != "" && !config.IsHTTPURL(opts.BaseURL) {
		return "", fmt.Errorf("Invalid --base-url: %s (expected an http or https URL)", opts.BaseURL) //nolint:staticcheck // user-facing message
	}
	if opts.Sitemap != "" && !config.IsHTTPURL(opts.Sitemap) {
		return "", fmt.Errorf("Invalid --sitemap: %s (expected an http or https URL)", opts.Sitemap) //nolint:staticcheck // user-facing message
	}
	sitemapURL := cfg.Site.Sitemap
	if opts.BaseURL != "" {
		sitemapURL = strings.TrimRight(opts.BaseURL, "/") + "/sitemap.xml"
	}
	if opts.Sitemap != "" {
		sitemapURL = opts.Sitemap
	}
	return sitemapURL, nil
}

// Audit runs the selected on-page checks over one URL or the whole sitemap.
func Audit(ctx context.Context, d *Deps, opts AuditOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	sitemapURL, err := auditTargets(cfg, opts)
	if err != nil {
		return err
	}
	checks, err := audit.ParseChecks(opts.Checks, opts.URL != "")
	if err != nil {
		return err
	}

	var urls []string
	if opts.URL != "" {
		urls = []string{opts.URL}
	} else {
		d.Printer.Info("Fetching URLs from sitemap...")
		urls, err = d.Sitemaps.Fetch(ctx, sitemapURL)
		if err != nil {
			return err
		}
		d.Printer.Info("Found %d URLs in sitemap", len(urls))
	}

	var sitemapResult *audit.CheckResult
	if slices.Contains(checks, audit.CheckSitemap) {
		d.Printer.Info("Auditing sitemap...")
		res := audit.Sitemap(ctx, d.Pages, sitemapURL)
		sitemapResult = &res
	}

	runID := d.runID()
	var (
		reports []audit.PageReport
		entries []history.Entry
	)
	for _, u := range urls {
		d.Printer.Info("Auditing %s...", u)
		page, err := d.Pages.Fetch(ctx, u)
		if err != nil {
			d.logger().Warn("audit fetch failed", zap.String("url", u), zap.Error(err))
			d.Printer.Error("  Failed to audit: %v", err)
			continue
		}
		if !page.OK() {
			d.Printer.Warn("  HTTP %d - skipping checks", page.StatusCode)
			continue
		}
		report, err := audit.Page(u, page.Body, checks, sitemapResult)
		if err != nil {
			d.Printer.Error("  Failed to audit: %v", err)
			continue
		}
		reports = append(reports, report)

		e := d.newEntry(runID)
		e["url"] = u
		e["results"] = report.Checks
		e["contentHash"] = d.Hasher.Short(page.Body, contentHashLen)
		entries = append(entries, e)
	}

	d.Printer.Info("")
	d.Printer.Info("Audit Report:")
	for _, r := range reports {
		d.Printer.Info("")
		d.Printer.Info("%s", r.URL)
		for _, name := range r.Order {
			res := r.Checks[name]
			d.Printer.Info("  %s %s:", res.Status.Icon(), name)
			for _, msg := range res.Messages {
				d.Printer.Info("    - %s", msg)
			}
		}
	}

	sum := audit.Summarize(reports)
	d.Printer.Info("")
	d.Printer.Info("Summary:")
	d.Printer.Table([]string{"Status", "Count"}, [][]string{
		{"Pass", strconv.Itoa(sum.Pass)},
		{"Warn", strconv.Itoa(sum.Warn)},
		{"Fail", strconv.Itoa(sum.Fail)},
		{"Total", strconv.Itoa(sum.Total)},
	})

	if len(entries) > 0 {
		if err := d.History.Append(history.AuditFile, entries...); err != nil {
			return fmt.Errorf("save audit history: %w", err)
		}
		d.Printer.Success("Audit results saved to history")
	}
	return nil
}
