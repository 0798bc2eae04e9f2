package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-pilot/internal/apis"
	"github.com/JakeFAU/seo-pilot/internal/auth"
	"github.com/JakeFAU/seo-pilot/internal/config"
	"github.com/JakeFAU/seo-pilot/internal/history"
)

// Submission services accepted by --service.
const (
	ServiceIndexNow = "indexnow"
	ServiceGoogle   = "google"
	ServiceBing     = "bing"
	ServiceAll      = "all"
)

// IndexOptions are the index command flags.
type IndexOptions struct {
	ConfigPath string
	Service    string
	DryRun     bool
}

type indexRun struct {
	service string
	result  apis.Result
}

func parseService(s string) (string, error) {
	switch s = strings.TrimSpace(s); s {
	case "":
		return ServiceAll, nil
	case ServiceIndexNow, ServiceGoogle, ServiceBing, ServiceAll:
		return s, nil
	}
	return "", fmt.Errorf("invalid --service %q (valid: indexnow, google, bing, all)", s)
}

// Index submits every sitemap URL to the selected, configured services.
func Index(ctx context.Context, d *Deps, opts IndexOptions) error {
	service, err := parseService(opts.Service)
	if err != nil {
		return err
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	d.Printer.Info("Fetching URLs from sitemap...")
	urls, err := d.Sitemaps.Fetch(ctx, cfg.Site.Sitemap)
	if err != nil {
		return err
	}
	d.Printer.Info("Found %d URLs", len(urls))

	if opts.DryRun {
		d.Printer.Info("Dry run mode - URLs that would be submitted:")
		for _, u := range urls {
			d.Printer.Info("%s", u)
		}
		return nil
	}

	selected := func(name string) bool { return service == ServiceAll || service == name }
	var (
		runs      []indexRun
		failures  []string
		attempted int
		failed    int
	)
	record := func(name string, res apis.Result) {
		attempted++
		if !res.Success {
			failed++
		}
		runs = append(runs, indexRun{service: name, result: res})
		failures = append(failures, res.Errors...)
	}
	abort := func(msg string, err error) {
		attempted++
		failed++
		d.logger().Error(msg, zap.Error(err))
		failures = append(failures, err.Error())
	}

	if selected(ServiceIndexNow) {
		if c := cfg.APIs.IndexNow; c == nil {
			d.Printer.Warn("IndexNow not configured, skipping")
		} else {
			d.Printer.Info("Submitting to IndexNow...")
			res, err := d.IndexNow.Submit(ctx, urls, c.Key, cfg.Site.URL)
			if err != nil {
				abort("indexnow submit failed", err)
			} else {
				record(ServiceIndexNow, res)
			}
		}
	}

	if selected(ServiceGoogle) {
		if c := cfg.APIs.Google; c == nil {
			d.Printer.Warn("Google Indexing API not configured, skipping")
		} else {
			d.Printer.Info("Submitting to Google Indexing API...")
			token, err := d.Tokens.AccessToken(ctx, c.ServiceAccountPath, []string{auth.ScopeIndexing})
			if err != nil {
				abort("google auth failed", fmt.Errorf("google authentication failed: %w", err))
			} else {
				record(ServiceGoogle, d.GoogleIndexing.Submit(ctx, urls, token))
			}
		}
	}

	if selected(ServiceBing) {
		if c := cfg.APIs.Bing; c == nil {
			d.Printer.Warn("Bing Webmaster API not configured, skipping")
		} else {
			d.Printer.Info("Submitting to Bing Webmaster...")
			record(ServiceBing, d.Bing.Submit(ctx, urls, c.APIKey, c.SiteURL))
		}
	}

	if attempted == 0 {
		d.Printer.Warn("No services configured or selected")
		return nil
	}

	runID := d.runID()
	entries := make([]history.Entry, 0, len(runs))
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		e := d.newEntry(runID)
		e["service"] = r.service
		e["urlCount"] = r.result.URLCount
		e["success"] = r.result.Success
		errs := r.result.Errors
		if errs == nil {
			errs = []string{}
		}
		e["errors"] = errs
		entries = append(entries, e)

		status := "Success"
		if !r.result.Success {
			status = "Failed"
		}
		rows = append(rows, []string{r.service, strconv.Itoa(r.result.URLCount), status})
	}
	if len(entries) > 0 {
		if err := d.History.Append(history.IndexFile, entries...); err != nil {
			return fmt.Errorf("save index history: %w", err)
		}
		d.Printer.Table([]string{"Service", "URLs", "Status"}, rows)
	}

	if failed == 0 {
		d.Printer.Success("All submissions completed successfully")
		return nil
	}
	d.Printer.Error("Some submissions failed:")
	for _, f := range failures {
		d.Printer.Error("  %s", f)
	}
	return fmt.Errorf("%d of %d submissions failed", failed, attempted)
}
