package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/JakeFAU/seo-pilot/internal/config"
	"github.com/JakeFAU/seo-pilot/internal/discover"
	"github.com/JakeFAU/seo-pilot/internal/history"
	"github.com/JakeFAU/seo-pilot/internal/ui"
)

// ErrCustomSearchNotConfigured is returned by discover without Custom Search credentials.
var ErrCustomSearchNotConfigured = errors.New("Google Custom Search API not configured") //nolint:staticcheck // user-facing message

// DiscoverOptions are the discover command flags.
type DiscoverOptions struct {
	ConfigPath string
	Type       string
	Keyword    string
}

// Discover searches forums and directories for pages worth engaging with,
// skipping anything surfaced in the last DedupeDays days.
func Discover(ctx context.Context, d *Deps, opts DiscoverOptions) error {
	mode, err := discover.ParseMode(opts.Type)
	if err != nil {
		return err
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	cs := cfg.APIs.CustomSearch
	if cs == nil {
		d.Printer.Info(`Run "seo-pilot setup" to configure Custom Search API`)
		return ErrCustomSearchNotConfigured
	}

	keywords := cfg.Keywords
	if opts.Keyword != "" {
		if !slices.Contains(cfg.Keywords, opts.Keyword) {
			d.Printer.Warn("Keyword %q not found in config", opts.Keyword)
			return nil
		}
		keywords = []string{opts.Keyword}
	}

	past, err := d.History.Read(history.DiscoverFile)
	if err != nil {
		return err
	}
	searcher, err := d.NewSearcher(ctx, cs.APIKey, cs.EngineID)
	if err != nil {
		return err
	}
	num := cfg.Discover.ResultsPerKeyword
	if num <= 0 {
		num = config.DefaultResultsPerKeyword
	}
	run := discover.New(searcher, num, discover.SeenSince(past, d.now(), discover.DedupeDays),
		discover.WithLogger(d.logger()))

	var found []discover.Opportunity
	stopped := false
	search := func(queries []discover.Query) ([]discover.Opportunity, error) {
		if stopped {
			return nil, nil
		}
		hits, exhausted, err := run.Run(ctx, queries)
		if exhausted {
			stopped = true
			d.Printer.Warn("Approaching Custom Search quota (%d/day) - stopping", run.Quota())
		}
		return hits, err
	}

	if mode.Forums() {
		d.Printer.Info("Running discovery for forums...")
		hits, err := search(discover.ForumQueries(keywords, cfg.Discover.Sites))
		if err != nil {
			return err
		}
		found = append(found, hits...)
		printForums(d.Printer, keywords, hits)
	}

	if mode.Directories() {
		d.Printer.Info("Running discovery for directories...")
		queries := discover.DirectoryQueries(keywords, cfg.Discover.DirectoryQueries)
		if len(queries) == 0 {
			d.Printer.Warn("No keywords or directory queries configured - skipping directories")
		} else {
			hits, err := search(queries)
			if err != nil {
				return err
			}
			found = append(found, hits...)
			printDirectories(d.Printer, hits)
		}
	}

	if len(found) > 0 {
		runID := d.runID()
		entries := make([]history.Entry, 0, len(found))
		for _, o := range found {
			e := o.Entry(d.now())
			if runID != "" {
				e["runId"] = runID
			}
			entries = append(entries, e)
		}
		if err := d.History.Append(history.DiscoverFile, entries...); err != nil {
			return fmt.Errorf("save discover history: %w", err)
		}
		d.Printer.Success("Saved %d new results to history", len(entries))
	}

	d.Printer.Info("")
	d.Printer.Info("Total API calls: %d/%d", run.Calls(), run.Quota())
	if run.NearQuota() {
		d.Printer.Warn("You are approaching the daily quota limit")
	}
	return nil
}

func printForums(p *ui.Printer, keywords []string, hits []discover.Opportunity) {
	if len(hits) == 0 {
		p.Info("No new forum results found")
		return
	}
	p.Info("")
	p.Info("Forum Discovery Results:")
	for _, kw := range keywords {
		var rows [][]string
		for _, h := range hits {
			if h.Query.Keyword == kw {
				rows = append(rows, []string{h.URL, h.Title, ui.Truncate(h.Snippet, 80)})
			}
		}
		if len(rows) == 0 {
			continue
		}
		p.Info("")
		p.Info("%s:", kw)
		p.Table([]string{"URL", "Title", "Snippet"}, rows)
	}
}

func printDirectories(p *ui.Printer, hits []discover.Opportunity) {
	if len(hits) == 0 {
		p.Info("No new directory results found")
		return
	}
	p.Info("")
	p.Info("Directory Discovery Results:")
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, []string{h.URL, h.Title, ui.Truncate(h.Snippet, 60), h.Category})
	}
	p.Table([]string{"URL", "Title", "Snippet", "Type"}, rows)
}
