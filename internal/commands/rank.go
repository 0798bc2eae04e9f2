package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/JakeFAU/seo-pilot/internal/apis/searchconsole"
	"github.com/JakeFAU/seo-pilot/internal/auth"
	"github.com/JakeFAU/seo-pilot/internal/config"
	"github.com/JakeFAU/seo-pilot/internal/history"
)

// RankOptions are the rank command flags.
type RankOptions struct {
	ConfigPath string
	Days       int
	Keyword    string
}

// Rank prints Search Console performance for the tracked keywords.
func Rank(ctx context.Context, d *Deps, opts RankOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	g := cfg.APIs.Google
	if g == nil {
		d.Printer.Warn("Google is not configured - skipping rank")
		d.Printer.Info(`Run "seo-pilot setup" to configure Google integration`)
		return nil
	}

	days := opts.Days
	if days <= 0 {
		days = searchconsole.DefaultDays
	}
	keywords := cfg.Keywords
	if opts.Keyword != "" {
		keywords = []string{opts.Keyword}
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

	suffix := ""
	if len(keywords) > 0 {
		suffix = fmt.Sprintf(" (filtering by %d keywords)", len(keywords))
	}
	d.Printer.Info("Querying Search Console performance for last %d days%s...", days, suffix)

	rows, err := client.Performance(ctx, days, keywords)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		d.Printer.Warn("No performance data found")
		return nil
	}

	table := make([][]string, 0, len(rows))
	entries := make([]history.Entry, 0, len(rows))
	runID := d.runID()
	for _, r := range rows {
		table = append(table, []string{
			r.Keyword,
			r.Page,
			strconv.FormatFloat(r.Clicks, 'f', -1, 64),
			strconv.FormatFloat(r.Impressions, 'f', -1, 64),
			fmt.Sprintf("%.1f", r.Position),
			fmt.Sprintf("%.2f%%", r.CTR*100),
		})
		e := d.newEntry(runID)
		e["keyword"] = r.Keyword
		e["page"] = r.Page
		e["clicks"] = r.Clicks
		e["impressions"] = r.Impressions
		e["ctr"] = r.CTR
		e["position"] = r.Position
		entries = append(entries, e)
	}
	d.Printer.Table([]string{"Keyword", "Page", "Clicks", "Impressions", "Avg Position", "CTR"}, table)

	if err := d.History.Append(history.RankFile, entries...); err != nil {
		return fmt.Errorf("save rank history: %w", err)
	}
	d.Printer.Success("Retrieved %d performance rows and saved to %s", len(rows), historyPath(d, history.RankFile))
	return nil
}
