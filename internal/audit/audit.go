// Package audit runs on-page SEO checks over fetched HTML and sitemaps.
package audit

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/seo-pilot/internal/metrics"
)

// Status is the outcome of a single check.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Icon returns the console marker for s.
func (s Status) Icon() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	default:
		return "✗"
	}
}

// Check names accepted by --checks.
const (
	CheckMeta    = "meta"
	CheckSchema  = "schema"
	CheckLinks   = "links"
	CheckSitemap = "sitemap"
	CheckRender  = "render"
)

// DefaultChecks is what "all" expands to. The render check is opt-in.
var DefaultChecks = []string{CheckMeta, CheckSchema, CheckLinks, CheckSitemap}

var knownChecks = []string{CheckMeta, CheckSchema, CheckLinks, CheckSitemap, CheckRender}

// CheckResult is a status plus human-readable findings.
type CheckResult struct {
	Status   Status   `json:"status"`
	Messages []string `json:"messages"`
}

// result accumulates messages and keeps the worst status seen.
type result struct {
	CheckResult
}

func newResult() *result {
	return &result{CheckResult{Status: StatusPass, Messages: []string{}}}
}

func (r *result) add(s Status, format string, args ...any) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
	r.Status = Worst(r.Status, s)
}

// Worst folds statuses: any fail is fail, else any warn is warn, else pass.
func Worst(statuses ...Status) Status {
	out := StatusPass
	for _, s := range statuses {
		switch {
		case s == StatusFail:
			return StatusFail
		case s == StatusWarn:
			out = StatusWarn
		}
	}
	return out
}

// ParseChecks expands the --checks flag. With a single --url and "all" the
// sitemap check is dropped.
func ParseChecks(flag string, singleURL bool) ([]string, error) {
	flag = strings.TrimSpace(flag)
	if flag == "" || flag == "all" {
		if singleURL {
			return []string{CheckMeta, CheckSchema, CheckLinks}, nil
		}
		return slices.Clone(DefaultChecks), nil
	}
	var out []string
	for _, name := range strings.Split(flag, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !slices.Contains(knownChecks, name) {
			return nil, fmt.Errorf("unknown check %q (valid: %s, all)", name, strings.Join(knownChecks, ", "))
		}
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no checks selected")
	}
	return out, nil
}

// PageReport holds the per-check results for one URL, in check order.
type PageReport struct {
	URL    string
	Order  []string
	Checks map[string]CheckResult
}

// Page runs the page-level checks named in checks over body. The sitemap
// check is shared across pages and is attached when sitemapResult is set.
func Page(pageURL string, body []byte, checks []string, sitemapResult *CheckResult) (PageReport, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return PageReport{}, fmt.Errorf("parse html: %w", err)
	}
	report := PageReport{URL: pageURL, Checks: map[string]CheckResult{}}
	for _, name := range checks {
		var res CheckResult
		switch name {
		case CheckMeta:
			res = Meta(doc)
		case CheckSchema:
			res = Schema(doc)
		case CheckLinks:
			res = Links(doc, pageURL)
		case CheckRender:
			res = Render(body, doc)
		case CheckSitemap:
			if sitemapResult == nil {
				continue
			}
			res = *sitemapResult
		default:
			continue
		}
		metrics.ObserveAuditCheck(name, string(res.Status))
		report.Order = append(report.Order, name)
		report.Checks[name] = res
	}
	return report, nil
}

// Summary counts check outcomes across pages.
type Summary struct {
	Pass  int
	Warn  int
	Fail  int
	Total int
}

// Summarize tallies every check in reports.
func Summarize(reports []PageReport) Summary {
	var s Summary
	for _, r := range reports {
		for _, res := range r.Checks {
			s.Total++
			switch res.Status {
			case StatusPass:
				s.Pass++
			case StatusWarn:
				s.Warn++
			case StatusFail:
				s.Fail++
			}
		}
	}
	return s
}
