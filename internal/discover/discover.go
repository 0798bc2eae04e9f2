// Package discover plans and runs link-building searches through Custom Search
// while staying inside the daily quota.
package discover

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-pilot/internal/apis/customsearch"
	"github.com/JakeFAU/seo-pilot/internal/history"
)

const (
	// Quota is the free Custom Search allowance per day.
	Quota = 100
	// DedupeDays is how long a discovered URL is suppressed.
	DedupeDays = 30
)

// Mode selects which searches to run.
type Mode string

const (
	ModeForums      Mode = "forums"
	ModeDirectories Mode = "directories"
	ModeAll         Mode = "all"
)

// ParseMode validates the --type flag. Empty means forums.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.TrimSpace(s)) {
	case "", ModeForums:
		return ModeForums, nil
	case ModeDirectories:
		return ModeDirectories, nil
	case ModeAll:
		return ModeAll, nil
	}
	return "", fmt.Errorf("invalid --type %q (valid: forums, directories, all)", s)
}

// Forums reports whether m includes forum searches.
func (m Mode) Forums() bool { return m == ModeForums || m == ModeAll }

// Directories reports whether m includes directory searches.
func (m Mode) Directories() bool { return m == ModeDirectories || m == ModeAll }

// Kind tags a query and its history entries.
type Kind string

const (
	KindForum     Kind = "forum"
	KindDirectory Kind = "directory"
)

// Categories assigned to directory results.
const (
	CategoryDirectory    = "directory"
	CategoryResourceList = "resource-list"
	CategoryRoundup      = "roundup"
)

// Query is one planned search.
type Query struct {
	Text    string
	Keyword string
	Kind    Kind
}

// ForumQueries builds one site-restricted query per keyword and site.
func ForumQueries(keywords, sites []string) []Query {
	out := make([]Query, 0, len(keywords)*len(sites))
	for _, kw := range keywords {
		for _, site := range sites {
			out = append(out, Query{
				Text:    fmt.Sprintf(`site:%s "%s"`, site, kw),
				Keyword: kw,
				Kind:    KindForum,
			})
		}
	}
	return out
}

var directoryTemplates = []string{
	`"%s" "resources" "links"`,
	`"%s" "directory" OR "resource list"`,
	`"%s" "submit" OR "add your site"`,
	`"best %s websites"`,
}

// DirectoryQueries returns custom queries verbatim when given, otherwise the
// keyword templates expanded for every keyword.
func DirectoryQueries(keywords, custom []string) []Query {
	if len(custom) > 0 {
		out := make([]Query, 0, len(custom))
		for _, q := range custom {
			out = append(out, Query{Text: q, Kind: KindDirectory})
		}
		return out
	}
	out := make([]Query, 0, len(keywords)*len(directoryTemplates))
	for _, kw := range keywords {
		for _, tmpl := range directoryTemplates {
			out = append(out, Query{Text: fmt.Sprintf(tmpl, kw), Keyword: kw, Kind: KindDirectory})
		}
	}
	return out
}

// Categorize labels a directory hit from its title and snippet.
func Categorize(title, snippet string) string {
	title, snippet = strings.ToLower(title), strings.ToLower(snippet)
	category := CategoryDirectory
	if strings.Contains(title, "resource") || strings.Contains(snippet, "resource") {
		category = CategoryResourceList
	}
	if strings.Contains(title, "best") || strings.Contains(snippet, "roundup") {
		category = CategoryRoundup
	}
	return category
}

// SeenSince returns URLs from entries stamped within days of now.
func SeenSince(entries []history.Entry, now time.Time, days int) map[string]struct{} {
	cutoff := now.AddDate(0, 0, -days)
	seen := map[string]struct{}{}
	for _, e := range entries {
		ts, ok := e.Timestamp()
		if !ok || ts.Before(cutoff) {
			continue
		}
		if u := e.String("url"); u != "" {
			seen[u] = struct{}{}
		}
	}
	return seen
}

// Opportunity is a new, not previously seen search hit.
type Opportunity struct {
	customsearch.Result
	Query    Query
	Category string
}

// Searcher runs one search.
type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]customsearch.Result, error)
}

// Discoverer runs queries, counts calls against the quota and drops URLs
// already seen in history or earlier in the run.
type Discoverer struct {
	searcher Searcher
	num      int
	quota    int
	calls    int
	seen     map[string]struct{}
	logger   *zap.Logger
}

// Option customizes a Discoverer.
type Option func(*Discoverer)

// WithQuota overrides the call budget.
func WithQuota(n int) Option {
	return func(d *Discoverer) { d.quota = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Discoverer) { d.logger = l }
}

// New builds a Discoverer requesting num results per query. seen may be nil.
func New(searcher Searcher, num int, seen map[string]struct{}, opts ...Option) *Discoverer {
	if seen == nil {
		seen = map[string]struct{}{}
	}
	d := &Discoverer{
		searcher: searcher,
		num:      num,
		quota:    Quota,
		seen:     seen,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes queries in order. It stops early, returning exhausted=true,
// once the quota is used up. A search error aborts the run.
func (d *Discoverer) Run(ctx context.Context, queries []Query) ([]Opportunity, bool, error) {
	var found []Opportunity
	for _, q := range queries {
		if d.calls >= d.quota {
			return found, true, nil
		}
		d.logger.Debug("searching", zap.String("query", q.Text))
		results, err := d.searcher.Search(ctx, q.Text, d.num)
		d.calls++
		if err != nil {
			return found, false, fmt.Errorf("search %q: %w", q.Text, err)
		}
		for _, r := range results {
			if _, dup := d.seen[r.URL]; dup {
				continue
			}
			d.seen[r.URL] = struct{}{}
			opp := Opportunity{Result: r, Query: q}
			if q.Kind == KindDirectory {
				opp.Category = Categorize(r.Title, r.Snippet)
			}
			found = append(found, opp)
		}
	}
	return found, false, nil
}

// Calls returns how many searches have been issued.
func (d *Discoverer) Calls() int { return d.calls }

// Quota returns the call budget.
func (d *Discoverer) Quota() int { return d.quota }

// NearQuota reports whether at least 90% of the quota has been used.
func (d *Discoverer) NearQuota() bool { return d.calls*10 >= d.quota*9 }

// Entry converts o into a discover history record.
func (o Opportunity) Entry(at time.Time) history.Entry {
	e := history.NewEntry(at)
	e["url"] = o.URL
	e["title"] = o.Title
	e["snippet"] = o.Snippet
	e["query"] = o.Query.Text
	e["type"] = string(o.Query.Kind)
	if o.Query.Keyword != "" {
		e["keyword"] = o.Query.Keyword
	}
	if o.Category != "" {
		e["category"] = o.Category
	}
	return e
}
