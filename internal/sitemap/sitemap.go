// Package sitemap resolves sitemap and sitemap index documents into page URLs.
package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/gocolly/colly/v2"

	collyfetcher "github.com/JakeFAU/seo-pilot/internal/fetcher/colly"
)

const (
	urlLocPath     = "//urlset/url/loc"
	sitemapLocPath = "//sitemapindex/sitemap/loc"
)

// Kind classifies a sitemap document.
type Kind int

const (
	// KindUnknown is neither a urlset nor a sitemap index.
	KindUnknown Kind = iota
	// KindURLSet lists page URLs.
	KindURLSet
	// KindIndex lists child sitemaps.
	KindIndex
)

// Document is one parsed sitemap.
type Document struct {
	Kind Kind
	Locs []string
}

// Parse extracts the loc entries from body.
func Parse(body []byte) (Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return Document{}, fmt.Errorf("parse sitemap: %w", err)
	}
	if nodes := xmlquery.Find(root, urlLocPath); len(nodes) > 0 {
		return Document{Kind: KindURLSet, Locs: texts(nodes)}, nil
	}
	if nodes := xmlquery.Find(root, sitemapLocPath); len(nodes) > 0 {
		return Document{Kind: KindIndex, Locs: texts(nodes)}, nil
	}
	switch {
	case xmlquery.FindOne(root, "//urlset") != nil:
		return Document{Kind: KindURLSet}, nil
	case xmlquery.FindOne(root, "//sitemapindex") != nil:
		return Document{Kind: KindIndex}, nil
	}
	return Document{}, nil
}

func texts(nodes []*xmlquery.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

// WellFormed is the cheap structural check used by the audit: an XML
// declaration plus a closing urlset or sitemapindex element.
func WellFormed(body []byte) bool {
	text := string(body)
	if !strings.Contains(text, "<?xml") {
		return false
	}
	return strings.Contains(text, "</urlset>") || strings.Contains(text, "</sitemapindex>")
}

// Fetcher downloads sitemaps with a Colly collector.
type Fetcher struct {
	pages *collyfetcher.Fetcher
}

// New builds a Fetcher on top of a page fetcher.
func New(pages *collyfetcher.Fetcher) *Fetcher {
	return &Fetcher{pages: pages}
}

// Fetch returns every page URL reachable from sitemapURL, following sitemap
// indexes recursively. URLs are deduplicated in first-seen order.
func (f *Fetcher) Fetch(ctx context.Context, sitemapURL string) ([]string, error) {
	var (
		urls    []string
		seen    = map[string]struct{}{}
		visited = map[string]struct{}{}
	)
	var walk func(string) error
	walk = func(u string) error {
		if _, ok := visited[u]; ok {
			return nil
		}
		visited[u] = struct{}{}

		doc, err := f.visit(ctx, u)
		if err != nil {
			return err
		}
		if doc.Kind == KindIndex {
			for _, child := range doc.Locs {
				if err := walk(child); err != nil {
					return err
				}
			}
			return nil
		}
		for _, loc := range doc.Locs {
			if _, dup := seen[loc]; dup {
				continue
			}
			seen[loc] = struct{}{}
			urls = append(urls, loc)
		}
		return nil
	}
	if err := walk(sitemapURL); err != nil {
		return nil, err
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

// response is what one sitemap request produced. It is filled inside the
// request goroutine and read only after collyfetcher.Run returns it.
type response struct {
	doc    Document
	status int
	body   []byte
	err    error
}

func (f *Fetcher) visit(ctx context.Context, sitemapURL string) (Document, error) {
	res, err := collyfetcher.Run(ctx, func() (response, error) {
		var r response
		c := f.pages.Collector()
		c.OnResponse(func(resp *colly.Response) {
			r.status = resp.StatusCode
			r.body = resp.Body
		})
		c.OnXML(urlLocPath, func(e *colly.XMLElement) {
			r.doc.Kind = KindURLSet
			if loc := strings.TrimSpace(e.Text); loc != "" {
				r.doc.Locs = append(r.doc.Locs, loc)
			}
		})
		c.OnXML(sitemapLocPath, func(e *colly.XMLElement) {
			r.doc.Kind = KindIndex
			if loc := strings.TrimSpace(e.Text); loc != "" {
				r.doc.Locs = append(r.doc.Locs, loc)
			}
		})
		r.err = c.Visit(sitemapURL)
		return r, nil
	})
	if err != nil {
		return Document{}, err
	}

	// A non-200 status wins over XML callback errors on its error page.
	if res.status != 0 && res.status != http.StatusOK {
		return Document{}, statusError(res.status)
	}
	if res.err != nil {
		return Document{}, fmt.Errorf("colly visit failed: %w", res.err)
	}
	if res.status != http.StatusOK {
		return Document{}, statusError(res.status)
	}
	// Colly only runs XML callbacks for XML content types or .xml paths.
	if res.doc.Kind == KindUnknown && len(res.body) > 0 {
		return Parse(res.body)
	}
	return res.doc, nil
}

func statusError(status int) error {
	return fmt.Errorf("Failed to fetch sitemap: %d %s", status, http.StatusText(status))
}
