package audit

import (
	"context"

	collyfetcher "github.com/JakeFAU/seo-pilot/internal/fetcher/colly"
	"github.com/JakeFAU/seo-pilot/internal/sitemap"
)

// maxSamples bounds the HEAD requests made per sitemap check.
const maxSamples = 10

// Prober fetches pages and probes URLs.
type Prober interface {
	Fetch(ctx context.Context, url string) (collyfetcher.Page, error)
	Head(ctx context.Context, url string) (int, error)
}

// Sitemap checks that the sitemap is reachable and well-formed, and that a
// sample of its URLs answer with 2xx. Child sitemaps of an index are not
// probed.
func Sitemap(ctx context.Context, p Prober, sitemapURL string) CheckResult {
	r := newResult()

	page, err := p.Fetch(ctx, sitemapURL)
	if err != nil {
		r.add(StatusFail, "Sitemap check failed: %v", err)
		return r.CheckResult
	}
	if !page.OK() {
		r.add(StatusFail, "Sitemap HTTP %d", page.StatusCode)
		return r.CheckResult
	}

	if sitemap.WellFormed(page.Body) {
		r.add(StatusPass, "Sitemap is well-formed")
	} else {
		r.add(StatusWarn, "Sitemap is not well-formed XML")
	}

	doc, err := sitemap.Parse(page.Body)
	if err != nil {
		doc = sitemap.Document{}
	}
	if doc.Kind == sitemap.KindIndex {
		r.add(StatusPass, "Sitemap index contains %d child sitemaps", len(doc.Locs))
		return r.CheckResult
	}

	r.add(StatusPass, "Sitemap contains %d URLs", len(doc.Locs))
	samples := doc.Locs
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}
	ok := 0
	for _, u := range samples {
		code, err := p.Head(ctx, u)
		if err == nil && code >= 200 && code < 300 {
			ok++
		}
	}
	status := StatusPass
	if ok < len(samples) {
		status = StatusWarn
	}
	r.add(status, "%d/%d sampled URLs returned 200", ok, len(samples))
	return r.CheckResult
}
