package commands

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/seo-pilot/internal/fetcher/colly"
	"github.com/JakeFAU/seo-pilot/internal/history"
)

const auditHTML = `<!doctype html><html><head>
<title>Short</title>
<script type="application/ld+json">{"@type":"Organization"}</script>
</head><body>
<a href="/one">1</a><a href="/two">2</a><a href="https://example.com/three">3</a>
</body></html>`

func TestAudit_FlagValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	path := f.writeConfig(t, `[]`, ``)

	tests := []struct {
		name string
		opts AuditOptions
		want string
	}{
		{"bad base url", AuditOptions{ConfigPath: path, BaseURL: "ftp://staging"}, "Invalid --base-url"},
		{"relative base url", AuditOptions{ConfigPath: path, BaseURL: "staging.example.com"}, "Invalid --base-url"},
		{"bad sitemap", AuditOptions{ConfigPath: path, Sitemap: "not a url"}, "Invalid --sitemap"},
		{"unknown check", AuditOptions{ConfigPath: path, Checks: "meta,speed"}, "unknown check"},
	}
	for _, tt := range tests {
		err := Audit(context.Background(), f.deps, tt.opts)
		require.Error(t, err, tt.name)
		assert.Contains(t, err.Error(), tt.want, tt.name)
	}
}

func TestAudit_BaseURLDerivesSitemap(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	path := f.writeConfig(t, `[]`, ``)
	sitemaps := &fakeSitemaps{urls: []string{}}
	f.deps.Sitemaps = sitemaps
	f.deps.Pages = &fakePages{pages: map[string]collyfetcher.Page{
		"https://staging.example.com/sitemap.xml": {StatusCode: http.StatusOK, Body: []byte(`<?xml version="1.0"?><urlset></urlset>`)},
	}}

	require.NoError(t, Audit(context.Background(), f.deps, AuditOptions{ConfigPath: path, BaseURL: "https://staging.example.com/"}))
	assert.Equal(t, []string{"https://staging.example.com/sitemap.xml"}, sitemaps.requested)

	sitemaps.requested = nil
	require.NoError(t, Audit(context.Background(), f.deps, AuditOptions{
		ConfigPath: path,
		BaseURL:    "https://staging.example.com",
		Sitemap:    "https://staging.example.com/custom.xml",
		Checks:     "meta",
	}))
	assert.Equal(t, []string{"https://staging.example.com/custom.xml"}, sitemaps.requested)
}

func TestAudit_SingleURLSkipsSitemap(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	path := f.writeConfig(t, `[]`, ``)
	pages := &fakePages{pages: map[string]collyfetcher.Page{
		"https://example.com/page": {StatusCode: http.StatusOK, Body: []byte(auditHTML)},
	}}
	f.deps.Pages = pages

	require.NoError(t, Audit(context.Background(), f.deps, AuditOptions{ConfigPath: path, URL: "https://example.com/page", Checks: "all"}))
	assert.Equal(t, []string{"https://example.com/page"}, pages.fetch)

	out := f.out.String()
	assert.Contains(t, out, "Audit Report:")
	assert.Contains(t, out, "  ✗ meta:")
	assert.Contains(t, out, "    - Missing meta description")
	assert.Contains(t, out, "  ✓ schema:")
	assert.Contains(t, out, "    - Found schema: Organization")
	assert.Contains(t, out, "  ✓ links:")
	assert.NotContains(t, out, "sitemap:")

	passRow := tableRows(out, "Pass")
	require.Len(t, passRow, 1)
	assert.Contains(t, passRow[0], "2")
	totalRow := tableRows(out, "Total")
	require.Len(t, totalRow, 1)
	assert.Contains(t, totalRow[0], "3")

	entries := f.entries(t, history.AuditFile)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.com/page", entries[0]["url"])
	assert.Len(t, entries[0]["contentHash"], 16)
	results, ok := entries[0]["results"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, results, 3)
	assert.Contains(t, results, "meta")
	assert.NotContains(t, results, "sitemap")
}

func TestAudit_SitemapPagesAndSkips(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	path := f.writeConfig(t, `[]`, ``)
	f.deps.Sitemaps = &fakeSitemaps{urls: []string{"https://example.com/page", "https://example.com/gone"}}
	f.deps.Pages = &fakePages{
		pages: map[string]collyfetcher.Page{
			"https://example.com/sitemap.xml": {StatusCode: http.StatusOK, Body: []byte(`<?xml version="1.0"?>
<urlset><url><loc>https://example.com/page</loc></url><url><loc>https://example.com/gone</loc></url></urlset>`)},
			"https://example.com/page": {StatusCode: http.StatusOK, Body: []byte(auditHTML)},
			"https://example.com/gone": {StatusCode: http.StatusNotFound},
		},
		heads: map[string]int{"https://example.com/page": 200, "https://example.com/gone": 404},
	}

	require.NoError(t, Audit(context.Background(), f.deps, AuditOptions{ConfigPath: path, Checks: "sitemap"}))

	out := f.out.String()
	assert.Contains(t, out, "  HTTP 404 - skipping checks")
	assert.Contains(t, out, "  ⚠ sitemap:")
	assert.Contains(t, out, "    - Sitemap contains 2 URLs")
	assert.Contains(t, out, "    - 1/2 sampled URLs returned 200")

	entries := f.entries(t, history.AuditFile)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.com/page", entries[0]["url"])
}
