package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/seo-pilot/internal/fetcher/colly"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func page(head, body string) string {
	return "<html><head>" + head + "</head><body>" + body + "</body></html>"
}

var (
	optimalTitle       = strings.Repeat("t", 55)
	optimalDescription = strings.Repeat("d", 140)
	ogTags             = `<meta property="og:title" content="x"><meta property="og:description" content="x"><meta property="og:image" content="x">`
)

func TestMeta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		head     string
		status   Status
		messages []string
	}{
		{
			name:     "optimal",
			head:     "<title>" + optimalTitle + `</title><meta name="description" content="` + optimalDescription + `">` + ogTags,
			status:   StatusPass,
			messages: []string{"Title length optimal", "Description length optimal"},
		},
		{
			name:   "missing everything",
			head:   "",
			status: StatusFail,
			messages: []string{
				"Missing <title> tag",
				"Missing meta description",
				"Missing og:title",
				"Missing og:description",
				"Missing og:image",
			},
		},
		{
			name:   "lengths out of range",
			head:   `<title>Short</title><meta name="description" content="Too short">` + ogTags,
			status: StatusWarn,
			messages: []string{
				"Title length 5 chars (ideal: 50-60)",
				"Description length 9 chars (ideal: 120-160)",
			},
		},
		{
			name:     "missing og image only",
			head:     "<title>" + optimalTitle + `</title><meta name="description" content="` + optimalDescription + `"><meta property="og:title" content="x"><meta property="og:description" content="x">`,
			status:   StatusWarn,
			messages: []string{"Title length optimal", "Description length optimal", "Missing og:image"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := Meta(mustDoc(t, page(tc.head, "")))
			assert.Equal(t, tc.status, res.Status)
			assert.Equal(t, tc.messages, res.Messages)
		})
	}
}

func TestSchema(t *testing.T) {
	t.Parallel()

	ld := func(s string) string { return `<script type="application/ld+json">` + s + `</script>` }

	tests := []struct {
		name     string
		head     string
		status   Status
		messages []string
	}{
		{name: "none", head: "", status: StatusWarn, messages: []string{"No structured data found"}},
		{name: "typed", head: ld(`{"@type":"Article"}`), status: StatusPass, messages: []string{"Found schema: Article"}},
		{name: "missing type", head: ld(`{"name":"x"}`), status: StatusWarn, messages: []string{"Schema missing @type property"}},
		{name: "invalid json", head: ld(`{nope`), status: StatusWarn, messages: []string{"Invalid JSON in structured data"}},
		{
			name:     "graph",
			head:     ld(`{"@context":"https://schema.org","@graph":[{"@type":"WebSite"},{"@type":["Organization","Brand"]}]}`),
			status:   StatusPass,
			messages: []string{"Found schema: WebSite", "Found schema: Organization, Brand"},
		},
		{
			name:     "mixed blocks",
			head:     ld(`{"@type":"Product"}`) + ld(`[1]`),
			status:   StatusWarn,
			messages: []string{"Found schema: Product", "Schema missing @type property"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := Schema(mustDoc(t, page(tc.head, "")))
			assert.Equal(t, tc.status, res.Status)
			assert.Equal(t, tc.messages, res.Messages)
		})
	}
}

func TestLinks(t *testing.T) {
	t.Parallel()

	body := `<a href="/a">a</a><a href="https://example.com/b">b</a><a href="c">c</a>` +
		`<a href="https://other.com/">x</a><a href="mailto:me@example.com">m</a><a href="">e</a>`
	res := Links(mustDoc(t, page("", body)), "https://example.com/blog/")
	assert.Equal(t, StatusPass, res.Status)
	assert.Equal(t, []string{"Found 3 internal links"}, res.Messages)

	res = Links(mustDoc(t, page("", `<a href="/only">one</a>`)), "https://example.com/")
	assert.Equal(t, StatusWarn, res.Status)
	assert.Equal(t, []string{"Found 1 internal links", "Fewer than 3 internal links detected"}, res.Messages)
}

func TestRender(t *testing.T) {
	t.Parallel()

	longText := strings.Repeat("Server rendered words. ", 20)

	t.Run("server rendered", func(t *testing.T) {
		t.Parallel()
		html := page("<title>x</title>", "<main><p>"+longText+"</p></main>")
		res := Render([]byte(html), mustDoc(t, html))
		assert.Equal(t, StatusPass, res.Status)
		assert.Equal(t, []string{"Content is server-rendered"}, res.Messages)
	})

	t.Run("spa shell", func(t *testing.T) {
		t.Parallel()
		html := page("", `<div id="root"></div><script src="/app.js"></script><script>window.boot()</script>`)
		res := Render([]byte(html), mustDoc(t, html))
		assert.Equal(t, StatusWarn, res.Status)
		assert.Contains(t, res.Messages, `Client-side app marker found: id="root"`)
		assert.Contains(t, res.Messages, "Only 0 chars of server-rendered text")
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		res := Render([]byte("  "), mustDoc(t, ""))
		assert.Equal(t, StatusFail, res.Status)
	})
}

func TestScriptDensity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, scriptDensity([]byte("<p>hello</p>")))
	assert.Equal(t, 100, scriptDensity([]byte("<script>x</script>")))
	assert.Equal(t, 100, scriptDensity([]byte("<script src=x")))
	assert.Equal(t, 50, scriptDensity([]byte("<script></script>"+strings.Repeat("a", 17))))
}

func TestParseChecks(t *testing.T) {
	t.Parallel()

	got, err := ParseChecks("all", false)
	require.NoError(t, err)
	assert.Equal(t, DefaultChecks, got)

	got, err = ParseChecks("all", true)
	require.NoError(t, err)
	assert.Equal(t, []string{CheckMeta, CheckSchema, CheckLinks}, got)

	got, err = ParseChecks(" meta, sitemap ,meta,render", true)
	require.NoError(t, err)
	assert.Equal(t, []string{CheckMeta, CheckSitemap, CheckRender}, got)

	_, err = ParseChecks("meta,speed", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown check "speed"`)

	_, err = ParseChecks(" , ", false)
	require.Error(t, err)
}

func TestWorst(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StatusPass, Worst())
	assert.Equal(t, StatusWarn, Worst(StatusPass, StatusWarn, StatusPass))
	assert.Equal(t, StatusFail, Worst(StatusWarn, StatusFail, StatusPass))
	assert.Equal(t, "✓", StatusPass.Icon())
	assert.Equal(t, "⚠", StatusWarn.Icon())
	assert.Equal(t, "✗", StatusFail.Icon())
}

func TestPageAndSummarize(t *testing.T) {
	t.Parallel()

	html := page("<title>"+optimalTitle+`</title><meta name="description" content="`+optimalDescription+`">`+ogTags, `<a href="/x">x</a>`)
	shared := CheckResult{Status: StatusFail, Messages: []string{"Sitemap HTTP 500"}}

	report, err := Page("https://example.com/", []byte(html), []string{CheckMeta, CheckSchema, CheckLinks, CheckSitemap}, &shared)
	require.NoError(t, err)
	assert.Equal(t, []string{CheckMeta, CheckSchema, CheckLinks, CheckSitemap}, report.Order)
	assert.Equal(t, StatusPass, report.Checks[CheckMeta].Status)
	assert.Equal(t, StatusWarn, report.Checks[CheckSchema].Status)
	assert.Equal(t, StatusWarn, report.Checks[CheckLinks].Status)
	assert.Equal(t, shared, report.Checks[CheckSitemap])

	noSitemap, err := Page("https://example.com/", []byte(html), []string{CheckMeta, CheckSitemap}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{CheckMeta}, noSitemap.Order)

	assert.Equal(t, Summary{Pass: 2, Warn: 2, Fail: 1, Total: 5}, Summarize([]PageReport{report, noSitemap}))
}

type fakeProber struct {
	page  collyfetcher.Page
	err   error
	heads map[string]int
	calls []string
}

func (f *fakeProber) Fetch(context.Context, string) (collyfetcher.Page, error) {
	return f.page, f.err
}

func (f *fakeProber) Head(_ context.Context, url string) (int, error) {
	f.calls = append(f.calls, url)
	code, ok := f.heads[url]
	if !ok {
		return 0, errors.New("connection refused")
	}
	return code, nil
}

func xmlURLSet(n int) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for i := range n {
		fmt.Fprintf(&b, "<url><loc>https://example.com/%d</loc></url>", i)
	}
	b.WriteString("</urlset>")
	return []byte(b.String())
}

func TestSitemapCheck(t *testing.T) {
	t.Parallel()

	t.Run("all samples ok", func(t *testing.T) {
		t.Parallel()
		p := &fakeProber{
			page:  collyfetcher.Page{StatusCode: http.StatusOK, Body: xmlURLSet(2)},
			heads: map[string]int{"https://example.com/0": 200, "https://example.com/1": 200},
		}
		res := Sitemap(context.Background(), p, "https://example.com/sitemap.xml")
		assert.Equal(t, StatusPass, res.Status)
		assert.Equal(t, []string{
			"Sitemap is well-formed",
			"Sitemap contains 2 URLs",
			"2/2 sampled URLs returned 200",
		}, res.Messages)
	})

	t.Run("samples capped and failures warn", func(t *testing.T) {
		t.Parallel()
		p := &fakeProber{
			page:  collyfetcher.Page{StatusCode: http.StatusOK, Body: xmlURLSet(15)},
			heads: map[string]int{"https://example.com/0": 200, "https://example.com/1": 404},
		}
		res := Sitemap(context.Background(), p, "https://example.com/sitemap.xml")
		assert.Equal(t, StatusWarn, res.Status)
		assert.Contains(t, res.Messages, "Sitemap contains 15 URLs")
		assert.Contains(t, res.Messages, "1/10 sampled URLs returned 200")
		assert.Len(t, p.calls, 10)
	})

	t.Run("index children are not probed", func(t *testing.T) {
		t.Parallel()
		body := `<?xml version="1.0"?><sitemapindex><sitemap><loc>https://example.com/a.xml</loc></sitemap>` +
			`<sitemap><loc>https://example.com/b.xml</loc></sitemap></sitemapindex>`
		p := &fakeProber{page: collyfetcher.Page{StatusCode: http.StatusOK, Body: []byte(body)}}
		res := Sitemap(context.Background(), p, "https://example.com/sitemap.xml")
		assert.Equal(t, StatusPass, res.Status)
		assert.Equal(t, []string{"Sitemap is well-formed", "Sitemap index contains 2 child sitemaps"}, res.Messages)
		assert.Empty(t, p.calls)
	})

	t.Run("not well formed", func(t *testing.T) {
		t.Parallel()
		p := &fakeProber{page: collyfetcher.Page{StatusCode: http.StatusOK, Body: []byte(`<urlset></urlset>`)}}
		res := Sitemap(context.Background(), p, "https://example.com/sitemap.xml")
		assert.Equal(t, StatusWarn, res.Status)
		assert.Equal(t, "Sitemap is not well-formed XML", res.Messages[0])
	})

	t.Run("http error", func(t *testing.T) {
		t.Parallel()
		p := &fakeProber{page: collyfetcher.Page{StatusCode: http.StatusNotFound}}
		res := Sitemap(context.Background(), p, "https://example.com/sitemap.xml")
		assert.Equal(t, CheckResult{Status: StatusFail, Messages: []string{"Sitemap HTTP 404"}}, res)
	})

	t.Run("fetch error", func(t *testing.T) {
		t.Parallel()
		p := &fakeProber{err: errors.New("dns failure")}
		res := Sitemap(context.Background(), p, "https://example.com/sitemap.xml")
		assert.Equal(t, CheckResult{Status: StatusFail, Messages: []string{"Sitemap check failed: dns failure"}}, res)
	})
}
