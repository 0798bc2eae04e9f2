package audit

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	titleMin       = 50
	titleMax       = 60
	descriptionMin = 120
	descriptionMax = 160
	minInternal    = 3
)

// Meta checks the title, meta description and Open Graph tags.
func Meta(doc *goquery.Document) CheckResult {
	r := newResult()

	title := doc.Find("title").First().Text()
	switch n := utf8.RuneCountInString(title); {
	case title == "":
		r.add(StatusFail, "Missing <title> tag")
	case n < titleMin || n > titleMax:
		r.add(StatusWarn, "Title length %d chars (ideal: %d-%d)", n, titleMin, titleMax)
	default:
		r.add(StatusPass, "Title length optimal")
	}

	description := attr(doc, `meta[name="description"]`)
	switch n := utf8.RuneCountInString(description); {
	case description == "":
		r.add(StatusFail, "Missing meta description")
	case n < descriptionMin || n > descriptionMax:
		r.add(StatusWarn, "Description length %d chars (ideal: %d-%d)", n, descriptionMin, descriptionMax)
	default:
		r.add(StatusPass, "Description length optimal")
	}

	for _, prop := range []string{"og:title", "og:description", "og:image"} {
		if attr(doc, fmt.Sprintf(`meta[property="%s"]`, prop)) == "" {
			r.add(StatusWarn, "Missing %s", prop)
		}
	}
	return r.CheckResult
}

func attr(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return v
}

// Schema checks JSON-LD structured data blocks.
func Schema(doc *goquery.Document) CheckResult {
	r := newResult()
	blocks := doc.Find(`script[type="application/ld+json"]`)
	if blocks.Length() == 0 {
		r.add(StatusWarn, "No structured data found")
		return r.CheckResult
	}
	blocks.Each(func(_ int, s *goquery.Selection) {
		content := strings.TrimSpace(s.Text())
		if content == "" {
			return
		}
		var data any
		if err := json.Unmarshal([]byte(content), &data); err != nil {
			r.add(StatusWarn, "Invalid JSON in structured data")
			return
		}
		walkSchema(r, data)
	})
	return r.CheckResult
}

func walkSchema(r *result, data any) {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			walkSchema(r, item)
		}
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			for _, item := range graph {
				walkSchema(r, item)
			}
			return
		}
		if t := schemaType(v["@type"]); t != "" {
			r.add(StatusPass, "Found schema: %s", t)
			return
		}
		r.add(StatusWarn, "Schema missing @type property")
	default:
		r.add(StatusWarn, "Schema missing @type property")
	}
}

func schemaType(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s, ok := p.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// Links counts anchors that resolve to the page's own host.
func Links(doc *goquery.Document, pageURL string) CheckResult {
	r := newResult()
	base, err := url.Parse(pageURL)
	if err != nil {
		r.add(StatusFail, "Invalid page URL: %v", err)
		return r.CheckResult
	}
	host := base.Hostname()

	internal := 0
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		target, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if target.Hostname() == host {
			internal++
		}
	})

	r.add(StatusPass, "Found %d internal links", internal)
	if internal < minInternal {
		r.add(StatusWarn, "Fewer than %d internal links detected", minInternal)
	}
	return r.CheckResult
}
