package audit

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// smallBodyBytes is the size under which a script-heavy page is treated
	// as an empty shell.
	smallBodyBytes = 2048
	// scriptDensityPercent is the share of markup inside <script> tags that
	// counts as script-heavy.
	scriptDensityPercent = 25
	// minVisibleText is the least server-rendered body text we expect.
	minVisibleText = 200
)

var spaMarkers = []string{
	"__next",
	`id="root"`,
	`id="app"`,
	"data-reactroot",
	"ng-version",
}

// Render flags pages whose content probably only appears after client-side
// JavaScript runs, which crawlers may index late or not at all.
func Render(body []byte, doc *goquery.Document) CheckResult {
	r := newResult()
	if len(bytes.TrimSpace(body)) == 0 {
		r.add(StatusFail, "Empty response body")
		return r.CheckResult
	}

	density := scriptDensity(body)
	if len(body) < smallBodyBytes && density >= scriptDensityPercent {
		r.add(StatusWarn, "Script-heavy page (%d%% of markup is <script>)", density)
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, []byte(marker)) {
			r.add(StatusWarn, "Client-side app marker found: %s", marker)
			break
		}
	}

	text := visibleText(doc)
	if n := utf8.RuneCountInString(text); n < minVisibleText {
		r.add(StatusWarn, "Only %d chars of server-rendered text", n)
	}

	if r.Status == StatusPass {
		r.add(StatusPass, "Content is server-rendered")
	}
	return r.CheckResult
}

func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(body.Text()), " ")
}

// scriptDensity returns the percentage of body bytes covered by script tags.
func scriptDensity(body []byte) int {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return 0
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Treat the rest of the document as part of the malformed script.
			coverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relativeEnd := strings.Index(lower[contentStart:], closeTag)
		var nextSearch int
		if relativeEnd == -1 {
			// Script tag never closes; count the rest.
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		coverage += nextSearch - start
		searchPos = nextSearch
	}
	return coverage * 100 / total
}
