package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/JakeFAU/seo-pilot/internal/apis"
	"github.com/JakeFAU/seo-pilot/internal/apis/customsearch"
	"github.com/JakeFAU/seo-pilot/internal/apis/searchconsole"
	"github.com/JakeFAU/seo-pilot/internal/clock/system"
	"github.com/JakeFAU/seo-pilot/internal/discover"
	collyfetcher "github.com/JakeFAU/seo-pilot/internal/fetcher/colly"
	"github.com/JakeFAU/seo-pilot/internal/hash/sha256"
	"github.com/JakeFAU/seo-pilot/internal/history"
	"github.com/JakeFAU/seo-pilot/internal/ui"
)

var testNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

type fixture struct {
	dir    string
	out    *bytes.Buffer
	errOut *bytes.Buffer
	store  *history.Store
	deps   *Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := history.New(history.Config{BaseDir: filepath.Join(dir, history.DefaultDir)})
	require.NoError(t, err)

	f := &fixture{dir: dir, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}, store: store}
	f.deps = &Deps{
		Printer:  ui.New(f.out, f.errOut),
		History:  store,
		Clock:    system.Fixed(testNow),
		IDs:      fakeIDs{id: "run-1", key: "0123456789abcdef0123456789abcdef"},
		Hasher:   sha256.New(),
		Sitemaps: &fakeSitemaps{},
		Pages:    &fakePages{},
		Tokens:   &fakeTokens{},
		Pacer:    &fakePacer{},
	}
	return f
}

// writeConfig stores a config with the given keywords and apis block and
// returns its path.
func (f *fixture) writeConfig(t *testing.T, keywords, apisBlock string) string {
	t.Helper()
	body := fmt.Sprintf(`{
		"version": "1.0.0",
		"site": {"url": "https://example.com", "sitemap": "https://example.com/sitemap.xml"},
		"keywords": %s,
		"apis": {%s}
	}`, keywords, apisBlock)
	path := filepath.Join(f.dir, "seo-pilot.config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// googleBlock writes a placeholder service account and returns the apis entry.
func (f *fixture) googleBlock(t *testing.T) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "sa.json"), []byte(`{}`), 0o600))
	return `"google": {"serviceAccountPath": "sa.json", "siteUrl": "sc-domain:example.com"}`
}

func (f *fixture) entries(t *testing.T, name string) []history.Entry {
	t.Helper()
	entries, err := f.store.Read(name)
	require.NoError(t, err)
	return entries
}

// tableRows returns output lines that look like table rows containing s.
func tableRows(out, s string) []string {
	var rows []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "│") && strings.Contains(line, s) {
			rows = append(rows, line)
		}
	}
	return rows
}

type fakeIDs struct {
	id  string
	key string
}

func (f fakeIDs) NewID() (string, error)  { return f.id, nil }
func (f fakeIDs) NewKey() (string, error) { return f.key, nil }

type fakeSitemaps struct {
	urls      []string
	err       error
	requested []string
}

func (f *fakeSitemaps) Fetch(_ context.Context, sitemapURL string) ([]string, error) {
	f.requested = append(f.requested, sitemapURL)
	return f.urls, f.err
}

type fakePages struct {
	mu    sync.Mutex
	pages map[string]collyfetcher.Page
	heads map[string]int
	fetch []string
}

func (f *fakePages) Fetch(_ context.Context, u string) (collyfetcher.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetch = append(f.fetch, u)
	p, ok := f.pages[u]
	if !ok {
		return collyfetcher.Page{}, errors.New("connection refused")
	}
	p.URL = u
	return p, nil
}

func (f *fakePages) Head(_ context.Context, u string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.heads[u]
	if !ok {
		return 0, errors.New("connection refused")
	}
	return code, nil
}

type fakeTokens struct {
	err    error
	scopes [][]string
}

func (f *fakeTokens) AccessToken(_ context.Context, _ string, scopes []string) (string, error) {
	f.scopes = append(f.scopes, scopes)
	if f.err != nil {
		return "", f.err
	}
	return "token", nil
}

func (f *fakeTokens) TokenSource(_ context.Context, _ string, _ []string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token"})
}

type fakePacer struct {
	waits int
}

func (f *fakePacer) Wait(context.Context, string) error {
	f.waits++
	return nil
}

type fakeIndexNow struct {
	result apis.Result
	err    error
	urls   []string
}

func (f *fakeIndexNow) Submit(_ context.Context, urls []string, _, _ string) (apis.Result, error) {
	f.urls = urls
	return f.result, f.err
}

type fakeGoogle struct {
	result apis.Result
	token  string
}

func (f *fakeGoogle) Submit(_ context.Context, _ []string, accessToken string) apis.Result {
	f.token = accessToken
	return f.result
}

type fakeBing struct {
	result apis.Result
}

func (f *fakeBing) Submit(context.Context, []string, string, string) apis.Result {
	return f.result
}

type fakeSearchConsole struct {
	rows        []searchconsole.Row
	inspections map[string]searchconsole.Inspection
	days        int
	keywords    []string
}

func (f *fakeSearchConsole) Performance(_ context.Context, days int, keywords []string) ([]searchconsole.Row, error) {
	f.days, f.keywords = days, keywords
	return f.rows, nil
}

func (f *fakeSearchConsole) Inspect(_ context.Context, u string) (searchconsole.Inspection, error) {
	res, ok := f.inspections[u]
	if !ok {
		return searchconsole.Inspection{}, errors.New("HTTP 403: permission denied")
	}
	return res, nil
}

func searchConsoleFactory(sc *fakeSearchConsole) SearchConsoleFactory {
	return func(context.Context, string, oauth2.TokenSource) (SearchConsole, error) {
		return sc, nil
	}
}

type fakeSearcher struct {
	results map[string][]customsearch.Result
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]customsearch.Result, error) {
	f.queries = append(f.queries, query)
	return f.results[query], nil
}

func searcherFactory(s *fakeSearcher) SearcherFactory {
	return func(context.Context, string, string) (discover.Searcher, error) {
		return s, nil
	}
}
