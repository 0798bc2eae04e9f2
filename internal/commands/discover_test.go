package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-pilot/internal/apis/customsearch"
	"github.com/JakeFAU/seo-pilot/internal/history"
)

const customSearchBlock = `"customSearch": {"apiKey": "k", "engineId": "e"}`

func TestDiscover_RequiresCustomSearch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	path := f.writeConfig(t, `["go"]`, ``)

	err := Discover(context.Background(), f.deps, DiscoverOptions{ConfigPath: path})
	require.ErrorIs(t, err, ErrCustomSearchNotConfigured)
}

func TestDiscover_UnknownKeyword(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	path := f.writeConfig(t, `["go"]`, customSearchBlock)
	s := &fakeSearcher{}
	f.deps.NewSearcher = searcherFactory(s)

	require.NoError(t, Discover(context.Background(), f.deps, DiscoverOptions{ConfigPath: path, Keyword: "rust"}))
	assert.Contains(t, f.out.String(), `Keyword "rust" not found in config`)
	assert.Empty(t, s.queries)
}

func TestDiscover_ForumsSkipsRecentHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	path := f.writeConfig(t, `["go"]`, customSearchBlock)
	require.NoError(t, f.store.Append(history.DiscoverFile, history.Entry{
		"timestamp": "2025-06-20T00:00:00.000Z",
		"url":       "https://reddit.com/seen",
	}))
	s := &fakeSearcher{results: map[string][]customsearch.Result{
		`site:reddit.com "go"`: {
			{URL: "https://reddit.com/seen", Title: "old"},
			{URL: "https://reddit.com/new", Title: "Go thread", Snippet: "how do I"},
		},
	}}
	f.deps.NewSearcher = searcherFactory(s)

	require.NoError(t, Discover(context.Background(), f.deps, DiscoverOptions{ConfigPath: path}))
	assert.Equal(t, []string{`site:reddit.com "go"`, `site:quora.com "go"`}, s.queries)

	out := f.out.String()
	assert.Contains(t, out, "Forum Discovery Results:")
	assert.Len(t, tableRows(out, "https://reddit.com/new"), 1)
	assert.Empty(t, tableRows(out, "https://reddit.com/seen"))
	assert.Contains(t, out, "Total API calls: 2/100")
	assert.NotContains(t, out, "approaching the daily quota")

	entries := f.entries(t, history.DiscoverFile)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://reddit.com/new", entries[1]["url"])
	assert.Equal(t, "forum", entries[1]["type"])
	assert.Equal(t, "go", entries[1]["keyword"])
	assert.Equal(t, "run-1", entries[1]["runId"])
}

func TestDiscover_DirectoriesWithCustomQueries(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	path := f.writeConfig(t, `[]`, customSearchBlock+`}, "discover": {"directoryQueries": ["custom query 1"]`)
	s := &fakeSearcher{results: map[string][]customsearch.Result{
		"custom query 1": {{URL: "https://example.org/list", Title: "Best Test Resources", Snippet: "A roundup"}},
	}}
	f.deps.NewSearcher = searcherFactory(s)

	require.NoError(t, Discover(context.Background(), f.deps, DiscoverOptions{ConfigPath: path, Type: "directories"}))
	assert.Equal(t, []string{"custom query 1"}, s.queries)

	rows := tableRows(f.out.String(), "https://example.org/list")
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0], "roundup")

	entries := f.entries(t, history.DiscoverFile)
	require.Len(t, entries, 1)
	assert.Equal(t, "directory", entries[0]["type"])
	assert.Equal(t, "roundup", entries[0]["category"])
	assert.Equal(t, "custom query 1", entries[0]["query"])
}

func TestDiscover_DirectoriesWithoutKeywordsOrQueries(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	path := f.writeConfig(t, `[]`, customSearchBlock)
	s := &fakeSearcher{}
	f.deps.NewSearcher = searcherFactory(s)

	require.NoError(t, Discover(context.Background(), f.deps, DiscoverOptions{ConfigPath: path, Type: "directories"}))
	assert.Empty(t, s.queries)
	assert.Contains(t, f.out.String(), "skipping directories")
	assert.Contains(t, f.out.String(), "Total API calls: 0/100")
}

func TestDiscover_InvalidType(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	err := Discover(context.Background(), f.deps, DiscoverOptions{Type: "blogs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --type")
}
