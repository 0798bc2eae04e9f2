package discover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-pilot/internal/apis/customsearch"
	"github.com/JakeFAU/seo-pilot/internal/history"
)

type fakeSearcher struct {
	results map[string][]customsearch.Result
	err     error
	queries []string
	nums    []int
}

func (f *fakeSearcher) Search(_ context.Context, query string, num int) ([]customsearch.Result, error) {
	f.queries = append(f.queries, query)
	f.nums = append(f.nums, num)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Mode{"": ModeForums, "forums": ModeForums, "directories": ModeDirectories, "all": ModeAll} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("blogs")
	require.Error(t, err)

	assert.True(t, ModeAll.Forums())
	assert.True(t, ModeAll.Directories())
	assert.False(t, ModeForums.Directories())
	assert.False(t, ModeDirectories.Forums())
}

func TestForumQueries(t *testing.T) {
	t.Parallel()

	got := ForumQueries([]string{"go", "rust"}, []string{"reddit.com", "quora.com"})
	require.Len(t, got, 4)
	assert.Equal(t, Query{Text: `site:reddit.com "go"`, Keyword: "go", Kind: KindForum}, got[0])
	assert.Equal(t, `site:quora.com "rust"`, got[3].Text)
	assert.Empty(t, ForumQueries(nil, []string{"reddit.com"}))
}

func TestDirectoryQueries(t *testing.T) {
	t.Parallel()

	got := DirectoryQueries([]string{"test"}, nil)
	require.Len(t, got, 4)
	assert.Contains(t, got[0].Text, "test")
	assert.Contains(t, got[0].Text, "resources")
	for _, q := range got {
		assert.Equal(t, KindDirectory, q.Kind)
		assert.Equal(t, "test", q.Keyword)
	}

	custom := DirectoryQueries([]string{"test"}, []string{"custom query 1", "custom query 2"})
	assert.Equal(t, []Query{
		{Text: "custom query 1", Kind: KindDirectory},
		{Text: "custom query 2", Kind: KindDirectory},
	}, custom)

	assert.Empty(t, DirectoryQueries(nil, nil))
}

func TestCategorize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CategoryDirectory, Categorize("Site list", "links to sites"))
	assert.Equal(t, CategoryResourceList, Categorize("Helpful Resources", ""))
	assert.Equal(t, CategoryResourceList, Categorize("Links", "a resource page"))
	assert.Equal(t, CategoryRoundup, Categorize("Best Test Resources", "A roundup of the best test resources"))
	assert.Equal(t, CategoryRoundup, Categorize("Links", "weekly roundup"))
}

func TestSeenSince(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	entries := []history.Entry{
		{"timestamp": "2025-06-29T00:00:00.000Z", "url": "https://recent.example"},
		{"timestamp": "2025-05-01T00:00:00.000Z", "url": "https://old.example"},
		{"timestamp": "garbage", "url": "https://bad.example"},
		{"timestamp": "2025-06-29T00:00:00.000Z"},
	}
	seen := SeenSince(entries, now, DedupeDays)
	assert.Equal(t, map[string]struct{}{"https://recent.example": {}}, seen)
}

func TestRun_DedupesAgainstHistoryAndRun(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{results: map[string][]customsearch.Result{
		`site:reddit.com "go"`: {
			{URL: "https://reddit.com/1", Title: "one"},
			{URL: "https://reddit.com/seen", Title: "seen"},
		},
		`site:quora.com "go"`: {
			{URL: "https://reddit.com/1", Title: "dup within run"},
			{URL: "https://quora.com/2", Title: "two"},
		},
	}}
	d := New(s, 5, map[string]struct{}{"https://reddit.com/seen": {}})

	found, exhausted, err := d.Run(context.Background(), ForumQueries([]string{"go"}, []string{"reddit.com", "quora.com"}))
	require.NoError(t, err)
	assert.False(t, exhausted)
	require.Len(t, found, 2)
	assert.Equal(t, "https://reddit.com/1", found[0].URL)
	assert.Equal(t, "https://quora.com/2", found[1].URL)
	assert.Empty(t, found[0].Category)
	assert.Equal(t, []int{5, 5}, s.nums)
	assert.Equal(t, 2, d.Calls())
}

func TestRun_CategorizesDirectories(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{results: map[string][]customsearch.Result{
		"custom query 1": {{URL: "https://example.com/directory", Title: "Best Test Resources", Snippet: "A roundup of the best test resources"}},
	}}
	d := New(s, 5, nil)

	found, _, err := d.Run(context.Background(), DirectoryQueries(nil, []string{"custom query 1"}))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, CategoryRoundup, found[0].Category)

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	e := found[0].Entry(at)
	assert.Equal(t, "2025-01-02T03:04:05.000Z", e["timestamp"])
	assert.Equal(t, "https://example.com/directory", e["url"])
	assert.Equal(t, "directory", e["type"])
	assert.Equal(t, CategoryRoundup, e["category"])
	assert.Equal(t, "custom query 1", e["query"])
	assert.NotContains(t, e, "keyword")
}

func TestRun_StopsAtQuota(t *testing.T) {
	t.Parallel()

	keywords := make([]string, 51)
	for i := range keywords {
		keywords[i] = "test"
	}
	s := &fakeSearcher{}
	d := New(s, 5, nil)

	_, exhausted, err := d.Run(context.Background(), ForumQueries(keywords, []string{"reddit.com", "reddit.com"}))
	require.NoError(t, err)
	assert.True(t, exhausted)
	assert.Len(t, s.queries, 100)
	assert.Equal(t, 100, d.Calls())
	assert.True(t, d.NearQuota())

	// Later modes share the budget and stop immediately.
	_, exhausted, err = d.Run(context.Background(), DirectoryQueries([]string{"test"}, nil))
	require.NoError(t, err)
	assert.True(t, exhausted)
	assert.Len(t, s.queries, 100)
}

func TestNearQuota(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{}
	d := New(s, 5, nil, WithQuota(10))
	_, _, err := d.Run(context.Background(), ForumQueries([]string{"a"}, []string{"1", "2", "3", "4", "5", "6", "7", "8"}))
	require.NoError(t, err)
	assert.False(t, d.NearQuota())

	_, _, err = d.Run(context.Background(), ForumQueries([]string{"b"}, []string{"9"}))
	require.NoError(t, err)
	assert.True(t, d.NearQuota())
	assert.Equal(t, 10, d.Quota())
}

func TestRun_SearchError(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{err: errors.New("HTTP 403: API key not valid")}
	d := New(s, 5, nil)
	_, _, err := d.Run(context.Background(), ForumQueries([]string{"go"}, []string{"reddit.com"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
	assert.Equal(t, 1, d.Calls())
}
