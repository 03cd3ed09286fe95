package out_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	deckdomain "focusdeck/internal/modules/deck/domain"
	siteout "focusdeck/internal/modules/site/adapter/out"

	"github.com/stretchr/testify/require"
)

const fixtureYAML = `id: demo
name: Demo Feed
page_size: 2
posts:
  - id: a
    author: ada
    text: first
    height: 200
  - id: b
    author: bob
    text: second
  - id: c
    author: cy
    text: third
    repost_of: a
`

func TestFixtureAdapterLoadsFirstPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o644))

	adapter, err := siteout.NewFixtureAdapter(context.Background(), path, siteout.PageOptions{})
	require.NoError(t, err)
	require.Equal(t, "demo", adapter.ID())
	require.Equal(t, "Demo Feed", adapter.Name())
	require.Equal(t, []string{"a", "b"}, ids(adapter.FeedItems()))
	require.Equal(t, "fixture://demo/feed", adapter.FeedURL())

	_, height, ok := adapter.Page().Rect("a")
	require.True(t, ok)
	require.Equal(t, 200.0, height)
}

func TestLoadFixtureFeedRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("posts:\n  - id: a\n  - id: a\n"), 0o644))

	_, err := siteout.LoadFixtureFeed(path)
	require.ErrorContains(t, err, "listed twice")

	_, err = siteout.LoadFixtureFeed(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadFixtureFeedDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("posts:\n  - id: a\n"), 0o644))

	feed, err := siteout.LoadFixtureFeed(path)
	require.NoError(t, err)
	require.Equal(t, "fixture", feed.ID)
	require.Equal(t, "fixture", feed.Name)
	require.Equal(t, 10, feed.PageSize)
}

func TestFixtureSourceRejectsBadCursor(t *testing.T) {
	source := siteout.FixtureFeed{PageSize: 2}.Source()
	_, err := source.Fetch(context.Background(), "nope")
	require.Error(t, err)
}

func hnServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, _ *http.Request) {
		ids := make([]int, 0, total)
		for i := 1; i <= total; i++ {
			ids = append(ids, i)
		}
		_ = json.NewEncoder(w).Encode(ids)
	})
	mux.HandleFunc("/item/", func(w http.ResponseWriter, r *http.Request) {
		var id int
		if _, err := fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/item/"), "%d.json", &id); err != nil {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    id,
			"type":  "story",
			"by":    fmt.Sprintf("user%d", id),
			"time":  1700000000 + id,
			"title": fmt.Sprintf("Story &amp; %d", id),
			"text":  "<p>Hello <i>there</i>",
			"dead":  id == 2,
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHNSourcePagesThroughTopStories(t *testing.T) {
	server := hnServer(t, 25)
	source := siteout.NewHNSource(server.URL, server.Client())

	first, err := source.Fetch(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, first.Posts, 19)
	require.Equal(t, "20", first.Next)
	require.Equal(t, "1", first.Posts[0].ID)
	require.Equal(t, "3", first.Posts[1].ID)
	require.Equal(t, "Story & 1", first.Posts[0].Title)
	require.Equal(t, "Hello there", first.Posts[0].Text)
	require.Equal(t, "https://news.ycombinator.com/item?id=1", first.Posts[0].Permalink)
	require.Equal(t, int64(1700000001), first.Posts[0].PostedAt.Unix())

	second, err := source.Fetch(context.Background(), first.Next)
	require.NoError(t, err)
	require.Len(t, second.Posts, 5)
	require.Empty(t, second.Next)
}

func TestHNAdapterRoutes(t *testing.T) {
	server := hnServer(t, 3)
	adapter := siteout.NewHNAdapter(siteout.NewHNSource(server.URL, server.Client()), siteout.PageOptions{})

	n, err := adapter.LoadMore(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, adapter.Exhausted())

	require.True(t, adapter.IsFeedPage("https://news.ycombinator.com/news"))
	require.True(t, adapter.IsDetailPage("https://news.ycombinator.com/item?id=3"))

	meta, ok := adapter.PostMeta(deckdomain.PostHandle{ID: "3"})
	require.True(t, ok)
	require.Equal(t, "https://news.ycombinator.com/item?id=3", meta.Permalink)
	require.Equal(t, "user3", meta.Author)
}

func TestHNSourceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := siteout.NewHNSource(server.URL, server.Client()).Fetch(context.Background(), "")
	require.ErrorContains(t, err, "status 503")
}
