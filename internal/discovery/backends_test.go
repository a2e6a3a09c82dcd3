package discovery_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DeafMist/thread-scout/internal/discovery"
	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/reddit"
	"github.com/stretchr/testify/require"
)

const googlePage = `<html><body>
<a href="/url?q=https://www.reddit.com/r/BuyItForLife/comments/abc123/jeans/&amp;sa=U">Jeans</a>
<a href="https://www.reddit.com/r/malefashionadvice/comments/def456/denim/">Denim</a>
<a href="https://www.reddit.com/r/malefashionadvice/">Sub home</a>
<a href="https://example.com/">Other</a>
</body></html>`

const ddgPage = `<html><body>
<div class="result"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.reddit.com%2Fr%2Fgadgets%2Fcomments%2Fq1w2e3%2Fhub%2F&amp;rut=abc">Hub</a></div>
<div class="result"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2F&amp;rut=def">Other</a></div>
</body></html>`

func TestScrapeParsesAnchors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "jeans site:reddit.com", r.URL.Query().Get("q"))
		require.Equal(t, "6", r.URL.Query().Get("num"))
		require.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		_, _ = w.Write([]byte(googlePage))
	}))
	defer srv.Close()

	got, err := discovery.NewScrape(srv.Client(), srv.URL).Search(context.Background(), "jeans", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "https://www.reddit.com/r/buyitforlife/comments/abc123/", got[0].URL)
	require.Equal(t, "google_scrape", got[0].Backend)
}

func TestScrapeFallsBackToTextScan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<script>var u="https://www.reddit.com/r/golang/comments/zz11aa/generics/";</script>`))
	}))
	defer srv.Close()

	got, err := discovery.NewScrape(srv.Client(), srv.URL).Search(context.Background(), "go", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "https://www.reddit.com/r/golang/comments/zz11aa/", got[0].URL)
}

func TestScrapeReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := discovery.NewScrape(srv.Client(), srv.URL).Search(context.Background(), "go", 3)
	require.Error(t, err)
}

func TestDuckDuckGoDecodesRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/html/", r.URL.Path)
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	got, err := discovery.NewDuckDuckGo(srv.Client(), srv.URL).Search(context.Background(), "usb hub", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "https://www.reddit.com/r/gadgets/comments/q1w2e3/", got[0].URL)
	require.Equal(t, "duckduckgo", got[0].Backend)
}

func TestSearchAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "k", r.URL.Query().Get("key"))
		require.Equal(t, "cx", r.URL.Query().Get("cx"))
		require.True(t, strings.HasSuffix(r.URL.Query().Get("q"), "site:reddit.com"))
		_, _ = w.Write([]byte(`{"items":[
			{"title":"a","link":"https://www.reddit.com/r/a1/comments/aaa111/t/"},
			{"title":"b","link":"https://www.example.com/b"}]}`))
	}))
	defer srv.Close()

	cs := discovery.NewCustomSearch(srv.Client(), "k", "cx").WithEndpoint(srv.URL)
	got, err := discovery.NewSearchAPI(cs).Search(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)

	_, err = discovery.NewSearchAPI(discovery.NewCustomSearch(nil, "", "")).Search(context.Background(), "q", 3)
	require.ErrorIs(t, err, discovery.ErrUnconfigured)
}

func TestCustomSearchRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cs := discovery.NewCustomSearch(srv.Client(), "k", "cx").WithEndpoint(srv.URL)
	_, err := cs.Query(context.Background(), "q", 5)
	var throttled *discovery.ThrottledError
	require.True(t, errors.As(err, &throttled))
	require.Equal(t, "customsearch", throttled.Service)
	require.Equal(t, http.StatusTooManyRequests, throttled.Status)
}

type fakeSearcher struct {
	results map[string][]reddit.Post
	queried []string
}

func (f *fakeSearcher) SearchSubreddit(_ context.Context, name, _ string, limit int) ([]reddit.Post, error) {
	f.queried = append(f.queried, name)
	posts, ok := f.results[name]
	if !ok {
		return nil, &reddit.PlatformError{Op: "search_subreddit", Status: 403, Err: errors.New("private")}
	}
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func TestSubredditsBackend(t *testing.T) {
	s := &fakeSearcher{results: map[string][]reddit.Post{
		"BuyItForLife": {
			{ID: "p1", Subreddit: "BuyItForLife", Permalink: "/r/BuyItForLife/comments/p1p1p1/a/"},
			{ID: "p2", Subreddit: "BuyItForLife", Permalink: "/r/BuyItForLife/comments/p2p2p2/b/"},
		},
		"gadgets": {
			{ID: "p3", Subreddit: "gadgets", Permalink: "/r/gadgets/comments/p3p3p3/c/"},
			{ID: "p4", Subreddit: "gadgets", Permalink: "/r/gadgets/comments/p4p4p4/d/"},
		},
		"technology": {{ID: "p5", Subreddit: "technology", Permalink: "/r/technology/comments/p5p5p5/e/"}},
	}}
	names := []string{"BuyItForLife", "reviews", "gadgets", "technology", "AskReddit"}

	got, err := discovery.NewSubreddits(s, names, logger.Discard()).Search(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "https://www.reddit.com/r/gadgets/comments/p3p3p3/", got[2].URL)
	require.Equal(t, []string{"BuyItForLife", "reviews", "gadgets"}, s.queried)

	_, err = discovery.NewSubreddits(nil, names, logger.Discard()).Search(context.Background(), "q", 3)
	require.ErrorIs(t, err, discovery.ErrUnconfigured)
}

func TestBrowserSearchURLAndDisabled(t *testing.T) {
	b := discovery.NewBrowser(false, "")
	u := b.SearchURL("best jeans", 4)
	require.Contains(t, u, "tbs=qdr%3Ay2")
	require.Contains(t, u, "num=8")
	require.Contains(t, u, "q=best+jeans+site%3Areddit.com")

	_, err := b.Search(context.Background(), "q", 3)
	require.ErrorIs(t, err, discovery.ErrUnconfigured)
}
