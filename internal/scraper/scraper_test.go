package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"texplicit_backend/internal/config"
	"texplicit_backend/internal/platform/httpclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const page = `<!doctype html>
<html><head>
<title>Fallback title</title>
<meta property="og:title" content="Go 1.23 released">
<meta property="og:image" content="https://example.com/lead.png">
<meta property="article:published_time" content="2024-08-13T10:00:00Z">
<script>var tracking = "<p>not text</p>";</script>
</head>
<body>
<nav><p>Home | About</p></nav>
<h1>Headline</h1>
<p>The   Go team
is happy to announce.</p>
<p>Iterators arrive in <b>range</b> loops.</p>
<footer><p>Copyright</p></footer>
</body></html>`

func TestExtract(t *testing.T) {
	a, err := Extract(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "Go 1.23 released", a.Title)
	assert.Equal(t, "https://example.com/lead.png", a.TopImage)
	assert.Equal(t, "2024-08-13T10:00:00Z", a.PublishDate)
	assert.Equal(t, "The Go team is happy to announce.\n\nIterators arrive in range loops.", a.Text)
}

func TestExtractTitleFallback(t *testing.T) {
	a, err := Extract(strings.NewReader(`<html><head><title> Plain </title></head><body><p>x</p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Plain", a.Title)

	a, err = Extract(strings.NewReader(`<html><body><h1>Only heading</h1></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Only heading", a.Title)
}

func TestArticleUsable(t *testing.T) {
	assert.False(t, Article{Title: "t", Text: "short"}.Usable())
	assert.False(t, Article{Text: strings.Repeat("a", MinArticleLength)}.Usable())
	assert.True(t, Article{Title: "t", Text: strings.Repeat("a", MinArticleLength)}.Usable())
}

func TestScrapeAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{}`)
		case "/missing":
			http.NotFound(w, r)
		default:
			assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, "<html><head><title>%s</title></head><body><p>body</p></body></html>", r.URL.Path)
		}
	}))
	defer srv.Close()

	s := New(&config.Config{UserAgent: "test-agent", ScrapeConcurrency: 2}, zap.NewNop())
	s.client = srv.Client()
	urls := []string{srv.URL + "/a", srv.URL + "/json", srv.URL + "/missing", srv.URL + "/b"}

	var titles []string
	require.NoError(t, s.ScrapeAll(context.Background(), urls, func(a Article) {
		titles = append(titles, a.Title)
		assert.True(t, strings.HasPrefix(a.URL, srv.URL))
	}))
	sort.Strings(titles)
	assert.Equal(t, []string{"/a", "/b"}, titles)
}

func TestScrapeRefusesInternalAddresses(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><head><title>internal</title></head></html>")
	}))
	defer srv.Close()

	s := New(&config.Config{}, zap.NewNop())
	_, err := s.Scrape(context.Background(), srv.URL+"/admin")
	assert.ErrorIs(t, err, httpclient.ErrBlockedAddress)
	assert.EqualValues(t, 0, atomic.LoadInt32(&hits))
}
