// File: internal/scraper/scraper.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"texplicit_backend/internal/config"
	"texplicit_backend/internal/platform/httpclient"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"
)

// MinArticleLength is the shortest body text accepted as an article.
const MinArticleLength = 300

const maxPageBytes = 5 << 20

// ErrNotHTML is returned for responses that are not HTML pages.
var ErrNotHTML = errors.New("scraper: response is not HTML")

// Article is the readable content of a web page.
type Article struct {
	Title       string `json:"title"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	TopImage    string `json:"top_image"`
	PublishDate string `json:"publish_date"`
}

// Usable reports whether the article has a title and enough text to be worth showing.
func (a Article) Usable() bool {
	return strings.TrimSpace(a.Title) != "" && len([]rune(a.Text)) >= MinArticleLength
}

// Scraper downloads pages and extracts their article text.
type Scraper struct {
	client      *http.Client
	userAgent   string
	concurrency int
	logger      *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *Scraper {
	concurrency := cfg.ScrapeConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Scraper{
		client:      httpclient.NewPublic(15 * time.Second),
		userAgent:   cfg.UserAgent,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Scrape fetches url and extracts its article.
func (s *Scraper) Scrape(ctx context.Context, url string) (Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Article{}, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return Article{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Article{}, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, _ := mime.ParseMediaType(ct)
		if mediaType != "text/html" && mediaType != "application/xhtml+xml" {
			return Article{}, ErrNotHTML
		}
	}
	article, err := Extract(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Article{}, fmt.Errorf("parse %s: %w", url, err)
	}
	article.URL = url
	return article, nil
}

// ScrapeAll scrapes urls with bounded concurrency and calls fn for every page that was fetched.
// fn is never called concurrently. Failed pages are logged and skipped.
func (s *Scraper) ScrapeAll(ctx context.Context, urls []string, fn func(Article)) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, u := range urls {
		u := u
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			a, err := s.Scrape(gctx, u)
			if err != nil {
				s.logger.Debug("Skipping page", zap.String("url", u), zap.Error(err))
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			fn(a)
			return nil
		})
	}
	return g.Wait()
}

var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Nav: true,
	atom.Footer: true, atom.Header: true, atom.Aside: true, atom.Form: true,
}

// Extract reads an HTML document and returns its title, text, lead image and publish date.
func Extract(r io.Reader) (Article, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Article{}, err
	}
	var (
		a          Article
		titleTag   string
		firstH1    string
		paragraphs []string
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipped[n.DataAtom] {
				return
			}
			switch n.DataAtom {
			case atom.Meta:
				readMeta(n, &a)
			case atom.Title:
				if titleTag == "" {
					titleTag = textOf(n)
				}
			case atom.H1:
				if firstH1 == "" {
					firstH1 = textOf(n)
				}
			case atom.Time:
				if a.PublishDate == "" {
					a.PublishDate = attr(n, "datetime")
				}
			case atom.P:
				if t := textOf(n); t != "" {
					paragraphs = append(paragraphs, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if a.Title == "" {
		a.Title = titleTag
	}
	if a.Title == "" {
		a.Title = firstH1
	}
	a.Text = strings.Join(paragraphs, "\n\n")
	return a, nil
}

func readMeta(n *html.Node, a *Article) {
	key := strings.ToLower(attr(n, "property"))
	if key == "" {
		key = strings.ToLower(attr(n, "name"))
	}
	content := strings.TrimSpace(attr(n, "content"))
	if content == "" {
		return
	}
	switch key {
	case "og:title":
		a.Title = content
	case "og:image":
		if a.TopImage == "" {
			a.TopImage = content
		}
	case "article:published_time", "pubdate", "date", "publish_date":
		if a.PublishDate == "" {
			a.PublishDate = content
		}
	}
}

func attr(n *html.Node, key string) string {
	for _, at := range n.Attr {
		if strings.EqualFold(at.Key, key) {
			return at.Val
		}
	}
	return ""
}

// textOf returns the visible text under n with whitespace collapsed.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
