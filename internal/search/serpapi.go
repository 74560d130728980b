// File: internal/search/serpapi.go
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"texplicit_backend/internal/config"
	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/platform/httpclient"

	"go.uber.org/zap"
)

// ErrNoAPIKey is returned when SERPAPI_KEY is not configured.
var ErrNoAPIKey = errors.New("search: SERPAPI_KEY is not set")

// Query is one web search.
type Query struct {
	Q      string
	Engine domain.SearchEngine
	Count  int
	Start  int
}

// Result is one organic search result.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, error)
}

// SerpAPI queries serpapi.com.
type SerpAPI struct {
	apiKey  string
	baseURL string
	noCache bool
	client  *http.Client
	logger  *zap.Logger
}

func NewSerpAPI(cfg *config.Config, logger *zap.Logger) *SerpAPI {
	return &SerpAPI{
		apiKey:  cfg.SerpAPIKey,
		baseURL: cfg.SerpAPIURL,
		noCache: cfg.SerpAPINoCache,
		client:  httpclient.New(30 * time.Second),
		logger:  logger,
	}
}

// params builds the request parameters. Bing takes "count" where the Google engines take "num".
func (s *SerpAPI) params(q Query) url.Values {
	v := url.Values{}
	v.Set("q", q.Q)
	v.Set("api_key", s.apiKey)
	v.Set("no_cache", strconv.FormatBool(s.noCache))
	v.Set("start", strconv.Itoa(q.Start))
	v.Set("safe", "active")
	v.Set("engine", q.Engine.Param())
	count := q.Count
	if count <= 0 {
		count = 10
	}
	if q.Engine == domain.EngineBing {
		v.Set("count", strconv.Itoa(count))
	} else {
		v.Set("num", strconv.Itoa(count))
	}
	return v
}

type serpResponse struct {
	Error          string   `json:"error"`
	OrganicResults []Result `json:"organic_results"`
}

func (s *SerpAPI) Search(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return nil, ErrNoAPIKey
	}
	if strings.TrimSpace(q.Q) == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+s.params(q).Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("serpapi read: %w", err)
	}
	var out serpResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("serpapi decode (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || out.Error != "" {
		return nil, fmt.Errorf("serpapi: status %d: %s", resp.StatusCode, out.Error)
	}
	s.logger.Debug("SerpAPI search", zap.String("query", q.Q), zap.String("engine", q.Engine.Param()), zap.Int("results", len(out.OrganicResults)))
	return out.OrganicResults, nil
}
