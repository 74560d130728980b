// Package news searches the web for articles on a topic, streams them to the client as they are
// scraped, and saves chosen articles into the user's documents.
package news

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/documents"
	"texplicit_backend/internal/llm"
	"texplicit_backend/internal/realtime"
	"texplicit_backend/internal/scraper"
	"texplicit_backend/internal/search"
	"texplicit_backend/internal/shared"
	"texplicit_backend/internal/tasks"

	"go.uber.org/zap"
)

const (
	defaultCount    = 10
	maxCount        = 50
	summaryMaxInput = 12000
)

// Scraper fetches result pages. fn is called once per page that could be read.
type Scraper interface {
	ScrapeAll(ctx context.Context, urls []string, fn func(scraper.Article)) error
}

// DocumentSaver stores text as a document in the user's library.
type DocumentSaver interface {
	SaveText(ctx context.Context, u *shared.User, title, text, folderID string) (*documents.Document, error)
}

type Service struct {
	searcher search.Searcher
	scraper  Scraper
	docs     DocumentSaver
	queue    tasks.Queue
	model    llm.Client
	events   realtime.Publisher
	cfg      *config.Config
	logger   *zap.Logger
}

func NewService(
	searcher search.Searcher,
	scraper Scraper,
	docs DocumentSaver,
	queue tasks.Queue,
	model llm.Client,
	events realtime.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		searcher: searcher,
		scraper:  scraper,
		docs:     docs,
		queue:    queue,
		model:    model,
		events:   events,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *Service) RegisterTasks(r *tasks.Registry) {
	r.Register(tasks.TypeNewsFetch, s.handleFetch)
}

// Fetch validates the query and queues the search. Articles arrive on the news event.
func (s *Service) Fetch(ctx context.Context, userID string, req FetchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return common.ErrMissingParameters.WithMessage(common.MsgMissingRequiredParameter + "query")
	}
	if req.RandomID == "" {
		return common.ErrMissingParameters.WithMessage(common.MsgMissingRequiredParameter + "randomId")
	}
	if req.Count <= 0 {
		req.Count = defaultCount
	}
	if req.Count > maxCount {
		req.Count = maxCount
	}
	if req.Start < 0 {
		req.Start = 0
	}
	if _, err := s.queue.Enqueue(ctx, tasks.TypeNewsFetch, userID, req); err != nil {
		s.logger.Error("Failed to queue news search", zap.String("userID", userID), zap.Error(err))
		return common.ErrServiceUnavailable
	}
	return nil
}

func (s *Service) handleFetch(ctx context.Context, task tasks.Task) error {
	var req FetchRequest
	if err := task.Decode(&req); err != nil {
		return err
	}
	event := realtime.NewsEvent(req.RandomID, req.Query)

	results, err := s.searcher.Search(ctx, search.Query{Q: req.Query, Engine: req.Engine, Count: req.Count, Start: req.Start})
	if err != nil {
		s.logger.Error("News search failed", zap.String("query", req.Query), zap.Error(err))
		s.events.Publish(ctx, task.UserID, realtime.Failed(event, common.MsgErrorNewsSearch, http.StatusBadGateway))
		if errors.Is(err, search.ErrNoAPIKey) {
			return nil
		}
		// The failure event is already out; a retry would publish another one.
		return tasks.Permanent(err)
	}

	urls := make([]string, 0, len(results))
	for _, r := range results {
		if r.Link != "" {
			urls = append(urls, r.Link)
		}
	}

	scrapeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sent := 0
	err = s.scraper.ScrapeAll(scrapeCtx, urls, func(a scraper.Article) {
		if sent >= req.Count || !a.Usable() {
			return
		}
		sent++
		s.events.Publish(ctx, task.UserID, realtime.OK(event, common.MsgOKNewsFound, a))
		if sent >= req.Count {
			cancel()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("News scraping stopped early", zap.String("query", req.Query), zap.Error(err))
	}

	s.logger.Info("News search finished", zap.String("query", req.Query), zap.Int("results", len(urls)), zap.Int("articles", sent))
	s.events.Publish(ctx, task.UserID, realtime.OK(event, common.MsgOKNewsDone, Done{Done: true, Count: sent}))
	return ctx.Err()
}

// Save condenses the article and stores it as "<title>.docx" with the source link above the text.
func (s *Service) Save(ctx context.Context, u *shared.User, req SaveRequest) (*documents.Document, error) {
	if req.News == nil || strings.TrimSpace(req.News.Title) == "" || strings.TrimSpace(req.News.Body()) == "" {
		return nil, common.ErrMissingParameters
	}
	body := s.condense(ctx, req.News.Body())
	if req.News.URL != "" {
		body = req.News.URL + "\n" + body
	}
	return s.docs.SaveText(ctx, u, req.News.Title, body, string(req.Folder))
}

// condense returns the model's summary of text, or text itself when no summary can be produced.
func (s *Service) condense(ctx context.Context, text string) string {
	out, err := s.model.Complete(ctx, llm.Request{
		Model:       s.cfg.FastLLMModel,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: llm.ArticleSummaryPrompt(llm.Truncate(text, summaryMaxInput))}},
		MaxTokens:   s.cfg.SummaryTokenLimit,
		Temperature: s.cfg.Temperature,
	})
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil && !errors.Is(err, llm.ErrDisabled) {
			s.logger.Warn("Article summary failed, saving full text", zap.Error(err))
		}
		return text
	}
	return strings.TrimSpace(out)
}
