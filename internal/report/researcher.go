package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"texplicit_backend/internal/config"
	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/llm"
	"texplicit_backend/internal/scraper"
	"texplicit_backend/internal/search"
	"texplicit_backend/internal/vectorstore"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	subQueryCount    = 3
	resultsPerQuery  = 5
	documentChunks   = 15
	maxSubtopics     = 5
	maxContextChars  = 24000
	maxPageChars     = 8192
	defaultParallel  = 4
	subtopicsContext = 6000
)

// ErrEmptyReport is returned when the model produced no report text.
var ErrEmptyReport = errors.New("report: the model returned an empty report")

// Job describes one research run.
type Job struct {
	OwnerID   string
	Task      string
	Type      domain.ReportType
	Source    domain.ReportSource
	Subtopics []string
	URLs      []string
	// Websearch adds search results to the supplied URLs instead of using them alone.
	Websearch bool
	Progress  func(status string)
}

func (j Job) progress(format string, args ...interface{}) {
	if j.Progress != nil {
		j.Progress(fmt.Sprintf(format, args...))
	}
}

// Result is the outcome of a research run.
type Result struct {
	Report      string
	Agent       string
	VisitedURLs []string
}

// PageScraper fetches web pages.
type PageScraper interface {
	ScrapeAll(ctx context.Context, urls []string, fn func(scraper.Article)) error
}

// Retriever finds passages of a user's documents.
type Retriever interface {
	Search(ctx context.Context, ownerID, query string, topK int) ([]vectorstore.Match, error)
}

// Researcher gathers context from the web or the user's documents and has the model write the report.
type Researcher struct {
	searcher  search.Searcher
	scraper   PageScraper
	retriever Retriever
	model     llm.Client
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

func NewResearcher(searcher search.Searcher, scraper PageScraper, retriever Retriever, model llm.Client, cfg *config.Config, logger *zap.Logger) *Researcher {
	return &Researcher{
		searcher:  searcher,
		scraper:   scraper,
		retriever: retriever,
		model:     model,
		cfg:       cfg,
		logger:    logger.Named("researcher"),
		now:       time.Now,
	}
}

// visited collects distinct sources across concurrent lookups.
type visited struct {
	mu    sync.Mutex
	seen  map[string]bool
	order []string
}

func newVisited() *visited { return &visited{seen: map[string]bool{}} }

// add reports whether u was new.
func (v *visited) add(u string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if u == "" || v.seen[u] {
		return false
	}
	v.seen[u] = true
	v.order = append(v.order, u)
	return true
}

func (v *visited) list() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string{}, v.order...)
}

// Run researches the job and returns the markdown report.
func (r *Researcher) Run(ctx context.Context, job Job) (*Result, error) {
	job.progress("🔎 Running research for '%s'...", job.Task)
	agent, role := r.chooseAgent(ctx, job.Task)
	job.progress("%s", agent)

	seen := newVisited()
	var (
		report string
		err    error
	)
	if job.Type == domain.DetailedReport {
		report, err = r.detailed(ctx, job, role, seen)
	} else {
		var research []string
		research, err = r.gather(ctx, job, job.Task, job.URLs, seen)
		if err == nil {
			job.progress("✍️ Writing %s for research task: %s...", job.Type.Words(), job.Task)
			report, err = r.write(ctx, role, writePrompt(job.Type, job.Task, joinContext(research), job.Source, r.now()))
		}
	}
	if err != nil {
		return nil, err
	}
	return &Result{Report: report, Agent: agent, VisitedURLs: seen.list()}, nil
}

type agentChoice struct {
	Agent      string `json:"agent"`
	RolePrompt string `json:"agent_role_prompt"`
}

func (r *Researcher) chooseAgent(ctx context.Context, task string) (string, string) {
	out, err := r.model.Complete(ctx, llm.Request{
		Model: r.cfg.SmartLLMModel,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: agentInstructions},
			{Role: llm.RoleUser, Content: "task: " + task},
		},
		Temperature: 0,
	})
	var choice agentChoice
	if err == nil {
		err = llm.DecodeJSON(out, &choice)
	}
	if err != nil || choice.Agent == "" || choice.RolePrompt == "" {
		r.logger.Debug("Falling back to the default agent", zap.Error(err))
		return defaultAgent, defaultAgentRole
	}
	return choice.Agent, choice.RolePrompt
}

// gather returns research notes for query from the job's source.
func (r *Researcher) gather(ctx context.Context, job Job, query string, urls []string, seen *visited) ([]string, error) {
	if job.Source == domain.SourceMyDocuments {
		job.progress("📂 Retrieving context from documents...")
		return r.fromDocuments(ctx, job.OwnerID, query, seen)
	}
	job.progress("📂 Retrieving context from external search...")
	return r.fromWeb(ctx, job, query, urls, seen)
}

func (r *Researcher) fromDocuments(ctx context.Context, ownerID, query string, seen *visited) ([]string, error) {
	matches, err := r.retriever.Search(ctx, ownerID, query, documentChunks)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	notes := make([]string, 0, len(matches))
	for _, m := range matches {
		seen.add(m.Source)
		notes = append(notes, fmt.Sprintf("Source: %s\nContent: %s", m.Source, m.Text))
	}
	return notes, nil
}

func (r *Researcher) fromWeb(ctx context.Context, job Job, query string, urls []string, seen *visited) ([]string, error) {
	queries := []string{}
	if len(urls) == 0 || job.Websearch {
		queries = append(r.subQueries(ctx, query), query)
	}
	parallel := r.cfg.ScrapeConcurrency
	if parallel <= 0 {
		parallel = defaultParallel
	}

	var (
		mu    sync.Mutex
		notes []string
	)
	collect := func(n []string) {
		mu.Lock()
		defer mu.Unlock()
		notes = append(notes, n...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	if len(urls) > 0 {
		g.Go(func() error {
			collect(r.readPages(gctx, query, urls, seen, parallel))
			return nil
		})
	}
	for _, q := range queries {
		q := q
		g.Go(func() error {
			job.progress("🔍 Searching the web for '%s'...", q)
			results, err := r.searcher.Search(gctx, search.Query{Q: q, Count: resultsPerQuery})
			if err != nil {
				if errors.Is(err, search.ErrNoAPIKey) {
					return err
				}
				r.logger.Warn("Search failed", zap.String("query", q), zap.Error(err))
				return nil
			}
			links := make([]string, 0, len(results))
			for _, res := range results {
				links = append(links, res.Link)
			}
			collect(r.readPages(gctx, q, links, seen, parallel))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return notes, nil
}

// readPages scrapes the unvisited urls and summarises each page against query.
func (r *Researcher) readPages(ctx context.Context, query string, urls []string, seen *visited, parallel int) []string {
	fresh := make([]string, 0, len(urls))
	for _, u := range urls {
		if seen.add(u) {
			fresh = append(fresh, u)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	var pages []scraper.Article
	if err := r.scraper.ScrapeAll(ctx, fresh, func(a scraper.Article) {
		if strings.TrimSpace(a.Text) != "" {
			pages = append(pages, a)
		}
	}); err != nil {
		r.logger.Warn("Scraping stopped early", zap.String("query", query), zap.Error(err))
	}

	notes := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, page := range pages {
		i, page := i, page
		g.Go(func() error {
			summary, err := r.model.Complete(gctx, llm.Request{
				Model:       r.cfg.FastLLMModel,
				Messages:    []llm.Message{{Role: llm.RoleUser, Content: pageSummaryPrompt(query, llm.Truncate(page.Text, maxPageChars))}},
				MaxTokens:   r.cfg.SummaryTokenLimit,
				Temperature: r.cfg.Temperature,
			})
			if err != nil || strings.TrimSpace(summary) == "" {
				r.logger.Debug("Skipping page without summary", zap.String("url", page.URL), zap.Error(err))
				return nil
			}
			notes[i] = fmt.Sprintf("Source: %s\nTitle: %s\nContent: %s", page.URL, page.Title, strings.TrimSpace(summary))
			return nil
		})
	}
	_ = g.Wait()

	out := notes[:0]
	for _, n := range notes {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (r *Researcher) subQueries(ctx context.Context, task string) []string {
	out, err := r.model.Complete(ctx, llm.Request{
		Model:       r.cfg.SmartLLMModel,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: searchQueriesPrompt(task, subQueryCount, r.now())}},
		Temperature: r.cfg.Temperature,
	})
	var queries []string
	if err == nil {
		err = llm.DecodeJSON(out, &queries)
	}
	if err != nil {
		r.logger.Debug("Sub-queries unavailable, searching the task only", zap.Error(err))
		return nil
	}
	if len(queries) > subQueryCount {
		queries = queries[:subQueryCount]
	}
	return queries
}

// detailed researches the task, then each subtopic, and stitches the parts between an
// introduction and a conclusion.
func (r *Researcher) detailed(ctx context.Context, job Job, role string, seen *visited) (string, error) {
	research, err := r.gather(ctx, job, job.Task, job.URLs, seen)
	if err != nil {
		return "", err
	}
	mainContext := joinContext(research)

	subtopics := job.Subtopics
	if len(subtopics) == 0 {
		subtopics = r.subtopics(ctx, job.Task, mainContext)
	}

	var bodies []string
	for _, sub := range subtopics {
		job.progress("✍️ Writing subtopic report for '%s'...", sub)
		notes, err := r.gather(ctx, job, job.Task+" - "+sub, nil, seen)
		if err != nil {
			return "", err
		}
		prompt := subtopicReportPrompt(sub, others(subtopics, sub), job.Task, joinContext(notes), job.Source, r.now())
		body, err := r.write(ctx, role, prompt)
		if err != nil {
			if errors.Is(err, ErrEmptyReport) {
				continue
			}
			return "", err
		}
		bodies = append(bodies, body)
	}
	if len(bodies) == 0 {
		return "", ErrEmptyReport
	}

	job.progress("✍️ Writing introduction and conclusion...")
	intro, err := r.write(ctx, role, introductionPrompt(job.Task, mainContext, r.now()))
	if err != nil && !errors.Is(err, ErrEmptyReport) {
		return "", err
	}
	body := strings.Join(bodies, "\n\n")
	conclusion, err := r.write(ctx, role, conclusionPrompt(job.Task, llm.Truncate(body, maxContextChars), r.now()))
	if err != nil && !errors.Is(err, ErrEmptyReport) {
		return "", err
	}

	parts := []string{}
	for _, p := range []string{intro, body, conclusion} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func (r *Researcher) subtopics(ctx context.Context, task, notes string) []string {
	out, err := r.model.Complete(ctx, llm.Request{
		Model:       r.cfg.SmartLLMModel,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: subtopicsPrompt(task, llm.Truncate(notes, subtopicsContext), maxSubtopics)}},
		Temperature: r.cfg.Temperature,
	})
	var subs []string
	if err == nil {
		err = llm.DecodeJSON(out, &subs)
	}
	if err != nil || len(subs) == 0 {
		r.logger.Debug("Subtopics unavailable, writing a single section", zap.Error(err))
		return []string{task}
	}
	if len(subs) > maxSubtopics {
		subs = subs[:maxSubtopics]
	}
	return subs
}

func (r *Researcher) write(ctx context.Context, role, prompt string) (string, error) {
	out, err := r.model.Complete(ctx, llm.Request{
		Model: r.cfg.SmartLLMModel,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: role},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   r.cfg.SmartTokenLimit,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyReport
	}
	return out, nil
}

func joinContext(notes []string) string {
	return llm.Truncate(strings.Join(notes, "\n\n"), maxContextChars)
}

func others(all []string, current string) []string {
	out := make([]string, 0, len(all))
	for _, s := range all {
		if s != current {
			out = append(out, s)
		}
	}
	return out
}
