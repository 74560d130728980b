package news

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/documents"
	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/llm"
	"texplicit_backend/internal/realtime"
	"texplicit_backend/internal/scraper"
	"texplicit_backend/internal/search"
	"texplicit_backend/internal/shared"
	"texplicit_backend/internal/tasks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	args := m.Called(ctx, q)
	results, _ := args.Get(0).([]search.Result)
	return results, args.Error(1)
}

type mockSaver struct {
	mock.Mock
}

func (m *mockSaver) SaveText(ctx context.Context, u *shared.User, title, text, folderID string) (*documents.Document, error) {
	args := m.Called(ctx, u, title, text, folderID)
	doc, _ := args.Get(0).(*documents.Document)
	return doc, args.Error(1)
}

// pageScraper serves canned articles keyed by url.
type pageScraper struct {
	pages   map[string]scraper.Article
	visited []string
}

func (p *pageScraper) ScrapeAll(ctx context.Context, urls []string, fn func(scraper.Article)) error {
	for _, u := range urls {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.visited = append(p.visited, u)
		if a, ok := p.pages[u]; ok {
			fn(a)
		}
	}
	return nil
}

type stubModel struct {
	answer string
	err    error
}

func (s stubModel) Complete(context.Context, llm.Request) (string, error) { return s.answer, s.err }
func (s stubModel) Stream(context.Context, llm.Request, func(string)) (string, error) {
	return "", llm.ErrDisabled
}
func (s stubModel) Embed(context.Context, []string) ([][]float32, error) { return nil, llm.ErrDisabled }

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recordingPublisher) Publish(_ context.Context, _ string, e realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type syncQueue struct {
	registry *tasks.Registry
}

func (q syncQueue) Enqueue(ctx context.Context, taskType, userID string, payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return "t1", q.registry.Handle(ctx, tasks.Task{ID: "t1", Type: taskType, UserID: userID, Payload: raw})
}

func article(title string, n int) scraper.Article {
	return scraper.Article{Title: title, Text: strings.Repeat("x", n), URL: "https://" + title}
}

func newService(searcher search.Searcher, sc Scraper, saver DocumentSaver, model llm.Client, events realtime.Publisher) *Service {
	registry := tasks.NewRegistry()
	s := NewService(searcher, sc, saver, syncQueue{registry: registry}, model, events, &config.Config{FastLLMModel: "fast"}, zap.NewNop())
	s.RegisterTasks(registry)
	return s
}

func TestFetchEmitsUsableArticlesThenDone(t *testing.T) {
	searcher := &mockSearcher{}
	searcher.On("Search", mock.Anything, search.Query{Q: "solar", Engine: domain.EngineBing, Count: 2, Start: 10}).
		Return([]search.Result{{Link: "a"}, {Link: "b"}, {Link: ""}, {Link: "c"}, {Link: "d"}}, nil)
	sc := &pageScraper{pages: map[string]scraper.Article{
		"a": article("A", 400),
		"b": article("B", 20),
		"c": article("C", 300),
		"d": article("D", 500),
	}}
	events := &recordingPublisher{}
	s := newService(searcher, sc, nil, stubModel{}, events)

	err := s.Fetch(context.Background(), "u1", FetchRequest{Query: " solar ", Engine: domain.EngineBing, Count: 2, Start: 10, RandomID: "r1"})
	require.NoError(t, err)

	searcher.AssertExpectations(t)
	assert.Equal(t, []string{"a", "b", "c"}, sc.visited)
	require.Len(t, events.events, 3)
	for _, e := range events.events {
		assert.Equal(t, "r1_solar_news", e.Name)
		assert.True(t, e.Success)
	}
	assert.Equal(t, "A", events.events[0].Data.(scraper.Article).Title)
	assert.Equal(t, "C", events.events[1].Data.(scraper.Article).Title)
	assert.Equal(t, Done{Done: true, Count: 2}, events.events[2].Data)
}

func TestFetchSearchFailurePublishesError(t *testing.T) {
	searcher := &mockSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything).Return(nil, search.ErrNoAPIKey)
	events := &recordingPublisher{}
	s := newService(searcher, &pageScraper{}, nil, stubModel{}, events)

	require.NoError(t, s.Fetch(context.Background(), "u1", FetchRequest{Query: "q", RandomID: "r"}))
	require.Len(t, events.events, 1)
	assert.False(t, events.events[0].Success)
	assert.Equal(t, http.StatusBadGateway, events.events[0].Status)
	searcher.AssertCalled(t, "Search", mock.Anything, search.Query{Q: "q", Count: defaultCount})
}

func TestFetchSearchOutageIsNotRetried(t *testing.T) {
	searcher := &mockSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("serpapi: 503"))
	events := &recordingPublisher{}
	s := newService(searcher, &pageScraper{}, nil, stubModel{}, events)

	raw, err := json.Marshal(FetchRequest{Query: "q", RandomID: "r", Count: 3})
	require.NoError(t, err)
	err = s.handleFetch(context.Background(), tasks.Task{ID: "t1", Type: tasks.TypeNewsFetch, UserID: "u1", Payload: raw})
	assert.ErrorIs(t, err, tasks.ErrPermanent)
	require.Len(t, events.events, 1)
	assert.False(t, events.events[0].Success)
}

func TestFetchValidates(t *testing.T) {
	s := newService(&mockSearcher{}, &pageScraper{}, nil, stubModel{}, &recordingPublisher{})

	err := s.Fetch(context.Background(), "u1", FetchRequest{RandomID: "r"})
	assert.ErrorIs(t, err, common.ErrMissingParameters)
	err = s.Fetch(context.Background(), "u1", FetchRequest{Query: "q"})
	assert.ErrorIs(t, err, common.ErrMissingParameters)
}

func TestSaveCondensesAndKeepsLink(t *testing.T) {
	u := &shared.User{ID: primitive.NewObjectID()}
	saver := &mockSaver{}
	saver.On("SaveText", mock.Anything, u, "Headline", "https://news/1\nshort version", "f1").
		Return(&documents.Document{ID: primitive.NewObjectID(), OriginalFileName: "Headline.docx"}, nil)
	s := newService(&mockSearcher{}, &pageScraper{}, saver, stubModel{answer: " short version "}, &recordingPublisher{})

	doc, err := s.Save(context.Background(), u, SaveRequest{News: &Article{Title: "Headline", Summary: "long text", URL: "https://news/1"}, Folder: "f1"})
	require.NoError(t, err)
	assert.Equal(t, "Headline.docx", doc.OriginalFileName)
	saver.AssertExpectations(t)
}

func TestSaveFallsBackToFullText(t *testing.T) {
	u := &shared.User{ID: primitive.NewObjectID()}
	saver := &mockSaver{}
	saver.On("SaveText", mock.Anything, u, "T", "full text", "").Return(&documents.Document{}, nil)
	s := newService(&mockSearcher{}, &pageScraper{}, saver, stubModel{err: errors.New("rate limited")}, &recordingPublisher{})

	_, err := s.Save(context.Background(), u, SaveRequest{News: &Article{Title: "T", Text: "full text"}})
	require.NoError(t, err)
	saver.AssertExpectations(t)

	_, err = s.Save(context.Background(), u, SaveRequest{News: &Article{Title: "T"}})
	assert.ErrorIs(t, err, common.ErrMissingParameters)
}

func TestFolderRefDecoding(t *testing.T) {
	cases := map[string]FolderRef{
		`{"news":{"title":"t"},"folder":"/"}`:                        "",
		`{"news":{"title":"t"},"folder":"abc"}`:                      "abc",
		`{"news":{"title":"t"},"folder":{"_id":"def","root":"/u/"}}`: "def",
		`{"news":{"title":"t"},"folder":null}`:                       "",
		`{"news":{"title":"t"}}`:                                     "",
	}
	for body, want := range cases {
		var req SaveRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req), body)
		assert.Equal(t, want, req.Folder, body)
	}
}

func TestGetNewsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	searcher := &mockSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything).Return([]search.Result{}, nil)
	events := &recordingPublisher{}
	h := NewHandler(newService(searcher, &pageScraper{}, nil, stubModel{}, events), zap.NewNop())

	router := gin.New()
	h.RegisterRoutes(router.Group(""), func(c *gin.Context) { c.Set(common.UserIDKey, "u1") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/get-news?query=ai&engine=2&count=3&randomId=r9", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	searcher.AssertCalled(t, "Search", mock.Anything, search.Query{Q: "ai", Engine: domain.EngineGoogleScholar, Count: 3})
	require.Len(t, events.events, 1)
	assert.Equal(t, "r9_ai_news", events.events[0].Name)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/get-news?randomId=r9", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
