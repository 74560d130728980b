package app

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"texplicit_backend/internal/auth"
	"texplicit_backend/internal/chat"
	"texplicit_backend/internal/common"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/demo"
	"texplicit_backend/internal/documents"
	"texplicit_backend/internal/feedback"
	"texplicit_backend/internal/menu"
	"texplicit_backend/internal/news"
	"texplicit_backend/internal/payment"
	"texplicit_backend/internal/pricing"
	"texplicit_backend/internal/realtime"
	"texplicit_backend/internal/report"
	"texplicit_backend/internal/tasks"
	"texplicit_backend/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	rejectAll := func(c *gin.Context) { common.RespondWithError(c, common.ErrUnauthorized) }
	return newServerWith(t, rejectAll, Runtime{})
}

func newServerWith(t *testing.T, authorized gin.HandlerFunc, runtime Runtime) *Server {
	t.Helper()
	logger := zap.NewNop()
	rejectAll := func(c *gin.Context) { common.RespondWithError(c, common.ErrUnauthorized) }
	mw := Middleware{Authorized: authorized, AdminOnly: rejectAll, RateLimit: func(c *gin.Context) { c.Next() }}
	hub := runtime.Hub
	if hub == nil {
		hub = realtime.NewHub(logger)
	}
	handlers := Handlers{
		Auth:       auth.NewHandler(nil, auth.DefaultBlocklist(), logger),
		User:       user.NewHandler(nil, logger),
		Management: user.NewManagementHandler(nil, nil, logger),
		Admin:      user.NewAdminHandler(nil, logger),
		Menu:       menu.NewHandler(nil, logger),
		Chat:       chat.NewHandler(nil, logger),
		Documents:  documents.NewHandler(nil, logger),
		News:       news.NewHandler(nil, logger),
		Report:     report.NewHandler(nil, logger),
		Feedback:   feedback.NewHandler(nil, logger),
		Demo:       demo.NewHandler(nil, logger),
		Pricing:    pricing.NewHandler(nil, logger),
		Payment:    payment.NewHandler(nil, logger),
		Events:     realtime.NewHandler(hub, logger),
	}
	srv, err := NewServer(&config.Config{GinMode: gin.TestMode, ServerHost: "127.0.0.1", ServerPort: "0", CORSAllowedOrigins: []string{"*"}}, logger, mw, handlers, runtime)
	require.NoError(t, err)
	return srv
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodPost, "/report/generate", `{"task":"x"}`, http.StatusUnauthorized},
		{http.MethodGet, "/events", "", http.StatusUnauthorized},
		{http.MethodPost, "/payment/create_order", `{"amount":1}`, http.StatusUnauthorized},
		{http.MethodGet, "/admin/user/all", "", http.StatusUnauthorized},
		{http.MethodPost, "/feedback", `{"email":"not-an-email"}`, http.StatusBadRequest},
		{http.MethodGet, "/no/such/route", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestServerCORS(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/report/all", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestShutdownWithoutStart(t *testing.T) {
	srv := newTestServer(t)
	assert.NoError(t, srv.Shutdown(context.Background()))
	assert.Error(t, srv.RunWorker(context.Background()))
}

func TestShutdownEndsOpenEventStreams(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop())
	asUser := func(c *gin.Context) {
		c.Set(common.UserIDKey, "u1")
		c.Next()
	}
	srv := newServerWith(t, asUser, Runtime{Hub: hub})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool { return hub.Subscribers("u1") == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
	require.NoError(t, <-served)

	_, err = bufio.NewReader(resp.Body).ReadString('\x00')
	assert.Error(t, err, "stream is closed by the server")
}

func TestShutdownDrainsInlineQueue(t *testing.T) {
	registry := tasks.NewRegistry()
	started, finished := make(chan struct{}), make(chan struct{})
	registry.Register(tasks.TypeNewsFetch, func(ctx context.Context, task tasks.Task) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		close(finished)
		return nil
	})
	queue := tasks.NewInlineQueue(registry, time.Minute, zap.NewNop())
	srv := newServerWith(t, func(c *gin.Context) { c.Next() }, Runtime{Queue: queue})

	_, err := queue.Enqueue(context.Background(), tasks.TypeNewsFetch, "u1", nil)
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	select {
	case <-finished:
	default:
		t.Fatal("shutdown returned before the in-process task finished")
	}
	_, err = queue.Enqueue(context.Background(), tasks.TypeNewsFetch, "u1", nil)
	assert.Error(t, err)
}

func TestProviders(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop())
	assert.Same(t, hub, NewPublisher(hub, nil, zap.NewNop()))
	assert.Nil(t, NewRateLimiter(nil, &config.Config{RateLimitPerMinute: 60}))
}
