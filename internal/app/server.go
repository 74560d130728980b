// File: internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"texplicit_backend/internal/auth"
	"texplicit_backend/internal/chat"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/demo"
	"texplicit_backend/internal/documents"
	"texplicit_backend/internal/feedback"
	"texplicit_backend/internal/jobs"
	"texplicit_backend/internal/menu"
	"texplicit_backend/internal/middleware"
	"texplicit_backend/internal/news"
	"texplicit_backend/internal/payment"
	"texplicit_backend/internal/pricing"
	"texplicit_backend/internal/realtime"
	"texplicit_backend/internal/report"
	"texplicit_backend/internal/tasks"
	"texplicit_backend/internal/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const bootstrapTimeout = 30 * time.Second

// Handlers groups every HTTP handler mounted by the server.
type Handlers struct {
	Auth       *auth.Handler
	User       *user.Handler
	Management *user.ManagementHandler
	Admin      *user.AdminHandler
	Menu       *menu.Handler
	Chat       *chat.Handler
	Documents  *documents.Handler
	News       *news.Handler
	Report     *report.Handler
	Feedback   *feedback.Handler
	Demo       *demo.Handler
	Pricing    *pricing.Handler
	Payment    *payment.Handler
	Events     *realtime.Handler
}

// Runtime holds the background machinery started next to the HTTP server.
type Runtime struct {
	DB          *mongo.Database
	Menus       menu.Service
	ReportIndex report.Index
	Hub         *realtime.Hub
	Redis       *redis.Client
	Queue       tasks.Queue
	Worker      *tasks.Worker
	Scheduler   *jobs.Scheduler
	TaskTypes   TaskTypes
}

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger
	runtime    Runtime

	// ctx scopes the background goroutines; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a new instance of our application server.
func NewServer(cfg *config.Config, logger *zap.Logger, mw Middleware, handlers Handlers, runtime Runtime) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	if len(corsConfig.AllowOrigins) == 0 || corsConfig.AllowOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))
	router.Use(mw.RateLimit)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Texplicit API is healthy!"})
	})

	registerRoutes(&router.RouterGroup, mw, handlers)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Event streams stay open, so there is no write timeout.
		IdleTimeout: 120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		httpServer: httpServer,
		router:     router,
		cfg:        cfg,
		logger:     logger,
		runtime:    runtime,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func registerRoutes(root *gin.RouterGroup, mw Middleware, h Handlers) {
	h.Auth.RegisterRoutes(root, mw.Authorized)
	h.User.RegisterRoutes(root, mw.Authorized)
	h.Management.RegisterRoutes(root, mw.Authorized)
	h.Admin.RegisterRoutes(root, mw.Authorized, mw.AdminOnly)
	h.Menu.RegisterRoutes(root)
	h.Chat.RegisterRoutes(root, mw.Authorized)
	h.Documents.RegisterRoutes(root, mw.Authorized)
	h.News.RegisterRoutes(root, mw.Authorized)
	h.Report.RegisterRoutes(root, mw.Authorized)
	h.Feedback.RegisterRoutes(root)
	h.Demo.RegisterRoutes(root)
	h.Pricing.RegisterRoutes(root)
	h.Payment.RegisterRoutes(root, mw.Authorized)
	h.Events.RegisterRoutes(root, mw.Authorized)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// bootstrap prepares indexes and seed data. Failures are logged, the server still starts.
func (s *Server) bootstrap(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	if s.runtime.DB != nil {
		if err := user.EnsureIndexes(ctx, s.runtime.DB); err != nil {
			s.logger.Error("Failed to ensure user indexes", zap.Error(err))
		}
		if err := payment.EnsureIndexes(ctx, s.runtime.DB); err != nil {
			s.logger.Error("Failed to ensure payment indexes", zap.Error(err))
		}
	}
	if s.runtime.Menus != nil {
		if err := s.runtime.Menus.EnsureDefaults(ctx); err != nil {
			s.logger.Error("Failed to seed default menus", zap.Error(err))
		}
	}
	if idx, ok := s.runtime.ReportIndex.(*report.ElasticIndex); ok {
		if err := idx.EnsureIndex(ctx); err != nil {
			s.logger.Error("Failed to create Elasticsearch reports index", zap.Error(err))
		}
	} else {
		s.logger.Info("Elasticsearch client not initialized, report search disabled.")
	}
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	return s.Serve(ln)
}

// Serve runs the HTTP server on ln together with the event relay, the task worker and the
// cron jobs. It blocks until the HTTP server stops.
func (s *Server) Serve(ln net.Listener) error {
	s.bootstrap(s.ctx)
	s.startBackground(s.ctx)

	if s.runtime.Scheduler != nil {
		if err := s.runtime.Scheduler.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start cron jobs", zap.Error(err))
		}
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", ln.Addr().String()),
		zap.String("gin_mode", s.cfg.GinMode),
		zap.Strings("task_types", s.runtime.TaskTypes),
	)
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped")
	return nil
}

func (s *Server) startBackground(ctx context.Context) {
	if s.runtime.Redis != nil && s.runtime.Hub != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.runtime.Hub.Relay(ctx, s.runtime.Redis, realtime.EventsChannel); err != nil {
				s.logger.Error("Event relay stopped", zap.Error(err))
			}
		}()
	}
	if s.runtime.Worker != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.runtime.Worker.Run(ctx); err != nil {
				s.logger.Error("Task worker stopped", zap.Error(err))
			}
		}()
	}
}

// RunWorker consumes tasks without serving HTTP until ctx is cancelled, then drains the
// running tasks for up to SERVER_TIMEOUT_SECONDS.
func (s *Server) RunWorker(ctx context.Context) error {
	if s.runtime.Worker == nil {
		return fmt.Errorf("task worker requires a reachable redis at REDIS_URL")
	}
	s.logger.Info("Starting standalone task worker", zap.Strings("task_types", s.runtime.TaskTypes))
	errc := make(chan error, 1)
	go func() { errc <- s.runtime.Worker.Run(s.ctx) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ServerTimeout)
	defer cancel()
	if err := s.runtime.Worker.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Task worker did not stop cleanly", zap.Error(err))
	}
	return <-errc
}

// Shutdown stops the HTTP server, the cron jobs, the worker and the task queue, each bounded by ctx.
// Open event streams are ended first; http.Server.Shutdown would otherwise wait on them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.runtime.Hub != nil {
		s.runtime.Hub.Close()
	}
	err := s.httpServer.Shutdown(ctx)

	if s.runtime.Scheduler != nil {
		s.runtime.Scheduler.Stop()
	}
	if s.runtime.Worker != nil {
		if werr := s.runtime.Worker.Shutdown(ctx); werr != nil {
			s.logger.Warn("Task worker did not stop cleanly", zap.Error(werr))
		}
	}
	if q, ok := s.runtime.Queue.(interface{ Shutdown(context.Context) error }); ok {
		if qerr := q.Shutdown(ctx); qerr != nil {
			s.logger.Warn("In-process tasks did not finish before shutdown", zap.Error(qerr))
		}
	}
	s.cancel()
	s.wg.Wait()
	return err
}
