//go:build !wireinject
// +build !wireinject

package main

import (
	"texplicit_backend/internal/app"
	"texplicit_backend/internal/auth"
	"texplicit_backend/internal/chat"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/demo"
	"texplicit_backend/internal/documents"
	"texplicit_backend/internal/feedback"
	"texplicit_backend/internal/filestorage"
	"texplicit_backend/internal/jobs"
	"texplicit_backend/internal/llm"
	"texplicit_backend/internal/mail"
	"texplicit_backend/internal/menu"
	"texplicit_backend/internal/news"
	"texplicit_backend/internal/payment"
	"texplicit_backend/internal/platform/cache"
	"texplicit_backend/internal/platform/database"
	"texplicit_backend/internal/platform/elasticsearch"
	"texplicit_backend/internal/platform/logger"
	"texplicit_backend/internal/pricing"
	"texplicit_backend/internal/realtime"
	"texplicit_backend/internal/report"
	"texplicit_backend/internal/scraper"
	"texplicit_backend/internal/search"
	"texplicit_backend/internal/subscription"
	"texplicit_backend/internal/tasks"
	"texplicit_backend/internal/user"
	"texplicit_backend/internal/vectorstore"
)

// Maintained by hand to match the provider sets in wire.go. Running wire in this
// directory produces an equivalent file; update both when a constructor changes.

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	zapLogger, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	tokenService := auth.NewJWTService(cfg, zapLogger)
	tokenBlocklistService := auth.DefaultBlocklist()
	mongoDatabase, cleanup, err := database.NewMongo(cfg, zapLogger)
	if err != nil {
		return nil, nil, err
	}
	repository := user.NewMongoRepository(mongoDatabase)
	mailer := mail.NewMailer(cfg, zapLogger)
	store, err := filestorage.New(cfg, zapLogger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	hub := realtime.NewHub(zapLogger)
	client, cleanup2 := cache.NewOptionalRedis(cfg, zapLogger)
	publisher := app.NewPublisher(hub, client, zapLogger)
	service := user.NewService(repository, tokenService, tokenBlocklistService, mailer, store, publisher, cfg, zapLogger)
	rateLimiter := app.NewRateLimiter(client, cfg)
	middleware := app.NewMiddleware(tokenService, tokenBlocklistService, service, rateLimiter, zapLogger)
	handler := auth.NewHandler(service, tokenBlocklistService, zapLogger)
	userHandler := user.NewHandler(service, zapLogger)
	menuRepository := menu.NewMongoRepository(mongoDatabase)
	menuService := menu.NewService(menuRepository, zapLogger)
	managementHandler := user.NewManagementHandler(service, menuService, zapLogger)
	adminHandler := user.NewAdminHandler(service, zapLogger)
	menuHandler := menu.NewHandler(menuService, zapLogger)
	chatRepository := chat.NewMongoRepository(mongoDatabase)
	subscriptionService := subscription.NewService(repository, cfg, zapLogger)
	registry := tasks.NewRegistry()
	queue := tasks.NewQueue(client, registry, cfg, zapLogger)
	llmClient := llm.New(cfg, zapLogger)
	vectorstoreStore, err := vectorstore.New(cfg, zapLogger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	indexer := vectorstore.NewIndexer(vectorstoreStore, llmClient, zapLogger)
	chatService := chat.NewService(chatRepository, service, subscriptionService, queue, llmClient, indexer, publisher, cfg, zapLogger)
	chatHandler := chat.NewHandler(chatService, zapLogger)
	documentsRepository := documents.NewMongoRepository(mongoDatabase)
	documentsService := documents.NewService(documentsRepository, store, indexer, subscriptionService, queue, llmClient, mailer, publisher, cfg, zapLogger)
	documentsHandler := documents.NewHandler(documentsService, zapLogger)
	serpAPI := search.NewSerpAPI(cfg, zapLogger)
	scraperScraper := scraper.New(cfg, zapLogger)
	newsService := news.NewService(serpAPI, scraperScraper, documentsService, queue, llmClient, publisher, cfg, zapLogger)
	newsHandler := news.NewHandler(newsService, zapLogger)
	reportRepository := report.NewMongoRepository(mongoDatabase)
	esClientWrapper, err := elasticsearch.NewClient(cfg, zapLogger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	index := report.NewIndex(esClientWrapper, cfg, zapLogger)
	researcher := report.NewResearcher(serpAPI, scraperScraper, indexer, llmClient, cfg, zapLogger)
	reportService := report.NewService(reportRepository, index, store, researcher, subscriptionService, queue, mailer, publisher, cfg, zapLogger)
	reportHandler := report.NewHandler(reportService, zapLogger)
	feedbackRepository := feedback.NewMongoRepository(mongoDatabase)
	feedbackService := feedback.NewService(feedbackRepository, zapLogger)
	feedbackHandler := feedback.NewHandler(feedbackService, zapLogger)
	demoRepository := demo.NewMongoRepository(mongoDatabase)
	demoService := demo.NewService(demoRepository, mailer, zapLogger)
	demoHandler := demo.NewHandler(demoService, zapLogger)
	pricingRepository := pricing.NewMongoRepository(mongoDatabase)
	ipStack := pricing.NewIPStack(cfg, zapLogger)
	pricingService := pricing.NewService(pricingRepository, ipStack, cfg, zapLogger)
	pricingHandler := pricing.NewHandler(pricingService, zapLogger)
	paymentRepository := payment.NewMongoRepository(mongoDatabase)
	razorpay := payment.NewRazorpay(cfg, zapLogger)
	paymentService := payment.NewService(paymentRepository, razorpay, subscriptionService, cfg, zapLogger)
	paymentHandler := payment.NewHandler(paymentService, zapLogger)
	realtimeHandler := realtime.NewHandler(hub, zapLogger)
	handlers := app.Handlers{
		Auth:       handler,
		User:       userHandler,
		Management: managementHandler,
		Admin:      adminHandler,
		Menu:       menuHandler,
		Chat:       chatHandler,
		Documents:  documentsHandler,
		News:       newsHandler,
		Report:     reportHandler,
		Feedback:   feedbackHandler,
		Demo:       demoHandler,
		Pricing:    pricingHandler,
		Payment:    paymentHandler,
		Events:     realtimeHandler,
	}
	worker := tasks.NewWorkerFromConfig(client, registry, cfg, zapLogger)
	scheduler := jobs.NewScheduler(reportService, service, cfg, zapLogger)
	taskTypes := app.RegisterTasks(registry, chatService, documentsService, newsService, reportService)
	runtime := app.Runtime{
		DB:          mongoDatabase,
		Menus:       menuService,
		ReportIndex: index,
		Hub:         hub,
		Redis:       client,
		Queue:       queue,
		Worker:      worker,
		Scheduler:   scheduler,
		TaskTypes:   taskTypes,
	}
	server, err := app.NewServer(cfg, zapLogger, middleware, handlers, runtime)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	return server, func() {
		cleanup2()
		cleanup()
		_ = zapLogger.Sync()
	}, nil
}
