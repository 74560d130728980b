// File: cmd/server/wire.go
//go:build wireinject
// +build wireinject

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
	"texplicit_backend/internal/shared"
	"texplicit_backend/internal/subscription"
	"texplicit_backend/internal/tasks"
	"texplicit_backend/internal/user"
	"texplicit_backend/internal/vectorstore"

	"github.com/google/wire"
)

var platformSet = wire.NewSet(
	logger.New,
	database.NewMongo,
	cache.NewOptionalRedis,
	filestorage.New,
	mail.NewMailer,
	llm.New,
	vectorstore.New,
	vectorstore.NewIndexer,
	elasticsearch.NewClient,
	search.NewSerpAPI,
	scraper.New,
	realtime.NewHub,
	app.NewPublisher,
	app.NewRateLimiter,
	tasks.NewRegistry,
	tasks.NewQueue,
	tasks.NewWorkerFromConfig,
)

var userSet = wire.NewSet(
	auth.NewJWTService,
	auth.DefaultBlocklist,
	auth.NewHandler,
	user.NewMongoRepository,
	user.NewService,
	user.NewHandler,
	user.NewManagementHandler,
	user.NewAdminHandler,
	wire.Bind(new(shared.UserLookup), new(*user.Service)),
	wire.Bind(new(auth.AccountService), new(*user.Service)),
	wire.Bind(new(subscription.Store), new(user.Repository)),
	wire.Bind(new(jobs.ExpiryNotifier), new(*user.Service)),
	subscription.NewService,
	menu.NewMongoRepository,
	menu.NewService,
	menu.NewHandler,
)

var featureSet = wire.NewSet(
	chat.NewMongoRepository,
	chat.NewService,
	chat.NewHandler,
	wire.Bind(new(chat.Retriever), new(*vectorstore.Indexer)),
	documents.NewMongoRepository,
	documents.NewService,
	documents.NewHandler,
	wire.Bind(new(documents.Indexer), new(*vectorstore.Indexer)),
	news.NewService,
	news.NewHandler,
	wire.Bind(new(news.Scraper), new(*scraper.Scraper)),
	wire.Bind(new(news.DocumentSaver), new(*documents.Service)),
	report.NewMongoRepository,
	report.NewIndex,
	report.NewResearcher,
	report.NewService,
	report.NewHandler,
	wire.Bind(new(report.Runner), new(*report.Researcher)),
	wire.Bind(new(report.PageScraper), new(*scraper.Scraper)),
	wire.Bind(new(report.Retriever), new(*vectorstore.Indexer)),
	wire.Bind(new(search.Searcher), new(*search.SerpAPI)),
	wire.Bind(new(jobs.ReportSweeper), new(*report.Service)),
	feedback.NewMongoRepository,
	feedback.NewService,
	feedback.NewHandler,
	demo.NewMongoRepository,
	demo.NewService,
	demo.NewHandler,
	pricing.NewMongoRepository,
	pricing.NewIPStack,
	pricing.NewService,
	pricing.NewHandler,
	wire.Bind(new(pricing.Locator), new(*pricing.IPStack)),
	payment.NewMongoRepository,
	payment.NewRazorpay,
	payment.NewService,
	payment.NewHandler,
	wire.Bind(new(payment.Gateway), new(*payment.Razorpay)),
	wire.Bind(new(payment.Extender), new(*subscription.Service)),
	realtime.NewHandler,
	jobs.NewScheduler,
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		platformSet,
		userSet,
		featureSet,
		app.NewMiddleware,
		app.RegisterTasks,
		wire.Struct(new(app.Handlers), "*"),
		wire.Struct(new(app.Runtime), "*"),
		app.NewServer,
	)
	return nil, nil, nil
}
