// File: cmd/server/main.go
package main

import (
	"context"
	"flag"
	"log" // Standard log for messages before zap is active
	"os"
	"os/signal"
	"strings"
	"syscall"

	"texplicit_backend/internal/config"
	"texplicit_backend/internal/platform/database"
	platformElasticsearch "texplicit_backend/internal/platform/elasticsearch"
	"texplicit_backend/internal/platform/logger"
	"texplicit_backend/internal/report"

	"go.uber.org/zap"
)

func main() {
	args := normalizeArgs(os.Args[1:])

	if len(args) > 0 {
		switch args[0] {
		case "worker":
			runWorker()
			return
		case "sync-reports":
			syncReportsCmd := flag.NewFlagSet("sync-reports", flag.ExitOnError)
			batchSize := syncReportsCmd.Int64("batch-size", 100, "Batch size for syncing reports")
			esRefresh := syncReportsCmd.String("es-refresh", "false", "Elasticsearch refresh policy (true, false, wait_for)")
			_ = syncReportsCmd.Parse(args[1:])
			syncReports(*batchSize, *esRefresh)
			return
		}
	}

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	host := serverCmd.String("host", "", "Address to bind (default SERVER_HOST or 0.0.0.0)")
	port := serverCmd.String("port", "", "Port to listen on (default PORT or 8080)")
	_ = serverCmd.Parse(args)

	startServer(*host, *port)
}

// normalizeArgs trims every argument and drops the ones left empty, so " --host=0.0.0.0"
// parses like "--host=0.0.0.0".
func normalizeArgs(raw []string) []string {
	args := make([]string, 0, len(raw))
	for _, a := range raw {
		if a = strings.TrimSpace(a); a != "" {
			args = append(args, a)
		}
	}
	return args
}

func startServer(host, port string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if host != "" {
		cfg.ServerHost = host
	}
	if port != "" {
		cfg.ServerPort = port
	}

	server, cleanup, err := initializeServer(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server: %v", err)
	}
	defer cleanup()

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("FATAL: Server failed to start or crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("INFO: Received signal '%s'. Shutting down server...", sig)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server forced to shutdown due to error: %v", err)
	} else {
		log.Println("INFO: Server shutdown complete.")
	}
	log.Println("INFO: Application exiting.")
}

func runWorker() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration for worker: %v", err)
	}
	server, cleanup, err := initializeServer(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize worker: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.RunWorker(ctx); err != nil {
		log.Printf("ERROR: Task worker failed: %v", err)
		return
	}
	log.Println("INFO: Task worker exiting.")
}

func syncReports(batchSize int64, esRefresh string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration for sync: %v", err)
	}
	appLogger, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger for sync: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	db, closeDB, err := database.NewMongo(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("FATAL: Failed to initialize database for sync", zap.Error(err))
	}
	defer closeDB()

	esClient, err := platformElasticsearch.NewClient(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("FATAL: Failed to initialize Elasticsearch client for sync", zap.Error(err))
	}
	if esClient == nil {
		appLogger.Fatal("FATAL: Elasticsearch client is not configured, ensure ELASTICSEARCH_URL is set.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	index := report.NewElasticIndex(esClient, cfg, appLogger)
	if err := index.EnsureIndex(ctx); err != nil {
		appLogger.Fatal("FATAL: Failed to create/verify Elasticsearch index before sync", zap.Error(err))
	}

	synced, total, err := report.Sync(ctx, report.NewMongoRepository(db), index, batchSize, esRefresh, appLogger)
	if err != nil {
		appLogger.Fatal("FATAL: Report synchronization failed", zap.Int("synced", synced), zap.Int("total", total), zap.Error(err))
	}
	appLogger.Info("Report synchronization completed successfully.", zap.Int("synced", synced), zap.Int("total", total))
}
