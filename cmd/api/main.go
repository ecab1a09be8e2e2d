package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"

	"github.com/dvloznov/finance-dashboard/internal/api"
	"github.com/dvloznov/finance-dashboard/internal/api/handlers"
	"github.com/dvloznov/finance-dashboard/internal/auth"
	authmem "github.com/dvloznov/finance-dashboard/internal/auth/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/insights"
	"github.com/dvloznov/finance-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/snapshot"
	"github.com/dvloznov/finance-dashboard/internal/sources"
	"github.com/dvloznov/finance-dashboard/internal/trace"
)

var version = "dev"

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", os.Getenv("DASHBOARD_CONFIG"), "path to the YAML config file (or set DASHBOARD_CONFIG env)")
		port       = flag.String("port", "", "HTTP server port, overrides the config")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.Log.Level)

	if err := cfg.ValidateServer(); err != nil {
		log.Fatal().Err(err).Msg("Refusing to start without a passcode")
	}

	if err := trace.Init(cfg.Log.Tracing, version); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	ctx := logger.WithContext(context.Background(), log)

	// Upstream sources
	set, errs := sources.Open(cfg)
	for _, err := range errs {
		log.Warn().Err(err).Msg("Source not configured")
	}
	builder := set.Builder(cfg)

	// Snapshot sinks
	var (
		sinks  snapshot.MultiSink
		lister handlers.SnapshotLister
	)

	if cfg.Snapshot.Bucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer gcsClient.Close()
		sinks = append(sinks, snapshot.NewGCSSink(gcsClient, cfg.Snapshot.Bucket))
	} else {
		log.Warn().Msg("No snapshot bucket configured - snapshots will not be archived to GCS")
	}

	if cfg.Snapshot.BigQueryProject != "" && cfg.Snapshot.BigQueryDataset != "" {
		bqClient, err := bigquery.NewClient(ctx, cfg.Snapshot.BigQueryProject)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer bqClient.Close()

		bqSink := snapshot.NewBigQuerySink(bqClient, cfg.Snapshot.BigQueryProject, cfg.Snapshot.BigQueryDataset, cfg.Snapshot.BigQueryTable)
		if err := bqSink.EnsureTable(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare snapshot table")
		}
		sinks = append(sinks, bqSink)
		lister = bqSink
	}

	var narrator snapshot.Narrator
	if cfg.Insights.Enabled {
		summarizer, err := insights.NewGeminiSummarizer(ctx, cfg.Insights.Model)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create summarizer")
		}
		narrator = summarizer
	}

	// Initialize job infrastructure
	runner := snapshot.NewRunner(builder, sinks, narrator)
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Snapshot.QueueSize, jobStore, inmemory.WithWorkers(cfg.Snapshot.Workers))

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.Snapshot.Workers).Strs("sinks", sinkNames(sinks)).Msg("Starting snapshot workers")
	if err := jobQueue.Start(workerCtx, runner.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start snapshot workers")
	}

	// Initialize handlers
	sessions := authmem.NewStore()
	sessions.StartSweeper(workerCtx, cfg.Server.SessionSweep)
	verifier := auth.NewVerifier(cfg.Server.Passcode, sessions, cfg.Server.SessionTTL)

	var loader handlers.DatasetLoader
	if set.Loader != nil {
		loader = set.Loader
	}

	router := api.NewRouter(api.Handlers{
		Auth:       handlers.NewAuthHandler(verifier, cfg.Server.CookieSecure, log),
		Notion:     handlers.NewNotionHandler(loader, log),
		Trading212: handlers.NewTrading212Handler(set.Broker, builder, log),
		Snapshots:  handlers.NewSnapshotsHandler(jobQueue, lister, log),
		Jobs:       handlers.NewJobsHandler(jobStore, log),
	}, verifier, cfg.Server.AllowedOrigins, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("version", version).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := trace.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to flush traces")
	}

	log.Info().Msg("Server exited")
}

func sinkNames(sinks snapshot.MultiSink) []string {
	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	return names
}
