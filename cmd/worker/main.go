package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"

	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/insights"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/snapshot"
	"github.com/dvloznov/finance-dashboard/internal/sources"
	"github.com/dvloznov/finance-dashboard/internal/trace"
)

var version = "dev"

// The worker takes a snapshot on a fixed interval and stores it in the
// configured sinks.
func main() {
	var (
		configPath = flag.String("config", os.Getenv("DASHBOARD_CONFIG"), "path to the YAML config file (or set DASHBOARD_CONFIG env)")
		interval   = flag.Duration("interval", 24*time.Hour, "time between snapshots")
		databases  = flag.String("databases", "", "comma separated database names to snapshot; empty takes the default database")
		once       = flag.Bool("once", false, "take one round of snapshots and exit")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.Log.Level)

	if err := trace.Init(cfg.Log.Tracing, version); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	set, errs := sources.Open(cfg)
	for _, err := range errs {
		log.Warn().Err(err).Msg("Source not configured")
	}

	var sinks snapshot.MultiSink
	if cfg.Snapshot.Bucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer client.Close()
		sinks = append(sinks, snapshot.NewGCSSink(client, cfg.Snapshot.Bucket))
	}
	if cfg.Snapshot.BigQueryProject != "" && cfg.Snapshot.BigQueryDataset != "" {
		client, err := bigquery.NewClient(ctx, cfg.Snapshot.BigQueryProject)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer client.Close()
		sink := snapshot.NewBigQuerySink(client, cfg.Snapshot.BigQueryProject, cfg.Snapshot.BigQueryDataset, cfg.Snapshot.BigQueryTable)
		if err := sink.EnsureTable(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare snapshot table")
		}
		sinks = append(sinks, sink)
	}
	if len(sinks) == 0 {
		log.Fatal().Msg("No snapshot sink configured, set SNAPSHOT_BUCKET or BIGQUERY_PROJECT and BIGQUERY_DATASET")
	}

	var narrator snapshot.Narrator
	if cfg.Insights.Enabled {
		s, err := insights.NewGeminiSummarizer(ctx, cfg.Insights.Model)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create summarizer")
		}
		narrator = s
	}

	// Initialize job store and queue
	runner := snapshot.NewRunner(set.Builder(cfg), sinks, narrator)
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Snapshot.QueueSize, jobStore, inmemory.WithWorkers(cfg.Snapshot.Workers))

	if err := jobQueue.Start(ctx, runner.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	names := splitNames(*databases)
	enqueue := func() {
		for _, name := range names {
			job := &jobs.SnapshotJob{DatabaseID: name}
			if err := jobQueue.PublishSnapshot(ctx, job); err != nil {
				log.Error().Err(err).Str("database_id", name).Msg("Failed to enqueue snapshot job")
				continue
			}
			log.Info().Str("job_id", job.JobID).Str("database_id", name).Msg("Snapshot job enqueued")
		}
	}

	log.Info().Dur("interval", *interval).Strs("databases", names).Msg("Worker service started")
	enqueue()

	if *once {
		waitIdle(ctx, jobStore, len(names))
	} else {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	loop:
		for {
			select {
			case <-ticker.C:
				enqueue()
			case <-quit:
				break loop
			}
		}
	}

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer shutdownCancel()

	// Wait for in-flight jobs before cancelling their context
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancel()

	if err := trace.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to flush traces")
	}

	log.Info().Msg("Worker service stopped")
}

// splitNames returns the database names, or a single empty name that selects
// the default database.
func splitNames(raw string) []string {
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return []string{""}
	}
	return names
}

// waitIdle blocks until n jobs reached a final status.
func waitIdle(ctx context.Context, store jobs.JobStore, n int) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		finished := 0
		list, err := store.ListJobs(ctx, jobs.JobFilter{})
		if err == nil {
			for _, j := range list {
				if j.Status == jobs.JobStatusCompleted || j.Status == jobs.JobStatusFailed {
					finished++
				}
			}
		}
		if finished >= n {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
